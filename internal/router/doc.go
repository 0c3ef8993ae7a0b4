/*
Package router matches navigation targets against file-convention route
patterns.

Patterns are segment based: literal segments, [param] dynamic segments,
[...rest] catch-alls (one or more segments) and [[...rest]] optional
catch-alls (zero or more). Parenthesized route groups organize patterns
without contributing URL segments. When several patterns match, the most
specific wins: static beats dynamic, earlier segments outweigh later
ones, catch-alls rank last.
*/
package router
