/*
Package community syncs aggregated cross-user navigation patterns from
object storage into the predictor.

The pattern aggregate is a JSON document mapping routes to their observed
next-route counts, produced offline from many users' anonymized history.
Loader.Run refreshes it on an interval; a failed refresh keeps the
previous snapshot and is retried on the next cycle. The same bucket
stores predictor snapshots so a client can restore learned transition
state across reloads.
*/
package community
