package router

import (
	"sort"
	"strings"
	"sync"

	"github.com/prenav/prenav/pkg/types"
)

// segmentKind classifies one pattern segment
type segmentKind int

const (
	segmentStatic segmentKind = iota
	segmentDynamic
	segmentCatchAll
	segmentOptionalCatchAll
)

// segment is one parsed pattern segment
type segment struct {
	kind segmentKind
	name string // static text, or parameter name
}

// RouteDefinition describes one route from the build manifest.
type RouteDefinition struct {
	// Pattern like "/blog/[slug]" or "/api/[...path]"
	Pattern string `json:"pattern" yaml:"pattern"`

	// SessionID template, e.g. "blog-$slug"
	SessionID string `json:"session_id" yaml:"session_id"`

	// ComponentID references the page component
	ComponentID string `json:"component_id" yaml:"component_id"`

	// Layout is an optional layout wrapper
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// parsedRoute pairs a definition with its parsed segments
type parsedRoute struct {
	segments   []segment
	definition RouteDefinition
}

// Router matches URL paths against a manifest of route definitions.
// Supports static segments, dynamic segments ([slug]), catch-all
// ([...path]), optional catch-all ([[...slug]]) and route groups
// ((dashboard), ignored in the URL). Routes are tried in specificity
// order: static beats dynamic beats catch-all.
type Router struct {
	mu     sync.RWMutex
	routes []parsedRoute
}

// New creates an empty router
func New() *Router {
	return &Router{}
}

// Add registers a route definition and re-sorts by specificity.
func (r *Router) Add(definition RouteDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = append(r.routes, parsedRoute{
		segments:   parsePattern(definition.Pattern),
		definition: definition,
	})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return specificity(r.routes[i].segments) > specificity(r.routes[j].segments)
	})
}

// AddAll registers several route definitions.
func (r *Router) AddAll(definitions []RouteDefinition) {
	for _, definition := range definitions {
		r.Add(definition)
	}
}

// Match resolves a URL path to a route, extracting parameters and the
// resolved session id. A nil result means the path is unroutable.
func (r *Router) Match(path string) *types.RouteMatch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pathSegments := splitPath(path)

	for _, parsed := range r.routes {
		params, ok := matchSegments(parsed.segments, pathSegments)
		if !ok {
			continue
		}
		return &types.RouteMatch{
			Pattern:   parsed.definition.Pattern,
			SessionID: resolveSessionID(parsed.definition.SessionID, params),
			Params:    params,
		}
	}
	return nil
}

// Has reports whether any route matches the path.
func (r *Router) Has(path string) bool {
	return r.Match(path) != nil
}

// Patterns returns all registered patterns in specificity order.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns := make([]string, 0, len(r.routes))
	for _, parsed := range r.routes {
		patterns = append(patterns, parsed.definition.Pattern)
	}
	return patterns
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePattern parses a route pattern into segments, skipping route
// groups like (dashboard).
func parsePattern(pattern string) []segment {
	var segments []segment
	for _, part := range splitPath(pattern) {
		if isRouteGroup(part) {
			continue
		}
		switch {
		case strings.HasPrefix(part, "[[...") && strings.HasSuffix(part, "]]"):
			segments = append(segments, segment{
				kind: segmentOptionalCatchAll,
				name: part[5 : len(part)-2],
			})
		case strings.HasPrefix(part, "[...") && strings.HasSuffix(part, "]"):
			segments = append(segments, segment{
				kind: segmentCatchAll,
				name: part[4 : len(part)-1],
			})
		case strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]"):
			segments = append(segments, segment{
				kind: segmentDynamic,
				name: part[1 : len(part)-1],
			})
		default:
			segments = append(segments, segment{
				kind: segmentStatic,
				name: part,
			})
		}
	}
	return segments
}

func isRouteGroup(part string) bool {
	return strings.HasPrefix(part, "(") && strings.HasSuffix(part, ")")
}

// specificity scores a parsed route; higher scores match first. Earlier
// segments weigh more, and static beats dynamic beats catch-all.
func specificity(segments []segment) int {
	score := 0
	for i, seg := range segments {
		positionWeight := 1000 - i
		switch seg.kind {
		case segmentStatic:
			score += positionWeight * 10
		case segmentDynamic:
			score += positionWeight * 5
		case segmentCatchAll:
			score++
		case segmentOptionalCatchAll:
			// zero
		}
	}
	return score
}

// matchSegments matches path segments against route segments, returning
// extracted params. A catch-all must consume at least one segment; an
// optional catch-all may consume zero.
func matchSegments(routeSegments []segment, pathSegments []string) (map[string]string, bool) {
	params := make(map[string]string)
	pathIdx := 0

	for _, seg := range routeSegments {
		switch seg.kind {
		case segmentStatic:
			if pathIdx >= len(pathSegments) || pathSegments[pathIdx] != seg.name {
				return nil, false
			}
			pathIdx++
		case segmentDynamic:
			if pathIdx >= len(pathSegments) {
				return nil, false
			}
			params[seg.name] = pathSegments[pathIdx]
			pathIdx++
		case segmentCatchAll:
			if pathIdx >= len(pathSegments) {
				return nil, false
			}
			params[seg.name] = strings.Join(pathSegments[pathIdx:], "/")
			pathIdx = len(pathSegments)
		case segmentOptionalCatchAll:
			if pathIdx < len(pathSegments) {
				params[seg.name] = strings.Join(pathSegments[pathIdx:], "/")
				pathIdx = len(pathSegments)
			}
		}
	}

	// Every path segment must be consumed
	if pathIdx != len(pathSegments) {
		return nil, false
	}
	return params, true
}

// resolveSessionID substitutes $param placeholders in a session id
// template with matched values.
func resolveSessionID(template string, params map[string]string) string {
	result := template
	for key, value := range params {
		result = strings.ReplaceAll(result, "$"+key, value)
	}
	return result
}
