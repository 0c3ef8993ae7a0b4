package router

import (
	"testing"
)

func newTestRouter() *Router {
	r := New()
	r.AddAll([]RouteDefinition{
		{Pattern: "/", SessionID: "home", ComponentID: "HomePage"},
		{Pattern: "/about", SessionID: "about", ComponentID: "AboutPage"},
		{Pattern: "/blog/[slug]", SessionID: "blog-$slug", ComponentID: "BlogPost"},
		{Pattern: "/blog/featured", SessionID: "blog-featured", ComponentID: "FeaturedPost"},
		{Pattern: "/docs/[...path]", SessionID: "docs-$path", ComponentID: "DocsPage"},
		{Pattern: "/gallery/[[...filters]]", SessionID: "gallery", ComponentID: "GalleryPage"},
		{Pattern: "/(marketing)/pricing", SessionID: "pricing", ComponentID: "PricingPage"},
		{Pattern: "/shop/[category]/[item]", SessionID: "shop-$category-$item", ComponentID: "ItemPage"},
	})
	return r
}

func TestMatchStatic(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/about")
	if match == nil {
		t.Fatal("expected match for /about")
	}
	if match.Pattern != "/about" {
		t.Errorf("expected pattern /about, got %s", match.Pattern)
	}
	if match.SessionID != "about" {
		t.Errorf("expected session id about, got %s", match.SessionID)
	}
	if len(match.Params) != 0 {
		t.Errorf("expected no params, got %v", match.Params)
	}
}

func TestMatchRoot(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/")
	if match == nil {
		t.Fatal("expected match for /")
	}
	if match.SessionID != "home" {
		t.Errorf("expected session id home, got %s", match.SessionID)
	}
}

func TestMatchDynamic(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/blog/hello-world")
	if match == nil {
		t.Fatal("expected match for /blog/hello-world")
	}
	if match.Pattern != "/blog/[slug]" {
		t.Errorf("expected dynamic pattern, got %s", match.Pattern)
	}
	if match.Params["slug"] != "hello-world" {
		t.Errorf("expected slug param hello-world, got %q", match.Params["slug"])
	}
	if match.SessionID != "blog-hello-world" {
		t.Errorf("expected resolved session id blog-hello-world, got %s", match.SessionID)
	}
}

func TestStaticBeatsDynamic(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/blog/featured")
	if match == nil {
		t.Fatal("expected match for /blog/featured")
	}
	if match.Pattern != "/blog/featured" {
		t.Errorf("expected static pattern to win, got %s", match.Pattern)
	}
}

func TestMatchMultipleParams(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/shop/shoes/sneaker-01")
	if match == nil {
		t.Fatal("expected match for /shop/shoes/sneaker-01")
	}
	if match.Params["category"] != "shoes" || match.Params["item"] != "sneaker-01" {
		t.Errorf("unexpected params: %v", match.Params)
	}
	if match.SessionID != "shop-shoes-sneaker-01" {
		t.Errorf("expected session id shop-shoes-sneaker-01, got %s", match.SessionID)
	}
}

func TestMatchCatchAll(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/docs/guide/getting-started/install")
	if match == nil {
		t.Fatal("expected catch-all match")
	}
	if match.Params["path"] != "guide/getting-started/install" {
		t.Errorf("expected joined catch-all param, got %q", match.Params["path"])
	}
}

func TestCatchAllRequiresSegment(t *testing.T) {
	r := newTestRouter()

	if match := r.Match("/docs"); match != nil {
		t.Errorf("expected no match, catch-all requires at least one segment, got %s", match.Pattern)
	}
}

func TestOptionalCatchAll(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/gallery")
	if match == nil {
		t.Fatal("expected optional catch-all to match with zero segments")
	}
	if _, exists := match.Params["filters"]; exists {
		t.Error("expected no filters param when zero segments matched")
	}

	match = r.Match("/gallery/landscape/2024")
	if match == nil {
		t.Fatal("expected optional catch-all to match with segments")
	}
	if match.Params["filters"] != "landscape/2024" {
		t.Errorf("expected joined filters param, got %q", match.Params["filters"])
	}
}

func TestRouteGroupsIgnored(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/pricing")
	if match == nil {
		t.Fatal("expected route group segment dropped from the URL")
	}
	if match.SessionID != "pricing" {
		t.Errorf("expected session id pricing, got %s", match.SessionID)
	}

	if r.Match("/(marketing)/pricing") != nil {
		t.Error("group segment must not be matchable literally")
	}
}

func TestUnroutablePath(t *testing.T) {
	r := newTestRouter()

	if r.Match("/no/such/route/anywhere/deep") != nil {
		t.Error("expected nil for unroutable path")
	}
	if r.Has("/definitely-not-registered") {
		t.Error("expected Has false for unroutable path")
	}
}

func TestTrailingSlashNormalized(t *testing.T) {
	r := newTestRouter()

	match := r.Match("/about/")
	if match == nil {
		t.Fatal("expected trailing slash ignored")
	}
	if match.Pattern != "/about" {
		t.Errorf("expected /about, got %s", match.Pattern)
	}
}

func TestSpecificityOrdering(t *testing.T) {
	tests := []struct {
		name    string
		more    string
		less    string
	}{
		{"static over dynamic", "/blog/featured", "/blog/[slug]"},
		{"dynamic over catch-all", "/blog/[slug]", "/docs/[...path]"},
		{"catch-all over optional", "/docs/[...path]", "/gallery/[[...filters]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			more := specificity(parsePattern(tt.more))
			less := specificity(parsePattern(tt.less))
			if more <= less {
				t.Errorf("expected %s (%d) more specific than %s (%d)",
					tt.more, more, tt.less, less)
			}
		})
	}
}

func TestPatternsInSpecificityOrder(t *testing.T) {
	r := New()
	r.Add(RouteDefinition{Pattern: "/docs/[...path]", SessionID: "docs"})
	r.Add(RouteDefinition{Pattern: "/docs/intro", SessionID: "intro"})

	patterns := r.Patterns()
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	if patterns[0] != "/docs/intro" {
		t.Errorf("expected static pattern first, got %s", patterns[0])
	}
}

func TestResolveSessionIDWithoutParams(t *testing.T) {
	if got := resolveSessionID("static-id", nil); got != "static-id" {
		t.Errorf("expected template passthrough, got %s", got)
	}
}
