package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prenav/prenav/pkg/types"
)

func newTestRenderCache(config *RenderConfig, fetcher types.PageFetcher) (*RenderCache, *time.Time) {
	c := NewRenderCache(config, fetcher, nil)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }
	return c, &current
}

func countingFetcher(counter *atomic.Int64) types.PageFetcher {
	return types.PageFetcherFunc(func(ctx context.Context, route types.Route) (string, error) {
		counter.Add(1)
		return "<html>" + route + "</html>", nil
	})
}

func TestPrerenderAndNavigate(t *testing.T) {
	var fetches atomic.Int64
	c, _ := newTestRenderCache(nil, countingFetcher(&fetches))

	if !c.Prerender(context.Background(), "/about", 0.8) {
		t.Fatal("expected prerender to succeed")
	}
	if fetches.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", fetches.Load())
	}

	if !c.Navigate("/about") {
		t.Error("expected instant navigation on prerendered route")
	}

	page := c.Get("/about")
	if page == nil {
		t.Fatal("expected cached page")
	}
	if !strings.Contains(page.HTML, "/about") {
		t.Errorf("unexpected page content: %s", page.HTML)
	}
	if page.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %.2f", page.Confidence)
	}
}

func TestPrerenderIdempotent(t *testing.T) {
	var fetches atomic.Int64
	c, _ := newTestRenderCache(nil, countingFetcher(&fetches))

	for i := 0; i < 5; i++ {
		if !c.Prerender(context.Background(), "/about", 0.8) {
			t.Fatal("expected prerender to succeed")
		}
	}

	if fetches.Load() != 1 {
		t.Errorf("expected a fresh entry to short-circuit fetching, got %d fetches", fetches.Load())
	}
	if stats := c.Stats(); stats.Prerenders != 1 {
		t.Errorf("expected 1 recorded prerender, got %d", stats.Prerenders)
	}
}

func TestPrerenderSkipsCurrentRoute(t *testing.T) {
	var fetches atomic.Int64
	c, _ := newTestRenderCache(nil, countingFetcher(&fetches))

	c.SetCurrentRoute("/home")
	if c.Prerender(context.Background(), "/home", 0.9) {
		t.Error("expected prerendering the current route to be skipped")
	}
	if fetches.Load() != 0 {
		t.Errorf("expected no fetch for the current route, got %d", fetches.Load())
	}
}

func TestNavigateMiss(t *testing.T) {
	c, _ := newTestRenderCache(nil, nil)

	if c.Navigate("/uncached") {
		t.Error("expected miss on uncached route")
	}
	if stats := c.Stats(); stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestNavigateRejectsExpired(t *testing.T) {
	config := DefaultRenderConfig()
	config.StaleTTL = time.Minute
	var fetches atomic.Int64
	c, current := newTestRenderCache(config, countingFetcher(&fetches))

	c.Prerender(context.Background(), "/about", 0.8)
	*current = current.Add(2 * time.Minute)

	if c.Navigate("/about") {
		t.Error("expected expired entry rejected")
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("expected expired entry deleted, got %d entries", stats.Entries)
	}
}

func TestInvalidateMarksStale(t *testing.T) {
	var fetches atomic.Int64
	c, _ := newTestRenderCache(nil, countingFetcher(&fetches))

	c.Prerender(context.Background(), "/about", 0.8)
	c.Prerender(context.Background(), "/blog", 0.8)

	c.Invalidate("/about")

	if c.Navigate("/about") {
		t.Error("expected stale entry rejected on navigation")
	}
	if c.Get("/about") != nil {
		t.Error("expected Get to hide a stale entry")
	}
	if !c.Navigate("/blog") {
		t.Error("expected untouched entry still usable")
	}

	// Stale entries stay resident until the next eviction pass
	if stats := c.Stats(); stats.Entries != 2 {
		t.Errorf("expected stale entry kept, got %d entries", stats.Entries)
	}
}

func TestInvalidateAll(t *testing.T) {
	var fetches atomic.Int64
	c, _ := newTestRenderCache(nil, countingFetcher(&fetches))

	c.Prerender(context.Background(), "/a", 0.8)
	c.Prerender(context.Background(), "/b", 0.8)

	c.Invalidate()

	if c.Navigate("/a") || c.Navigate("/b") {
		t.Error("expected all entries stale after blanket invalidation")
	}
}

func TestStaleReRenderClearsFlag(t *testing.T) {
	var fetches atomic.Int64
	c, _ := newTestRenderCache(nil, countingFetcher(&fetches))

	c.Prerender(context.Background(), "/about", 0.8)
	c.Invalidate("/about")

	// A stale entry does not short-circuit, so this re-fetches
	if !c.Prerender(context.Background(), "/about", 0.9) {
		t.Fatal("expected re-render of a stale entry")
	}
	if fetches.Load() != 2 {
		t.Errorf("expected re-fetch for stale entry, got %d fetches", fetches.Load())
	}
	if !c.Navigate("/about") {
		t.Error("expected re-rendered entry usable again")
	}
}

func TestEntryCountEviction(t *testing.T) {
	config := DefaultRenderConfig()
	config.MaxEntries = 3
	var fetches atomic.Int64
	c, current := newTestRenderCache(config, countingFetcher(&fetches))

	c.Prerender(context.Background(), "/low", 0.2)
	*current = current.Add(time.Second)
	c.Prerender(context.Background(), "/mid", 0.5)
	*current = current.Add(time.Second)
	c.Prerender(context.Background(), "/high", 0.9)
	*current = current.Add(time.Second)

	c.Prerender(context.Background(), "/new", 0.7)

	if c.Get("/low") != nil {
		t.Error("expected lowest-scoring entry evicted")
	}
	for _, route := range []types.Route{"/mid", "/high", "/new"} {
		if c.Get(route) == nil {
			t.Errorf("expected %s retained", route)
		}
	}
	if stats := c.Stats(); stats.Entries != 3 {
		t.Errorf("expected 3 entries, got %d", stats.Entries)
	}
}

func TestStaleEvictedFirst(t *testing.T) {
	config := DefaultRenderConfig()
	config.MaxEntries = 2
	var fetches atomic.Int64
	c, _ := newTestRenderCache(config, countingFetcher(&fetches))

	c.Prerender(context.Background(), "/keep", 0.1)
	c.Prerender(context.Background(), "/doomed", 0.99)
	c.Invalidate("/doomed")

	c.Prerender(context.Background(), "/new", 0.5)

	if c.Get("/doomed") != nil {
		t.Error("expected stale entry evicted before any scored entry")
	}
	if c.Get("/keep") == nil {
		t.Error("expected low-scoring but fresh entry retained")
	}
}

func TestByteBudgetEviction(t *testing.T) {
	bigPage := strings.Repeat("x", 400)
	fetcher := types.PageFetcherFunc(func(ctx context.Context, route types.Route) (string, error) {
		return bigPage, nil
	})

	config := DefaultRenderConfig()
	config.MaxEntries = 100
	config.MaxBytes = 1000
	c, _ := newTestRenderCache(config, fetcher)

	c.Prerender(context.Background(), "/a", 0.5)
	c.Prerender(context.Background(), "/b", 0.5)
	c.Prerender(context.Background(), "/c", 0.5)

	stats := c.Stats()
	if stats.Bytes > config.MaxBytes {
		t.Errorf("byte budget exceeded: %d > %d", stats.Bytes, config.MaxBytes)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries within the byte budget, got %d", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestPrerenderRejectsOversizedPage(t *testing.T) {
	page := "tiny"
	fetcher := types.PageFetcherFunc(func(ctx context.Context, route types.Route) (string, error) {
		return page, nil
	})

	config := DefaultRenderConfig()
	config.MaxBytes = 10
	c, _ := newTestRenderCache(config, fetcher)

	if !c.Prerender(context.Background(), "/small", 0.5) {
		t.Fatal("expected page within the byte budget admitted")
	}

	page = strings.Repeat("x", 20)
	if c.Prerender(context.Background(), "/big", 1.0) {
		t.Error("expected page above the byte budget rejected")
	}

	stats := c.Stats()
	if stats.Bytes > config.MaxBytes {
		t.Errorf("byte budget exceeded: %d > %d", stats.Bytes, config.MaxBytes)
	}
	if c.Get("/big") != nil {
		t.Error("expected no entry for the rejected page")
	}
	if c.Get("/small") == nil {
		t.Error("expected resident entries untouched by a rejected prerender")
	}
}

func TestPrerenderSharesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	var fetches atomic.Int64
	fetcher := types.PageFetcherFunc(func(ctx context.Context, route types.Route) (string, error) {
		fetches.Add(1)
		<-release
		return "<html></html>", nil
	})
	c, _ := newTestRenderCache(nil, fetcher)

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Prerender(context.Background(), "/about", 0.8)
		}(i)
	}

	close(release)
	wg.Wait()

	if fetches.Load() != 1 {
		t.Errorf("expected concurrent triggers to share one fetch, got %d", fetches.Load())
	}
	for i, cached := range results {
		if !cached {
			t.Errorf("expected trigger %d to report the shared render", i)
		}
	}
}

func TestPrerenderFetchFailure(t *testing.T) {
	fetcher := types.PageFetcherFunc(func(ctx context.Context, route types.Route) (string, error) {
		return "", fmt.Errorf("render service down")
	})
	c, _ := newTestRenderCache(nil, fetcher)

	if c.Prerender(context.Background(), "/about", 0.8) {
		t.Error("expected prerender to report failure")
	}
	if stats := c.Stats(); stats.FetchErrors != 1 {
		t.Errorf("expected 1 fetch error, got %d", stats.FetchErrors)
	}
}

func TestRenderCacheClear(t *testing.T) {
	var fetches atomic.Int64
	c, _ := newTestRenderCache(nil, countingFetcher(&fetches))

	c.Prerender(context.Background(), "/a", 0.5)
	c.Clear()

	stats := c.Stats()
	if stats.Entries != 0 || stats.Bytes != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries / %d bytes", stats.Entries, stats.Bytes)
	}
}
