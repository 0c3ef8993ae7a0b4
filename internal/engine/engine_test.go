package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prenav/prenav/internal/config"
	"github.com/prenav/prenav/internal/router"
	"github.com/prenav/prenav/pkg/types"
)

func quietConfig() *config.Configuration {
	cfg := config.NewDefault()
	cfg.Metrics.Enabled = false
	cfg.Global.LogLevel = "ERROR"
	return cfg
}

func testOptions() Options {
	return Options{
		Routes: []router.RouteDefinition{
			{Pattern: "/", SessionID: "home"},
			{Pattern: "/blog/[slug]", SessionID: "blog-$slug"},
		},
		Fetcher: types.SessionFetcherFunc(func(ctx context.Context, id string) (*types.CachedSession, error) {
			return &types.CachedSession{SessionID: id, Tree: json.RawMessage(`{}`)}, nil
		}),
		Renderer: types.RendererFunc(func(ctx context.Context, session *types.CachedSession) error {
			return nil
		}),
		PageFetcher: types.PageFetcherFunc(func(ctx context.Context, route types.Route) (string, error) {
			return "<html></html>", nil
		}),
	}
}

func TestNewWiresComponents(t *testing.T) {
	e, err := New(context.Background(), quietConfig(), testOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Orchestrator().Navigate(context.Background(), "/blog/hello"); err != nil {
		t.Fatalf("Navigate through assembled engine failed: %v", err)
	}

	state := e.Orchestrator().GetState()
	if state.Current != "/blog/hello" {
		t.Errorf("expected current /blog/hello, got %s", state.Current)
	}
	if records := e.Predictor().Records(); len(records) != 1 {
		t.Errorf("expected 1 recorded transition, got %d", len(records))
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.Predictor.DecayFactor = 2.0

	if _, err := New(context.Background(), cfg, testOptions()); err == nil {
		t.Error("expected invalid configuration rejected")
	}
}

func TestNewRejectsBadRenderBudget(t *testing.T) {
	cfg := quietConfig()
	cfg.RenderCache.MaxBytes = "plenty"

	if _, err := New(context.Background(), cfg, testOptions()); err == nil {
		t.Error("expected unparseable byte budget rejected")
	}
}

func TestPopularitySaturationFlowsToPredictor(t *testing.T) {
	cfg := quietConfig()
	cfg.Predictor.PopularitySaturation = 10

	e, err := New(context.Background(), cfg, testOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	e.Predictor().UpdateCommunityPatterns(map[types.Route]types.CommunityPattern{
		"/": {
			Route:      "/",
			Popularity: 5,
			NextRoutes: []types.CommunityNext{{Route: "/about", Count: 1}},
		},
	})

	predictions := e.Predictor().Predict("/")
	if len(predictions) != 1 {
		t.Fatalf("expected 1 community prediction, got %d", len(predictions))
	}
	if predictions[0].Confidence != 0.5 {
		t.Errorf("expected confidence 0.5 at half saturation, got %.2f", predictions[0].Confidence)
	}
}

func TestStartStopWithoutCommunity(t *testing.T) {
	e, err := New(context.Background(), quietConfig(), testOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
