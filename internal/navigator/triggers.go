package navigator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prenav/prenav/pkg/types"
)

// Prerender trigger confidences. Hover intent is a stronger signal than a
// link merely scrolling into view.
const (
	visibleConfidence = 0.7
	hoverConfidence   = 0.9
)

// LinkVisible reports that a link to the route entered the viewport. Each
// route triggers at most one visibility prerender; the trigger is one-shot
// and fires in the background.
func (o *Orchestrator) LinkVisible(ctx context.Context, route types.Route) {
	if o.renders == nil {
		return
	}

	o.mu.Lock()
	if o.seenVisible[route] {
		o.mu.Unlock()
		return
	}
	o.seenVisible[route] = true
	o.mu.Unlock()

	go func() {
		ok := o.renders.Prerender(ctx, route, visibleConfidence)
		if o.collector != nil {
			o.collector.RecordPrerender("visible", ok)
		}
	}()
}

// HoverStart reports pointer entry on a link. A delay timer debounces
// intent; if the pointer leaves before it fires the prerender is
// cancelled.
func (o *Orchestrator) HoverStart(ctx context.Context, route types.Route) {
	if o.renders == nil {
		return
	}

	delay := o.config.HoverDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, pending := o.hoverTimers[route]; pending {
		return
	}

	o.hoverTimers[route] = time.AfterFunc(delay, func() {
		o.mu.Lock()
		delete(o.hoverTimers, route)
		o.mu.Unlock()

		ok := o.renders.Prerender(ctx, route, hoverConfidence)
		if o.collector != nil {
			o.collector.RecordPrerender("hover", ok)
		}
		o.logger.Debug("hover intent prerender", zap.String("route", route), zap.Bool("cached", ok))
	})
}

// HoverEnd reports pointer exit on a link, cancelling any pending intent
// timer.
func (o *Orchestrator) HoverEnd(route types.Route) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if timer, pending := o.hoverTimers[route]; pending {
		timer.Stop()
		delete(o.hoverTimers, route)
	}
}

// StopTriggers cancels all pending hover timers and resets one-shot
// visibility tracking.
func (o *Orchestrator) StopTriggers() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for route, timer := range o.hoverTimers {
		timer.Stop()
		delete(o.hoverTimers, route)
	}
	o.seenVisible = make(map[types.Route]bool)
}
