package world

import (
	"context"
	"time"
)

// Run owns the world until ctx is cancelled or Stop is called. Actions that
// arrive between two ticks are applied together at the next one. A
// non-positive interval derives the period from TickRateHz.
func (w *World) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / time.Duration(w.cfg.TickRateHz)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info("world loop started", "interval", interval, "tick", w.tick.Load())
	var pending []Action
	for {
		select {
		case <-ctx.Done():
			w.log.Info("world loop stopped", "tick", w.tick.Load(), "reason", ctx.Err())
			return ctx.Err()
		case <-w.stop:
			w.log.Info("world loop stopped", "tick", w.tick.Load())
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.regionReq:
			w.handleRegionRequest(req)
		case act := <-w.inbox:
			pending = append(pending, act)
		case <-ticker.C:
			w.Step(pending)
			pending = nil
		}
	}
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Drain returns and clears every queued action without stepping. Callers
// stepping the world by hand use it in place of Run.
func (w *World) Drain() []Action {
	var out []Action
	for {
		select {
		case act := <-w.inbox:
			out = append(out, act)
		default:
			return out
		}
	}
}
