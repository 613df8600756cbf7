package world

import (
	"time"

	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/mathx"
	"voxelvillage.ai/internal/sim/tasks"
)

// restartCounter is implemented by strategies that replace plans.
type restartCounter interface {
	Restarts() int
}

// Step advances the world by one frame. Actions are applied after every
// actor has been updated, in the order given.
func (w *World) Step(actions []Action) TickLogEntry {
	start := time.Now()
	tick := w.tick.Load()
	frame := w.frame.Load()

	// Randomness depends only on seed and tick, so a world resumed from a
	// snapshot draws the same numbers as one that never stopped.
	w.rng.Seed(mathx.Mix(w.cfg.Seed, tick))

	for _, a := range w.actors {
		a.Memory.Expire(tick)
	}
	if (frame+1)%uint64(w.cfg.AgeSweepEvery) == 0 {
		w.m.UpdateTileAges()
	}

	restarts := w.updateStrategies(tick)
	greetings := w.applyActions(tick, actions)

	entry := TickLogEntry{
		Tick:      tick,
		Frame:     frame,
		Actions:   actions,
		Greetings: greetings,
		Restarts:  restarts,
	}
	if w.tickLogger != nil {
		entry.Digest = w.stateDigest(tick)
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Warn("tick log write failed", "tick", tick, "err", err)
		}
	}
	w.broadcastFrame(tick, frame, greetings)

	w.tick.Store(tick + w.cfg.TickIncrement)
	w.frame.Store(frame + 1)

	if w.cfg.SnapshotEvery > 0 && (frame+1)%uint64(w.cfg.SnapshotEvery) == 0 {
		w.emitSnapshot()
	}
	w.updateMetrics(time.Since(start))
	return entry
}

func (w *World) updateStrategies(tick uint64) int {
	snaps := make([]actor.Snapshot, len(w.actors))
	for i, a := range w.actors {
		snaps[i] = a.snapshot()
	}

	// others is reused across actors; tasks must not keep it.
	others := make([]actor.Snapshot, 0, len(snaps))
	restarts := 0
	for i, a := range w.actors {
		a.Occupation.Update(tick)
		if a.Strategy == nil {
			a.Strategy = a.Occupation.NewStrategy()
		}
		others = append(others[:0], snaps[:i]...)
		others = append(others, snaps[i+1:]...)

		ctx := &tasks.Context{
			Tick:     tick,
			Step:     w.cfg.TickIncrement,
			Map:      w.m,
			Entities: w.entities,
			Self:     a.State,
			Others:   others,
			Rng:      w.rng,
			Log:      a.log,
		}
		rc, counts := a.Strategy.(restartCounter)
		before := 0
		if counts {
			before = rc.Restarts()
		}
		a.Strategy.Update(ctx)
		if counts {
			restarts += rc.Restarts() - before
		}
	}
	return restarts
}

func (w *World) emitSnapshot() {
	if w.snapshotSink == nil {
		return
	}
	snap := w.ExportSnapshot()
	select {
	case w.snapshotSink <- snap:
	default:
		w.log.Warn("snapshot sink full, dropping snapshot", "tick", snap.Header.Tick)
	}
}

func (w *World) updateMetrics(elapsed time.Duration) {
	w.metrics.Store(WorldMetrics{
		Tick:      w.tick.Load(),
		Frame:     w.frame.Load(),
		Actors:    len(w.actors),
		Entities:  w.entities.Len(),
		Regions:   len(w.m.RegionKeys()),
		Locks:     w.m.LockCount(),
		Observers: len(w.observers),
		Inbox:     len(w.inbox),
		StepMS:    float64(elapsed.Microseconds()) / 1000,
	})
}
