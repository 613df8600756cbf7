package world

import (
	"fmt"
	"log/slog"

	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/entity"
	"voxelvillage.ai/internal/sim/occupations"
	"voxelvillage.ai/internal/sim/worldmap"
)

// Resume builds a world from snap. The seed, step sizes and map shape the
// snapshot was taken with override cfg.
func Resume(cfg WorldConfig, snap snapshot.SnapshotV1, log *slog.Logger) (*World, error) {
	if snap.Header.WorldID != "" && snap.Header.WorldID != cfg.ID {
		return nil, fmt.Errorf("snapshot world id mismatch: config=%s snap=%s", cfg.ID, snap.Header.WorldID)
	}
	cfg.Seed = snap.Seed
	cfg.TickIncrement = snap.TickIncrement
	cfg.AgeSweepEvery = snap.AgeSweepEvery
	cfg.SnapshotEvery = snap.SnapshotEvery
	cfg.Map.Width = snap.Width
	cfg.Map.Length = snap.Length
	cfg.Map.Infinite = snap.Infinite

	w, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportSnapshot replaces the world state with snap. The seed and map shape
// must match the running config. Strategies restart from scratch and every
// map lock is dropped.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("import snapshot: %w: %d", snapshot.ErrVersion, snap.Header.Version)
	}
	mc := w.m.Config()
	if snap.Seed != w.cfg.Seed {
		return fmt.Errorf("import snapshot: seed %d does not match world seed %d", snap.Seed, w.cfg.Seed)
	}
	if snap.Infinite != mc.Infinite || snap.Width != mc.Width || snap.Length != mc.Length {
		return fmt.Errorf("import snapshot: map %dx%d (infinite=%v) does not match %dx%d (infinite=%v)",
			snap.Width, snap.Length, snap.Infinite, mc.Width, mc.Length, mc.Infinite)
	}

	actors := make([]*Actor, 0, len(snap.Actors))
	for _, av := range snap.Actors {
		occ, err := occupations.Lookup(av.Occupation)
		if err != nil {
			return fmt.Errorf("import actor %d: %w", av.ID, err)
		}
		st := actor.Restore(
			worldmap.Point{X: av.Pos[0], Y: av.Pos[1]},
			worldmap.Point{X: av.Beacon[0], Y: av.Beacon[1]},
			actor.Color{R: av.Color[0], G: av.Color[1], B: av.Color[2]},
			av.Ethereal,
			av.SyncID,
		)
		mem := actor.NewMemory()
		for _, e := range av.Memory {
			// Stored as absolute expiry.
			mem.Remember(e.Key, 0, e.Expiry)
		}
		a := &Actor{ID: av.ID, Name: av.Name, State: st, Occupation: occ, Memory: mem}
		a.log = w.log.With("actor", a.Name, "actor_id", a.ID)
		actors = append(actors, a)
	}
	if snap.Counters.Player >= len(actors) {
		return fmt.Errorf("import snapshot: player index %d out of range", snap.Counters.Player)
	}

	regions := make(map[worldmap.RegionKey][]worldmap.Tile, len(snap.Regions))
	for _, rv := range snap.Regions {
		n := len(rv.Kinds)
		if n != worldmap.RegionSize*worldmap.RegionSize || len(rv.Heights) != n || len(rv.Ages) != n || len(rv.Flags) != n {
			return fmt.Errorf("import region (%d,%d): bad plane length", rv.RX, rv.RY)
		}
		tiles := make([]worldmap.Tile, n)
		for i := range tiles {
			tiles[i] = worldmap.UnpackTile(rv.Kinds[i], rv.Heights[i], rv.Ages[i], rv.Flags[i])
		}
		regions[worldmap.RegionKey{RX: rv.RX, RY: rv.RY}] = tiles
	}

	// Old plans give their locks back before the tiles under them change.
	for _, a := range w.actors {
		if a.Strategy != nil {
			a.Strategy.Release(w.m)
		}
	}
	for k, tiles := range regions {
		if err := w.m.ImportRegion(k, tiles); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}
	w.m.RestoreSyncID(snap.Counters.MapSyncID)

	ents := entity.NewList()
	for _, ev := range snap.Entities {
		ents.Restore(entity.Entity{
			ID:     ev.ID,
			X:      ev.Pos[0],
			Y:      ev.Pos[1],
			Z:      ev.Pos[2],
			Width:  ev.Size[0],
			Length: ev.Size[1],
			Height: ev.Size[2],
			Color:  actor.Color{R: ev.Color[0], G: ev.Color[1], B: ev.Color[2]},
			SyncID: ev.SyncID,
		})
	}

	w.actors = actors
	w.entities = ents
	w.nextActorID = snap.Counters.NextActorID
	if w.nextActorID == 0 {
		w.nextActorID = 1
	}
	w.player = snap.Counters.Player
	w.tick.Store(snap.Header.Tick)
	w.frame.Store(snap.Header.Frame)
	w.log.Info("snapshot imported", "tick", snap.Header.Tick, "actors", len(actors), "regions", len(snap.Regions))
	return nil
}
