package world

import (
	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/worldmap"
)

// ExportSnapshot captures the full world state. The header tick is the next
// tick to be simulated.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	mc := w.m.Config()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
			Frame:   w.frame.Load(),
		},
		Seed:          w.cfg.Seed,
		TickIncrement: w.cfg.TickIncrement,
		AgeSweepEvery: w.cfg.AgeSweepEvery,
		SnapshotEvery: w.cfg.SnapshotEvery,
		Width:         mc.Width,
		Length:        mc.Length,
		Infinite:      mc.Infinite,
		Counters: snapshot.CountersV1{
			NextActorID: w.nextActorID,
			MapSyncID:   w.m.SyncID(),
			Player:      w.player,
		},
	}

	for _, k := range w.m.RegionKeys() {
		r, _ := w.m.Region(k)
		snap.Regions = append(snap.Regions, exportRegion(r))
	}
	for _, a := range w.actors {
		snap.Actors = append(snap.Actors, exportActor(a))
	}
	for _, e := range w.entities.All() {
		snap.Entities = append(snap.Entities, snapshot.EntityV1{
			ID:     e.ID,
			Pos:    [3]int{e.X, e.Y, e.Z},
			Size:   [3]int{e.Width, e.Length, e.Height},
			Color:  [3]float32{e.Color.R, e.Color.G, e.Color.B},
			SyncID: e.SyncID,
		})
	}
	return snap
}

func exportRegion(r *worldmap.Region) snapshot.RegionV1 {
	tiles := r.Tiles()
	out := snapshot.RegionV1{
		RX:      r.RX,
		RY:      r.RY,
		Kinds:   make([]uint8, len(tiles)),
		Heights: make([]int16, len(tiles)),
		Ages:    make([]uint8, len(tiles)),
		Flags:   make([]uint8, len(tiles)),
	}
	for i, t := range tiles {
		out.Kinds[i], out.Heights[i], out.Ages[i], out.Flags[i] = t.Pack()
	}
	return out
}

func exportActor(a *Actor) snapshot.ActorV1 {
	p := a.State.Position()
	b := a.State.Beacon()
	c := a.State.Color()
	out := snapshot.ActorV1{
		ID:         a.ID,
		Name:       a.Name,
		Occupation: a.Occupation.Key(),
		Pos:        [2]int{p.X, p.Y},
		Beacon:     [2]int{b.X, b.Y},
		Color:      [3]float32{c.R, c.G, c.B},
		Ethereal:   a.State.Ethereal(),
		SyncID:     a.State.SyncID(),
	}
	for _, e := range a.Memory.Entries() {
		out.Memory = append(out.Memory, snapshot.MemoryEntryV1{Key: e.Key, Expiry: e.Expiry})
	}
	return out
}
