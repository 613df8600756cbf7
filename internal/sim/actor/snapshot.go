package actor

import "voxelvillage.ai/internal/sim/worldmap"

// Snapshot is a value copy of another actor taken at the start of a tick.
type Snapshot struct {
	ID         uint32
	Name       string
	Occupation string
	Pos        worldmap.Point
	Color      Color
	Ethereal   bool
	SyncID     uint64
}

func (s *State) Snapshot(id uint32, name, occupation string) Snapshot {
	return Snapshot{
		ID:         id,
		Name:       name,
		Occupation: occupation,
		Pos:        s.pos,
		Color:      s.color,
		Ethereal:   s.ethereal,
		SyncID:     s.syncID,
	}
}
