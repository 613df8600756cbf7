package entity

import "voxelvillage.ai/internal/sim/actor"

// Entity is a static structure placed on the map (a house body).
type Entity struct {
	ID     uint32
	X, Y   int
	Z      int
	Width  int
	Length int
	Height int
	Color  actor.Color
	SyncID uint64
}

type List struct {
	items  []Entity
	nextID uint32
}

func NewList() *List { return &List{nextID: 1} }

// Add appends a new entity and returns its id. SyncID starts at 1.
func (l *List) Add(x, y, z, width, length, height int, c actor.Color) uint32 {
	if l.nextID == 0 {
		l.nextID = 1
	}
	id := l.nextID
	l.nextID++
	l.items = append(l.items, Entity{
		ID: id, X: x, Y: y, Z: z,
		Width: width, Length: length, Height: height,
		Color: c, SyncID: 1,
	})
	return id
}

// Restore appends an entity exactly as persisted.
func (l *List) Restore(e Entity) {
	l.items = append(l.items, e)
	if e.ID >= l.nextID {
		l.nextID = e.ID + 1
	}
}

func (l *List) All() []Entity {
	out := make([]Entity, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) Len() int { return len(l.items) }
