package tasks

import (
	"log/slog"
	"math/rand"

	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/entity"
	"voxelvillage.ai/internal/sim/worldmap"
)

// Context is everything one actor may see and touch during its update. The
// map, entity list and Self are live; Others is a copy taken before the tick
// started.
type Context struct {
	// Tick is the current game time.
	Tick uint64
	// Step is the game time that elapses per frame.
	Step uint64

	Map      *worldmap.Map
	Entities *entity.List
	Self     *actor.State
	Others   []actor.Snapshot
	Rng      *rand.Rand
	Log      *slog.Logger
}

func (c *Context) Logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

// FrameLength returns Step, treating zero as one.
func (c *Context) FrameLength() uint64 {
	if c.Step == 0 {
		return 1
	}
	return c.Step
}

// After returns the game time that lies the given number of frames ahead.
func (c *Context) After(frames uint64) uint64 {
	return c.Tick + frames*c.FrameLength()
}

// Between returns a random int in [lo, hi). hi <= lo yields lo.
func (c *Context) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + c.Rng.Intn(hi-lo)
}

// Occupied reports whether a non-ethereal other actor stands on p.
func (c *Context) Occupied(p worldmap.Point) bool {
	for i := range c.Others {
		if !c.Others[i].Ethereal && c.Others[i].Pos == p {
			return true
		}
	}
	return false
}

func (c *Context) Walkable(p worldmap.Point) bool {
	return c.Map.IsTileValid(p.X, p.Y) && c.Map.Tile(p.X, p.Y).Walkable()
}

// CanEnter reports whether p is walkable and not occupied.
func (c *Context) CanEnter(p worldmap.Point) bool {
	return c.Walkable(p) && !c.Occupied(p)
}

var cardinals = [4]worldmap.Point{{X: -1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: -1}, {X: 0, Y: 1}}

// RandomDirection picks one of the four cardinal unit steps.
func (c *Context) RandomDirection() worldmap.Point {
	return cardinals[c.Rng.Intn(len(cardinals))]
}
