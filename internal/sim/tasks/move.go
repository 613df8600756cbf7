package tasks

import (
	"voxelvillage.ai/internal/sim/worldmap"
)

// StepTo walks straight towards Dest, x axis first, one tile per Interval of
// game time. It does not check walkability.
type StepTo struct {
	Dest     worldmap.Point
	Interval uint64

	next uint64
}

const DefaultStepInterval = 50

func NewStepTo(dest worldmap.Point) *StepTo {
	return &StepTo{Dest: dest, Interval: DefaultStepInterval}
}

func (t *StepTo) Kind() Kind { return KindStepTo }

func (t *StepTo) Update(ctx *Context) Status {
	if ctx.Tick < t.next {
		return Continue()
	}
	t.next = ctx.Tick + t.Interval

	p := ctx.Self.Position()
	switch {
	case t.Dest.X < p.X:
		ctx.Self.SetPosition(p.Add(-1, 0))
	case t.Dest.X > p.X:
		ctx.Self.SetPosition(p.Add(1, 0))
	case t.Dest.Y < p.Y:
		ctx.Self.SetPosition(p.Add(0, -1))
	case t.Dest.Y > p.Y:
		ctx.Self.SetPosition(p.Add(0, 1))
	default:
		return Succeeded()
	}
	return Continue()
}

// MoveTo finds a path once and then follows it one waypoint per call.
// Concrete halves the per-tile delay.
type MoveTo struct {
	Dest worldmap.Point
	// Delay is the number of frames spent on each tile.
	Delay   uint64
	Options *worldmap.FindPathOptions

	path  []worldmap.Point
	found bool
}

const DefaultMoveDelay = 4

func NewMoveTo(dest worldmap.Point) *MoveTo {
	return &MoveTo{Dest: dest, Delay: DefaultMoveDelay}
}

func (t *MoveTo) Kind() Kind { return KindMoveTo }

func (t *MoveTo) Update(ctx *Context) Status {
	if !t.found {
		p := ctx.Self.Position()
		if p == t.Dest {
			return Succeeded()
		}
		path, ok := ctx.Map.FindPath(p, t.Dest, t.Options)
		if !ok {
			ctx.Logger().Debug("no path", "from", p, "to", t.Dest)
			return Failed()
		}
		t.path = path[1:]
		t.found = true
		return WaitFor(10 * t.Delay)
	}

	if len(t.path) == 0 {
		return Succeeded()
	}
	next := t.path[0]
	if !ctx.Walkable(next) {
		ctx.Logger().Debug("path blocked", "at", next, "to", t.Dest)
		return Failed()
	}
	t.path = t.path[1:]
	ctx.Self.SetPosition(next)

	speed := uint64(1)
	if ctx.Map.Tile(next.X, next.Y).Kind == worldmap.Concrete {
		speed = 2
	}
	return WaitFor(t.Delay / speed)
}

// Remaining returns the number of waypoints not yet visited.
func (t *MoveTo) Remaining() int { return len(t.path) }
