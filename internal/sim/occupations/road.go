package occupations

import (
	"voxelvillage.ai/internal/sim/tasks"
	"voxelvillage.ai/internal/sim/worldmap"
)

type roadStage uint8

const (
	roadInit roadStage = iota
	roadWander
	roadChoose
	roadGoto
	roadPave
	roadRest
)

const (
	roadWanderSteps  = 2
	roadChooseTries  = 64
	roadConcreteStep = 20
	roadDefaultStep  = 100
	roadSpan         = 150
)

// roadPlan wanders a little, picks two distant endpoints, locks the cheapest
// route between them, walks to its start and paves it tile by tile.
type roadPlan struct {
	stage roadStage

	wanderLeft int
	move       *tasks.RandomMove
	tries      int

	lock     worldmap.LockID
	path     []worldmap.Point
	movePath []worldmap.Point
	nextMove uint64
	restEnd  uint64
}

func newRoadPlan() *roadPlan { return &roadPlan{stage: roadInit} }

func (p *roadPlan) Release(m *worldmap.Map) {
	if p.lock != 0 {
		m.UnlockPath(p.lock)
		p.lock = 0
	}
}

func (p *roadPlan) Update(ctx *tasks.Context) tasks.Status {
	switch p.stage {
	case roadInit:
		p.wanderLeft = roadWanderSteps
		p.stage = roadWander

	case roadWander:
		if p.wanderLeft == 0 {
			p.stage = roadChoose
			break
		}
		if p.move == nil {
			p.move = tasks.NewRandomMove()
		}
		if p.move.Update(ctx).Done() {
			p.move = nil
			p.wanderLeft--
		}

	case roadChoose:
		if p.tries >= roadChooseTries {
			ctx.Logger().Debug("no road found", "tries", p.tries)
			return tasks.Failed()
		}
		p.tries++
		p.choose(ctx)

	case roadGoto:
		if p.nextMove > ctx.Tick {
			break
		}
		if len(p.movePath) == 0 {
			p.stage = roadPave
			break
		}
		next := p.movePath[0]
		p.movePath = p.movePath[1:]
		ctx.Self.SetPosition(next)
		p.nextMove = ctx.Tick + roadStepCost(ctx.Map.Tile(next.X, next.Y).Kind)

	case roadPave:
		if p.nextMove > ctx.Tick {
			break
		}
		if len(p.path) == 0 {
			p.Release(ctx.Map)
			p.restEnd = ctx.Tick + uint64(ctx.Between(1000, 10_000))
			p.stage = roadRest
			break
		}
		next := p.path[0]
		p.path = p.path[1:]
		ctx.Self.SetPosition(next)
		kind := ctx.Map.Tile(next.X, next.Y).Kind
		if kind != worldmap.Concrete {
			ctx.Map.SetKind(next.X, next.Y, worldmap.Concrete, true)
		}
		p.nextMove = ctx.Tick + roadStepCost(kind)

	case roadRest:
		if ctx.Tick > p.restEnd {
			return tasks.Succeeded()
		}
	}
	return tasks.Continue()
}

func roadStepCost(k worldmap.TileKind) uint64 {
	if k == worldmap.Concrete {
		return roadConcreteStep
	}
	return roadDefaultStep
}

// roadExcluded keeps roads off fields.
var roadExcluded = worldmap.NewFindPathOptions(worldmap.Plants, worldmap.Tilled)

func (p *roadPlan) choose(ctx *tasks.Context) {
	a, b := p.endpoints(ctx)
	w, l := b.X-a.X, b.Y-a.Y
	if w <= 6 || l <= 6 || w+l <= 32 {
		return
	}
	path, ok := ctx.Map.FindPath(a, b, roadExcluded)
	if !ok {
		return
	}
	id, ok := ctx.Map.TryLockPath(path)
	if !ok {
		return
	}
	movePath, ok := ctx.Map.FindPath(ctx.Self.Position(), path[0], nil)
	if !ok {
		ctx.Map.UnlockPath(id)
		return
	}
	ctx.Logger().Debug("road locked", "from", a, "to", b, "tiles", len(path), "lock", id)
	p.lock = id
	p.path = path
	p.movePath = movePath[1:]
	p.stage = roadGoto
}

// endpoints returns two random corners of a box, ordered so that a <= b on
// both axes.
func (p *roadPlan) endpoints(ctx *tasks.Context) (worldmap.Point, worldmap.Point) {
	var x0, x1, y0, y1 int
	if r, ok := ctx.Map.Bounds(); ok {
		x0, x1 = ctx.Between(r.X0, r.X1), ctx.Between(r.X0, r.X1)
		y0, y1 = ctx.Between(r.Y0, r.Y1), ctx.Between(r.Y0, r.Y1)
	} else {
		c := ctx.Self.Beacon()
		x0, x1 = c.X+ctx.Between(-roadSpan, roadSpan), c.X+ctx.Between(-roadSpan, roadSpan)
		y0, y1 = c.Y+ctx.Between(-roadSpan, roadSpan), c.Y+ctx.Between(-roadSpan, roadSpan)
	}
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return worldmap.Point{X: x0, Y: y0}, worldmap.Point{X: x1, Y: y1}
}
