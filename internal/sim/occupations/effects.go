package occupations

import (
	"voxelvillage.ai/internal/sim/tasks"
	"voxelvillage.ai/internal/sim/worldmap"
)

const (
	effectMinWait = 300
	effectMaxWait = 3000
	effectSpan    = 150

	sproutAge  = 200
	witherAge  = 200_000
	roadDecay  = 10_000
	roadMinAdj = 2
)

// tileEffect inspects one tile and may rewrite it.
type tileEffect func(ctx *tasks.Context, p worldmap.Point)

// tilePass waits a random while, then applies its effect to one random tile
// near the actor's beacon (or anywhere on a finite map).
type tilePass struct {
	effect     tileEffect
	started    bool
	expiration uint64
}

func newTilePass(effect tileEffect) *tilePass { return &tilePass{effect: effect} }

func (p *tilePass) Release(*worldmap.Map) {}

func (p *tilePass) Update(ctx *tasks.Context) tasks.Status {
	if !p.started {
		p.started = true
		p.expiration = ctx.Tick + uint64(ctx.Between(effectMinWait, effectMaxWait))
		return tasks.Continue()
	}
	if ctx.Tick <= p.expiration {
		return tasks.Continue()
	}
	p.effect(ctx, randomTile(ctx))
	return tasks.Succeeded()
}

func randomTile(ctx *tasks.Context) worldmap.Point {
	if b, ok := ctx.Map.Bounds(); ok {
		return worldmap.Point{X: ctx.Between(b.X0, b.X1), Y: ctx.Between(b.Y0, b.Y1)}
	}
	c := ctx.Self.Beacon()
	return c.Add(ctx.Between(-effectSpan, effectSpan), ctx.Between(-effectSpan, effectSpan))
}

func growTile(ctx *tasks.Context, p worldmap.Point) {
	t := ctx.Map.Tile(p.X, p.Y)
	switch {
	case t.Kind == worldmap.Tilled && t.Age() > sproutAge:
		ctx.Map.SetKind(p.X, p.Y, worldmap.Plants, true)
	case t.Kind == worldmap.Plants && t.Age() > witherAge:
		ctx.Map.SetKind(p.X, p.Y, worldmap.Grass, true)
	}
}

// cleanTile reverts old concrete with fewer than two concrete neighbours.
// Off-map neighbours count as concrete.
func cleanTile(ctx *tasks.Context, p worldmap.Point) {
	t := ctx.Map.Tile(p.X, p.Y)
	if t.Kind != worldmap.Concrete || t.Age() <= roadDecay {
		return
	}
	n := 0
	for _, d := range [4]worldmap.Point{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}} {
		q := p.Add(d.X, d.Y)
		if !ctx.Map.IsTileValid(q.X, q.Y) || ctx.Map.Tile(q.X, q.Y).Kind == worldmap.Concrete {
			n++
		}
	}
	if n < roadMinAdj {
		ctx.Logger().Debug("road decayed", "at", p)
		ctx.Map.SetKind(p.X, p.Y, worldmap.Grass, true)
	}
}
