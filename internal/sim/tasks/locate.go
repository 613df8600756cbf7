package tasks

import (
	"voxelvillage.ai/internal/sim/mathx"
	"voxelvillage.ai/internal/sim/worldmap"
)

const (
	DefaultLocateAttempts = 8
	DefaultLocateRange    = 72
)

// LocateTile samples points around the actor's beacon and scans a 6x6 window
// around each sample for a tile of Want. The hit is stored in Found.
// Samples falling off a finite map are clamped to its edge.
type LocateTile struct {
	Want     worldmap.TileKind
	Attempts int
	Range    int

	Found worldmap.Point
}

func NewLocateTile(want worldmap.TileKind) *LocateTile {
	return &LocateTile{Want: want, Attempts: DefaultLocateAttempts, Range: DefaultLocateRange}
}

func (t *LocateTile) Kind() Kind { return KindLocateTile }

func (t *LocateTile) Update(ctx *Context) Status {
	if t.Attempts <= 0 {
		return Failed()
	}
	p := ctx.Self.BeaconWithJitter(ctx.Rng, t.Range)
	if b, ok := ctx.Map.Bounds(); ok {
		p.X = mathx.ClampInt(p.X, b.X0, b.X1-1)
		p.Y = mathx.ClampInt(p.Y, b.Y0, b.Y1-1)
	}
	for dy := -3; dy < 3; dy++ {
		for dx := -3; dx < 3; dx++ {
			q := p.Add(dx, dy)
			if !ctx.Map.IsTileValid(q.X, q.Y) {
				continue
			}
			if ctx.Map.Tile(q.X, q.Y).Kind == t.Want {
				t.Found = q
				return Succeeded()
			}
		}
	}
	t.Attempts--
	return WaitFor(10)
}

// ChangeTile converts the tile under the actor, optionally only when it
// currently has kind From. It rests for 10 frames before succeeding.
type ChangeTile struct {
	From     worldmap.TileKind
	CheckSrc bool
	To       worldmap.TileKind

	changed bool
}

func NewChangeTile(to worldmap.TileKind) *ChangeTile {
	return &ChangeTile{To: to}
}

// Only restricts the change to tiles currently of kind from.
func (t *ChangeTile) Only(from worldmap.TileKind) *ChangeTile {
	t.From = from
	t.CheckSrc = true
	return t
}

func (t *ChangeTile) Kind() Kind { return KindChangeTile }

func (t *ChangeTile) Update(ctx *Context) Status {
	if t.changed {
		return Succeeded()
	}
	p := ctx.Self.Position()
	if t.CheckSrc && ctx.Map.Tile(p.X, p.Y).Kind != t.From {
		return Failed()
	}
	ctx.Map.SetKind(p.X, p.Y, t.To, true)
	t.changed = true
	return WaitFor(10)
}
