package tasks

import "voxelvillage.ai/internal/sim/worldmap"

// Dig sets the height of Dest. The actor must already stand on Dest;
// otherwise the task fails without touching the map.
type Dig struct {
	Dest   worldmap.Point
	Height int
}

func (t *Dig) Kind() Kind { return KindDig }

func (t *Dig) Update(ctx *Context) Status {
	p := ctx.Self.Position()
	if p != t.Dest {
		ctx.Logger().Debug("not in position to dig", "at", p, "want", t.Dest)
		return Failed()
	}
	if ctx.Map.Height(p.X, p.Y) != t.Height {
		ctx.Map.SetHeight(p.X, p.Y, t.Height)
	}
	return Succeeded()
}

// SetKind changes the kind of Dest (resetting its age) with the same
// positioning contract as Dig.
type SetKind struct {
	Dest worldmap.Point
	To   worldmap.TileKind

	kind Kind
}

func Till(dest worldmap.Point) *SetKind {
	return &SetKind{Dest: dest, To: worldmap.Tilled, kind: KindTill}
}

func LayFoundation(dest worldmap.Point) *SetKind {
	return &SetKind{Dest: dest, To: worldmap.Concrete, kind: KindLayFoundation}
}

func (t *SetKind) Kind() Kind { return t.kind }

func (t *SetKind) Update(ctx *Context) Status {
	p := ctx.Self.Position()
	if p != t.Dest {
		ctx.Logger().Debug("not in position", "task", t.kind, "at", p, "want", t.Dest)
		return Failed()
	}
	ctx.Map.SetKind(p.X, p.Y, t.To, true)
	return Succeeded()
}
