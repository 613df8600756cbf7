package world

import (
	"fmt"

	"voxelvillage.ai/internal/sim/mathx"
	"voxelvillage.ai/internal/sim/worldmap"
)

func (w *World) applyActions(tick uint64, actions []Action) []Greeting {
	var greetings []Greeting
	for _, act := range actions {
		switch act.Kind {
		case ActionMove:
			if g, ok := w.movePlayer(tick, act.DX, act.DY); ok {
				greetings = append(greetings, g)
			}
		case ActionFindPath:
			w.paintPath(act.From, act.To)
		default:
			w.log.Warn("unknown action", "kind", act.Kind)
		}
	}
	return greetings
}

// movePlayer steps the player onto an empty tile. Bumping into an actor
// greets it unless it still remembers the last greeting.
func (w *World) movePlayer(tick uint64, dx, dy int) (Greeting, bool) {
	if w.player < 0 {
		return Greeting{}, false
	}
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 || (dx == 0 && dy == 0) {
		return Greeting{}, false
	}
	p := w.actors[w.player]
	dst := p.State.Position().Add(dx, dy)
	if w.IsTileEmpty(dst.X, dst.Y) {
		p.State.SetPosition(dst)
		return Greeting{}, false
	}

	i, ok := w.ActorAt(dst.X, dst.Y)
	if !ok {
		return Greeting{}, false
	}
	other := w.actors[i]
	if other.Memory.Recall(greetingKey, tick) {
		return Greeting{}, false
	}
	other.Memory.Remember(greetingKey, tick, GreetingTTL)
	g := Greeting{
		From:       p.Name,
		To:         other.Name,
		Occupation: other.Occupation.Name(),
		Text:       fmt.Sprintf("%s says to the %s, \"Hello, %s.\"", p.Name, other.Occupation.Name(), other.Name),
	}
	w.log.Info("greeting", "from", g.From, "to", g.To, "text", g.Text)
	return g, true
}

// maxPaintSpan is the largest manhattan distance paintPath will search.
const maxPaintSpan = 8 * worldmap.RegionSize

// paintPath marks the route between from and to with DebugMarker tiles.
// Missing endpoints default to the corners of region (0,0).
func (w *World) paintPath(from, to *worldmap.Point) {
	a := worldmap.Point{}
	b := worldmap.Point{X: worldmap.RegionSize - 1, Y: worldmap.RegionSize - 1}
	if from != nil {
		a = *from
	}
	if to != nil {
		b = *to
	}
	if !w.m.IsTileValid(a.X, a.Y) || !w.m.IsTileValid(b.X, b.Y) {
		w.log.Debug("find path endpoints off map", "from", a, "to", b)
		return
	}
	if mathx.Manhattan(a.X, a.Y, b.X, b.Y) > maxPaintSpan {
		w.log.Debug("find path endpoints too far apart", "from", a, "to", b, "max", maxPaintSpan)
		return
	}
	path, ok := w.m.FindPath(a, b, nil)
	if !ok {
		w.log.Debug("find path failed", "from", a, "to", b)
		return
	}
	for _, p := range path {
		w.m.SetKind(p.X, p.Y, worldmap.DebugMarker, true)
	}
	w.log.Info("path painted", "from", a, "to", b, "len", len(path), "cost", w.m.PathCost(path))
}
