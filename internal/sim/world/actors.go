package world

import (
	"errors"
	"fmt"
	"log/slog"

	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/mathx"
	"voxelvillage.ai/internal/sim/occupations"
	"voxelvillage.ai/internal/sim/worldmap"
)

// ErrTileOccupied is returned by ActorBuilder.Build when a solid actor would
// be placed on a tile that is not empty.
var ErrTileOccupied = errors.New("tile occupied")

type Actor struct {
	ID         uint32
	Name       string
	State      *actor.State
	Occupation occupations.Occupation
	Strategy   occupations.Strategy
	Memory     *actor.Memory

	log *slog.Logger
}

func (a *Actor) snapshot() actor.Snapshot {
	return a.State.Snapshot(a.ID, a.Name, a.Occupation.Key())
}

var actorNames = []string{
	"Raether", "Telenor", "Sentor", "Baaren", "Celinac", "Coplin", "Boran", "Ilia",
	"Kelis", "Elli", "Len", "Bilric", "Rownal", "Cal", "Wern", "Lendole", "Ilabin",
	"Revor", "Edien", "Dien", "Cien", "Aniken", "Anker", "Matken", "Isotel", "Isse",
	"Lince",
}

// spawnSpan bounds random spawn positions to the first region.
const spawnSpan = 64

type ActorBuilder struct {
	w *World

	name     string
	pos      *worldmap.Point
	beacon   *worldmap.Point
	player   bool
	ethereal bool
}

func (w *World) BuildActor() *ActorBuilder { return &ActorBuilder{w: w} }

func (b *ActorBuilder) WithName(name string) *ActorBuilder {
	b.name = name
	return b
}

// WithPosition also sets the beacon unless one was given already.
func (b *ActorBuilder) WithPosition(p worldmap.Point) *ActorBuilder {
	b.pos = &p
	if b.beacon == nil {
		b.beacon = &p
	}
	return b
}

func (b *ActorBuilder) WithBeacon(p worldmap.Point) *ActorBuilder {
	b.beacon = &p
	return b
}

func (b *ActorBuilder) WithPlayer(v bool) *ActorBuilder {
	b.player = v
	return b
}

func (b *ActorBuilder) WithEthereal(v bool) *ActorBuilder {
	b.ethereal = v
	return b
}

// Build creates the actor, runs the occupation's Init and appends it to the
// world. Solid actors are only added on an empty tile.
func (b *ActorBuilder) Build(occ occupations.Occupation) (*Actor, error) {
	w := b.w
	name := b.name
	if name == "" {
		name = actorNames[w.rng.Intn(len(actorNames))]
	}

	var pos worldmap.Point
	if b.pos != nil {
		pos = *b.pos
	} else {
		pos = w.randomSpawn()
	}
	st := actor.NewState(pos)
	if b.beacon != nil {
		st.SetBeacon(*b.beacon)
	}
	occ.Init(st)

	if b.ethereal {
		st.SetEthereal(true)
	} else if !st.Ethereal() && !w.IsTileEmpty(pos.X, pos.Y) {
		return nil, fmt.Errorf("add %s at %v: %w", name, pos, ErrTileOccupied)
	}

	a := w.addActor(name, st, occ, actor.NewMemory())
	if b.player {
		w.player = len(w.actors) - 1
	}
	w.log.Info("actor added", "id", a.ID, "name", a.Name, "occupation", occ.Name(), "pos", pos)
	return a, nil
}

func (w *World) randomSpawn() worldmap.Point {
	xs, ys := spawnSpan, spawnSpan
	if b, ok := w.m.Bounds(); ok {
		xs = mathx.MinInt(xs, b.Width())
		ys = mathx.MinInt(ys, b.Length())
	}
	return worldmap.Point{X: w.rng.Intn(xs), Y: w.rng.Intn(ys)}
}

func (w *World) addActor(name string, st *actor.State, occ occupations.Occupation, mem *actor.Memory) *Actor {
	a := &Actor{
		ID:         w.nextActorID,
		Name:       name,
		State:      st,
		Occupation: occ,
		Memory:     mem,
	}
	w.nextActorID++
	a.log = w.log.With("actor", a.Name, "actor_id", a.ID)
	w.actors = append(w.actors, a)
	return a
}

// AssignOccupation replaces the occupation of actor i. The old strategy
// releases its locks first; the new one is created on the next tick.
func (w *World) AssignOccupation(i int, occ occupations.Occupation) error {
	if i < 0 || i >= len(w.actors) {
		return fmt.Errorf("assign occupation: no actor at index %d", i)
	}
	a := w.actors[i]
	if a.Strategy != nil {
		a.Strategy.Release(w.m)
		a.Strategy = nil
	}
	a.Occupation = occ
	occ.Init(a.State)
	w.log.Info("occupation assigned", "actor", a.Name, "occupation", occ.Name())
	return nil
}
