package world

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/entity"
	"voxelvillage.ai/internal/sim/worldmap"
)

// World owns the map, the actors and the entity list. Everything except the
// channel accessors and metrics must be used from one goroutine: either the
// Run loop or a caller stepping the world directly.
type World struct {
	cfg WorldConfig
	log *slog.Logger
	rng *rand.Rand

	m        *worldmap.Map
	entities *entity.List

	actors      []*Actor
	nextActorID uint32
	player      int

	tick  atomic.Uint64
	frame atomic.Uint64

	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	inbox         chan Action
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	regionReq     chan RegionRequest
	stop          chan struct{}
	stopOnce      sync.Once

	observers map[string]*observerClient
	metrics   atomic.Value
}

func New(cfg WorldConfig, log *slog.Logger) (*World, error) {
	cfg = cfg.normalized()
	if log == nil {
		log = slog.Default()
	}
	mc := cfg.Map
	if mc.Generator == nil {
		mc.Generator = worldmap.NewNoiseGenerator(cfg.Seed, cfg.Noise.Scale, cfg.Noise.Amplitude, cfg.Noise.FlowerPermille)
	}
	m, err := worldmap.New(mc)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", cfg.ID, err)
	}
	cfg.Map = mc

	w := &World{
		cfg:           cfg,
		log:           log.With("world", cfg.ID),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		m:             m,
		entities:      entity.NewList(),
		nextActorID:   1,
		player:        -1,
		inbox:         make(chan Action, 256),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		regionReq:     make(chan RegionRequest, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- Action                     { return w.inbox }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }
func (w *World) RegionRequests() chan<- RegionRequest     { return w.regionReq }

// Submit queues an action for the next tick. It reports false when the inbox
// is full and the action was dropped.
func (w *World) Submit(a Action) bool {
	select {
	case w.inbox <- a:
		return true
	default:
		return false
	}
}

func (w *World) ID() string                { return w.cfg.ID }
func (w *World) Config() WorldConfig       { return w.cfg }
func (w *World) CurrentTick() uint64       { return w.tick.Load() }
func (w *World) CurrentFrame() uint64      { return w.frame.Load() }
func (w *World) Map() *worldmap.Map        { return w.m }
func (w *World) Entities() []entity.Entity { return w.entities.All() }

func (w *World) Metrics() WorldMetrics {
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

// Player returns the index of the player actor, or -1.
func (w *World) Player() int { return w.player }

func (w *World) ActorCount() int { return len(w.actors) }

// Actor returns the actor at index i.
func (w *World) Actor(i int) *Actor { return w.actors[i] }

func (w *World) Actors() []ActorView {
	out := make([]ActorView, len(w.actors))
	for i, a := range w.actors {
		out[i] = w.view(i, a)
	}
	return out
}

func (w *World) view(i int, a *Actor) ActorView {
	p := a.State.Position()
	return ActorView{
		ID:             a.ID,
		Name:           a.Name,
		Occupation:     a.Occupation.Key(),
		OccupationName: a.Occupation.Name(),
		Pos:            p,
		Z:              w.m.Height(p.X, p.Y),
		Color:          a.State.Color(),
		Ethereal:       a.State.Ethereal(),
		Player:         i == w.player,
		SyncID:         a.State.SyncID(),
	}
}

// ActorAt returns the index of the non-ethereal actor standing on (x,y).
// A tile holding the player reports no actor.
func (w *World) ActorAt(x, y int) (int, bool) {
	if !w.m.IsTileValid(x, y) {
		return -1, false
	}
	p := worldmap.Point{X: x, Y: y}
	if w.player >= 0 && w.actors[w.player].State.Position() == p {
		return -1, false
	}
	for i, a := range w.actors {
		if !a.State.Ethereal() && a.State.Position() == p {
			return i, true
		}
	}
	return -1, false
}

// IsTileEmpty reports whether (x,y) is on the map, walkable and free of
// actors.
func (w *World) IsTileEmpty(x, y int) bool {
	if !w.m.IsTileValid(x, y) || !w.m.Tile(x, y).Walkable() {
		return false
	}
	_, taken := w.ActorAt(x, y)
	return !taken
}
