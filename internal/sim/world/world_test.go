package world

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/protocol"
	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/encoding"
	"voxelvillage.ai/internal/sim/occupations"
	"voxelvillage.ai/internal/sim/worldmap"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFlatWorld(t *testing.T, size int) *World {
	t.Helper()
	w, err := New(WorldConfig{
		ID:   "test",
		Seed: 42,
		Map: worldmap.Config{
			Width:     size,
			Length:    size,
			Generator: worldmap.FlatGenerator{Kind: worldmap.Grass, Height: 1},
		},
	}, quietLogger())
	require.NoError(t, err)
	return w
}

func at(x, y int) worldmap.Point { return worldmap.Point{X: x, Y: y} }

type recordingLogger struct {
	entries []TickLogEntry
}

func (r *recordingLogger) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestBuild_RejectsOccupiedTile(t *testing.T) {
	w := newFlatWorld(t, 16)

	_, err := w.BuildActor().WithName("Ann").WithPosition(at(3, 3)).Build(occupations.Avatar{})
	require.NoError(t, err)

	_, err = w.BuildActor().WithName("Bob").WithPosition(at(3, 3)).Build(occupations.Farmer{})
	assert.ErrorIs(t, err, ErrTileOccupied)

	ghost, err := w.BuildActor().WithPosition(at(3, 3)).Build(occupations.GrowPlants{})
	require.NoError(t, err)
	assert.True(t, ghost.State.Ethereal())
	assert.Contains(t, actorNames, ghost.Name)

	forced, err := w.BuildActor().WithPosition(at(3, 3)).WithEthereal(true).Build(occupations.Farmer{})
	require.NoError(t, err)
	assert.True(t, forced.State.Ethereal())

	// The rejected actor does not consume an id.
	require.Equal(t, 3, w.ActorCount())
	assert.Equal(t, uint32(2), ghost.ID)
	assert.Equal(t, uint32(3), forced.ID)
}

func TestBuild_RandomPositionStaysInFirstRegion(t *testing.T) {
	w := newFlatWorld(t, 200)
	for i := 0; i < 20; i++ {
		a, err := w.BuildActor().WithEthereal(true).Build(occupations.Mindlessness{})
		require.NoError(t, err)
		p := a.State.Position()
		assert.True(t, p.X >= 0 && p.X < 64 && p.Y >= 0 && p.Y < 64, "pos %v", p)
		assert.Equal(t, p, a.State.Beacon())
	}
}

func TestActorAt_IgnoresPlayerAndEthereal(t *testing.T) {
	w := newFlatWorld(t, 16)
	_, err := w.BuildActor().WithName("Pia").WithPosition(at(1, 1)).WithPlayer(true).Build(occupations.Avatar{})
	require.NoError(t, err)
	_, err = w.BuildActor().WithPosition(at(2, 2)).Build(occupations.CleanRoads{})
	require.NoError(t, err)

	_, ok := w.ActorAt(1, 1)
	assert.False(t, ok)
	assert.True(t, w.IsTileEmpty(1, 1))
	_, ok = w.ActorAt(2, 2)
	assert.False(t, ok)
	assert.False(t, w.IsTileEmpty(-1, 0))
	assert.Equal(t, 0, w.Player())

	w.Map().SetWalkable(4, 4, false)
	assert.False(t, w.IsTileEmpty(4, 4))
}

func TestStep_MoveAndGreeting(t *testing.T) {
	w := newFlatWorld(t, 16)
	_, err := w.BuildActor().WithName("Pia").WithPosition(at(5, 5)).WithPlayer(true).Build(occupations.Avatar{})
	require.NoError(t, err)
	_, err = w.BuildActor().WithName("Olo").WithPosition(at(7, 5)).Build(occupations.Avatar{})
	require.NoError(t, err)

	right := []Action{{Kind: ActionMove, DX: 1}}

	e := w.Step(right)
	assert.Empty(t, e.Greetings)
	assert.Equal(t, at(6, 5), w.Actor(0).State.Position())

	// Bump at tick 10: greeted and remembered until 3010.
	e = w.Step(right)
	require.Len(t, e.Greetings, 1)
	assert.Equal(t, `Pia says to the Avatar, "Hello, Olo."`, e.Greetings[0].Text)
	assert.Equal(t, at(6, 5), w.Actor(0).State.Position())

	e = w.Step(right)
	assert.Empty(t, e.Greetings)

	for w.CurrentTick() < 10+GreetingTTL {
		w.Step(nil)
	}
	e = w.Step(right)
	assert.Len(t, e.Greetings, 1)
}

func TestStep_MoveRejectsLongSteps(t *testing.T) {
	w := newFlatWorld(t, 16)
	_, err := w.BuildActor().WithPosition(at(0, 0)).WithPlayer(true).Build(occupations.Avatar{})
	require.NoError(t, err)

	w.Step([]Action{{Kind: ActionMove, DX: 3}, {Kind: ActionMove, DX: -1}})
	assert.Equal(t, at(0, 0), w.Actor(0).State.Position())
}

func TestStep_FindPathPaintsDebugMarkers(t *testing.T) {
	w := newFlatWorld(t, 64)
	w.Step([]Action{{Kind: ActionFindPath}})

	assert.Equal(t, worldmap.DebugMarker, w.Map().Tile(0, 0).Kind)
	assert.Equal(t, worldmap.DebugMarker, w.Map().Tile(63, 63).Kind)
	assert.GreaterOrEqual(t, w.Map().CountKinds()[worldmap.DebugMarker], 64)

	from, to := at(0, 10), at(100, 10)
	before := w.Map().CountKinds()[worldmap.DebugMarker]
	w.Step([]Action{{Kind: ActionFindPath, From: &from, To: &to}})
	assert.Equal(t, before, w.Map().CountKinds()[worldmap.DebugMarker])
}

func TestStep_FindPathIgnoresFarEndpoints(t *testing.T) {
	w, err := New(WorldConfig{
		ID:   "test",
		Seed: 42,
		Map: worldmap.Config{
			Infinite:  true,
			Generator: worldmap.FlatGenerator{Kind: worldmap.Grass, Height: 1},
		},
	}, quietLogger())
	require.NoError(t, err)

	from, to := at(0, 0), at(3000, 3000)
	w.Step([]Action{{Kind: ActionFindPath, From: &from, To: &to}})
	assert.Less(t, len(w.Map().RegionKeys()), 4)
	assert.Equal(t, worldmap.Grass, w.Map().Tile(0, 0).Kind)

	to = at(40, 30)
	w.Step([]Action{{Kind: ActionFindPath, From: &from, To: &to}})
	assert.Equal(t, worldmap.DebugMarker, w.Map().Tile(40, 30).Kind)
}

func TestStep_TickAdvanceAndAgeSweep(t *testing.T) {
	w, err := New(WorldConfig{
		Seed:          1,
		TickIncrement: 7,
		AgeSweepEvery: 3,
		Map:           worldmap.Config{Width: 8, Length: 8, Generator: worldmap.FlatGenerator{Kind: worldmap.Grass}},
	}, quietLogger())
	require.NoError(t, err)

	w.Step(nil)
	w.Step(nil)
	assert.Zero(t, w.Map().Tile(0, 0).Age())
	w.Step(nil)
	assert.Equal(t, uint64(worldmap.AgeResolution), w.Map().Tile(0, 0).Age())
	assert.Equal(t, uint64(21), w.CurrentTick())
	assert.Equal(t, uint64(3), w.CurrentFrame())
	assert.Equal(t, uint64(21), w.Metrics().Tick)
}

func TestStep_TickLoggerGetsDigest(t *testing.T) {
	w := newFlatWorld(t, 16)
	rec := &recordingLogger{}
	w.SetTickLogger(rec)

	w.Step([]Action{{Kind: ActionMove}})
	w.Step(nil)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, uint64(0), rec.entries[0].Tick)
	assert.Equal(t, uint64(10), rec.entries[1].Tick)
	assert.Len(t, rec.entries[0].Actions, 1)
	assert.Len(t, rec.entries[0].Digest, 64)
}

func populate(t *testing.T, w *World) {
	t.Helper()
	spots := []struct {
		occ occupations.Occupation
		p   worldmap.Point
	}{
		{occupations.Mindlessness{}, at(5, 5)},
		{occupations.Mindlessness{}, at(20, 30)},
		{occupations.Farmer{}, at(10, 40)},
		{occupations.RoadBuilder{}, at(40, 10)},
		{occupations.GrowPlants{}, at(0, 0)},
	}
	for _, s := range spots {
		_, err := w.BuildActor().WithPosition(s.p).Build(s.occ)
		require.NoError(t, err)
	}
}

func TestStep_Deterministic(t *testing.T) {
	a := newFlatWorld(t, 64)
	b := newFlatWorld(t, 64)
	populate(t, a)
	populate(t, b)

	for i := 0; i < 400; i++ {
		a.Step(nil)
		b.Step(nil)
	}
	assert.Equal(t, a.StateDigest(), b.StateDigest())
	assert.Equal(t, a.Actors(), b.Actors())
}

func TestAssignOccupation_ReleasesLocks(t *testing.T) {
	w := newFlatWorld(t, 40)
	_, err := w.BuildActor().WithPosition(at(20, 20)).Build(occupations.Farmer{})
	require.NoError(t, err)

	for i := 0; i < 5000 && w.Map().LockCount() == 0; i++ {
		w.Step(nil)
	}
	require.Equal(t, 1, w.Map().LockCount())

	require.NoError(t, w.AssignOccupation(0, occupations.Mindlessness{}))
	assert.Zero(t, w.Map().LockCount())
	assert.Equal(t, occupations.KeyMindlessness, w.Actors()[0].Occupation)
	assert.Error(t, w.AssignOccupation(3, occupations.Farmer{}))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	src := newFlatWorld(t, 64)
	populate(t, src)
	_, err := src.BuildActor().WithName("Pia").WithPosition(at(30, 30)).WithPlayer(true).Build(occupations.Avatar{})
	require.NoError(t, err)
	src.entities.Add(1, 2, 1, 3, 3, 2, actor.Color{R: 0.7, G: 0.5, B: 0.4})
	for i := 0; i < 150; i++ {
		src.Step(nil)
	}

	path := snapshot.Path(t.TempDir(), src.CurrentTick())
	require.NoError(t, snapshot.WriteSnapshot(path, src.ExportSnapshot()))
	snap, err := snapshot.ReadSnapshot(path)
	require.NoError(t, err)

	dst := newFlatWorld(t, 64)
	require.NoError(t, dst.ImportSnapshot(snap))

	assert.Equal(t, src.StateDigest(), dst.StateDigest())
	assert.Equal(t, src.CurrentFrame(), dst.CurrentFrame())
	assert.Equal(t, src.Player(), dst.Player())
	assert.Equal(t, src.Entities(), dst.Entities())
	assert.Zero(t, dst.Map().LockCount())

	// The restored world keeps running and hands out fresh ids.
	dst.Step(nil)
	a, err := dst.BuildActor().WithEthereal(true).Build(occupations.CleanRoads{})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), a.ID)
}

func TestSnapshot_RejectsMismatchedWorld(t *testing.T) {
	src := newFlatWorld(t, 64)
	snap := src.ExportSnapshot()

	other := newFlatWorld(t, 32)
	assert.Error(t, other.ImportSnapshot(snap))

	snap.Seed = 7
	assert.Error(t, src.ImportSnapshot(snap))

	snap = src.ExportSnapshot()
	snap.Header.Version = 9
	assert.ErrorIs(t, src.ImportSnapshot(snap), snapshot.ErrVersion)

	snap = src.ExportSnapshot()
	snap.Actors = append(snap.Actors, snapshot.ActorV1{ID: 1, Occupation: "wizard"})
	assert.Error(t, src.ImportSnapshot(snap))
}

func TestObserver_FramesAndDirtyRegions(t *testing.T) {
	w := newFlatWorld(t, 100)
	_, err := w.BuildActor().WithName("Pia").WithPosition(at(1, 1)).WithPlayer(true).Build(occupations.Avatar{})
	require.NoError(t, err)

	out := make(chan []byte, 4)
	welcome := make(chan protocol.WelcomeMsg, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "s1", Out: out, Welcome: welcome})

	hello := <-welcome
	assert.Equal(t, "s1", hello.SessionID)
	assert.Equal(t, 100, hello.Width)
	assert.Equal(t, worldmap.RegionSize, hello.RegionSize)
	assert.Contains(t, hello.TileKinds, "CONCRETE")

	readFrame := func() protocol.FrameMsg {
		var f protocol.FrameMsg
		require.NoError(t, json.Unmarshal(<-out, &f))
		return f
	}

	w.Step(nil)
	f := readFrame()
	assert.Equal(t, uint32(1), f.Player)
	require.Len(t, f.Actors, 1)
	assert.Equal(t, [2]int{1, 1}, f.Actors[0].Pos)
	assert.Len(t, f.Dirty, 4)

	w.Step(nil)
	assert.Empty(t, readFrame().Dirty)

	w.Map().SetKind(70, 70, worldmap.Concrete, true)
	w.Step(nil)
	f = readFrame()
	require.Len(t, f.Dirty, 1)
	assert.Equal(t, protocol.RegionRef{RX: 1, RY: 1, SyncID: f.Dirty[0].SyncID}, f.Dirty[0])

	w.handleObserverLeave("s1")
	w.Step(nil)
	assert.Empty(t, out)
}

func TestRegionMessage(t *testing.T) {
	w := newFlatWorld(t, 100)
	w.Map().SetKind(65, 64, worldmap.Concrete, true)

	msg, err := w.RegionMessage(worldmap.RegionKey{RX: 1, RY: 1})
	require.NoError(t, err)
	tiles, err := encoding.DecodeTiles(encoding.Planes{Kinds: msg.Kinds, Heights: msg.Heights, Flags: msg.Flags})
	require.NoError(t, err)
	require.Len(t, tiles, worldmap.RegionSize*worldmap.RegionSize)
	assert.Equal(t, worldmap.Concrete, tiles[1].Kind)
	assert.Equal(t, worldmap.Grass, tiles[0].Kind)
	assert.NotEmpty(t, msg.Chunks)

	_, err = w.RegionMessage(worldmap.RegionKey{RX: 2, RY: 0})
	assert.Error(t, err)

	resp := make(chan RegionReply, 1)
	w.handleRegionRequest(RegionRequest{RX: -1, RY: 0, Resp: resp})
	reply := <-resp
	require.NotNil(t, reply.Err)
	assert.Equal(t, protocol.ErrInvalidTarget, reply.Err.Code)
}

func TestRun_AppliesSubmittedActions(t *testing.T) {
	w := newFlatWorld(t, 16)
	_, err := w.BuildActor().WithPosition(at(2, 2)).WithPlayer(true).Build(occupations.Avatar{})
	require.NoError(t, err)

	require.True(t, w.Submit(Action{Kind: ActionMove, DY: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return w.Metrics().Frame >= 3 }, 3*time.Second, time.Millisecond)
	w.Stop()
	w.Stop()
	require.NoError(t, <-done)

	assert.Equal(t, at(2, 3), w.Actor(0).State.Position())
}
