package indexdb

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/world"
	"voxelvillage.ai/internal/sim/worldmap"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestIndex(t *testing.T, path string) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(path, quietLogger())
	require.NoError(t, err)
	return s
}

func TestSQLiteIndex_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	s := openTestIndex(t, path)

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: i * 10, Frame: i, Digest: "d"}))
	}
	require.NoError(t, s.WriteTick(world.TickLogEntry{
		Tick:    30,
		Frame:   3,
		Actions: []world.Action{{Kind: world.ActionMove, DX: 1}},
		Greetings: []world.Greeting{
			{From: "Pia", To: "Olo", Occupation: "Farmer", Text: `Pia says to the Farmer, "Hello, Olo."`},
		},
	}))
	s.RecordSnapshot("/data/000000000040.snap.zst", snapshot.SnapshotV1{
		Header:  snapshot.Header{Tick: 40},
		Seed:    9,
		Regions: make([]snapshot.RegionV1, 4),
		Actors:  make([]snapshot.ActorV1, 2),
	})
	s.UpsertActors(40, []world.ActorView{
		{ID: 1, Name: "Pia", Occupation: "avatar", Pos: worldmap.Point{X: 3, Y: 4}, Player: true},
		{ID: 2, Name: "Olo", Occupation: "farmer", Pos: worldmap.Point{X: 5, Y: 4}},
	})
	s.UpsertActors(50, []world.ActorView{
		{ID: 2, Name: "Olo", Occupation: "farmer", Pos: worldmap.Point{X: 6, Y: 4}},
	})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s = openTestIndex(t, path)
	defer s.Close()

	ticks, err := s.Ticks(0, 100)
	require.NoError(t, err)
	require.Len(t, ticks, 4)
	assert.Equal(t, uint64(30), ticks[3].Tick)
	assert.Equal(t, 1, ticks[3].Actions)
	assert.Equal(t, 1, ticks[3].Greetings)
	assert.Contains(t, ticks[3].RawJSON, `"kind":"MOVE"`)

	greetings, err := s.Greetings(10)
	require.NoError(t, err)
	require.Len(t, greetings, 1)
	assert.Equal(t, "Olo", greetings[0].Listener)

	snap, ok, err := s.LatestSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SnapshotRow{Tick: 40, Path: "/data/000000000040.snap.zst", Seed: 9, Regions: 4, Actors: 2}, snap)

	actors, err := s.Actors()
	require.NoError(t, err)
	require.Len(t, actors, 2)
	assert.True(t, actors[0].Player)
	assert.Equal(t, 6, actors[1].X)
	assert.Equal(t, uint64(50), actors[1].UpdatedTick)

	v, err := s.Meta("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSQLiteIndex_DropsWhenQueueFull(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick}

	require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: 2}))
	s.RecordSnapshot("x", snapshot.SnapshotV1{})
	s.UpsertActors(1, []world.ActorView{{ID: 1}})

	st := s.Stats()
	assert.Equal(t, QueueStats{
		QueueDepth:    1,
		QueueCapacity: 1,
		DropTick:      1,
		DropSnapshot:  1,
		DropActors:    1,
	}, st)
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	assert.NoError(t, s.WriteTick(world.TickLogEntry{}))
	s.RecordSnapshot("x", snapshot.SnapshotV1{})
	s.UpsertActors(1, []world.ActorView{{ID: 1}})
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("", nil)
	assert.Error(t, err)
}
