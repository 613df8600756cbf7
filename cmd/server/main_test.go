package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelvillage.ai/internal/persistence/archive"
	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/tuning"
	"voxelvillage.ai/internal/sim/world"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.WorldID = "test"
	t.Map.Width = 64
	t.Map.Length = 64
	t.Population = []tuning.PopulationEntry{
		{Occupation: "avatar", Count: 1, Name: "Player", Player: true},
		{Occupation: "farmer", Count: 2, Name: "Field"},
		{Occupation: "grow_plants", Count: 1, Ethereal: true},
	}
	return t
}

func TestOpenWorld_FreshSpawnsPopulation(t *testing.T) {
	w, err := openWorld(smallTuning(), "", quietLogger())
	require.NoError(t, err)
	require.Equal(t, 4, w.ActorCount())

	views := w.Actors()
	assert.True(t, views[0].Player)
	assert.Equal(t, "Player", views[0].Name)
	assert.Equal(t, "Field 1", views[1].Name)
	assert.Equal(t, "Field 2", views[2].Name)
	assert.True(t, views[3].Ethereal)
}

func TestOpenWorld_UnknownOccupation(t *testing.T) {
	tune := smallTuning()
	tune.Population = []tuning.PopulationEntry{{Occupation: "juggler", Count: 1}}
	_, err := openWorld(tune, "", quietLogger())
	assert.Error(t, err)
}

func TestOpenWorld_ResumesSnapshot(t *testing.T) {
	tune := smallTuning()
	w, err := openWorld(tune, "", quietLogger())
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		w.Step(nil)
	}
	store := snapshotStore{worldDir: t.TempDir(), log: quietLogger()}
	store.persist(w.ExportSnapshot())

	path, err := snapshot.Latest(store.dir())
	require.NoError(t, err)
	require.Equal(t, snapshot.Path(store.dir(), w.CurrentTick()), path)

	// Tuning changes after the snapshot do not affect the resumed world.
	tune.Seed = 99
	tune.TickIncrement = 3
	resumed, err := openWorld(tune, path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, w.CurrentTick(), resumed.CurrentTick())
	assert.Equal(t, w.StateDigest(), resumed.StateDigest())

	tune.WorldID = "other"
	_, err = openWorld(tune, path, quietLogger())
	assert.ErrorContains(t, err, "world id mismatch")
}

func TestSnapshotStore_ArchivesAndPrunes(t *testing.T) {
	w, err := openWorld(smallTuning(), "", quietLogger())
	require.NoError(t, err)
	store := snapshotStore{
		worldDir: t.TempDir(),
		policy:   archive.Policy{EveryFrames: 2, Keep: 2},
		log:      quietLogger(),
	}
	for i := 0; i < 4; i++ {
		w.Step(nil)
		store.persist(w.ExportSnapshot())
	}

	live, err := filepath.Glob(filepath.Join(store.dir(), "*.snap.zst"))
	require.NoError(t, err)
	assert.Len(t, live, 2)

	meta, err := archive.ReadMeta(filepath.Join(store.worldDir, "archives", "milestone_0002"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), meta.Frame)
	_, err = snapshot.ReadSnapshot(filepath.Join(store.worldDir, "archives", "milestone_0002", meta.Snapshot))
	assert.NoError(t, err)
}

func TestActorViews(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Counters: snapshot.CountersV1{Player: 1},
		Actors: []snapshot.ActorV1{
			{ID: 1, Name: "Olo", Occupation: "farmer", Pos: [2]int{4, 5}},
			{ID: 2, Name: "Pia", Occupation: "avatar", Pos: [2]int{1, 1}},
		},
	}
	views := actorViews(snap)
	require.Len(t, views, 2)
	assert.False(t, views[0].Player)
	assert.Equal(t, 5, views[0].Pos.Y)
	assert.True(t, views[1].Player)
}

func TestWriteMetrics(t *testing.T) {
	var buf bytes.Buffer
	writeMetrics(&buf, "v", world.WorldMetrics{Tick: 120, Actors: 3, StepMS: 0.25}, nil)
	out := buf.String()
	assert.Contains(t, out, `voxelvillage_world_tick{world="v"} 120`)
	assert.Contains(t, out, `voxelvillage_world_actors{world="v"} 3`)
	assert.Contains(t, out, `voxelvillage_world_step_ms{world="v"} 0.250`)
	assert.NotContains(t, out, "index_queue_depth")
}

type recordingLogger struct {
	n   int
	err error
}

func (r *recordingLogger) WriteTick(world.TickLogEntry) error {
	r.n++
	return r.err
}

func TestMultiTickLogger(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{err: errors.New("disk full")}
	m := multiTickLogger{a: a, b: b}
	err := m.WriteTick(world.TickLogEntry{Tick: 1})
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}

func TestResumeMarker_TagsFirstEntryOnly(t *testing.T) {
	var got []world.TickLogEntry
	next := tickFunc(func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	})
	m := &resumeMarker{next: next, name: "resume-000000000100.snap.zst"}
	require.NoError(t, m.WriteTick(world.TickLogEntry{Tick: 100}))
	require.NoError(t, m.WriteTick(world.TickLogEntry{Tick: 110}))
	require.Len(t, got, 2)
	assert.Equal(t, "resume-000000000100.snap.zst", got[0].Resume)
	assert.Empty(t, got[1].Resume)
}

type tickFunc func(world.TickLogEntry) error

func (f tickFunc) WriteTick(e world.TickLogEntry) error { return f(e) }

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := openRuntimeIndex(dir, true, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, idx)

	t.Setenv("VV_INDEX_BACKEND", "bogus")
	_, err = openRuntimeIndex(dir, false, quietLogger())
	assert.Error(t, err)

	t.Setenv("VV_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(dir, false, quietLogger())
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	assert.FileExists(t, filepath.Join(dir, "index", "world.sqlite"))
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:9"))
	assert.False(t, isLoopbackRemote("8.8.8.8:9"))
}
