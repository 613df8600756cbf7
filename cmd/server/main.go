package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelvillage.ai/internal/persistence/archive"
	"voxelvillage.ai/internal/persistence/indexdb"
	persistlog "voxelvillage.ai/internal/persistence/log"
	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/tuning"
	"voxelvillage.ai/internal/sim/world"
	"voxelvillage.ai/internal/sim/worldmap"
	"voxelvillage.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID    = flag.String("world", "", "world id (default: tuning world_id)")
		seed       = flag.Int64("seed", 0, "world seed for a fresh world (0: tuning seed)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
		tickEvery  = flag.Duration("tick_interval", 0, "wall-clock frame interval (default: 1/tick_rate_hz)")
		debug      = flag.Bool("debug", false, "log at debug level")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fatal(logger, "load tuning", err)
		}
		logger.Warn("tuning not found, using defaults", "path", tp)
		tune = tuning.Defaults()
	}
	if *worldID != "" {
		tune.WorldID = *worldID
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		fatal(logger, "create world dir", err)
	}
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad, err = snapshot.Latest(filepath.Join(worldDir, "snapshots"))
		if err != nil {
			fatal(logger, "find latest snapshot", err)
		}
	}

	w, err := openWorld(tune, snapshotToLoad, logger)
	if err != nil {
		fatal(logger, "world", err)
	}

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB, logger)
	if err != nil {
		fatal(logger, "open index backend", err)
	}
	defer idx.Close()

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	var ticks world.TickLogger = tickLog
	if idx != nil {
		ticks = multiTickLogger{a: tickLog, b: idx}
	}
	if snapshotToLoad != "" {
		// Replay restarts from this state when it reaches the marked entry.
		name, err := persistlog.WriteResumePoint(worldDir, w.ExportSnapshot())
		if err != nil {
			fatal(logger, "write resume point", err)
		}
		ticks = &resumeMarker{next: ticks, name: name}
	}
	w.SetTickLogger(ticks)

	ctx, cancel := signalContext()
	defer cancel()

	store := snapshotStore{
		worldDir: worldDir,
		policy:   archive.Policy{EveryFrames: uint64(tune.ArchiveFrames), Keep: tune.SnapshotKeep},
		idx:      idx,
		log:      logger,
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				store.persist(snap)
			}
		}
	}()

	obsSrv, err := observer.NewServer(w, logger)
	if err != nil {
		fatal(logger, "observer server", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, tune.WorldID, w.Metrics(), idx)
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: tune.WorldID,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/v1/observer/status", obsSrv.StatusHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	if envBool("VV_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx, *tickEvery); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("world stopped", "err", err)
		}
		cancel()
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", *addr, "world", tune.WorldID, "tick", w.CurrentTick())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("listen", "err", err)
		cancel()
	}

	<-worldDone
	<-writerDone
	// The loop has exited, so the world is safe to read from this goroutine.
	store.persist(w.ExportSnapshot())
	logger.Info("shutdown complete", "tick", w.CurrentTick())
}

// openWorld builds the world from tuning and either resumes snapshotPath or
// spawns the configured population.
func openWorld(tune tuning.Tuning, snapshotPath string, logger *slog.Logger) (*world.World, error) {
	cfg := world.ConfigFromTuning(tune)
	if snapshotPath == "" {
		w, err := world.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		n, err := w.Populate(tune.Population)
		if err != nil {
			return nil, fmt.Errorf("spawn population: %w", err)
		}
		logger.Info("fresh world", "seed", cfg.Seed, "actors", n)
		return w, nil
	}

	snap, err := snapshot.ReadSnapshot(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	w, err := world.Resume(cfg, snap, logger)
	if err != nil {
		return nil, fmt.Errorf("resume snapshot: %w", err)
	}
	logger.Info("resumed from snapshot", "file", filepath.Base(snapshotPath), "tick", w.CurrentTick())
	return w, nil
}

// snapshotStore writes snapshots under worldDir and applies the archive and
// retention policy.
type snapshotStore struct {
	worldDir string
	policy   archive.Policy
	idx      *indexdb.SQLiteIndex
	log      *slog.Logger
}

func (s snapshotStore) dir() string { return filepath.Join(s.worldDir, "snapshots") }

func (s snapshotStore) persist(snap snapshot.SnapshotV1) {
	path := snapshot.Path(s.dir(), snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		s.log.Error("snapshot write", "err", err)
		return
	}
	s.log.Info("snapshot written", "file", filepath.Base(path), "tick", snap.Header.Tick)
	s.idx.RecordSnapshot(path, snap)
	s.idx.UpsertActors(snap.Header.Tick, actorViews(snap))

	if archived, ok, err := archive.ArchiveSnapshot(s.worldDir, path, snap, s.policy); err != nil {
		s.log.Error("archive snapshot", "err", err)
	} else if ok {
		s.log.Info("snapshot archived", "path", archived)
	}
	removed, err := archive.Prune(s.dir(), s.policy)
	if err != nil {
		s.log.Error("prune snapshots", "err", err)
	}
	if len(removed) > 0 {
		s.log.Debug("snapshots pruned", "count", len(removed))
	}
}

// actorViews reads actor rows from a snapshot rather than the live world,
// which belongs to the loop goroutine while it runs.
func actorViews(snap snapshot.SnapshotV1) []world.ActorView {
	out := make([]world.ActorView, len(snap.Actors))
	for i, a := range snap.Actors {
		out[i] = world.ActorView{
			ID:         a.ID,
			Name:       a.Name,
			Occupation: a.Occupation,
			Pos:        worldmap.Point{X: a.Pos[0], Y: a.Pos[1]},
			Ethereal:   a.Ethereal,
			Player:     i == snap.Counters.Player,
			SyncID:     a.SyncID,
		}
	}
	return out
}

func writeMetrics(rw io.Writer, worldID string, m world.WorldMetrics, idx *indexdb.SQLiteIndex) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP voxelvillage_%s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE voxelvillage_%s gauge\n", name)
		fmt.Fprintf(rw, "voxelvillage_%s{world=%q} %v\n", name, worldID, v)
	}
	gauge("world_tick", "Current game time.", m.Tick)
	gauge("world_frame", "Frames simulated.", m.Frame)
	gauge("world_actors", "Actors in the world.", m.Actors)
	gauge("world_entities", "Entities in the world.", m.Entities)
	gauge("world_loaded_regions", "Loaded region count.", m.Regions)
	gauge("world_locked_tiles", "Tiles currently reserved by a plan.", m.Locks)
	gauge("world_observers", "Connected observers.", m.Observers)
	gauge("world_inbox_depth", "Queued player actions.", m.Inbox)
	gauge("world_step_ms", "Last frame step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	if idx == nil {
		return
	}
	s := idx.Stats()
	gauge("index_queue_depth", "Index writer queue depth.", s.QueueDepth)
	fmt.Fprintf(rw, "# HELP voxelvillage_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE voxelvillage_index_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelvillage_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", s.DropTick)
	fmt.Fprintf(rw, "voxelvillage_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", s.DropSnapshot)
	fmt.Fprintf(rw, "voxelvillage_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "actors", s.DropActors)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var errs []error
	if m.a != nil {
		errs = append(errs, m.a.WriteTick(entry))
	}
	if m.b != nil {
		errs = append(errs, m.b.WriteTick(entry))
	}
	return errors.Join(errs...)
}

// resumeMarker tags the first entry written after a restart with the resume
// point the world was loaded from.
type resumeMarker struct {
	next world.TickLogger
	name string
}

func (r *resumeMarker) WriteTick(entry world.TickLogEntry) error {
	if r.name != "" {
		entry.Resume = r.name
		r.name = ""
	}
	return r.next.WriteTick(entry)
}
