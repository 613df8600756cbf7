package indexdb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable index of ticks, snapshots and actors.
// Writes are queued and applied by a single writer goroutine; when the queue
// is full they are dropped and counted. The JSONL tick log stays the source
// of truth.
type SQLiteIndex struct {
	db  *sqlx.DB
	log *slog.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	dropActors   atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqActors
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot SnapshotRow
	actors   []ActorRow
}

type TickRow struct {
	Tick      uint64 `db:"tick"`
	Frame     uint64 `db:"frame"`
	Digest    string `db:"digest"`
	Actions   int    `db:"actions"`
	Greetings int    `db:"greetings"`
	Restarts  int    `db:"restarts"`
	RawJSON   string `db:"raw_json"`
}

type GreetingRow struct {
	Tick     uint64 `db:"tick"`
	Seq      int    `db:"seq"`
	Speaker  string `db:"speaker"`
	Listener string `db:"listener"`
	Text     string `db:"text"`
}

type SnapshotRow struct {
	Tick     uint64 `db:"tick"`
	Path     string `db:"path"`
	Seed     int64  `db:"seed"`
	Regions  int    `db:"regions"`
	Actors   int    `db:"actors"`
	Entities int    `db:"entities"`
}

type ActorRow struct {
	ID          uint32 `db:"id"`
	Name        string `db:"name"`
	Occupation  string `db:"occupation"`
	X           int    `db:"x"`
	Y           int    `db:"y"`
	Ethereal    bool   `db:"ethereal"`
	Player      bool   `db:"player"`
	UpdatedTick uint64 `db:"updated_tick"`
}

type QueueStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTick      uint64 `json:"drop_tick_total"`
	DropSnapshot  uint64 `json:"drop_snapshot_total"`
	DropActors    uint64 `json:"drop_actors_total"`
}

const (
	commitEvery   = 2000
	commitMaxWait = 2 * time.Second
)

func OpenSQLite(path string, log *slog.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate index db: %w", err)
	}

	s := &SQLiteIndex{
		db:  db,
		log: log.With("component", "indexdb"),
		ch:  make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func migrate(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		tick INTEGER PRIMARY KEY,
		frame INTEGER NOT NULL,
		digest TEXT NOT NULL,
		actions INTEGER NOT NULL,
		greetings INTEGER NOT NULL,
		restarts INTEGER NOT NULL,
		raw_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS greetings (
		tick INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		listener TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (tick, seq)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		tick INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		seed INTEGER NOT NULL,
		regions INTEGER NOT NULL,
		actors INTEGER NOT NULL,
		entities INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actors (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		occupation TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		ethereal INTEGER NOT NULL,
		player INTEGER NOT NULL,
		updated_tick INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actors_occupation ON actors(occupation);
	INSERT OR REPLACE INTO meta(key, value) VALUES('schema_version', '1');
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// WriteTick implements world.TickLogger.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: SnapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Seed:     snap.Seed,
		Regions:  len(snap.Regions),
		Actors:   len(snap.Actors),
		Entities: len(snap.Entities),
	}}, &s.dropSnapshot)
}

// UpsertActors records the latest known state of each actor.
func (s *SQLiteIndex) UpsertActors(tick uint64, actors []world.ActorView) {
	if s == nil || len(actors) == 0 {
		return
	}
	rows := make([]ActorRow, len(actors))
	for i, a := range actors {
		rows[i] = ActorRow{
			ID:          a.ID,
			Name:        a.Name,
			Occupation:  a.Occupation,
			X:           a.Pos.X,
			Y:           a.Pos.Y,
			Ethereal:    a.Ethereal,
			Player:      a.Player,
			UpdatedTick: tick,
		}
	}
	s.enqueue(req{kind: reqActors, actors: rows}, &s.dropActors)
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTick:      s.dropTick.Load(),
		DropSnapshot:  s.dropSnapshot.Load(),
		DropActors:    s.dropActors.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	var (
		tx         *sqlx.Tx
		opCount    int
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			s.log.Warn("begin tx", "err", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Warn("commit", "err", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.Warn("index write failed", "err", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		n, err := apply(tx, r)
		if err != nil {
			rollback(err)
			continue
		}
		opCount += n
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func apply(tx *sqlx.Tx, r req) (int, error) {
	switch r.kind {
	case reqTick:
		return applyTick(tx, r.tick)
	case reqSnapshot:
		_, err := tx.NamedExec(`INSERT OR REPLACE INTO snapshots(tick, path, seed, regions, actors, entities)
			VALUES(:tick, :path, :seed, :regions, :actors, :entities)`, r.snapshot)
		return 1, err
	case reqActors:
		for _, a := range r.actors {
			if _, err := tx.NamedExec(`INSERT OR REPLACE INTO actors(id, name, occupation, x, y, ethereal, player, updated_tick)
				VALUES(:id, :name, :occupation, :x, :y, :ethereal, :player, :updated_tick)`, a); err != nil {
				return 0, err
			}
		}
		return len(r.actors), nil
	}
	return 0, fmt.Errorf("unknown request kind %d", r.kind)
}

func applyTick(tx *sqlx.Tx, e world.TickLogEntry) (int, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}
	row := TickRow{
		Tick:      e.Tick,
		Frame:     e.Frame,
		Digest:    e.Digest,
		Actions:   len(e.Actions),
		Greetings: len(e.Greetings),
		Restarts:  e.Restarts,
		RawJSON:   string(raw),
	}
	if _, err := tx.NamedExec(`INSERT OR REPLACE INTO ticks(tick, frame, digest, actions, greetings, restarts, raw_json)
		VALUES(:tick, :frame, :digest, :actions, :greetings, :restarts, :raw_json)`, row); err != nil {
		return 0, err
	}
	for i, g := range e.Greetings {
		if _, err := tx.NamedExec(`INSERT OR REPLACE INTO greetings(tick, seq, speaker, listener, text)
			VALUES(:tick, :seq, :speaker, :listener, :text)`,
			GreetingRow{Tick: e.Tick, Seq: i, Speaker: g.From, Listener: g.To, Text: g.Text}); err != nil {
			return 0, err
		}
	}
	return 1 + len(e.Greetings), nil
}
