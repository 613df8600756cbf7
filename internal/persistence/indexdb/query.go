package indexdb

// Reads go through the same connection as the writer and only see committed
// batches.

func (s *SQLiteIndex) Ticks(from, to uint64) ([]TickRow, error) {
	var rows []TickRow
	err := s.db.Select(&rows, `SELECT tick, frame, digest, actions, greetings, restarts, raw_json
		FROM ticks WHERE tick >= ? AND tick <= ? ORDER BY tick`, int64(from), int64(to))
	return rows, err
}

func (s *SQLiteIndex) Greetings(limit int) ([]GreetingRow, error) {
	var rows []GreetingRow
	err := s.db.Select(&rows, `SELECT tick, seq, speaker, listener, text
		FROM greetings ORDER BY tick DESC, seq LIMIT ?`, limit)
	return rows, err
}

// LatestSnapshot returns the newest recorded snapshot, if any.
func (s *SQLiteIndex) LatestSnapshot() (SnapshotRow, bool, error) {
	var rows []SnapshotRow
	if err := s.db.Select(&rows, `SELECT tick, path, seed, regions, actors, entities
		FROM snapshots ORDER BY tick DESC LIMIT 1`); err != nil {
		return SnapshotRow{}, false, err
	}
	if len(rows) == 0 {
		return SnapshotRow{}, false, nil
	}
	return rows[0], true, nil
}

func (s *SQLiteIndex) Actors() ([]ActorRow, error) {
	var rows []ActorRow
	err := s.db.Select(&rows, `SELECT id, name, occupation, x, y, ethereal, player, updated_tick
		FROM actors ORDER BY id`)
	return rows, err
}

func (s *SQLiteIndex) Meta(key string) (string, error) {
	var v string
	err := s.db.Get(&v, `SELECT value FROM meta WHERE key = ?`, key)
	return v, err
}
