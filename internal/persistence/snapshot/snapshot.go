package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Version is the only snapshot layout this build reads and writes.
const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Frame   uint64 `json:"frame"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64  `json:"seed"`
	TickIncrement uint64 `json:"tick_increment"`
	AgeSweepEvery int    `json:"age_sweep_every"`
	SnapshotEvery int    `json:"snapshot_every"`

	Width    int  `json:"width"`
	Length   int  `json:"length"`
	Infinite bool `json:"infinite"`

	Counters CountersV1 `json:"counters"`

	Regions  []RegionV1 `json:"regions"`
	Actors   []ActorV1  `json:"actors"`
	Entities []EntityV1 `json:"entities"`
}

type CountersV1 struct {
	NextActorID uint32 `json:"next_actor_id"`
	MapSyncID   uint64 `json:"map_sync_id"`
	Player      int    `json:"player"`
}

// RegionV1 stores one 64x64 region as parallel row-major planes.
type RegionV1 struct {
	RX      int     `json:"rx"`
	RY      int     `json:"ry"`
	Kinds   []uint8 `json:"kinds"`
	Heights []int16 `json:"heights"`
	Ages    []uint8 `json:"ages"`
	Flags   []uint8 `json:"flags"`
}

type ActorV1 struct {
	ID         uint32          `json:"id"`
	Name       string          `json:"name"`
	Occupation string          `json:"occupation"`
	Pos        [2]int          `json:"pos"`
	Beacon     [2]int          `json:"beacon"`
	Color      [3]float32      `json:"color"`
	Ethereal   bool            `json:"ethereal,omitempty"`
	SyncID     uint64          `json:"sync_id"`
	Memory     []MemoryEntryV1 `json:"memory,omitempty"`
}

type MemoryEntryV1 struct {
	Key    string `json:"key"`
	Expiry uint64 `json:"expiry"`
}

type EntityV1 struct {
	ID     uint32     `json:"id"`
	Pos    [3]int     `json:"pos"`
	Size   [3]int     `json:"size"`
	Color  [3]float32 `json:"color"`
	SyncID uint64     `json:"sync_id"`
}

// WriteSnapshot writes a zstd stream holding one JSON header line followed
// by the gob-encoded snapshot. The file is written next to path and renamed
// into place.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	h, err := readHeader(br)
	if err != nil {
		return snap, err
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header != h {
		return snap, fmt.Errorf("snapshot header mismatch: line=%+v body=%+v", h, snap.Header)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

// Path returns the conventional file name for a snapshot taken at tick.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%012d.snap.zst", tick))
}

// Latest returns the newest snapshot file in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.snap.zst"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	// Zero-padded names sort by tick.
	latest := matches[0]
	for _, m := range matches[1:] {
		if m > latest {
			latest = m
		}
	}
	return latest, nil
}
