package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"voxelvillage.ai/internal/persistence/snapshot"
)

// Meta is written next to every archived snapshot.
type Meta struct {
	Milestone  int    `json:"milestone"`
	Tick       uint64 `json:"tick"`
	Frame      uint64 `json:"frame"`
	Seed       int64  `json:"seed"`
	Snapshot   string `json:"snapshot"`
	Actors     int    `json:"actors"`
	Regions    int    `json:"regions"`
	ArchivedAt string `json:"archived_at"`
}

// Policy controls which snapshots are kept. Zero values disable the
// corresponding behaviour.
type Policy struct {
	// EveryFrames copies a snapshot into the archive whenever its frame
	// count is a positive multiple of EveryFrames.
	EveryFrames uint64
	// Keep is how many of the newest live snapshots survive a Prune.
	Keep int
}

// ArchiveSnapshot copies a milestone snapshot into
// worldDir/archives/milestone_<NNNN>/. archived is false when snap is not a
// milestone under p.
func ArchiveSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1, p Policy) (archivedPath string, archived bool, err error) {
	if p.EveryFrames == 0 || snap.Header.Frame == 0 || snap.Header.Frame%p.EveryFrames != 0 {
		return "", false, nil
	}
	milestone := int(snap.Header.Frame / p.EveryFrames)

	dir := filepath.Join(worldDir, "archives", fmt.Sprintf("milestone_%04d", milestone))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := Meta{
		Milestone:  milestone,
		Tick:       snap.Header.Tick,
		Frame:      snap.Header.Frame,
		Seed:       snap.Seed,
		Snapshot:   filepath.Base(dst),
		Actors:     len(snap.Actors),
		Regions:    len(snap.Regions),
		ArchivedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return dst, true, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return dst, true, err
	}
	return dst, true, nil
}

// ReadMeta loads the meta.json of one archive directory.
func ReadMeta(dir string) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// Prune deletes all but the p.Keep newest snapshots in snapDir and returns
// the removed paths.
func Prune(snapDir string, p Policy) ([]string, error) {
	if p.Keep <= 0 {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(snapDir, "*.snap.zst"))
	if err != nil {
		return nil, err
	}
	if len(matches) <= p.Keep {
		return nil, nil
	}
	// Zero-padded names sort by tick.
	sort.Strings(matches)
	stale := matches[:len(matches)-p.Keep]
	var removed []string
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
