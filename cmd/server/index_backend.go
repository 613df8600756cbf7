package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"voxelvillage.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the read-model index for worldDir. It returns a nil
// index when indexing is disabled by flag or by VV_INDEX_BACKEND.
func openRuntimeIndex(worldDir string, disableDB bool, log *slog.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VV_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"), log)
	default:
		return nil, fmt.Errorf("unsupported VV_INDEX_BACKEND: %s", backend)
	}
}
