package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// MaxSnapshotAge is how old a snapshot may be and still seed startup
// state. Older snapshots are ignored.
const MaxSnapshotAge = time.Hour

// TileSnapshot is one persisted tile entry.
type TileSnapshot struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	BasePrice float64 `json:"base_price"`
	ChangePct float64 `json:"change_pct"`
}

// Snapshot is a point-in-time capture of all tile prices, used to seed
// TileState across restarts.
type Snapshot struct {
	SavedAtUnix int64          `json:"saved_at"`
	Tiles       []TileSnapshot `json:"tiles"`
}

// SnapshotManager handles saving and loading tile snapshots.
// All operations are best-effort: failures are logged and swallowed by
// callers, never fatal.
type SnapshotManager struct {
	path string
	now  func() time.Time
}

// NewSnapshotManager creates a manager writing to dir/tiles.json.
func NewSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{
		path: filepath.Join(dir, "tiles.json"),
		now:  time.Now,
	}
}

// Save writes the snapshot to disk, stamping it with the current time.
func (sm *SnapshotManager) Save(tiles []TileSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(sm.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	snap := Snapshot{
		SavedAtUnix: sm.now().Unix(),
		Tiles:       tiles,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write-and-rename keeps a crash from truncating the previous snapshot
	tmp := sm.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, sm.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	slog.Debug("Snapshot saved",
		slog.Int("tiles", len(tiles)),
		slog.String("path", sm.path))
	return nil
}

// Load reads the snapshot from disk. Returns nil when no snapshot
// exists or the saved state is older than MaxSnapshotAge.
func (sm *SnapshotManager) Load() (*Snapshot, error) {
	data, err := os.ReadFile(sm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	age := sm.now().Sub(time.Unix(snap.SavedAtUnix, 0))
	if age > MaxSnapshotAge {
		slog.Info("Snapshot too old, ignoring",
			slog.Duration("age", age),
			slog.String("path", sm.path))
		return nil, nil
	}

	slog.Info("Snapshot loaded",
		slog.Int("tiles", len(snap.Tiles)),
		slog.String("path", sm.path))
	return &snap, nil
}
