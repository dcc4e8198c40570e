package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the singleton resume record. LastSyncedBlock only ever moves
// forward during a sync; Reset is the one operation that discards it.
type Checkpoint struct {
	LastSyncedBlock    uint64  `json:"last_synced_block"`
	Timestamp          string  `json:"timestamp"`
	BlocksProcessed    uint64  `json:"blocks_processed"`
	AvgBlocksPerSecond float64 `json:"avg_blocks_per_second"`
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled}
}

// Load reads the checkpoint. A missing file is no prior state, not an error.
func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}

	return cp, true, nil
}

// Save writes the checkpoint via temp-then-rename so a crash mid-write never
// corrupts the previous valid record.
func (c *CheckpointStore) Save(lastSynced uint64, blocksProcessed uint64, rate float64) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		LastSyncedBlock:    lastSynced,
		Timestamp:          time.Now().UTC().Format(time.RFC3339Nano),
		BlocksProcessed:    blocksProcessed,
		AvgBlocksPerSecond: rate,
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// Reset removes the checkpoint file. Only the operator resync command calls
// this; the sync loop never does.
func (c *CheckpointStore) Reset() error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
