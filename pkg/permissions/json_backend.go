package permissions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONBackend persists store state as a JSON snapshot file. The file is
// rewritten atomically on every mutation.
type JSONBackend struct {
	path string
}

// NewJSONBackend creates a backend writing to path. The parent directory
// is created if needed.
func NewJSONBackend(path string) (*JSONBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create permissions directory: %w", err)
	}
	return &JSONBackend{path: path}, nil
}

func (b *JSONBackend) Load() (Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("failed to read permissions file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse permissions file: %w", err)
	}
	return snap, nil
}

func (b *JSONBackend) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write permissions file: %w", err)
	}
	return os.Rename(tmp, b.path)
}

func (b *JSONBackend) Close() error {
	return nil
}
