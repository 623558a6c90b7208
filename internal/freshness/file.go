package freshness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPath is where the file backend keeps the registry mirror.
const DefaultPath = "data/freshness.json"

// FilePersister stores the registry as one JSON object on local disk.
// It is suitable for single-instance deployments only: concurrent processes
// sharing the file overwrite each other.
type FilePersister struct {
	mu   sync.Mutex
	path string
}

// NewFilePersister creates a persister writing to path (DefaultPath when empty).
func NewFilePersister(path string) *FilePersister {
	if path == "" {
		path = DefaultPath
	}
	return &FilePersister{path: path}
}

// Path returns the mirror file location.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the mirror file.
func (p *FilePersister) Load(_ context.Context) (map[string]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int64{}, nil
		}
		return nil, fmt.Errorf("failed to read freshness file: %w", err)
	}

	stamps := map[string]int64{}
	if err := json.Unmarshal(data, &stamps); err != nil {
		return nil, fmt.Errorf("failed to parse freshness file: %w", err)
	}
	return stamps, nil
}

// Save rewrites the mirror file atomically.
func (p *FilePersister) Save(_ context.Context, stamps map[string]int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create freshness directory: %w", err)
	}

	data, err := json.MarshalIndent(stamps, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal freshness registry: %w", err)
	}

	tmpFile := p.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write freshness file: %w", err)
	}
	if err := os.Rename(tmpFile, p.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename freshness file: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (p *FilePersister) Close() error {
	return nil
}
