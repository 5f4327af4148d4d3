package status

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"voyager/internal/scanner"
)

// MemoryStore keeps the last cycle outcome in memory. The whole record
// is replaced at once, so readers always see a consistent cycle.
type MemoryStore struct {
	mu   sync.RWMutex
	last *scanner.CycleResult
}

// NewMemoryStore creates an in-memory status store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SetLastCycle replaces the stored cycle wholesale (last-write-wins)
func (s *MemoryStore) SetLastCycle(result *scanner.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = result
	return nil
}

// LastCycle returns the most recent cycle outcome, nil before first scan
func (s *MemoryStore) LastCycle() *scanner.CycleResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// FileStore is a MemoryStore that additionally snapshots each cycle to a
// JSON file for external polling across restarts. Snapshot writes are
// best-effort; a failed write only logs a warning.
type FileStore struct {
	MemoryStore
	filepath string
}

// NewFileStore creates a file-backed status store under dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	fs := &FileStore{filepath: filepath.Join(dir, "last_cycle.json")}
	fs.loadSnapshot()
	return fs, nil
}

// SetLastCycle replaces the stored cycle and rewrites the snapshot file
func (s *FileStore) SetLastCycle(result *scanner.CycleResult) error {
	if err := s.MemoryStore.SetLastCycle(result); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Printf("[STATUS] Warning: could not marshal cycle snapshot: %v", err)
		return nil
	}
	if err := os.WriteFile(s.filepath, data, 0644); err != nil {
		log.Printf("[STATUS] Warning: could not write %s: %v", s.filepath, err)
	}
	return nil
}

// loadSnapshot restores the last cycle from disk, if one exists
func (s *FileStore) loadSnapshot() {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return
	}

	var last scanner.CycleResult
	if err := json.Unmarshal(data, &last); err != nil {
		log.Printf("[STATUS] Warning: corrupted snapshot %s: %v", s.filepath, err)
		return
	}
	s.MemoryStore.SetLastCycle(&last)
}
