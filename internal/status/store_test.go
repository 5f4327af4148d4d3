package status

import (
	"os"
	"path/filepath"
	"testing"

	"voyager/internal/scanner"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	if store.LastCycle() != nil {
		t.Error("Expected nil before the first cycle")
	}

	first := &scanner.CycleResult{CycleID: "c1", Status: scanner.StatusNoTrade}
	second := &scanner.CycleResult{CycleID: "c2", Status: scanner.StatusReady}

	if err := store.SetLastCycle(first); err != nil {
		t.Fatal(err)
	}
	if err := store.SetLastCycle(second); err != nil {
		t.Fatal(err)
	}

	if got := store.LastCycle(); got.CycleID != "c2" {
		t.Errorf("Expected last write to win, got %s", got.CycleID)
	}
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	result := &scanner.CycleResult{
		CycleID:    "persisted",
		Status:     scanner.StatusReady,
		ReasonCode: "BUY",
	}
	if err := store.SetLastCycle(result); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same directory restores the snapshot
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.LastCycle()
	if got == nil || got.CycleID != "persisted" {
		t.Fatalf("Expected the snapshot restored, got %+v", got)
	}
	if got.Status != scanner.StatusReady {
		t.Errorf("Expected READY restored, got %s", got.Status)
	}
}

func TestFileStore_IgnoresCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "last_cycle.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Expected a corrupt snapshot to be skipped, got %v", err)
	}
	if store.LastCycle() != nil {
		t.Error("Expected nil last cycle after skipping a corrupt snapshot")
	}
}
