package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voyager/internal/scanner"
)

// CycleRecord is the per-cycle line written to the audit trail
type CycleRecord struct {
	CycleID    string               `json:"cycle_id"`
	Time       time.Time            `json:"time"`
	Status     scanner.CycleStatus  `json:"status"`
	ReasonCode string               `json:"reason_code"`
	Reason     string               `json:"reason"`
	Strategy   string               `json:"strategy"`
	Executed   bool                 `json:"executed"`
	Selected   string               `json:"selected,omitempty"`
	Score      *float64             `json:"score,omitempty"`
	Pairs      []scanner.PairStatus `json:"pairs"`
}

// Log appends one JSON line per cycle to an audit file. Writes are
// serialized and best-effort; the scanner never blocks on this sink.
type Log struct {
	mu       sync.Mutex
	filepath string
}

// NewLog creates the audit log under dir
func NewLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Log{filepath: filepath.Join(dir, "cycles.jsonl")}, nil
}

// RecordCycle appends the cycle's audit record
func (l *Log) RecordCycle(result *scanner.CycleResult) error {
	rec := CycleRecord{
		CycleID:    result.CycleID,
		Time:       result.Time,
		Status:     result.Status,
		ReasonCode: result.ReasonCode,
		Reason:     result.Reason,
		Strategy:   result.ActiveStrategyID,
		Executed:   result.Executed,
		Score:      result.Score,
		Pairs:      result.ScannedPairs,
	}
	if result.SelectedTrade != nil {
		rec.Selected = result.SelectedTrade.Pair
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.filepath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}
