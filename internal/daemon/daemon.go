package daemon

import (
	"context"
	"log"
	"time"

	"voyager/internal/scanner"
)

// Config holds the daemon settings
type Config struct {
	Interval time.Duration // cadence between scan cycles
	Timeout  time.Duration // per-cycle deadline at the I/O boundary
	Execute  bool          // submit the selected candidate, or dry run
}

// Daemon runs scan cycles on a fixed cadence. Cycles are additionally
// serialized inside the scanner, so a manual trigger overlapping the
// schedule cannot clobber the shared status record.
type Daemon struct {
	config  Config
	scanner *scanner.Scanner
}

// New creates a daemon
func New(cfg Config, s *scanner.Scanner) *Daemon {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Daemon{config: cfg, scanner: s}
}

// Run executes cycles until the context is cancelled. The first cycle
// starts immediately rather than waiting one interval.
func (d *Daemon) Run(ctx context.Context) error {
	mode := "dry-run"
	if d.config.Execute {
		mode = "live"
	}
	log.Printf("[DAEMON] Starting scan loop: interval=%s mode=%s", d.config.Interval, mode)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	d.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[DAEMON] Context cancelled, stopping")
			return ctx.Err()
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

// runCycle runs one scan cycle under the configured timeout. Cycle
// errors are logged and do not stop the loop.
func (d *Daemon) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	result, err := d.scanner.Run(cycleCtx, scanner.Options{Execute: d.config.Execute})
	if err != nil {
		log.Printf("[DAEMON] Cycle failed: %v", err)
		return
	}

	if result.SelectedTrade != nil {
		log.Printf("[DAEMON] %s: %s %s score=%.2f rr=%.2f",
			result.Status, result.SelectedTrade.Intent.Decision,
			result.SelectedTrade.Pair, result.SelectedTrade.Score, result.SelectedTrade.RR)
	} else {
		log.Printf("[DAEMON] %s: %s", result.Status, result.Reason)
	}
}
