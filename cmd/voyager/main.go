package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"voyager/internal/audit"
	"voyager/internal/broker/oanda"
	"voyager/internal/config"
	"voyager/internal/daemon"
	"voyager/internal/risk"
	"voyager/internal/scanner"
	"voyager/internal/scoring"
	"voyager/internal/status"
	"voyager/internal/strategy"
	"voyager/internal/web"
)

var (
	cfgFile  string
	pairFlag string
	execute  bool
	format   string
	interval time.Duration
	webPort  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voyager",
		Short: "Forex watchlist scanner with pluggable strategies",
		Long: `Voyager evaluates a watchlist of currency pairs on a fixed cadence,
runs the active strategy against live market context, filters candidates
through risk and scoring gates, and selects at most one trade per cycle.

Strategies:
  h1_trend_m15_pullback  - trade pullbacks within the H1 trend
  flat_range_v1          - fade the boundaries of a flat range
  breakout_v1            - placeholder, always declines

Examples:
  voyager scan --pair EUR_USD
  voyager scan --execute
  voyager daemon --interval 15m`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan cycle over the watchlist",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&pairFlag, "pair", "", "scan a single pair instead of the watchlist")
	scanCmd.Flags().BoolVar(&execute, "execute", false, "submit the selected candidate (default: dry run)")
	scanCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Scan on a fixed cadence and serve status over HTTP",
		RunE:  runDaemon,
	}
	daemonCmd.Flags().BoolVar(&execute, "execute", false, "submit selected candidates (default: dry run)")
	daemonCmd.Flags().DurationVar(&interval, "interval", 0, "scan interval (default from config)")
	daemonCmd.Flags().IntVar(&webPort, "port", 0, "status server port (default from config)")

	strategiesCmd := &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategy plugins",
		RunE:  runStrategies,
	}

	rootCmd.AddCommand(scanCmd, daemonCmd, strategiesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildScanner wires the pipeline from the loaded configuration
func buildScanner(cfg *config.Config) (*scanner.Scanner, scanner.StatusStore, error) {
	client := oanda.NewClient(cfg.Broker.Credentials, cfg.Broker.RateLimit)

	dataDir := cfg.DataDir
	if dataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, ".voyager")
		} else {
			dataDir = "."
		}
	}

	statusStore, err := status.NewFileStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init status store: %w", err)
	}
	auditLog, err := audit.NewLog(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init audit log: %w", err)
	}

	s := scanner.New(
		client,
		client,
		config.NewSource(cfgFile),
		risk.NewEngine(cfg.Risk),
		scoring.NewEngine(cfg.Scoring),
		statusStore,
		auditLog,
	)
	return s, statusStore, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, _, err := buildScanner(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scanner.Timeout)
	defer cancel()

	total := len(cfg.Strategy.Watchlist)
	if pairFlag != "" {
		total = 1
	}

	var bar *progressbar.ProgressBar
	if format == "table" {
		bar = progressbar.NewOptions(total,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]█[reset]",
				SaucerHead:    "[green]█[reset]",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	result, err := s.Run(ctx, scanner.Options{
		Pair:    pairFlag,
		Execute: execute,
		Progress: func(scanned, total int) {
			if bar != nil {
				bar.Set(scanned)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	return outputTable(result)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if interval > 0 {
		cfg.Scanner.Interval = interval
	}
	if webPort > 0 {
		cfg.Web.Port = webPort
	}

	s, statusStore, err := buildScanner(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted. Shutting down...")
		cancel()
	}()

	server := web.NewServer(statusStore)
	go func() {
		if err := server.Start(cfg.Web.Port); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "status server: %v\n", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	d := daemon.New(daemon.Config{
		Interval: cfg.Scanner.Interval,
		Timeout:  cfg.Scanner.Timeout,
		Execute:  execute,
	}, s)

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runStrategies(cmd *cobra.Command, args []string) error {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Name", "Version", "Timeframes", "Params"}),
	)

	for _, p := range strategy.All() {
		tfs := ""
		for i, tf := range p.RequiredTimeframes() {
			if i > 0 {
				tfs += ","
			}
			tfs += string(tf)
		}
		table.Append([]string{
			p.ID(),
			p.Name(),
			p.Version(),
			tfs,
			fmt.Sprintf("%d", len(p.ParamSchema())),
		})
	}

	table.Render()
	return nil
}

func outputTable(result *scanner.CycleResult) error {
	fmt.Printf("Cycle %s: %s (%s)\n%s\n\n",
		result.CycleID[:8], result.Status, result.ReasonCode, result.Reason)

	if len(result.ScannedPairs) == 0 {
		fmt.Println("No pairs scanned.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Pair", "Decision", "Score", "RR", "Spread", "Outcome"}),
	)

	for _, ps := range result.ScannedPairs {
		score := "-"
		if ps.Score != nil {
			score = fmt.Sprintf("%.2f", *ps.Score)
		}

		outcome := "candidate"
		if ps.Rejected {
			outcome = ps.ReasonCode
			if len(ps.Reasons) > 0 && ps.ReasonCode == scanner.CodeRiskCheckFailed {
				outcome = ps.Reasons[0]
			}
			if len(outcome) > 45 {
				outcome = outcome[:45] + "..."
			}
		}

		table.Append([]string{
			ps.Pair,
			string(ps.Decision),
			score,
			fmt.Sprintf("%.2f", ps.RR),
			fmt.Sprintf("%.1f", ps.Spread),
			outcome,
		})
	}

	table.Render()

	if result.SelectedTrade != nil {
		sel := result.SelectedTrade
		fmt.Printf("\n--- Selected ---\n")
		fmt.Printf("[%s] %s @ %.5f | stop %.5f | target %.5f\n",
			sel.Pair, sel.Intent.Decision, sel.Intent.EntryPrice,
			sel.Intent.StopLoss, sel.Intent.TakeProfit)
		fmt.Printf("  Score: %.2f | RR: %.2f | Risk: $%.2f (%.1f pips)\n",
			sel.Score, sel.RR, sel.Risk.RiskUSD, sel.Risk.SLPips)
		fmt.Printf("  %s\n", sel.Intent.Rationale)
	}

	if result.ExecutionResult != nil {
		er := result.ExecutionResult
		fmt.Printf("\nExecuted: order %s (%s) %+.0f units\n", er.OrderID, er.Status, er.Units)
	}

	return nil
}
