package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voyager/internal/broker"
	"voyager/internal/indicator"
	"voyager/internal/risk"
	"voyager/internal/scoring"
	"voyager/internal/strategy"
	"voyager/pkg/model"
)

// CycleStatus is the terminal state of one scan cycle
type CycleStatus string

const (
	StatusNoTrade  CycleStatus = "NO_TRADE"
	StatusReady    CycleStatus = "READY"
	StatusExecuted CycleStatus = "EXECUTED"
)

// Cycle-level reason codes
const (
	CodeStrategyNotFound    = "ACTIVE_STRATEGY_NOT_FOUND"
	CodeDataUnavailable     = "DATA_UNAVAILABLE"
	CodeRiskCheckFailed     = "RISK_CHECK_FAILED"
	CodeScoringFilterFailed = "SCORING_FILTER_FAILED"
	CodeMaxConcurrent       = "MAX_CONCURRENT_TRADES"
	CodeNoCandidates        = "NO_CANDIDATES"
)

// PairStatus is the externally visible outcome record for one scanned pair
type PairStatus struct {
	Pair       string             `json:"pair"`
	Decision   strategy.Decision  `json:"decision"`
	Score      *float64           `json:"score"`
	RR         float64            `json:"rr"`
	Spread     float64            `json:"spread"`
	Rejected   bool               `json:"rejected"`
	ReasonCode string             `json:"reason_code,omitempty"`
	Reasons    []string           `json:"reasons,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Candidate is the working record for a pair that survived
// strategy, risk and scoring. It lives for one cycle only.
type Candidate struct {
	Pair    string               `json:"pair"`
	Intent  strategy.TradeIntent `json:"intent"`
	Score   float64              `json:"score"`
	RR      float64              `json:"rr"`
	Spread  float64              `json:"spread"`
	Context *model.MarketContext `json:"-"`
	Risk    risk.Result          `json:"risk"`
}

// CycleResult is the externally observable result of one scan cycle
type CycleResult struct {
	CycleID            string                  `json:"cycle_id"`
	Time               time.Time               `json:"time"`
	Status             CycleStatus             `json:"status"`
	ReasonCode         string                  `json:"reason_code"`
	Reason             string                  `json:"reason"`
	Executed           bool                    `json:"executed"`
	ActiveStrategyID   string                  `json:"active_strategy_id"`
	Candidates         []Candidate             `json:"candidates"`
	RejectedCandidates []PairStatus            `json:"rejected_candidates"`
	ScannedPairs       []PairStatus            `json:"scanned_pairs"`
	SelectedTrade      *Candidate              `json:"selected_trade,omitempty"`
	RiskCheck          *risk.Result            `json:"risk_check,omitempty"`
	Intent             *strategy.TradeIntent   `json:"intent,omitempty"`
	MarketContext      *model.MarketContext    `json:"market_context,omitempty"`
	ExecutionResult    *broker.ExecutionResult `json:"execution_result,omitempty"`
	Score              *float64                `json:"score,omitempty"`
	AIDecision         interface{}             `json:"ai_decision,omitempty"`
}

// Settings are the per-cycle inputs read from the configuration source
type Settings struct {
	ActiveStrategyID    string
	Params              strategy.Params
	Watchlist           []string
	MaxConcurrentTrades int
}

// SettingsSource supplies fresh settings at the start of each cycle.
// Writes happen out of band; the scanner only reads.
type SettingsSource interface {
	ScanSettings() (Settings, error)
}

// StatusStore holds the most recent cycle outcome for external polling.
// Last-write-wins; write failures must never abort a cycle.
type StatusStore interface {
	SetLastCycle(result *CycleResult) error
	LastCycle() *CycleResult
}

// AuditSink receives structured per-cycle and per-pair records.
// Append-only and best-effort.
type AuditSink interface {
	RecordCycle(result *CycleResult) error
}

// ProgressCallback is called after each pair is evaluated
type ProgressCallback func(scanned, total int)

// Options tune a single cycle
type Options struct {
	// Pair restricts the cycle to a single explicitly requested pair
	Pair string

	// Execute submits the selected candidate; otherwise the cycle is a
	// dry run ending in READY
	Execute bool

	Progress ProgressCallback
}

// Scanner orchestrates one scan cycle: per pair it builds market
// context, invokes the active strategy, applies risk checks and scoring,
// then picks the best surviving candidate and optionally executes it.
//
// Pairs are evaluated sequentially in watchlist order. Evaluations are
// independent and could be fetched in parallel as a pure throughput
// optimization; order only matters on exact score ties, which break
// lexically by pair.
type Scanner struct {
	marketData broker.MarketData
	executor   broker.Executor
	settings   SettingsSource
	riskEngine *risk.Engine
	scorer     *scoring.Engine
	status     StatusStore
	audit      AuditSink

	// cycleMu serializes cycles so overlapping manual and scheduled runs
	// cannot race on the shared status write
	cycleMu sync.Mutex
}

// New creates a scanner. Status and audit may be nil, in which case the
// corresponding emission is skipped.
func New(md broker.MarketData, ex broker.Executor, src SettingsSource,
	riskEngine *risk.Engine, scorer *scoring.Engine, status StatusStore, audit AuditSink) *Scanner {
	return &Scanner{
		marketData: md,
		executor:   ex,
		settings:   src,
		riskEngine: riskEngine,
		scorer:     scorer,
		status:     status,
		audit:      audit,
	}
}

// Run executes one full scan cycle
func (s *Scanner) Run(ctx context.Context, opts Options) (*CycleResult, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	result := &CycleResult{
		CycleID:            uuid.NewString(),
		Time:               time.Now().UTC(),
		Candidates:         []Candidate{},
		RejectedCandidates: []PairStatus{},
		ScannedPairs:       []PairStatus{},
	}

	settings, err := s.settings.ScanSettings()
	if err != nil {
		return nil, fmt.Errorf("loading scan settings: %w", err)
	}
	result.ActiveStrategyID = settings.ActiveStrategyID

	plugin, err := strategy.Get(settings.ActiveStrategyID)
	if err != nil {
		result.Status = StatusNoTrade
		result.ReasonCode = CodeStrategyNotFound
		result.Reason = err.Error()
		s.finish(result)
		return result, nil
	}

	watchlist := settings.Watchlist
	if opts.Pair != "" {
		watchlist = []string{opts.Pair}
	}

	for i, pair := range watchlist {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		status := s.evaluatePair(ctx, pair, plugin, settings, result)
		result.ScannedPairs = append(result.ScannedPairs, status)
		if status.Rejected {
			result.RejectedCandidates = append(result.RejectedCandidates, status)
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(watchlist))
		}
	}

	if len(result.Candidates) == 0 {
		result.Status = StatusNoTrade
		result.ReasonCode, result.Reason = representativeRejection(result.RejectedCandidates)
		s.finish(result)
		return result, nil
	}

	// Best candidate first; exact score ties break lexically by pair
	sort.SliceStable(result.Candidates, func(i, j int) bool {
		if result.Candidates[i].Score != result.Candidates[j].Score {
			return result.Candidates[i].Score > result.Candidates[j].Score
		}
		return result.Candidates[i].Pair < result.Candidates[j].Pair
	})

	selected := result.Candidates[0]
	result.SelectedTrade = &selected
	result.Intent = &selected.Intent
	result.MarketContext = selected.Context
	result.RiskCheck = &selected.Risk
	result.Score = &selected.Score

	if len(selected.Context.Account.OpenTrades) >= settings.MaxConcurrentTrades {
		result.Status = StatusNoTrade
		result.ReasonCode = CodeMaxConcurrent
		result.Reason = fmt.Sprintf("open trade count at the %d concurrent limit", settings.MaxConcurrentTrades)
		s.finish(result)
		return result, nil
	}

	if !opts.Execute {
		result.Status = StatusReady
		result.ReasonCode = string(selected.Intent.Decision)
		result.Reason = fmt.Sprintf("dry run: %s %s ready at score %.2f",
			selected.Intent.Decision, selected.Pair, selected.Score)
		s.finish(result)
		return result, nil
	}

	units := s.riskEngine.Units(selected.Intent)
	execResult, err := s.executor.Execute(ctx, selected.Pair, selected.Intent, units)
	if err != nil {
		return nil, fmt.Errorf("executing %s on %s: %w", selected.Intent.Decision, selected.Pair, err)
	}

	result.Status = StatusExecuted
	result.Executed = true
	result.ExecutionResult = execResult
	result.ReasonCode = string(selected.Intent.Decision)
	result.Reason = fmt.Sprintf("executed %s %s at score %.2f",
		selected.Intent.Decision, selected.Pair, selected.Score)
	s.finish(result)
	return result, nil
}

// evaluatePair runs the fetch -> context -> strategy -> risk -> scoring
// pipeline for one pair and records the outcome on the cycle result
func (s *Scanner) evaluatePair(ctx context.Context, pair string, plugin strategy.Plugin,
	settings Settings, result *CycleResult) PairStatus {

	raw, err := s.marketData.Fetch(ctx, pair, plugin.RequiredTimeframes())
	if err != nil {
		if !errors.Is(err, broker.ErrUnavailable) {
			log.Printf("[SCANNER] %s: fetch error treated as unavailable: %v", pair, err)
		}
		return PairStatus{
			Pair:       pair,
			Decision:   strategy.DecisionNoTrade,
			Rejected:   true,
			ReasonCode: CodeDataUnavailable,
			Reasons:    []string{err.Error()},
		}
	}

	mctx := BuildContext(raw)
	intent := plugin.Evaluate(mctx, settings.Params)

	if intent.Decision == strategy.DecisionNoTrade {
		return PairStatus{
			Pair:       pair,
			Decision:   intent.Decision,
			Spread:     mctx.SpreadPips,
			Rejected:   true,
			ReasonCode: intent.ReasonCode,
			Reasons:    []string{intent.Rationale},
			Metrics:    intent.Metrics,
		}
	}

	riskResult := s.riskEngine.Check(mctx, intent)
	if !riskResult.Passed {
		return PairStatus{
			Pair:       pair,
			Decision:   intent.Decision,
			RR:         riskResult.RR,
			Spread:     mctx.SpreadPips,
			Rejected:   true,
			ReasonCode: CodeRiskCheckFailed,
			Reasons:    riskResult.Reasons,
			Metrics:    intent.Metrics,
		}
	}

	scoreResult := s.scorer.Calculate(intent, mctx)
	if !scoreResult.Passed {
		return PairStatus{
			Pair:       pair,
			Decision:   intent.Decision,
			RR:         scoreResult.RR,
			Spread:     mctx.SpreadPips,
			Rejected:   true,
			ReasonCode: CodeScoringFilterFailed,
			Reasons:    scoreResult.RejectionReasons,
			Metrics:    intent.Metrics,
		}
	}

	result.Candidates = append(result.Candidates, Candidate{
		Pair:    pair,
		Intent:  intent,
		Score:   scoreResult.Score,
		RR:      scoreResult.RR,
		Spread:  mctx.SpreadPips,
		Context: mctx,
		Risk:    riskResult,
	})

	score := scoreResult.Score
	return PairStatus{
		Pair:     pair,
		Decision: intent.Decision,
		Score:    &score,
		RR:       scoreResult.RR,
		Spread:   mctx.SpreadPips,
		Metrics:  intent.Metrics,
	}
}

// BuildContext assembles the immutable market context for one pair
func BuildContext(raw *model.RawMarketData) *model.MarketContext {
	return &model.MarketContext{
		Pair:       raw.Pair,
		Time:       raw.Time,
		Price:      raw.Price,
		SpreadPips: model.SpreadPips(raw.Pair, raw.Price),
		Candles:    raw.Candles,
		Indicators: indicator.Compute(raw.Candles),
		Account:    raw.Account,
	}
}

// finish emits the terminal cycle outcome to the status store and audit
// sink. Both are best-effort: a failed write is logged, never fatal.
func (s *Scanner) finish(result *CycleResult) {
	if s.status != nil {
		if err := s.status.SetLastCycle(result); err != nil {
			log.Printf("[SCANNER] Warning: status write failed: %v", err)
		}
	}
	if s.audit != nil {
		if err := s.audit.RecordCycle(result); err != nil {
			log.Printf("[SCANNER] Warning: audit write failed: %v", err)
		}
	}
	log.Printf("[SCANNER] Cycle %s: %s (%s) scanned=%d candidates=%d",
		result.CycleID[:8], result.Status, result.ReasonCode,
		len(result.ScannedPairs), len(result.Candidates))
}

// representativeRejection picks the first rejection as the cycle's top
// reason when no candidate survived
func representativeRejection(rejected []PairStatus) (code, reason string) {
	if len(rejected) == 0 {
		return CodeNoCandidates, "watchlist empty, nothing scanned"
	}
	first := rejected[0]
	reason = first.ReasonCode
	if len(first.Reasons) > 0 {
		reason = first.Reasons[0]
	}
	return first.ReasonCode, fmt.Sprintf("%s: %s", first.Pair, reason)
}
