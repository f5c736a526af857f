package sentinel

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/valinor-ai/tipwarden/internal/tip"
)

// TriageConfig configures the triage engine.
type TriageConfig struct {
	OracleEnabled bool // consult the oracle for tips rules did not reject
	StrictVerdict bool // only accept an anchored RISK_LEVEL line from the oracle
	Concurrency   int  // max concurrent oracle calls per batch, default: 4
}

// Triager combines rule tables with an optional oracle. It holds no state
// across calls and is safe for concurrent use.
type Triager struct {
	blocklist RuleTable
	injection RuleTable
	warnings  RuleTable
	oracle    Oracle // may be nil if the oracle is disabled
	cfg       TriageConfig
}

// NewTriager creates a triage engine with the built-in rule tables.
// Pass nil for oracle to triage on rules alone.
func NewTriager(cfg TriageConfig, oracle Oracle) *Triager {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Triager{
		blocklist: BlocklistRules(),
		injection: InjectionRules(),
		warnings:  WarningRules(),
		oracle:    oracle,
		cfg:       cfg,
	}
}

// Triage classifies a single tip.
func (t *Triager) Triage(ctx context.Context, rec tip.Record) ScanRecord {
	scan := t.evaluateRules(rec.Content)
	if t.shouldConsult(rec, scan) {
		scan = t.applyOracle(scan, t.consult(ctx, rec))
	}
	return finalize(scan)
}

// evaluateRules runs blocklist, injection and warning tables in that order.
// Every table is evaluated even after a danger match so all flags accumulate.
func (t *Triager) evaluateRules(content string) ScanRecord {
	scan := ScanRecord{RiskLevel: RiskSafe}

	if matched := Evaluate(content, t.blocklist); len(matched) > 0 {
		scan.Flags = appendFlags(scan.Flags, FlagBlocklist, matched)
		scan.RiskLevel = scan.RiskLevel.Escalate(RiskDanger)
	}

	if matched := Evaluate(content, t.injection); len(matched) > 0 {
		scan.Flags = appendFlags(scan.Flags, FlagInjection, matched)
		scan.RiskLevel = scan.RiskLevel.Escalate(RiskDanger)
	}

	if matched := Evaluate(content, t.warnings); len(matched) > 0 {
		scan.Flags = appendFlags(scan.Flags, FlagWarning, matched)
		scan.RiskLevel = scan.RiskLevel.Escalate(RiskWarning)
	}

	return finalize(scan)
}

// shouldConsult gates the oracle call. Rejected tips and empty content
// skip the cost.
func (t *Triager) shouldConsult(rec tip.Record, scan ScanRecord) bool {
	if t.oracle == nil || !t.cfg.OracleEnabled {
		return false
	}
	if strings.TrimSpace(rec.Content) == "" {
		return false
	}
	return scan.Recommendation != AutoReject
}

// oracleAnswer is the outcome of one oracle call. analysis is nil when the
// oracle could not be reached.
type oracleAnswer struct {
	analysis *string
}

func (t *Triager) consult(ctx context.Context, rec tip.Record) oracleAnswer {
	text, err := t.oracle.Classify(ctx, OracleRequest{Title: rec.Title, Content: rec.Content})
	if err != nil {
		if !errors.Is(err, ErrOracleUnavailable) {
			slog.Warn("sentinel oracle call failed", "tip_id", rec.ID, "error", err)
		}
		return oracleAnswer{}
	}
	return oracleAnswer{analysis: &text}
}

// applyOracle folds an oracle answer into the scan. The oracle can only
// escalate risk.
func (t *Triager) applyOracle(scan ScanRecord, ans oracleAnswer) ScanRecord {
	if ans.analysis == nil {
		return scan
	}
	scan.OracleAnalysis = ans.analysis

	// Only a verdict above the current level contributes a flag.
	v, ok := ParseVerdict(*ans.analysis, t.cfg.StrictVerdict)
	if !ok || v.Level <= scan.RiskLevel {
		return scan
	}
	scan.Flags = append(scan.Flags, v.flag())
	scan.RiskLevel = scan.RiskLevel.Escalate(v.Level)
	return scan
}

func finalize(scan ScanRecord) ScanRecord {
	scan.Recommendation = scan.RiskLevel.Recommendation()
	scan.Safe = scan.RiskLevel == RiskSafe
	return scan
}

func appendFlags(flags []string, prefix string, descriptions []string) []string {
	for _, d := range descriptions {
		flags = append(flags, prefix+d)
	}
	return flags
}
