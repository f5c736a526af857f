package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/valinor-ai/tipwarden/internal/audit"
	"github.com/valinor-ai/tipwarden/internal/export"
	"github.com/valinor-ai/tipwarden/internal/platform/database"
	"github.com/valinor-ai/tipwarden/internal/sentinel"
	"github.com/valinor-ai/tipwarden/internal/store"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

var (
	ErrInvalidRecord  = errors.New("invalid tip record")
	ErrExportDisabled = errors.New("export is not configured")
)

// TipStore is the persistence the review queue needs. *store.Store
// satisfies it.
type TipStore interface {
	AddPending(ctx context.Context, q database.Querier, items []sentinel.Scanned) (int, error)
	MarkSeen(ctx context.Context, q database.Querier, url, tipID string) error
	SeenURLs(ctx context.Context, q database.Querier, urls []string) (map[string]bool, error)
	ListPending(ctx context.Context, q database.Querier, category tip.Category, limit int) ([]store.Tip, error)
	ListApproved(ctx context.Context, q database.Querier, limit int) ([]store.Tip, error)
	Get(ctx context.Context, q database.Querier, id string) (*store.Tip, error)
	Approve(ctx context.Context, q database.Querier, id string) (*store.Tip, error)
	Reject(ctx context.Context, q database.Querier, id, reason string) (*store.Tip, error)
	RemoveApproved(ctx context.Context, q database.Querier, id string) error
	Stats(ctx context.Context, q database.Querier) (*store.Stats, error)
}

// Scanner triages a batch of tips. *sentinel.Triager satisfies it.
type Scanner interface {
	ScanBatch(ctx context.Context, records []tip.Record) (sentinel.BatchResult, error)
}

// Exporter writes approved tips somewhere reviewers can pick them up.
type Exporter interface {
	Export(ctx context.Context, tips []store.Tip) (*export.Result, error)
}

// RejectedTip describes a tip the safety scan rejected on ingest.
type RejectedTip struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Flags []string `json:"flags"`
}

// IngestSummary reports what happened to an ingested batch.
type IngestSummary struct {
	Received    int           `json:"received"`
	Duplicates  int           `json:"duplicates"`
	AlreadySeen int           `json:"already_seen"`
	AutoApprove int           `json:"auto_approve"`
	Review      int           `json:"review"`
	AutoReject  int           `json:"auto_reject"`
	Added       int           `json:"added"`
	Rejected    []RejectedTip `json:"rejected"`
}

// Service runs the review queue: ingest with safety triage, reviewer
// decisions, and export of approved tips.
type Service struct {
	db       database.Querier
	tips     TipStore
	scanner  Scanner
	exporter Exporter
	audit    audit.Logger
	logger   *slog.Logger
}

// NewService wires the review queue. exporter may be nil to disable export;
// auditLog may be nil to disable auditing.
func NewService(db database.Querier, tips TipStore, scanner Scanner, exporter Exporter, auditLog audit.Logger, logger *slog.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		tips:     tips,
		scanner:  scanner,
		exporter: exporter,
		audit:    auditLog,
		logger:   logger,
	}
}

// Ingest triages records and queues the ones that pass. Records already
// seen are skipped before scanning. Auto-rejected URLs are marked seen so
// they are never fetched again.
func (s *Service) Ingest(ctx context.Context, records []tip.Record, source string) (*IngestSummary, error) {
	sum := &IngestSummary{Received: len(records), Rejected: []RejectedTip{}}

	fresh := make([]tip.Record, 0, len(records))
	byID := make(map[string]bool, len(records))
	for i, rec := range records {
		rec = normalize(rec)
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		if byID[rec.ID] {
			sum.Duplicates++
			continue
		}
		byID[rec.ID] = true
		fresh = append(fresh, rec)
	}

	urls := make([]string, 0, len(fresh))
	for _, rec := range fresh {
		urls = append(urls, rec.URL)
	}
	seen, err := s.tips.SeenURLs(ctx, s.db, urls)
	if err != nil {
		return nil, fmt.Errorf("checking seen urls: %w", err)
	}
	unseen := fresh[:0]
	for _, rec := range fresh {
		if seen[rec.URL] {
			sum.AlreadySeen++
			continue
		}
		unseen = append(unseen, rec)
	}

	result, err := s.scanner.ScanBatch(ctx, unseen)
	if err != nil {
		return nil, fmt.Errorf("scanning batch: %w", err)
	}
	sum.AutoApprove = len(result.AutoApprove)
	sum.Review = len(result.Review)
	sum.AutoReject = len(result.AutoReject)

	queued := make([]sentinel.Scanned, 0, sum.AutoApprove+sum.Review)
	queued = append(queued, result.AutoApprove...)
	queued = append(queued, result.Review...)

	err = s.inTx(ctx, func(ctx context.Context, q database.Querier) error {
		for _, r := range result.AutoReject {
			if err := s.tips.MarkSeen(ctx, q, r.Tip.URL, r.Tip.ID); err != nil {
				return err
			}
		}
		if len(queued) == 0 {
			return nil
		}
		added, err := s.tips.AddPending(ctx, q, queued)
		if err != nil {
			return fmt.Errorf("queueing tips: %w", err)
		}
		sum.Added = added
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range result.AutoReject {
		flags := r.Scan.Flags
		if flags == nil {
			flags = []string{}
		}
		sum.Rejected = append(sum.Rejected, RejectedTip{ID: r.Tip.ID, Title: r.Tip.Title, URL: r.Tip.URL, Flags: flags})
		s.audit.Log(ctx, audit.Event{
			TipID:  r.Tip.ID,
			Actor:  audit.ActorSystem,
			Action: audit.ActionTipAutoRejected,
			Metadata: map[string]any{
				audit.MetadataRiskLevel: r.Scan.RiskLevel.String(),
				audit.MetadataFlags:     flags,
			},
			Source: source,
		})
	}

	s.audit.Log(ctx, audit.Event{
		Actor:  audit.ActorFromContext(ctx),
		Action: audit.ActionTipIngested,
		Metadata: map[string]any{
			audit.MetadataCount: sum.Received,
			"added":             sum.Added,
			"auto_rejected":     sum.AutoReject,
			"already_seen":      sum.AlreadySeen,
		},
		Source: source,
	})
	s.logger.Info("ingested tips",
		"source", source,
		"received", sum.Received,
		"added", sum.Added,
		"review", sum.Review,
		"auto_rejected", sum.AutoReject,
		"already_seen", sum.AlreadySeen,
	)
	return sum, nil
}

// inTx runs fn in a transaction when the database can begin one, and
// directly against s.db otherwise.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, q database.Querier) error) error {
	if b, ok := s.db.(database.TxBeginner); ok {
		return database.WithTx(ctx, b, fn)
	}
	return fn(ctx, s.db)
}

func (s *Service) ListPending(ctx context.Context, category tip.Category, limit int) ([]store.Tip, error) {
	return s.tips.ListPending(ctx, s.db, category, limit)
}

func (s *Service) ListApproved(ctx context.Context, limit int) ([]store.Tip, error) {
	return s.tips.ListApproved(ctx, s.db, limit)
}

func (s *Service) Get(ctx context.Context, id string) (*store.Tip, error) {
	return s.tips.Get(ctx, s.db, id)
}

func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.tips.Stats(ctx, s.db)
}

// Approve accepts a pending tip on behalf of the caller in ctx.
func (s *Service) Approve(ctx context.Context, id string) (*store.Tip, error) {
	t, err := s.tips.Approve(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Event{
		TipID:  id,
		Actor:  audit.ActorFromContext(ctx),
		Action: audit.ActionTipApproved,
		Metadata: map[string]any{
			audit.MetadataRiskLevel:      t.Scan.RiskLevel.String(),
			audit.MetadataRecommendation: string(t.Scan.Recommendation),
		},
		Source: audit.SourceAPI,
	})
	return t, nil
}

// Reject declines a pending tip. An empty reason becomes "Manual rejection".
func (s *Service) Reject(ctx context.Context, id, reason string) (*store.Tip, error) {
	t, err := s.tips.Reject(ctx, s.db, id, reason)
	if err != nil {
		return nil, err
	}
	recorded := reason
	if t.RejectionReason != nil {
		recorded = *t.RejectionReason
	}
	s.audit.Log(ctx, audit.Event{
		TipID:    id,
		Actor:    audit.ActorFromContext(ctx),
		Action:   audit.ActionTipRejected,
		Metadata: map[string]any{audit.MetadataReason: recorded},
		Source:   audit.SourceAPI,
	})
	return t, nil
}

// Remove deletes an approved tip.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.tips.RemoveApproved(ctx, s.db, id); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Event{
		TipID:  id,
		Actor:  audit.ActorFromContext(ctx),
		Action: audit.ActionTipRemoved,
		Source: audit.SourceAPI,
	})
	return nil
}

// Export writes every approved tip through the configured exporter.
func (s *Service) Export(ctx context.Context) (*export.Result, error) {
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}
	tips, err := s.tips.ListApproved(ctx, s.db, 0)
	if err != nil {
		return nil, err
	}
	res, err := s.exporter.Export(ctx, tips)
	if err != nil {
		return nil, fmt.Errorf("exporting tips: %w", err)
	}
	s.audit.Log(ctx, audit.Event{
		Actor:    audit.ActorFromContext(ctx),
		Action:   audit.ActionTipExported,
		Metadata: map[string]any{audit.MetadataCount: res.Tips, "dir": res.Dir},
		Source:   audit.SourceAPI,
	})
	s.logger.Info("exported approved tips", "count", res.Tips, "dir", res.Dir)
	return res, nil
}

// normalize derives the ID from the URL, discarding any caller-supplied
// value, and fills an empty category.
func normalize(rec tip.Record) tip.Record {
	if rec.URL != "" {
		rec.ID = tip.Fingerprint(rec.URL)
	}
	if rec.Category == "" {
		rec.Category = tip.Categorize(rec.Title, rec.Content)
	}
	return rec
}
