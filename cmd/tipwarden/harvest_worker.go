package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/valinor-ai/tipwarden/internal/audit"
	"github.com/valinor-ai/tipwarden/internal/harvest"
	"github.com/valinor-ai/tipwarden/internal/platform/config"
	"github.com/valinor-ai/tipwarden/internal/review"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

type ingester interface {
	Ingest(ctx context.Context, records []tip.Record, source string) (*review.IngestSummary, error)
}

// harvestWorker periodically harvests and feeds the review queue.
type harvestWorker struct {
	harvester harvest.Harvester
	ingester  ingester
	interval  time.Duration
}

// buildHarvestWorker returns nil when there is nothing to harvest or the
// interval is not positive.
func buildHarvestWorker(h harvest.Harvester, ing ingester, cfg config.HarvestConfig) *harvestWorker {
	if h == nil || ing == nil || cfg.IntervalMins <= 0 {
		return nil
	}
	return &harvestWorker{
		harvester: h,
		ingester:  ing,
		interval:  time.Duration(cfg.IntervalMins) * time.Minute,
	}
}

func (w *harvestWorker) Run(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *harvestWorker) tick(ctx context.Context) {
	if err := w.sweep(ctx); err != nil && ctx.Err() == nil {
		slog.Error("harvest sweep failed", "error", err)
	}
}

func (w *harvestWorker) sweep(ctx context.Context) error {
	records, err := w.harvester.Harvest(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		slog.Info("harvest found nothing new")
		return nil
	}

	summary, err := w.ingester.Ingest(ctx, records, audit.SourceHarvest)
	if err != nil {
		return err
	}
	slog.Info("harvest ingested",
		"received", summary.Received,
		"added", summary.Added,
		"auto_rejected", summary.AutoReject,
		"already_seen", summary.AlreadySeen,
	)
	return nil
}
