package sentinel

import (
	"context"

	"github.com/valinor-ai/tipwarden/internal/tip"
	"golang.org/x/sync/errgroup"
)

// ScanBatch triages every record and partitions the results by
// recommendation. Rule evaluation runs in input order; oracle calls for the
// tips that pass the gate run concurrently, bounded by cfg.Concurrency. A
// failed oracle call only degrades its own tip to a rules-only decision.
//
// If ctx is canceled before the batch completes, ScanBatch returns ctx.Err()
// and an empty result.
func (t *Triager) ScanBatch(ctx context.Context, records []tip.Record) (BatchResult, error) {
	scans := make([]ScanRecord, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return BatchResult{}, err
		}
		scans[i] = t.evaluateRules(rec.Content)
	}

	answers := make([]oracleAnswer, len(records))
	g := new(errgroup.Group)
	g.SetLimit(t.cfg.Concurrency)
	for i, rec := range records {
		if !t.shouldConsult(rec, scans[i]) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			answers[i] = t.consult(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for i, rec := range records {
		scan := finalize(t.applyOracle(scans[i], answers[i]))
		result.add(Scanned{Tip: rec, Scan: scan})
	}
	return result, nil
}
