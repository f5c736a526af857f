package harvest

import (
	"context"
	"log/slog"

	"github.com/valinor-ai/tipwarden/internal/tip"
	"golang.org/x/sync/errgroup"
)

// Multi runs several harvesters concurrently and merges their output in
// harvester order, keeping the first record seen for each ID.
type Multi struct {
	harvesters []Harvester
	logger     *slog.Logger
}

func NewMulti(logger *slog.Logger, hs ...Harvester) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{harvesters: hs, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

// Harvest never fails because of a single source. It returns an error only
// when ctx is done.
func (m *Multi) Harvest(ctx context.Context) ([]tip.Record, error) {
	results := make([][]tip.Record, len(m.harvesters))

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range m.harvesters {
		g.Go(func() error {
			recs, err := h.Harvest(gctx)
			if err != nil {
				m.logger.Warn("harvester failed", "harvester", h.Name(), "error", err)
				return nil
			}
			m.logger.Info("harvester finished", "harvester", h.Name(), "records", len(recs))
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []tip.Record
	seen := make(map[string]bool)
	for _, recs := range results {
		for _, rec := range recs {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			out = append(out, rec)
		}
	}
	return out, nil
}
