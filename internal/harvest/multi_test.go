package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

type stubHarvester struct {
	name string
	recs []tip.Record
	err  error
}

func (s stubHarvester) Name() string { return s.name }

func (s stubHarvester) Harvest(context.Context) ([]tip.Record, error) {
	return s.recs, s.err
}

func TestMulti_MergesInOrderAndDedupes(t *testing.T) {
	m := NewMulti(nil,
		stubHarvester{name: "a", recs: []tip.Record{{ID: "1", Title: "from a"}, {ID: "2"}}},
		stubHarvester{name: "broken", err: errors.New("boom")},
		stubHarvester{name: "b", recs: []tip.Record{{ID: "1", Title: "from b"}, {ID: "3"}}},
	)

	recs, err := m.Harvest(t.Context())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "1", recs[0].ID)
	assert.Equal(t, "from a", recs[0].Title)
	assert.Equal(t, "2", recs[1].ID)
	assert.Equal(t, "3", recs[2].ID)
}

func TestMulti_CancelledContext(t *testing.T) {
	m := NewMulti(nil, stubHarvester{name: "a", recs: []tip.Record{{ID: "1"}}})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := m.Harvest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
