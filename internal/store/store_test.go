package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tipwarden/internal/sentinel"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

func TestNewStore(t *testing.T) {
	s := NewStore()
	require.NotNil(t, s)
}

func TestAddPendingValidation(t *testing.T) {
	s := NewStore()

	tests := []struct {
		name string
		rec  tip.Record
	}{
		{"missing id", tip.Record{URL: "https://x", Source: tip.SourceReddit, Category: tip.CategoryHook}},
		{"missing url", tip.Record{ID: "abc", Source: tip.SourceReddit, Category: tip.CategoryHook}},
		{"bad source", tip.Record{ID: "abc", URL: "https://x", Source: "hn", Category: tip.CategoryHook}},
		{"bad category", tip.Record{ID: "abc", URL: "https://x", Source: tip.SourceGitHub, Category: "misc"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// A nil querier proves validation happens before any query.
			n, err := s.AddPending(context.Background(), nil, []sentinel.Scanned{{Tip: tc.rec}})
			assert.ErrorIs(t, err, ErrInvalidTip)
			assert.Zero(t, n)
		})
	}
}

func TestIDRequired(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Get(ctx, nil, "")
	assert.ErrorIs(t, err, ErrIDEmpty)

	_, err = s.Approve(ctx, nil, "")
	assert.ErrorIs(t, err, ErrIDEmpty)

	_, err = s.Reject(ctx, nil, "", "spam")
	assert.ErrorIs(t, err, ErrIDEmpty)

	assert.ErrorIs(t, s.RemoveApproved(ctx, nil, ""), ErrIDEmpty)
}

func TestListPendingRejectsUnknownCategory(t *testing.T) {
	_, err := NewStore().ListPending(context.Background(), nil, "misc", 10)
	assert.ErrorIs(t, err, ErrInvalidTip)
}

func TestMarkSeenRequiresURL(t *testing.T) {
	err := NewStore().MarkSeen(context.Background(), nil, "", "abc")
	assert.ErrorIs(t, err, ErrInvalidTip)
}

func TestSeenURLsEmptyInput(t *testing.T) {
	seen, err := NewStore().SeenURLs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestLimitOrAll(t *testing.T) {
	assert.Nil(t, limitOrAll(0))
	assert.Nil(t, limitOrAll(-5))
	require.NotNil(t, limitOrAll(20))
	assert.Equal(t, 20, *limitOrAll(20))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusApproved.Valid())
	assert.True(t, StatusRejected.Valid())
	assert.False(t, Status("archived").Valid())
}
