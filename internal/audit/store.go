package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valinor-ai/tipwarden/internal/platform/database"
)

// Record is a persisted review event.
type Record struct {
	ID        uuid.UUID       `json:"id"`
	TipID     *string         `json:"tip_id"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store handles review event persistence.
type Store struct{}

// NewStore creates an audit Store.
func NewStore() *Store {
	return &Store{}
}

// InsertBatch writes a batch of events to the database.
func (s *Store) InsertBatch(ctx context.Context, db database.Querier, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	sql, args, err := buildBatchInsert(events)
	if err != nil {
		return fmt.Errorf("building batch insert: %w", err)
	}
	_, err = db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("inserting review events: %w", err)
	}
	return nil
}

// buildBatchInsert constructs a multi-row INSERT statement.
func buildBatchInsert(events []Event) (string, []any, error) {
	const cols = "(tip_id, actor, action, metadata, source)"
	var placeholders []string
	var args []any

	for i, e := range events {
		base := i * 5
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))

		var metaJSON []byte
		var err error
		if e.Metadata != nil {
			metaJSON, err = json.Marshal(e.Metadata)
			if err != nil {
				return "", nil, fmt.Errorf("marshaling metadata: %w", err)
			}
		}

		var tipID *string
		if e.TipID != "" {
			tipID = &e.TipID
		}

		args = append(args, tipID, e.Actor, e.Action, metaJSON, e.Source)
	}

	sql := fmt.Sprintf("INSERT INTO review_events %s VALUES %s", cols, strings.Join(placeholders, ", "))
	return sql, args, nil
}

// ListEventsParams defines filters for querying review events.
type ListEventsParams struct {
	TipID  *string
	Action *string
	Actor  *string
	After  *time.Time
	Limit  int
}

// List returns events newest first.
func (s *Store) List(ctx context.Context, db database.Querier, p ListEventsParams) ([]Record, error) {
	sql, args := buildListQuery(p)
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying review events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.TipID, &r.Actor, &r.Action, &r.Metadata, &r.Source, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning review event: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating review events: %w", err)
	}
	return out, nil
}

// buildListQuery constructs a parameterized SELECT for review events.
func buildListQuery(p ListEventsParams) (string, []any) {
	var conditions []string
	var args []any
	argN := 1

	if p.TipID != nil {
		conditions = append(conditions, fmt.Sprintf("tip_id = $%d", argN))
		args = append(args, *p.TipID)
		argN++
	}
	if p.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argN))
		args = append(args, *p.Action)
		argN++
	}
	if p.Actor != nil {
		conditions = append(conditions, fmt.Sprintf("actor = $%d", argN))
		args = append(args, *p.Actor)
		argN++
	}
	if p.After != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argN))
		args = append(args, *p.After)
		argN++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	sql := fmt.Sprintf(
		`SELECT id, tip_id, actor, action, metadata, source, created_at
		FROM review_events
		%s
		ORDER BY created_at DESC
		LIMIT $%d`,
		where, argN,
	)
	args = append(args, limit)

	return sql, args
}
