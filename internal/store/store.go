package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/tipwarden/internal/platform/database"
	"github.com/valinor-ai/tipwarden/internal/sentinel"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

const tipColumns = `id, status, title, content, source, url, author, score, posted_at,
	category, metadata, scan, added_at, approved_at, rejected_at, rejection_reason`

// Store handles tip persistence.
// Methods accept database.Querier so they can run inside database.WithTx.
type Store struct{}

// NewStore creates a new tip store.
func NewStore() *Store {
	return &Store{}
}

// AddPending queues scanned tips for review. Tips whose URL was already
// seen, or whose ID is already stored, are skipped. Every URL is marked
// seen. It returns the number of tips added.
func (s *Store) AddPending(ctx context.Context, q database.Querier, items []sentinel.Scanned) (int, error) {
	for _, it := range items {
		if err := it.Tip.Validate(); err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidTip, it.Tip.ID, err)
		}
	}

	added := 0
	for _, it := range items {
		metadata, err := marshalMetadata(it.Tip.Metadata)
		if err != nil {
			return added, err
		}
		scan, err := sentinel.MarshalScan(it.Scan)
		if err != nil {
			return added, fmt.Errorf("marshaling scan: %w", err)
		}

		var seen bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM seen_urls WHERE url = $1)`, it.Tip.URL).Scan(&seen); err != nil {
			return added, fmt.Errorf("checking seen url: %w", err)
		}
		if seen {
			continue
		}

		tag, err := q.Exec(ctx,
			`INSERT INTO tips (id, status, title, content, source, url, author, score, posted_at, category, metadata, scan)
			 VALUES ($1, 'pending', $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (id) DO NOTHING`,
			it.Tip.ID, it.Tip.Title, it.Tip.Content, string(it.Tip.Source), it.Tip.URL, it.Tip.Author,
			it.Tip.Score, nullTime(it.Tip.Date), string(it.Tip.Category), metadata, scan,
		)
		if err != nil {
			return added, fmt.Errorf("inserting tip %s: %w", it.Tip.ID, err)
		}
		added += int(tag.RowsAffected())

		if err := s.MarkSeen(ctx, q, it.Tip.URL, it.Tip.ID); err != nil {
			return added, err
		}
	}
	return added, nil
}

// MarkSeen records url so the harvesters never queue it again.
func (s *Store) MarkSeen(ctx context.Context, q database.Querier, url, tipID string) error {
	if url == "" {
		return fmt.Errorf("%w: %v", ErrInvalidTip, tip.ErrURLEmpty)
	}
	_, err := q.Exec(ctx,
		`INSERT INTO seen_urls (url, tip_id) VALUES ($1, $2) ON CONFLICT (url) DO NOTHING`,
		url, tipID,
	)
	if err != nil {
		return fmt.Errorf("marking url seen: %w", err)
	}
	return nil
}

// SeenURLs returns the subset of urls that were already seen.
func (s *Store) SeenURLs(ctx context.Context, q database.Querier, urls []string) (map[string]bool, error) {
	seen := make(map[string]bool)
	if len(urls) == 0 {
		return seen, nil
	}

	rows, err := q.Query(ctx, `SELECT url FROM seen_urls WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, fmt.Errorf("querying seen urls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scanning seen url: %w", err)
		}
		seen[url] = true
	}
	return seen, rows.Err()
}

// ListPending returns pending tips oldest first. An empty category lists
// every category; limit <= 0 means no limit.
func (s *Store) ListPending(ctx context.Context, q database.Querier, category tip.Category, limit int) ([]Tip, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTip, tip.ErrInvalidCategory)
	}
	return s.list(ctx, q,
		`SELECT `+tipColumns+` FROM tips
		 WHERE status = 'pending' AND ($1::text = '' OR category = $1)
		 ORDER BY added_at, id
		 LIMIT $2`,
		string(category), limitOrAll(limit),
	)
}

// ListApproved returns approved tips, most recently approved first.
func (s *Store) ListApproved(ctx context.Context, q database.Querier, limit int) ([]Tip, error) {
	return s.list(ctx, q,
		`SELECT `+tipColumns+` FROM tips
		 WHERE status = 'approved'
		 ORDER BY approved_at DESC, id
		 LIMIT $1`,
		limitOrAll(limit),
	)
}

// Get retrieves a tip by ID in any status.
func (s *Store) Get(ctx context.Context, q database.Querier, id string) (*Tip, error) {
	if id == "" {
		return nil, ErrIDEmpty
	}
	t, err := scanTip(q.QueryRow(ctx, `SELECT `+tipColumns+` FROM tips WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting tip: %w", err)
	}
	return t, nil
}

// Approve moves a pending tip to approved.
func (s *Store) Approve(ctx context.Context, q database.Querier, id string) (*Tip, error) {
	if id == "" {
		return nil, ErrIDEmpty
	}
	return s.transition(ctx, q, id,
		`UPDATE tips SET status = 'approved', approved_at = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+tipColumns,
		id,
	)
}

// Reject moves a pending tip to rejected with reason.
func (s *Store) Reject(ctx context.Context, q database.Querier, id, reason string) (*Tip, error) {
	if id == "" {
		return nil, ErrIDEmpty
	}
	if reason == "" {
		reason = "Manual rejection"
	}
	return s.transition(ctx, q, id,
		`UPDATE tips SET status = 'rejected', rejected_at = now(), rejection_reason = $2
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+tipColumns,
		id, reason,
	)
}

// RemoveApproved deletes an approved tip. Its URL stays seen.
func (s *Store) RemoveApproved(ctx context.Context, q database.Querier, id string) error {
	if id == "" {
		return ErrIDEmpty
	}
	tag, err := q.Exec(ctx, `DELETE FROM tips WHERE id = $1 AND status = 'approved'`, id)
	if err != nil {
		return fmt.Errorf("removing tip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts tips per status, seen URLs, and approved tips per category.
func (s *Store) Stats(ctx context.Context, q database.Querier) (*Stats, error) {
	st := &Stats{ByCategory: make(map[tip.Category]int)}

	rows, err := q.Query(ctx, `SELECT status, category, count(*) FROM tips GROUP BY status, category`)
	if err != nil {
		return nil, fmt.Errorf("counting tips: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, category string
		var n int
		if err := rows.Scan(&status, &category, &n); err != nil {
			return nil, fmt.Errorf("scanning tip counts: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			st.Pending += n
		case StatusApproved:
			st.Approved += n
			st.ByCategory[tip.Category(category)] += n
		case StatusRejected:
			st.Rejected += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tip counts: %w", err)
	}

	if err := q.QueryRow(ctx, `SELECT count(*) FROM seen_urls`).Scan(&st.SeenURLs); err != nil {
		return nil, fmt.Errorf("counting seen urls: %w", err)
	}
	return st, nil
}

func (s *Store) transition(ctx context.Context, q database.Querier, id, sql string, args ...any) (*Tip, error) {
	t, err := scanTip(q.QueryRow(ctx, sql, args...))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating tip: %w", err)
	}

	// No row changed: either the tip is missing or it already left pending.
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tips WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking tip: %w", err)
	}
	if exists {
		return nil, ErrNotPending
	}
	return nil, ErrNotFound
}

func (s *Store) list(ctx context.Context, q database.Querier, sql string, args ...any) ([]Tip, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tips: %w", err)
	}
	defer rows.Close()

	var result []Tip
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tip: %w", err)
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func scanTip(row pgx.Row) (*Tip, error) {
	var (
		t                   Tip
		source, category    string
		status              string
		postedAt            *time.Time
		metadata, scanBytes []byte
	)
	err := row.Scan(
		&t.ID, &status, &t.Title, &t.Content, &source, &t.URL, &t.Author, &t.Score, &postedAt,
		&category, &metadata, &scanBytes, &t.AddedAt, &t.ApprovedAt, &t.RejectedAt, &t.RejectionReason,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Source = tip.Source(source)
	t.Category = tip.Category(category)
	if postedAt != nil {
		t.Date = *postedAt
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		if len(t.Metadata) == 0 {
			t.Metadata = nil
		}
	}
	if len(scanBytes) > 0 {
		if err := json.Unmarshal(scanBytes, &t.Scan); err != nil {
			return nil, fmt.Errorf("decoding scan: %w", err)
		}
	}
	return &t, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return b, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// limitOrAll maps a non-positive limit to Postgres' LIMIT ALL (NULL).
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
