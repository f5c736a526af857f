package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/valinor-ai/tipwarden/internal/audit"
	"github.com/valinor-ai/tipwarden/internal/export"
	"github.com/valinor-ai/tipwarden/internal/platform/database"
	"github.com/valinor-ai/tipwarden/internal/sentinel"
	"github.com/valinor-ai/tipwarden/internal/store"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

// memStore is an in-memory TipStore.
type memStore struct {
	mu   sync.Mutex
	tips map[string]*store.Tip
	seen map[string]string
	seq  int
}

func newMemStore() *memStore {
	return &memStore{tips: map[string]*store.Tip{}, seen: map[string]string{}}
}

func (m *memStore) AddPending(_ context.Context, _ database.Querier, items []sentinel.Scanned) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, it := range items {
		if _, ok := m.seen[it.Tip.URL]; ok {
			continue
		}
		m.seen[it.Tip.URL] = it.Tip.ID
		if _, ok := m.tips[it.Tip.ID]; ok {
			continue
		}
		m.seq++
		m.tips[it.Tip.ID] = &store.Tip{
			Record:  it.Tip,
			Status:  store.StatusPending,
			Scan:    it.Scan,
			AddedAt: time.Unix(int64(m.seq), 0),
		}
		added++
	}
	return added, nil
}

func (m *memStore) MarkSeen(_ context.Context, _ database.Querier, url, tipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[url]; !ok {
		m.seen[url] = tipID
	}
	return nil
}

func (m *memStore) SeenURLs(_ context.Context, _ database.Querier, urls []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, u := range urls {
		if _, ok := m.seen[u]; ok {
			out[u] = true
		}
	}
	return out, nil
}

func (m *memStore) byStatus(status store.Status) []store.Tip {
	var out []store.Tip
	for _, t := range m.tips {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out
}

func (m *memStore) ListPending(_ context.Context, _ database.Querier, category tip.Category, limit int) ([]store.Tip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Tip
	for _, t := range m.byStatus(store.StatusPending) {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListApproved(_ context.Context, _ database.Querier, limit int) ([]store.Tip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.byStatus(store.StatusApproved)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, _ database.Querier, id string) (*store.Tip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		return nil, store.ErrIDEmpty
	}
	t, ok := m.tips[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) transition(id string, to store.Status, reason string) (*store.Tip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		return nil, store.ErrIDEmpty
	}
	t, ok := m.tips[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if t.Status != store.StatusPending {
		return nil, store.ErrNotPending
	}
	now := time.Now()
	t.Status = to
	if to == store.StatusApproved {
		t.ApprovedAt = &now
	} else {
		if reason == "" {
			reason = "Manual rejection"
		}
		t.RejectedAt = &now
		t.RejectionReason = &reason
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) Approve(_ context.Context, _ database.Querier, id string) (*store.Tip, error) {
	return m.transition(id, store.StatusApproved, "")
}

func (m *memStore) Reject(_ context.Context, _ database.Querier, id, reason string) (*store.Tip, error) {
	return m.transition(id, store.StatusRejected, reason)
}

func (m *memStore) RemoveApproved(_ context.Context, _ database.Querier, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tips[id]
	if !ok || t.Status != store.StatusApproved {
		return store.ErrNotFound
	}
	delete(m.tips, id)
	return nil
}

func (m *memStore) Stats(_ context.Context, _ database.Querier) (*store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &store.Stats{ByCategory: map[tip.Category]int{}, SeenURLs: len(m.seen)}
	for _, t := range m.tips {
		switch t.Status {
		case store.StatusPending:
			st.Pending++
		case store.StatusApproved:
			st.Approved++
			st.ByCategory[t.Category]++
		case store.StatusRejected:
			st.Rejected++
		}
	}
	return st, nil
}

// recordingAudit keeps every logged event.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

// stubExporter records what it was asked to export.
type stubExporter struct {
	got []store.Tip
}

func (s *stubExporter) Export(_ context.Context, tips []store.Tip) (*export.Result, error) {
	s.got = tips
	return &export.Result{Dir: "/tmp/out", Tips: len(tips), Digests: []string{}}, nil
}
