package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valinor-ai/tipwarden/internal/platform/database"
)

// Handler serves review event query endpoints.
type Handler struct {
	db    database.Querier
	store *Store
}

// NewHandler creates an audit query handler.
func NewHandler(db database.Querier) *Handler {
	return &Handler{db: db, store: NewStore()}
}

// HandleListEvents returns review events newest first.
// GET /api/v1/events?limit=50&tip_id=<id>&action=<action>&after=<RFC3339>
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := ListEventsParams{Limit: 50}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			params.Limit = n
		}
	}
	if raw := q.Get("tip_id"); raw != "" {
		params.TipID = &raw
	}
	if raw := q.Get("action"); raw != "" {
		params.Action = &raw
	}
	if raw := q.Get("after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": "after must be RFC3339"})
			return
		}
		params.After = &t
	}

	if h.db == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []any{}, "count": 0})
		return
	}

	events, err := h.store.List(r.Context(), h.db, params)
	if err != nil {
		slog.Error("listing review events failed", "error", err)
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if events == nil {
		events = []Record{}
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
