package review

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/valinor-ai/tipwarden/internal/audit"
	"github.com/valinor-ai/tipwarden/internal/export"
	"github.com/valinor-ai/tipwarden/internal/store"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxIngestBytes   = 4 << 20
)

// Handler serves the review queue HTTP API.
type Handler struct {
	svc *Service
}

// NewHandler creates a review handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// HandleIngest triages and queues a batch of tips.
// POST /api/v1/tips/ingest
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBytes)

	var records []tip.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON array of tips"})
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no tips to ingest"})
		return
	}

	sum, err := h.svc.Ingest(r.Context(), records, audit.SourceAPI)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleList lists tips by status.
// GET /api/v1/tips?status=pending|approved&category=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	var (
		tips []store.Tip
		err  error
	)
	switch status := q.Get("status"); status {
	case "", string(store.StatusPending):
		tips, err = h.svc.ListPending(r.Context(), tip.Category(q.Get("category")), limit)
	case string(store.StatusApproved):
		tips, err = h.svc.ListApproved(r.Context(), limit)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be pending or approved"})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tips == nil {
		tips = []store.Tip{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tips": tips, "count": len(tips)})
}

// HandleGet returns one tip with its scan record.
// GET /api/v1/tips/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleApprove approves a pending tip.
// POST /api/v1/tips/{id}/approve
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	t, err := h.svc.Approve(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleReject rejects a pending tip.
// POST /api/v1/tips/{id}/reject
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<10)

	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body, chunked or not, means no reason.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	t, err := h.svc.Reject(r.Context(), id, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleRemove deletes an approved tip.
// DELETE /api/v1/tips/{id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	if err := h.svc.Remove(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats summarizes the queue.
// GET /api/v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleExport writes approved tips to the export directory.
// POST /api/v1/export
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Export(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tip not found"})
	case errors.Is(err, store.ErrNotPending):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidRecord),
		errors.Is(err, store.ErrIDEmpty),
		errors.Is(err, store.ErrInvalidTip):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrExportDisabled), errors.Is(err, export.ErrDirEmpty):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "export is not configured"})
	default:
		slog.Error("review request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
