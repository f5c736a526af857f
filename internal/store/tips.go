package store

import (
	"errors"
	"time"

	"github.com/valinor-ai/tipwarden/internal/sentinel"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

var (
	ErrNotFound   = errors.New("tip not found")
	ErrIDEmpty    = errors.New("tip id is required")
	ErrInvalidTip = errors.New("invalid tip")
	ErrNotPending = errors.New("tip is not pending review")
)

// Status is the review state of a stored tip.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Tip is a stored tip with its scan record and review history.
type Tip struct {
	tip.Record
	Status          Status              `json:"status"`
	Scan            sentinel.ScanRecord `json:"scan"`
	AddedAt         time.Time           `json:"added_at"`
	ApprovedAt      *time.Time          `json:"approved_at,omitempty"`
	RejectedAt      *time.Time          `json:"rejected_at,omitempty"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
}

// Stats summarizes the review queue.
type Stats struct {
	Pending    int                  `json:"pending"`
	Approved   int                  `json:"approved"`
	Rejected   int                  `json:"rejected"`
	SeenURLs   int                  `json:"seen_urls"`
	ByCategory map[tip.Category]int `json:"approved_by_category"`
}
