package audit

import (
	"context"

	"github.com/valinor-ai/tipwarden/internal/auth"
)

// Event represents a single auditable action on a tip.
type Event struct {
	TipID    string // empty for batch-level events
	Actor    string // reviewer name or "system"
	Action   string // e.g. "tip.approved", "tip.auto_rejected"
	Metadata map[string]any
	Source   string // "api", "harvest", "system"
}

const (
	ActionTipIngested     = "tip.ingested"
	ActionTipAutoRejected = "tip.auto_rejected"
	ActionTipApproved     = "tip.approved"
	ActionTipRejected     = "tip.rejected"
	ActionTipRemoved      = "tip.removed"
	ActionTipExported     = "tip.exported"
)

const (
	SourceAPI     = "api"
	SourceHarvest = "harvest"
	SourceSystem  = "system"
)

const ActorSystem = "system"

const (
	MetadataRiskLevel      = "risk_level"
	MetadataFlags          = "flags"
	MetadataRecommendation = "recommendation"
	MetadataReason         = "reason"
	MetadataRequestID      = "request_id"
	MetadataCount          = "count"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// ActorFromContext names the authenticated reviewer, or "system" when the
// request carries no identity.
func ActorFromContext(ctx context.Context) string {
	identity := auth.GetIdentity(ctx)
	if identity == nil {
		return ActorSystem
	}
	return identity.Actor()
}
