package sentinel

import (
	"encoding/json"
	"fmt"

	"github.com/valinor-ai/tipwarden/internal/tip"
)

// RiskLevel is the ordered risk scale: safe < warning < danger.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskWarning
	RiskDanger
)

func (l RiskLevel) String() string {
	switch l {
	case RiskSafe:
		return "safe"
	case RiskWarning:
		return "warning"
	case RiskDanger:
		return "danger"
	default:
		return fmt.Sprintf("risk(%d)", int(l))
	}
}

// Escalate returns the higher of l and to. Risk never moves backward.
func (l RiskLevel) Escalate(to RiskLevel) RiskLevel {
	if to > l {
		return to
	}
	return l
}

// Recommendation returns the disposition implied by the risk level.
func (l RiskLevel) Recommendation() Recommendation {
	switch l {
	case RiskDanger:
		return AutoReject
	case RiskWarning:
		return Review
	default:
		return AutoApprove
	}
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "safe":
		*l = RiskSafe
	case "warning":
		*l = RiskWarning
	case "danger":
		*l = RiskDanger
	default:
		return fmt.Errorf("unknown risk level %q", string(b))
	}
	return nil
}

// Recommendation is the triage disposition for a tip.
type Recommendation string

const (
	AutoApprove Recommendation = "auto-approve"
	Review      Recommendation = "review"
	AutoReject  Recommendation = "auto-reject"
)

// Flag prefixes mark which detector produced a flag.
const (
	FlagBlocklist = "blocklist: "
	FlagInjection = "injection: "
	FlagWarning   = "warning: "
	FlagOracle    = "oracle: "
)

// ScanRecord is the triage outcome for one tip. It is attached to the tip,
// never merged into it.
type ScanRecord struct {
	RiskLevel      RiskLevel      `json:"risk_level"`
	Flags          []string       `json:"flags"`
	OracleAnalysis *string        `json:"oracle_analysis,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	Safe           bool           `json:"safe"`
}

// Scanned pairs a tip with its scan record.
type Scanned struct {
	Tip  tip.Record `json:"tip"`
	Scan ScanRecord `json:"scan"`
}

// BatchResult partitions a batch by recommendation. Each bucket keeps the
// relative input order.
type BatchResult struct {
	AutoApprove []Scanned `json:"auto_approve"`
	Review      []Scanned `json:"review"`
	AutoReject  []Scanned `json:"auto_reject"`
}

// Len returns the total number of scanned tips across all buckets.
func (b BatchResult) Len() int {
	return len(b.AutoApprove) + len(b.Review) + len(b.AutoReject)
}

func (b *BatchResult) add(s Scanned) {
	switch s.Scan.Recommendation {
	case AutoReject:
		b.AutoReject = append(b.AutoReject, s)
	case Review:
		b.Review = append(b.Review, s)
	default:
		b.AutoApprove = append(b.AutoApprove, s)
	}
}

// MarshalScan encodes a scan record for storage.
func MarshalScan(r ScanRecord) ([]byte, error) {
	if r.Flags == nil {
		r.Flags = []string{}
	}
	return json.Marshal(r)
}
