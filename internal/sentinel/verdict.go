package sentinel

import (
	"regexp"
	"strings"
)

// Verdict is the parsed oracle opinion.
type Verdict struct {
	Level   RiskLevel
	Summary string
}

var (
	strictLevelLine = regexp.MustCompile(`(?m)^\s*RISK_LEVEL:\s*\[?\s*(SAFE|WARNING|DANGER)\s*\]?\s*$`)
	summaryLine     = regexp.MustCompile(`(?m)^\s*SUMMARY:\s*(.+?)\s*$`)
)

// ParseVerdict extracts a risk level from free-form oracle text.
//
// In permissive mode the literal tokens DANGER, WARNING and SAFE are searched
// anywhere in the text, in that order of precedence. Strict mode only accepts
// a line of the form "RISK_LEVEL: <LEVEL>". ok is false when no level is found.
func ParseVerdict(text string, strict bool) (v Verdict, ok bool) {
	if m := summaryLine.FindStringSubmatch(text); m != nil {
		v.Summary = m[1]
	}

	var token string
	if strict {
		m := strictLevelLine.FindStringSubmatch(text)
		if m == nil {
			return v, false
		}
		token = m[1]
	} else {
		switch {
		case strings.Contains(text, "DANGER"):
			token = "DANGER"
		case strings.Contains(text, "WARNING"):
			token = "WARNING"
		case strings.Contains(text, "SAFE"):
			token = "SAFE"
		default:
			return v, false
		}
	}

	switch token {
	case "DANGER":
		v.Level = RiskDanger
	case "WARNING":
		v.Level = RiskWarning
	default:
		v.Level = RiskSafe
	}
	return v, true
}

// flag renders the verdict as a scan flag.
func (v Verdict) flag() string {
	level := strings.ToUpper(v.Level.String())
	if v.Summary == "" {
		return FlagOracle + level
	}
	return FlagOracle + level + " - " + v.Summary
}
