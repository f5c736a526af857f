package sentinel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict_Permissive(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		ok      bool
		level   RiskLevel
		summary string
	}{
		{"danger", "RISK_LEVEL: DANGER\nSUMMARY: pipes a remote script to sh", true, RiskDanger, "pipes a remote script to sh"},
		{"warning", "RISK_LEVEL: WARNING\nSUMMARY: installs packages", true, RiskWarning, "installs packages"},
		{"safe", "RISK_LEVEL: SAFE\nSUMMARY: harmless", true, RiskSafe, "harmless"},
		{"bracketed", "RISK_LEVEL: [DANGER]", true, RiskDanger, ""},
		{"danger beats warning", "RISK_LEVEL: WARNING\nSUMMARY: no DANGER here", true, RiskDanger, "no DANGER here"},
		{"no token", "I cannot evaluate this content.", false, RiskSafe, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := ParseVerdict(tc.text, false)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.level, v.Level)
			}
			assert.Equal(t, tc.summary, v.Summary)
		})
	}
}

func TestParseVerdict_StrictIgnoresProse(t *testing.T) {
	v, ok := ParseVerdict("RISK_LEVEL: WARNING\nSUMMARY: no DANGER here", true)
	assert.True(t, ok)
	assert.Equal(t, RiskWarning, v.Level)

	_, ok = ParseVerdict("This looks like DANGER to me.", true)
	assert.False(t, ok)

	v, ok = ParseVerdict("  RISK_LEVEL: [SAFE]  \nSUMMARY: fine", true)
	assert.True(t, ok)
	assert.Equal(t, RiskSafe, v.Level)
}

func TestVerdictFlag(t *testing.T) {
	assert.Equal(t, "oracle: DANGER", Verdict{Level: RiskDanger}.flag())
	assert.Equal(t, "oracle: WARNING - uses sudo", Verdict{Level: RiskWarning, Summary: "uses sudo"}.flag())
}

func TestRiskLevel_Escalate(t *testing.T) {
	assert.Equal(t, RiskWarning, RiskSafe.Escalate(RiskWarning))
	assert.Equal(t, RiskDanger, RiskDanger.Escalate(RiskWarning))
	assert.Equal(t, RiskDanger, RiskDanger.Escalate(RiskSafe))
	assert.Equal(t, RiskWarning, RiskWarning.Escalate(RiskSafe))
}

func TestRiskLevel_TextRoundTrip(t *testing.T) {
	var l RiskLevel
	assert.NoError(t, l.UnmarshalText([]byte("danger")))
	assert.Equal(t, RiskDanger, l)
	assert.Error(t, l.UnmarshalText([]byte("critical")))
}
