package tip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

func TestFingerprint_StableAndShort(t *testing.T) {
	a := tip.Fingerprint("/r/ClaudeAI/comments/abc123/my_tip/")
	b := tip.Fingerprint("/r/ClaudeAI/comments/abc123/my_tip/")
	c := tip.Fingerprint("/r/ClaudeAI/comments/xyz789/other/")

	assert.Len(t, a, 12)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		want    tip.Category
	}{
		{"claude md wins", "My CLAUDE.md setup", "use hooks and workflows", tip.CategoryClaudeMD},
		{"hook keyword", "Pre-commit hook", "runs lint", tip.CategoryHook},
		{"shebang", "Formatter", "#!/bin/bash\nprettier .", tip.CategoryHook},
		{"workflow", "My review process", "step by step", tip.CategoryWorkflow},
		{"command flag", "Useful flag", "pass --resume", tip.CategoryCommand},
		{"fallback", "Be specific", "ask for small diffs", tip.CategoryPromptPattern},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tip.Categorize(tc.title, tc.content))
		})
	}
}

func TestRecord_Validate(t *testing.T) {
	valid := tip.Record{
		ID:       "abc123def456",
		URL:      "https://reddit.com/r/ClaudeAI/comments/abc",
		Source:   tip.SourceReddit,
		Category: tip.CategoryWorkflow,
	}
	assert.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.ErrorIs(t, noID.Validate(), tip.ErrIDEmpty)

	badSource := valid
	badSource.Source = "hackernews"
	assert.ErrorIs(t, badSource.Validate(), tip.ErrInvalidSource)

	badCategory := valid
	badCategory.Category = "misc"
	assert.ErrorIs(t, badCategory.Validate(), tip.ErrInvalidCategory)

	noURL := valid
	noURL.URL = ""
	assert.ErrorIs(t, noURL.Validate(), tip.ErrURLEmpty)
}
