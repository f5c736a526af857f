package tip

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Source identifies the content origin a tip was harvested from.
type Source string

const (
	SourceReddit Source = "reddit"
	SourceGitHub Source = "github"
)

func (s Source) Valid() bool {
	return s == SourceReddit || s == SourceGitHub
}

// Category is the fixed classification taxonomy for tips.
type Category string

const (
	CategoryClaudeMD      Category = "claude-md"
	CategoryHook          Category = "hook"
	CategoryWorkflow      Category = "workflow"
	CategoryCommand       Category = "command"
	CategoryPromptPattern Category = "prompt-pattern"
)

// Categories lists every category in taxonomy order.
func Categories() []Category {
	return []Category{
		CategoryClaudeMD,
		CategoryHook,
		CategoryWorkflow,
		CategoryCommand,
		CategoryPromptPattern,
	}
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

var (
	ErrIDEmpty         = errors.New("tip id is required")
	ErrURLEmpty        = errors.New("tip url is required")
	ErrInvalidSource   = errors.New("tip source is invalid")
	ErrInvalidCategory = errors.New("tip category is invalid")
)

// Record is a harvested tip awaiting triage. Records are treated as
// immutable once the fetch stage produced them.
type Record struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Source   Source         `json:"source"`
	URL      string         `json:"url"`
	Author   string         `json:"author"`
	Score    int            `json:"score"`
	Date     time.Time      `json:"date"`
	Category Category       `json:"category"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the fields the store relies on. Content may be empty.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return ErrIDEmpty
	case r.URL == "":
		return ErrURLEmpty
	case !r.Source.Valid():
		return ErrInvalidSource
	case !r.Category.Valid():
		return ErrInvalidCategory
	}
	return nil
}

// Fingerprint derives a stable 12-character ID from the origin URL, so
// re-fetching the same post or file always yields the same ID.
func Fingerprint(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}

// Categorize assigns a category from title and content keywords.
// The first matching rule wins.
func Categorize(title, content string) Category {
	text := strings.ToLower(title + " " + content)
	switch {
	case strings.Contains(text, "claude.md"):
		return CategoryClaudeMD
	case strings.Contains(text, "hook") || strings.Contains(content, "#!/"):
		return CategoryHook
	case containsAny(text, "workflow", "process", "pipeline"):
		return CategoryWorkflow
	case containsAny(text, "command", "flag", "--", "cli"):
		return CategoryCommand
	default:
		return CategoryPromptPattern
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
