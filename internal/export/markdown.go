package export

import (
	"fmt"
	"strings"

	"github.com/valinor-ai/tipwarden/internal/store"
	"github.com/valinor-ai/tipwarden/internal/tip"
	"gopkg.in/yaml.v3"
)

// Options controls how tips are rendered.
type Options struct {
	IncludeMetadata bool
}

// frontMatter is the YAML header of an exported tip file.
type frontMatter struct {
	ID       string   `yaml:"id"`
	Source   string   `yaml:"source"`
	URL      string   `yaml:"url"`
	Author   string   `yaml:"author,omitempty"`
	Category string   `yaml:"category"`
	Score    int      `yaml:"score"`
	Risk     string   `yaml:"risk"`
	Flags    []string `yaml:"flags,omitempty"`
	Approved string   `yaml:"approved,omitempty"`
}

// Markdown renders one tip as a standalone markdown document.
func Markdown(t store.Tip, opts Options) (string, error) {
	var b strings.Builder

	if opts.IncludeMetadata {
		fm := frontMatter{
			ID:       t.ID,
			Source:   string(t.Source),
			URL:      t.URL,
			Author:   t.Author,
			Category: string(t.Category),
			Score:    t.Score,
			Risk:     t.Scan.RiskLevel.String(),
			Flags:    t.Scan.Flags,
		}
		if t.ApprovedAt != nil {
			fm.Approved = t.ApprovedAt.UTC().Format("2006-01-02")
		}
		out, err := yaml.Marshal(fm)
		if err != nil {
			return "", fmt.Errorf("marshaling front matter: %w", err)
		}
		b.WriteString("---\n")
		b.Write(out)
		b.WriteString("---\n\n")
	}

	fmt.Fprintf(&b, "# %s\n\n---\n\n%s\n", t.Title, strings.TrimRight(t.Content, "\n"))
	return b.String(), nil
}

var categoryFiles = map[tip.Category]string{
	tip.CategoryWorkflow:      "workflows.md",
	tip.CategoryPromptPattern: "prompts.md",
	tip.CategoryClaudeMD:      "claude-md-examples.md",
	tip.CategoryCommand:       "commands.md",
	tip.CategoryHook:          "hooks.md",
}

// CategoryFile names the digest file that collects tips of category.
func CategoryFile(category tip.Category) string {
	if name, ok := categoryFiles[category]; ok {
		return name
	}
	return "misc.md"
}

// digestHeader opens a category digest, e.g. "# Prompt Pattern Skills".
func digestHeader(category tip.Category) string {
	words := strings.Split(string(category), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	name := strings.Join(words, " ")
	if name == "" {
		name = "Misc"
	}
	return "# " + name + " Skills\n\nCurated tips from the community.\n\n---\n\n"
}

// digestEntry renders a tip as a section of a category digest.
func digestEntry(t store.Tip) string {
	var b strings.Builder

	title := t.Title
	if r := []rune(title); len(r) > 80 {
		title = string(r[:80])
	}
	added := ""
	if t.ApprovedAt != nil {
		added = t.ApprovedAt.UTC().Format("2006-01-02")
	}

	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "> Source: [%s](%s)\n", t.Source, t.URL)
	fmt.Fprintf(&b, "> Author: %s | Score: %d | Added: %s\n\n", t.Author, t.Score, added)

	if t.Category == tip.CategoryClaudeMD {
		fmt.Fprintf(&b, "```markdown\n%s\n```\n", strings.TrimRight(t.Content, "\n"))
	} else {
		fmt.Fprintf(&b, "%s\n", strings.TrimRight(t.Content, "\n"))
	}

	b.WriteString("\n---\n\n")
	return b.String()
}
