package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valinor-ai/tipwarden/internal/store"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

var (
	ErrDirEmpty   = errors.New("export directory is required")
	ErrUnsafeName = errors.New("export file name escapes the export directory")
)

// Result reports what an export wrote.
type Result struct {
	Dir     string   `json:"dir"`
	Tips    int      `json:"tips"`
	Digests []string `json:"digests"`
}

// Exporter writes approved tips to a directory: one file per tip plus a
// digest per category under skills/.
type Exporter struct {
	dir  string
	opts Options
}

func NewExporter(dir string, opts Options) *Exporter {
	return &Exporter{dir: dir, opts: opts}
}

// Export writes tips. Existing files with the same names are replaced.
func (e *Exporter) Export(ctx context.Context, tips []store.Tip) (*Result, error) {
	if e.dir == "" {
		return nil, ErrDirEmpty
	}
	skillsDir := filepath.Join(e.dir, "skills")
	if err := os.MkdirAll(skillsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	byFile := make(map[string][]store.Tip)
	for _, t := range tips {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := Markdown(t, e.opts)
		if err != nil {
			return nil, fmt.Errorf("rendering tip %s: %w", t.ID, err)
		}
		name := fmt.Sprintf("%s_%s.md", t.Category, t.ID)
		if !safeName(name) {
			return nil, fmt.Errorf("tip %q: %w", t.ID, ErrUnsafeName)
		}
		if err := writeAtomic(filepath.Join(e.dir, name), []byte(doc)); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}

		file := CategoryFile(t.Category)
		byFile[file] = append(byFile[file], t)
	}

	res := &Result{Dir: e.dir, Tips: len(tips), Digests: []string{}}
	for file, group := range byFile {
		content := digestHeader(digestCategory(group))
		for _, t := range group {
			content += digestEntry(t)
		}
		if err := writeAtomic(filepath.Join(skillsDir, file), []byte(content)); err != nil {
			return nil, fmt.Errorf("writing digest %s: %w", file, err)
		}
		res.Digests = append(res.Digests, filepath.Join("skills", file))
	}
	sort.Strings(res.Digests)

	return res, nil
}

// digestCategory picks the header category for a digest group. Unknown
// categories all land in misc.md.
func digestCategory(group []store.Tip) tip.Category {
	c := group[0].Category
	if CategoryFile(c) == "misc.md" {
		return "misc"
	}
	return c
}

// safeName reports whether name is a plain file name inside the export
// directory.
func safeName(name string) bool {
	return filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

// writeAtomic writes data to a temp file in the destination directory and
// renames it into place.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
