package refs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HendryAvila/redoc/internal/fsutil"
)

// Move records that a file moved from one corpus path to another.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Update is one staged link rewrite.
type Update struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	OldLink string `json:"old_link"`
	NewLink string `json:"new_link"`
	Reason  string `json:"reason"`
}

// PlanUpdates finds every link affected by moves and stages its rewrite.
// A link is affected when it resolves to a moved file, or when it names
// the moved file's basename and points at something that does not exist.
// All moves share one scan of the sources. exists reports whether a
// resolved path exists; it is only consulted for the basename fallback.
func PlanUpdates(ctx context.Context, sources []Source, moves []Move, exists func(rel string) bool) ([]Update, error) {
	sorted := append([]Source(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	updates := []Update{}
	for _, s := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("refs: plan updates: %w", err)
		}
		for _, ref := range Extract(s.Path, s.Text) {
			if ref.File == "" {
				continue
			}
			for _, mv := range moves {
				if !affects(ref, mv, exists) {
					continue
				}
				newTarget := RelativeTarget(s.Path, mv.To)
				if ref.Fragment != "" {
					newTarget += "#" + ref.Fragment
				}
				newLink := replaceTarget(ref, newTarget)
				if newLink != ref.Original {
					updates = append(updates, Update{
						File:    s.Path,
						Line:    ref.Line,
						OldLink: ref.Original,
						NewLink: newLink,
						Reason:  fmt.Sprintf("%s moved to %s", mv.From, mv.To),
					})
				}
				break
			}
		}
	}
	return updates, nil
}

func affects(ref Reference, mv Move, exists func(string) bool) bool {
	if ref.Resolved == mv.From {
		return true
	}
	if path.Base(ref.File) != path.Base(mv.From) {
		return false
	}
	return exists != nil && !exists(ref.Resolved)
}

func replaceTarget(ref Reference, newTarget string) string {
	open := strings.Index(ref.Original, "](")
	if open < 0 {
		return ref.Original
	}
	i := strings.Index(ref.Original[open:], ref.Target)
	if i < 0 {
		return ref.Original
	}
	i += open
	return ref.Original[:i] + newTarget + ref.Original[i+len(ref.Target):]
}

// Rewrite applies the updates that belong to one file's text and returns
// the new text with the number of links rewritten. Each update replaces
// the first remaining occurrence of its old link on its line.
func Rewrite(text string, updates []Update) (string, int) {
	lines := strings.Split(text, "\n")
	applied := 0
	for _, u := range updates {
		i := u.Line - 1
		if i < 0 || i >= len(lines) || !strings.Contains(lines[i], u.OldLink) {
			continue
		}
		lines[i] = strings.Replace(lines[i], u.OldLink, u.NewLink, 1)
		applied++
	}
	return strings.Join(lines, "\n"), applied
}

// RebaseLinks rewrites the relative links of text written for a document
// at from so they still resolve when the text lives at to.
func RebaseLinks(text, from, to string) string {
	if path.Dir(from) == path.Dir(to) {
		return text
	}
	var updates []Update
	for _, ref := range Extract(from, text) {
		if ref.File == "" || strings.HasPrefix(ref.File, "/") {
			continue
		}
		target := RelativeTarget(to, ref.Resolved)
		if ref.Fragment != "" {
			target += "#" + ref.Fragment
		}
		if link := replaceTarget(ref, target); link != ref.Original {
			updates = append(updates, Update{Line: ref.Line, OldLink: ref.Original, NewLink: link})
		}
	}
	out, _ := Rewrite(text, updates)
	return out
}

// Affected lists the files touched by updates, in first-seen order.
func Affected(updates []Update) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range updates {
		if !seen[u.File] {
			seen[u.File] = true
			out = append(out, u.File)
		}
	}
	return out
}

// ApplyResult reports a batch rewrite.
type ApplyResult struct {
	FilesUpdated []string `json:"files_updated"`
	LinksUpdated int      `json:"links_updated"`
	Errors       []string `json:"errors,omitempty"`
}

// ApplyUpdates rewrites the files under root. Each file is read, changed
// and written back once, atomically, however many of its links move. A
// failing file is reported and the rest are still attempted.
func ApplyUpdates(ctx context.Context, root string, updates []Update) (*ApplyResult, error) {
	byFile := map[string][]Update{}
	for _, u := range updates {
		byFile[u.File] = append(byFile[u.File], u)
	}

	res := &ApplyResult{FilesUpdated: []string{}}
	for _, file := range Affected(updates) {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("refs: apply updates: %w", err)
		}
		abs := filepath.Join(root, filepath.FromSlash(file))
		data, err := os.ReadFile(abs)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		out, n := Rewrite(string(data), byFile[file])
		if n == 0 {
			continue
		}
		if err := fsutil.WriteFileAtomic(abs, []byte(out)); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		res.FilesUpdated = append(res.FilesUpdated, file)
		res.LinksUpdated += n
	}
	return res, nil
}
