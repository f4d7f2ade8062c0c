package consolidate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/refs"
)

// Change is one pending file write or deletion.
type Change struct {
	File        string `json:"file"`
	Action      Action `json:"action"`
	Created     bool   `json:"created,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
	LinesBefore int    `json:"lines_before"`
	LinesAfter  int    `json:"lines_after"`
	Content     string `json:"-"`
}

type baseFile struct {
	text   string
	exists bool
}

// Workspace is the in-memory view a strategy edits while applying a plan.
// Reads see earlier pending writes; nothing reaches disk until the
// Executor commits Changes.
type Workspace struct {
	root    string
	corpus  *corpus.Corpus
	base    map[string]baseFile
	pending map[string]*Change
	order   []string
}

// NewWorkspace creates a workspace over a loaded corpus. Files outside
// the corpus are read from disk under root on first use.
func NewWorkspace(root string, c *corpus.Corpus) *Workspace {
	return &Workspace{
		root:    root,
		corpus:  c,
		base:    map[string]baseFile{},
		pending: map[string]*Change{},
	}
}

func (w *Workspace) original(rel string) baseFile {
	if b, ok := w.base[rel]; ok {
		return b
	}
	var b baseFile
	if d, ok := w.corpus.Get(rel); ok {
		b = baseFile{text: d.Raw, exists: true}
	} else if data, err := os.ReadFile(filepath.Join(w.root, filepath.FromSlash(rel))); err == nil {
		b = baseFile{text: string(data), exists: true}
	} else if !errors.Is(err, fs.ErrNotExist) {
		// Unreadable but present: treat as existing so it is never clobbered.
		b = baseFile{exists: true}
	}
	w.base[rel] = b
	return b
}

// Read returns the current text of rel.
func (w *Workspace) Read(rel string) (string, error) {
	if ch, ok := w.pending[rel]; ok {
		if ch.Deleted {
			return "", fmt.Errorf("consolidate: %s: %w", rel, fs.ErrNotExist)
		}
		return ch.Content, nil
	}
	b := w.original(rel)
	if !b.exists {
		return "", fmt.Errorf("consolidate: %s: %w", rel, fs.ErrNotExist)
	}
	return b.text, nil
}

// Exists reports whether rel exists once pending changes are applied.
func (w *Workspace) Exists(rel string) bool {
	if ch, ok := w.pending[rel]; ok {
		return !ch.Deleted
	}
	return w.original(rel).exists
}

// Write stages new content for rel.
func (w *Workspace) Write(rel, content string, action Action) {
	ch := w.change(rel, action)
	ch.Deleted = false
	ch.Content = content
}

// Remove stages the deletion of rel.
func (w *Workspace) Remove(rel string, action Action) {
	ch := w.change(rel, action)
	ch.Deleted = true
	ch.Content = ""
}

func (w *Workspace) change(rel string, action Action) *Change {
	ch, ok := w.pending[rel]
	if !ok {
		ch = &Change{File: rel}
		w.pending[rel] = ch
		w.order = append(w.order, rel)
	}
	ch.Action = action
	return ch
}

// Changes lists the staged changes in first-touched order. Writes that
// leave a file byte-identical are dropped.
func (w *Workspace) Changes() []Change {
	out := []Change{}
	for _, rel := range w.order {
		ch := *w.pending[rel]
		b := w.original(rel)
		switch {
		case ch.Deleted && !b.exists:
			continue
		case !ch.Deleted && b.exists && ch.Content == b.text:
			continue
		}
		ch.Created = !b.exists
		if b.exists {
			ch.LinesBefore = countLines(b.text)
		}
		if !ch.Deleted {
			ch.LinesAfter = countLines(ch.Content)
		}
		out = append(out, ch)
	}
	return out
}

// Sources returns every corpus document plus files created in the
// workspace, with pending content, skipping deleted files.
func (w *Workspace) Sources() []refs.Source {
	var out []refs.Source
	seen := map[string]bool{}
	for _, p := range w.corpus.Paths() {
		seen[p] = true
		if text, err := w.Read(p); err == nil {
			out = append(out, refs.Source{Path: p, Text: text})
		}
	}
	for _, p := range w.order {
		if seen[p] || !corpus.IsMarkdown(p) {
			continue
		}
		if text, err := w.Read(p); err == nil {
			out = append(out, refs.Source{Path: p, Text: text})
		}
	}
	return out
}
