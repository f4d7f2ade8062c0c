// Package corpus scans a documentation tree and loads each markdown file
// exactly once per analysis run.
//
// A Document is never mutated after Load. After a write the caller
// re-reads the file and gets a fresh Document.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/similarity"
)

// markdownExts are the extensions considered documentation.
var markdownExts = map[string]bool{
	".md":       true,
	".markdown": true,
}

// IsMarkdown reports whether a path has a documentation extension.
func IsMarkdown(p string) bool {
	return markdownExts[strings.ToLower(filepath.Ext(p))]
}

// Document is one markdown file of the corpus.
type Document struct {
	similarity.Profile

	// Path is slash-separated and relative to the corpus root.
	Path        string
	Raw         string
	Frontmatter map[string]any
	Lines       int
	Bytes       int
}

// LoadError records a file that could not be read.
type LoadError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Corpus is the set of documents loaded for one run, in scan order.
type Corpus struct {
	Root  string
	order []string
	docs  map[string]*Document
}

// New builds a corpus from already-loaded documents. Mostly for tests
// and for callers that hold text in memory.
func New(root string, docs ...*Document) *Corpus {
	c := &Corpus{Root: root, docs: make(map[string]*Document, len(docs))}
	for _, d := range docs {
		c.add(d)
	}
	return c
}

func (c *Corpus) add(d *Document) {
	if _, exists := c.docs[d.Path]; !exists {
		c.order = append(c.order, d.Path)
	}
	c.docs[d.Path] = d
}

// Get returns the document at a corpus-relative path.
func (c *Corpus) Get(path string) (*Document, bool) {
	d, ok := c.docs[ToSlash(path)]
	return d, ok
}

// Paths returns document paths in scan order.
func (c *Corpus) Paths() []string {
	return append([]string(nil), c.order...)
}

// Documents returns documents in scan order.
func (c *Corpus) Documents() []*Document {
	out := make([]*Document, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, c.docs[p])
	}
	return out
}

// Len is the number of loaded documents.
func (c *Corpus) Len() int { return len(c.order) }

// Abs resolves a corpus-relative path against the root.
func (c *Corpus) Abs(path string) string {
	return filepath.Join(c.Root, filepath.FromSlash(path))
}

// NewDocument builds a Document from raw text.
func NewDocument(path, raw string) *Document {
	path = ToSlash(path)
	meta, _ := SplitFrontmatter(raw)
	lines := 0
	if raw != "" {
		lines = strings.Count(raw, "\n")
		if !strings.HasSuffix(raw, "\n") {
			lines++
		}
	}
	return &Document{
		Profile:     similarity.NewProfile(path, raw),
		Path:        path,
		Raw:         raw,
		Frontmatter: meta,
		Lines:       lines,
		Bytes:       len(raw),
	}
}

// Scan walks root and returns the corpus-relative paths of every markdown
// file not matched by an ignore glob. Output is sorted. Scan stops early
// when ctx is cancelled.
func Scan(ctx context.Context, root string, ignore []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("corpus: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus: root %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if Ignored(rel, ignore) || Ignored(rel+"/", ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMarkdown(rel) {
			return nil
		}
		if Ignored(rel, ignore) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus: walk %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Ignored reports whether rel matches any doublestar glob. A directory
// glob such as "vendor/**" also matches the directory "vendor" itself.
func Ignored(rel string, globs []string) bool {
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if strings.HasSuffix(g, "/**") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(g, "/**"), strings.TrimSuffix(rel, "/")); ok {
				return true
			}
		}
	}
	return false
}

// Load reads every path (relative to root) into a Corpus. Files that
// cannot be read are logged and reported, never fatal. Cancellation is
// checked between documents.
func Load(ctx context.Context, root string, paths []string, logger *log.Logger) (*Corpus, []LoadError, error) {
	logger = logging.OrDiscard(logger)
	c := New(root)
	var failed []LoadError

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("corpus: load cancelled: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			logger.Warn("corpus: unreadable document skipped", "path", p, "err", err)
			failed = append(failed, LoadError{Path: ToSlash(p), Err: err.Error()})
			continue
		}
		c.add(NewDocument(p, string(data)))
	}

	return c, failed, nil
}

// ScanAndLoad combines Scan and Load.
func ScanAndLoad(ctx context.Context, root string, ignore []string, logger *log.Logger) (*Corpus, []LoadError, error) {
	paths, err := Scan(ctx, root, ignore)
	if err != nil {
		return nil, nil, err
	}
	return Load(ctx, root, paths, logger)
}

// ToSlash cleans a relative path and converts it to forward slashes.
func ToSlash(p string) string {
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
}
