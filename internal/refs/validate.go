package refs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/similarity"
)

// Source is one document to scan for links.
type Source struct {
	Path string
	Text string
}

// SourcesOf returns the corpus documents as link sources, in scan order.
func SourcesOf(c *corpus.Corpus) []Source {
	docs := c.Documents()
	out := make([]Source, len(docs))
	for i, d := range docs {
		out[i] = Source{Path: d.Path, Text: d.Raw}
	}
	return out
}

// Lookup answers questions about link targets. Paths are relative to the
// corpus root, slash separated.
type Lookup interface {
	Exists(rel string) bool
	Read(rel string) (string, error)
}

// DiskLookup resolves targets against in-memory sources first and the
// filesystem under Root second.
type DiskLookup struct {
	Root    string
	sources map[string]string
}

// NewDiskLookup indexes sources for a root directory.
func NewDiskLookup(root string, sources []Source) *DiskLookup {
	m := make(map[string]string, len(sources))
	for _, s := range sources {
		m[s.Path] = s.Text
	}
	return &DiskLookup{Root: root, sources: m}
}

// Exists reports whether rel is a known source or exists on disk.
func (l *DiskLookup) Exists(rel string) bool {
	if _, ok := l.sources[rel]; ok {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	_, err := os.Stat(filepath.Join(l.Root, filepath.FromSlash(rel)))
	return err == nil
}

// Read returns the text of rel.
func (l *DiskLookup) Read(rel string) (string, error) {
	if t, ok := l.sources[rel]; ok {
		return t, nil
	}
	data, err := os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Report is the outcome of a validation run.
type Report struct {
	FilesScanned     int         `json:"files_scanned"`
	TotalReferences  int         `json:"total_references"`
	ValidReferences  int         `json:"valid_references"`
	BrokenReferences []Reference `json:"broken_references"`
	References       []Reference `json:"references"`
}

// Validator checks every link of a corpus.
type Validator struct {
	root   string
	logger *log.Logger
}

// NewValidator creates a Validator for the corpus at root.
func NewValidator(root string, logger *log.Logger) *Validator {
	return &Validator{root: root, logger: logging.OrDiscard(logger)}
}

// Validate extracts and checks every reference in sources. Sources are
// processed in path order so two runs over the same files produce the
// same report. It stops with ctx.Err() between documents.
func (v *Validator) Validate(ctx context.Context, sources []Source) (*Report, error) {
	sorted := append([]Source(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	checker := NewChecker(NewDiskLookup(v.root, sorted))
	report := &Report{BrokenReferences: []Reference{}, References: []Reference{}}
	for _, s := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("refs: validate: %w", err)
		}
		report.FilesScanned++
		for _, ref := range checker.Check(Extract(s.Path, s.Text)) {
			report.TotalReferences++
			report.References = append(report.References, ref)
			if ref.Valid {
				report.ValidReferences++
			} else {
				report.BrokenReferences = append(report.BrokenReferences, ref)
			}
		}
	}
	v.logger.Debug("refs: validation complete",
		"files", report.FilesScanned, "refs", report.TotalReferences, "broken", len(report.BrokenReferences))
	return report, nil
}

// Checker validates references against a Lookup, parsing each target's
// headings at most once.
type Checker struct {
	lookup   Lookup
	headings map[string][]string
}

// NewChecker creates a Checker.
func NewChecker(lookup Lookup) *Checker {
	return &Checker{lookup: lookup, headings: map[string][]string{}}
}

// Check fills Valid and Error on each reference and returns them.
func (c *Checker) Check(refs []Reference) []Reference {
	out := make([]Reference, len(refs))
	for i, ref := range refs {
		ref.Valid, ref.Error = true, ""
		if !c.lookup.Exists(ref.Resolved) {
			ref.Valid = false
			ref.Error = "target file not found: " + ref.Resolved
		} else if ref.Fragment != "" && corpus.IsMarkdown(ref.Resolved) && !c.hasHeading(ref.Resolved, ref.Fragment) {
			ref.Valid = false
			ref.Error = fmt.Sprintf("section #%s not found in %s", ref.Fragment, ref.Resolved)
		}
		out[i] = ref
	}
	return out
}

func (c *Checker) hasHeading(rel, fragment string) bool {
	hs, ok := c.headings[rel]
	if !ok {
		src, err := c.lookup.Read(rel)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false
		}
		hs = Headings(src)
		c.headings[rel] = hs
	}
	want := Slug(fragment)
	for _, h := range hs {
		if Slug(h) == want {
			return true
		}
	}
	return false
}

// Headings returns the text of every heading in a markdown document,
// frontmatter excluded.
func Headings(src string) []string {
	source := []byte(similarity.StripFrontmatter(src))
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.Heading); !ok {
			return ast.WalkContinue, nil
		}
		out = append(out, headingText(n, source))
		return ast.WalkSkipChildren, nil
	})
	return out
}

func headingText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// Slug is the anchor form of a heading or fragment: lowercase, letters
// and digits kept, whitespace runs turned into one hyphen, everything
// else dropped. "Getting Started!" and "getting-started" share a slug.
func Slug(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingDash = true
		}
	}
	return b.String()
}
