package similarity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace collapse", "a  b\n\n\tc", "a b c"},
		{"frontmatter", "---\ntitle: x\nstatus: stale\n---\n# Hello\nworld", "# Hello world"},
		{"fenced code", "before\n```go\nfunc main() {}\n```\nafter", "before after"},
		{"tilde fence", "before\n~~~\ncode\n~~~\nafter", "before after"},
		{"inline code", "run `make build` now", "run now"},
		{"link keeps text", "see [the guide](docs/guide.md#setup)", "see the guide"},
		{"image removed", "logo ![alt text](img.png) here", "logo here"},
		{"nested link", "[[inner](a.md)](b.md)", "inner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"---\na: b\n---\n# T\n\nSome `code` and [link](x.md).\n",
		"`split\ncode` span and ```\nunterminated",
		"[[a](b)](c) ![i](j) text\n\n\n",
		"plain text only",
		"```\nfence one\n```\n```\nfence two",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestJaccardOverlap(t *testing.T) {
	assert.Equal(t, 1.0, JaccardOverlap("alpha beta", "Beta ALPHA"))
	assert.Equal(t, 0.0, JaccardOverlap("", ""))
	assert.Equal(t, 0.0, JaccardOverlap("alpha", "beta"))
	// {a b c} vs {b c d}: 2 / 4.
	assert.InDelta(t, 0.5, JaccardOverlap("a b c", "b c d"), 1e-9)

	for _, pair := range [][2]string{{"x y z", ""}, {"one", "one two three"}} {
		got := JaccardOverlap(pair[0], pair[1])
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"héllo", "hello", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EditDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestLevenshteinRatio(t *testing.T) {
	assert.Equal(t, 1.0, LevenshteinRatio("overview", "overview"))
	assert.Equal(t, 1.0, LevenshteinRatio("", ""))
	assert.Equal(t, 0.0, LevenshteinRatio("abc", ""))

	pairs := [][2]string{{"kitten", "sitting"}, {"installation", "instalation"}, {"a", "xyz"}}
	for _, p := range pairs {
		assert.Equal(t, LevenshteinRatio(p[0], p[1]), LevenshteinRatio(p[1], p[0]), "symmetry %v", p)
	}
	// kitten/sitting: (7-3)/7
	assert.InDelta(t, 4.0/7.0, LevenshteinRatio("kitten", "sitting"), 1e-9)
}

func TestExtractSections_FlatAndPreambleDropped(t *testing.T) {
	doc := "intro text that is dropped\n# Title\nbody one\n## Sub\nbody two\n### Deep\nbody three\n"
	sections := ExtractSections(doc)

	require.Len(t, sections, 3)
	assert.Equal(t, Section{Header: "Title", Body: "body one"}, sections[0])
	assert.Equal(t, Section{Header: "Sub", Body: "body two"}, sections[1])
	assert.Equal(t, Section{Header: "Deep", Body: "body three"}, sections[2])
}

func TestExtractSections_IgnoresHeadersInFences(t *testing.T) {
	doc := "# Install\n```bash\n# not a header\nmake\n```\n# Usage\nrun it\n"
	sections := ExtractSections(doc)

	require.Len(t, sections, 2)
	assert.Equal(t, "Install", sections[0].Header)
	assert.Equal(t, "Usage", sections[1].Header)
}

func TestExtractSections_ClosingHashesAndFrontmatter(t *testing.T) {
	doc := "---\ntitle: t\n---\n## Setup ##\ncontent\n"
	sections := ExtractSections(doc)

	require.Len(t, sections, 1)
	assert.Equal(t, "Setup", sections[0].Header)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "getting started", NormalizeHeader("  Getting   Started: "))
	assert.Equal(t, "faq", NormalizeHeader("FAQ?"))
}

func TestEngine_SectionSimilarity(t *testing.T) {
	e := NewEngine(0, 0, nil)

	a := []Section{
		{Header: "Overview", Body: "redoc finds duplicated documentation in a corpus"},
		{Header: "Install", Body: "go install the binary"},
	}
	b := []Section{
		{Header: "overview", Body: "redoc finds duplicate documentation in a corpus"},
		{Header: "Licence", Body: "MIT"},
	}

	matches := e.SectionSimilarity(a, b)
	require.Len(t, matches, 1)
	assert.Equal(t, "Overview", matches[0].HeaderA)
	assert.Equal(t, "overview", matches[0].HeaderB)
	assert.Equal(t, 1.0, matches[0].HeaderSimilarity)
	assert.Greater(t, matches[0].Similarity, 0.9)
}

func TestEngine_SectionSimilarity_FuzzyHeader(t *testing.T) {
	e := NewEngine(0, 0, nil)
	a := []Section{{Header: "Installation", Body: "run the installer"}}
	b := []Section{{Header: "Instalation", Body: "run the installer"}}

	matches := e.SectionSimilarity(a, b)
	require.Len(t, matches, 1)
	assert.Greater(t, matches[0].HeaderSimilarity, 0.8)
}

func TestEngine_CompareFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(a, []byte("# Overview\nsame words here\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("# Overview\nsame words here\n"), 0o644))

	e := NewEngine(0, 0, nil)
	res := e.CompareFiles(a, b)
	assert.Equal(t, 1.0, res.Percentage)
	assert.Len(t, res.SimilarSections, 1)
}

func TestEngine_CompareFiles_Unreadable(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(a, []byte("text"), 0o644))

	e := NewEngine(0, 0, nil)
	res := e.CompareFiles(a, filepath.Join(dir, "missing.md"))
	assert.Equal(t, 0.0, res.Percentage)
	assert.NotNil(t, res.SimilarSections)
	assert.Empty(t, res.SimilarSections)
}
