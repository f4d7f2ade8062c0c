package detect

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/HendryAvila/redoc/internal/consolidate"
)

// DefaultPatterns returns the built-in pattern table. Callers get a fresh
// copy and pass it to NewBuilder explicitly.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "readme-variants",
			Description: "Multiple README files describing the same component",
			Match:       []string{"readme*.md", "*-readme.md", "*_readme.md"},
			Strategy:    string(consolidate.Hierarchical),
		},
		{
			Name:        "setup-guides",
			Description: "Installation, setup and getting-started guides",
			Match:       []string{"*setup*.md", "*install*.md", "*getting-started*.md", "*quickstart*.md", "*quick-start*.md"},
			Strategy:    string(consolidate.Hierarchical),
		},
		{
			Name:        "workflow-docs",
			Description: "Workflow and process descriptions",
			Match:       []string{"*workflow*.md", "*process*.md"},
			Strategy:    string(consolidate.MergeAndRedirect),
		},
		{
			Name:        "troubleshooting",
			Description: "Troubleshooting guides, FAQs and known issues",
			Match:       []string{"*troubleshoot*.md", "*faq*.md", "*known-issues*.md"},
			Strategy:    string(consolidate.MergeAndRedirect),
		},
		{
			Name:        "status-reports",
			Description: "Status, progress and summary reports",
			Match:       []string{"*status*.md", "*progress*.md", "*summary*.md", "*report*.md"},
			Strategy:    string(consolidate.MergeAndRedirect),
		},
		{
			Name:        "user-guides",
			Description: "Guides and tutorials that may target different readers",
			Match:       []string{"*guide*.md", "*tutorial*.md", "*usage*.md"},
			Strategy:    string(consolidate.SplitByAudience),
		},
	}
}

// MatchPattern reports whether a wildcard expression matches a
// slash-separated relative path or its basename, ignoring case.
func MatchPattern(expr, rel string) bool {
	expr = strings.ToLower(strings.TrimSpace(expr))
	rel = strings.ToLower(rel)
	if expr == "" {
		return false
	}
	if ok, err := doublestar.Match(expr, rel); err == nil && ok {
		return true
	}
	ok, err := doublestar.Match(expr, path.Base(rel))
	return err == nil && ok
}

// matchesAny reports whether any expression of p matches rel.
func (p Pattern) matchesAny(rel string) bool {
	for _, expr := range p.Match {
		if MatchPattern(expr, rel) {
			return true
		}
	}
	return false
}
