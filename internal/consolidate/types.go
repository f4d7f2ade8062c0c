// Package consolidate plans and applies consolidation of redundant
// documents.
//
// Three strategies share one shape (Strategy) and are looked up through a
// closed Registry:
//   - hierarchical: keep the primary, trim duplicated sections from the
//     others and point them at the primary
//   - merge-and-redirect: fold everything into the primary, archive the
//     rest and redirect inbound links
//   - split-by-audience: keep documents apart when they serve different
//     readers and cross-link them instead
//
// Analyze is pure. All filesystem access goes through Executor, which
// backs up every touched file first and restores them all if any write
// fails.
package consolidate

import (
	"errors"
	"fmt"
	"strings"
)

// --- Strategy names ---

// Name identifies a strategy.
type Name string

const (
	Hierarchical     Name = "hierarchical"
	MergeAndRedirect Name = "merge-and-redirect"
	SplitByAudience  Name = "split-by-audience"
)

// ErrUnknownStrategy is returned for a strategy name not in the registry.
var ErrUnknownStrategy = errors.New("consolidate: unknown strategy")

// ValidateName returns an error if the name is not a known strategy.
func ValidateName(n string) error {
	if _, ok := stepRegistry[Name(n)]; !ok {
		return fmt.Errorf("%w %q: must be one of: %s", ErrUnknownStrategy, n, strings.Join(NameValues(), ", "))
	}
	return nil
}

// NameValues lists strategy names for tool enums and error messages.
func NameValues() []string {
	return []string{string(Hierarchical), string(MergeAndRedirect), string(SplitByAudience)}
}

// stepRegistry is the ordered step list each strategy recommends.
var stepRegistry = map[Name][]string{
	Hierarchical: {
		"backup all affected files",
		"diff matched sections against the primary",
		"trim lines the primary already covers, keeping unique content in place",
		"insert \"see primary\" references",
		"validate cross-references",
	},
	MergeAndRedirect: {
		"backup all affected files",
		"fold new sections and unique lines of shared sections into the primary",
		"archive secondary documents",
		"rewrite inbound references to the primary",
		"validate cross-references",
	},
	SplitByAudience: {
		"classify each document's audience",
		"keep documents with different audiences separate",
		"add a Related Documentation section linking siblings",
		"validate cross-references",
	},
}

// StepsFor returns a copy of the recommended steps for a strategy, or nil
// for an unknown name.
func StepsFor(n Name) []string {
	steps, ok := stepRegistry[n]
	if !ok {
		return nil
	}
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

// --- Plan ---

// Action is what happens to one file.
type Action string

const (
	ActionKeep             Action = "keep"
	ActionTrimSections     Action = "trim-sections"
	ActionMergeContent     Action = "merge-content"
	ActionArchive          Action = "archive"
	ActionUpdateReferences Action = "update-references"
	ActionAddReferences    Action = "add-references"
	ActionNone             Action = "none"
)

// FileModification is one planned change to one file.
type FileModification struct {
	File   string `json:"file"`
	Action Action `json:"action"`
	// Sections names the headers the action applies to, when any.
	Sections []string `json:"sections,omitempty"`
	// Reference is the document this file should point at.
	Reference string `json:"reference,omitempty"`
	// References lists several targets (add-references, merge sources).
	References []string `json:"references,omitempty"`
	// Destination is where an archived file is moved.
	Destination string `json:"destination,omitempty"`
	// Counterpart maps a section of File to the primary section it
	// duplicates, when the headers differ.
	Counterpart map[string]string `json:"counterpart,omitempty"`
}

// Plan is pure data produced by Analyze.
type Plan struct {
	Strategy               Name               `json:"strategy"`
	PrimaryFile            string             `json:"primary_file"`
	Files                  []string           `json:"files"`
	Modifications          []FileModification `json:"modifications"`
	EstimatedLineReduction int                `json:"estimated_line_reduction"`
	RecommendMerge         bool               `json:"recommend_merge"`
	Steps                  []string           `json:"steps"`
	Warnings               []string           `json:"warnings,omitempty"`
	// Audiences is filled by split-by-audience.
	Audiences map[string]Audience `json:"audiences,omitempty"`
}

// TouchedFiles lists every file a plan may write, archive destinations
// included, in plan order without duplicates.
func (p *Plan) TouchedFiles() []string {
	seen := map[string]bool{}
	var out []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, m := range p.Modifications {
		if m.Action == ActionKeep || m.Action == ActionNone {
			continue
		}
		add(m.File)
		add(m.Destination)
	}
	return out
}

// --- Result ---

// Validation is the post-execution check.
type Validation struct {
	SyntaxValid bool     `json:"syntax_valid"`
	LinksValid  bool     `json:"links_valid"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Result reports an execution or rollback.
type Result struct {
	Success      bool       `json:"success"`
	DryRun       bool       `json:"dry_run"`
	Strategy     Name       `json:"strategy,omitempty"`
	ChangedFiles []string   `json:"changed_files"`
	LinesRemoved int        `json:"lines_removed"`
	BackupName   string     `json:"backup_name,omitempty"`
	BackupPath   string     `json:"backup_path,omitempty"`
	RolledBack   bool       `json:"rolled_back,omitempty"`
	Errors       []string   `json:"errors,omitempty"`
	Warnings     []string   `json:"warnings,omitempty"`
	Validation   Validation `json:"validation"`
}
