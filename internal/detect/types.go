// Package detect groups documents into redundancy issues.
//
// Detection runs two passes over one corpus:
//  1. pattern pass: every configured Pattern selects files by name, the
//     selection is compared pairwise and one Issue per pattern is emitted
//     for the files that overlap enough;
//  2. pairwise fallback: every file no pattern claimed (and that is not
//     protected) is compared with every other such file.
//
// The exclusion set is fixed before pass 2 starts, so a file appears in
// at most one Issue per run.
package detect

import (
	"time"

	"github.com/HendryAvila/redoc/internal/confidence"
	"github.com/HendryAvila/redoc/internal/similarity"
)

// DefaultThreshold is the minimum Jaccard overlap for two documents to
// count as redundant.
const DefaultThreshold = 0.35

// --- Issue type enum ---

// IssueType classifies an issue. Detection only emits redundant issues;
// stale and superseded come from the staleness classifier.
type IssueType string

const (
	TypeRedundant  IssueType = "redundant"
	TypeStale      IssueType = "stale"
	TypeSuperseded IssueType = "superseded"
)

// Pattern is a named rule that selects documents by path or basename.
// Match expressions support the * and ? wildcards and are matched
// case-insensitively.
type Pattern struct {
	Name        string   `json:"name" yaml:"name" mapstructure:"name"`
	Description string   `json:"description" yaml:"description" mapstructure:"description"`
	Match       []string `json:"match" yaml:"match" mapstructure:"match"`
	Strategy    string   `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
}

// Action is the recommended remedy for an issue.
type Action struct {
	Strategy         string   `json:"strategy"`
	Steps            []string `json:"steps"`
	RequiresApproval bool     `json:"requires_approval"`
}

// Issue is one group of redundant documents.
type Issue struct {
	ID              string                `json:"id"`
	Type            IssueType             `json:"type"`
	Origin          confidence.Origin     `json:"origin"`
	Pattern         string                `json:"pattern,omitempty"`
	Confidence      float64               `json:"confidence"`
	Severity        confidence.Severity   `json:"severity"`
	Factors         confidence.Factors    `json:"factors"`
	Evidence        []confidence.Evidence `json:"evidence"`
	AffectedFiles   []string              `json:"affected_files"`
	PrimaryFile     string                `json:"primary_file"`
	Overlaps        []similarity.Result   `json:"overlaps"`
	Action          Action                `json:"recommended_action"`
	DetectedAt      time.Time             `json:"detected_at"`
	FirstOccurrence bool                  `json:"first_occurrence"`
}

// Detection is the outcome of one run.
type Detection struct {
	Issues         []Issue  `json:"issues"`
	FilesAnalyzed  int      `json:"files_analyzed"`
	PairsCompared  int      `json:"pairs_compared"`
	PatternIssues  int      `json:"pattern_issues"`
	PairwiseIssues int      `json:"pairwise_issues"`
	ClaimedFiles   []string `json:"claimed_files"`
}
