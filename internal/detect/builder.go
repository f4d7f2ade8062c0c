package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/HendryAvila/redoc/internal/confidence"
	"github.com/HendryAvila/redoc/internal/consolidate"
	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/similarity"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// SightingRecorder remembers which issue IDs were seen before.
type SightingRecorder interface {
	MarkSeen(ctx context.Context, issueID string) (first bool, err error)
}

// Options configures a Builder.
type Options struct {
	Patterns  []Pattern
	Threshold float64
	// Protected globs exclude files from the pairwise pass.
	Protected []string
}

// Builder runs detection. Build one per configuration and reuse it.
type Builder struct {
	patterns  []Pattern
	threshold float64
	protected []string
	engine    *similarity.Engine
	scorer    *confidence.Scorer
	sightings SightingRecorder
	logger    *log.Logger
}

// NewBuilder creates a Builder. The pattern table is used as given; pass
// DefaultPatterns() for the built-in one. sightings may be nil.
func NewBuilder(opts Options, engine *similarity.Engine, scorer *confidence.Scorer, sightings SightingRecorder, logger *log.Logger) *Builder {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Builder{
		patterns:  append([]Pattern(nil), opts.Patterns...),
		threshold: threshold,
		protected: append([]string(nil), opts.Protected...),
		engine:    engine,
		scorer:    scorer,
		sightings: sightings,
		logger:    logging.OrDiscard(logger),
	}
}

// Detect runs the pattern pass, then the pairwise pass over whatever the
// pattern pass left unclaimed. It stops with ctx.Err() when cancelled;
// detection never writes anything, so cancellation leaves no trace.
func (b *Builder) Detect(ctx context.Context, c *corpus.Corpus) (*Detection, error) {
	det := &Detection{Issues: []Issue{}, FilesAnalyzed: c.Len()}
	claimed := map[string]bool{}

	for _, p := range b.patterns {
		issue, compared, err := b.patternIssue(ctx, c, p, claimed)
		det.PairsCompared += compared
		if err != nil {
			return nil, err
		}
		if issue == nil {
			continue
		}
		for _, f := range issue.AffectedFiles {
			claimed[f] = true
		}
		det.Issues = append(det.Issues, *issue)
		det.PatternIssues++
	}

	// The exclusion set is frozen here.
	for f := range claimed {
		det.ClaimedFiles = append(det.ClaimedFiles, f)
	}
	sort.Strings(det.ClaimedFiles)

	pairIssues, compared, err := b.pairwiseIssues(ctx, c, claimed)
	det.PairsCompared += compared
	if err != nil {
		return nil, err
	}
	det.Issues = append(det.Issues, pairIssues...)
	det.PairwiseIssues = len(pairIssues)

	b.logger.Debug("detect: run complete",
		"files", det.FilesAnalyzed, "pairs", det.PairsCompared,
		"pattern_issues", det.PatternIssues, "pairwise_issues", det.PairwiseIssues)
	return det, nil
}

// patternIssue builds the issue for one pattern, or nil when fewer than
// two unclaimed files match or no pair reaches the threshold.
func (b *Builder) patternIssue(ctx context.Context, c *corpus.Corpus, p Pattern, claimed map[string]bool) (*Issue, int, error) {
	var matched []*corpus.Document
	for _, d := range c.Documents() {
		if !claimed[d.Path] && p.matchesAny(d.Path) {
			matched = append(matched, d)
		}
	}
	if len(matched) < 2 {
		return nil, 0, nil
	}

	var retained []similarity.Result
	compared := 0
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if err := ctx.Err(); err != nil {
				return nil, compared, fmt.Errorf("detect: pattern %s: %w", p.Name, err)
			}
			compared++
			r := b.engine.Compare(matched[i].Profile, matched[j].Profile)
			if r.Percentage >= b.threshold {
				retained = append(retained, r)
			}
		}
	}
	if len(retained) == 0 {
		return nil, compared, nil
	}

	members := membersInOrder(matched, retained)
	evidence := []confidence.Evidence{{
		Description: fmt.Sprintf("%d files match pattern %q", len(members), p.Name),
		Location:    strings.Join(p.Match, ", "),
		Weight:      1,
	}}
	evidence = append(evidence, overlapEvidence(retained)...)

	issue := b.newIssue(ctx, confidence.OriginPattern, p.Strategy, members, retained, evidence)
	issue.Pattern = p.Name
	return issue, compared, nil
}

// pairwiseIssues compares every unclaimed, unprotected pair once.
// Qualifying pairs are taken greedily by overlap (highest first, then pair
// key) so no file lands in two issues.
func (b *Builder) pairwiseIssues(ctx context.Context, c *corpus.Corpus, claimed map[string]bool) ([]Issue, int, error) {
	var candidates []*corpus.Document
	for _, d := range c.Documents() {
		if claimed[d.Path] || corpus.Ignored(d.Path, b.protected) {
			continue
		}
		candidates = append(candidates, d)
	}

	type pair struct {
		key    string
		a, b   *corpus.Document
		result similarity.Result
	}
	seen := map[string]bool{}
	var qualifying []pair
	compared := 0
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if err := ctx.Err(); err != nil {
				return nil, compared, fmt.Errorf("detect: pairwise pass: %w", err)
			}
			key := PairKey(candidates[i].Path, candidates[j].Path)
			if seen[key] {
				continue
			}
			seen[key] = true
			compared++
			r := b.engine.Compare(candidates[i].Profile, candidates[j].Profile)
			if r.Percentage >= b.threshold {
				qualifying = append(qualifying, pair{key: key, a: candidates[i], b: candidates[j], result: r})
			}
		}
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		if qualifying[i].result.Percentage != qualifying[j].result.Percentage {
			return qualifying[i].result.Percentage > qualifying[j].result.Percentage
		}
		return qualifying[i].key < qualifying[j].key
	})

	used := map[string]bool{}
	var issues []Issue
	for _, q := range qualifying {
		if used[q.a.Path] || used[q.b.Path] {
			continue
		}
		used[q.a.Path], used[q.b.Path] = true, true
		members := []*corpus.Document{q.a, q.b}
		retained := []similarity.Result{q.result}
		issue := b.newIssue(ctx, confidence.OriginPairwise, string(consolidate.Hierarchical), members, retained, overlapEvidence(retained))
		issues = append(issues, *issue)
	}
	return issues, compared, nil
}

// newIssue scores and assembles an issue.
func (b *Builder) newIssue(ctx context.Context, origin confidence.Origin, strategy string, members []*corpus.Document, retained []similarity.Result, evidence []confidence.Evidence) *Issue {
	files := make([]string, len(members))
	for i, m := range members {
		files[i] = m.Path
	}

	assessment := b.scorer.Score(ctx, confidence.Input{
		Evidence:       evidence,
		Origin:         origin,
		Strategy:       strategy,
		FileCount:      len(files),
		Reversible:     true,
		ContextClarity: contextClarity(origin, retained),
	})

	requiresApproval := true
	if origin == confidence.OriginPattern {
		requiresApproval = !b.scorer.AutoExecutable(assessment.Confidence, origin)
	}

	id := IssueID(files)
	issue := &Issue{
		ID:            id,
		Type:          TypeRedundant,
		Origin:        origin,
		Confidence:    assessment.Confidence,
		Severity:      assessment.Severity,
		Factors:       assessment.Factors,
		Evidence:      evidence,
		AffectedFiles: files,
		PrimaryFile:   SelectPrimary(files, retained),
		Overlaps:      retained,
		Action: Action{
			Strategy:         strategy,
			Steps:            consolidate.StepsFor(consolidate.Name(strategy)),
			RequiresApproval: requiresApproval,
		},
		DetectedAt:      timeNow().UTC(),
		FirstOccurrence: true,
	}

	if b.sightings != nil {
		first, err := b.sightings.MarkSeen(ctx, id)
		if err != nil {
			b.logger.Warn("detect: sighting not recorded", "issue", id, "err", err)
		} else {
			issue.FirstOccurrence = first
		}
	}
	return issue
}

// SelectPrimary picks the file with the largest summed overlap against
// its peers. Ties go to the file listed first.
func SelectPrimary(files []string, overlaps []similarity.Result) string {
	return similarity.Primary(files, overlaps)
}

// PairKey is the order-independent key of a file pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// IssueID is stable across runs for the same set of files.
func IssueID(files []string) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return "red-" + hex.EncodeToString(sum[:])[:10]
}

// membersInOrder returns the matched documents that take part in at least
// one retained pair, keeping scan order.
func membersInOrder(matched []*corpus.Document, retained []similarity.Result) []*corpus.Document {
	in := map[string]bool{}
	for _, r := range retained {
		in[r.FileA], in[r.FileB] = true, true
	}
	var out []*corpus.Document
	for _, d := range matched {
		if in[d.Path] {
			out = append(out, d)
		}
	}
	return out
}

// overlapEvidence turns retained pairs into evidence weighted by overlap.
func overlapEvidence(retained []similarity.Result) []confidence.Evidence {
	out := make([]confidence.Evidence, 0, len(retained))
	for _, r := range retained {
		desc := fmt.Sprintf("%.0f%% vocabulary overlap", r.Percentage*100)
		if n := len(r.SimilarSections); n > 0 {
			desc += fmt.Sprintf(", %d similar section(s)", n)
		}
		out = append(out, confidence.Evidence{
			Description: desc,
			Location:    r.FileA + " <-> " + r.FileB,
			Weight:      similarity.Clamp(r.Percentage),
		})
	}
	return out
}

// contextClarity rewards structural agreement: the share of retained
// pairs with at least one matching section. Pattern issues start higher
// because a named rule already explains why the files belong together.
func contextClarity(origin confidence.Origin, retained []similarity.Result) float64 {
	if len(retained) == 0 {
		return 0
	}
	withSections := 0
	for _, r := range retained {
		if len(r.SimilarSections) > 0 {
			withSections++
		}
	}
	coverage := float64(withSections) / float64(len(retained))
	if origin == confidence.OriginPattern {
		return 0.6 + 0.4*coverage
	}
	return 0.5 * coverage
}
