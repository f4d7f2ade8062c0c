// Package health summarizes a corpus and its detection results into a
// scored report and keeps a snapshot history for trend comparison.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/detect"
	"github.com/HendryAvila/redoc/internal/logging"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// DefaultReportType keys snapshots when the caller names none.
const DefaultReportType = "health"

// Score penalties, caps and thresholds.
const (
	maxRedundancyPenalty = 30.0
	maxStalePenalty      = 20.0
	maxSupersededPenalty = 20.0
	highConfidenceBonus  = 5.0

	// HighConfidence is the confidence at which an issue earns the score
	// bonus and a high-priority opportunity.
	HighConfidence = 0.8
	// MediumConfidence is the lower bound of a medium-priority opportunity.
	MediumConfidence = 0.6

	// StableBand is the percent change still considered stable.
	StableBand = 2.0

	growthAlertPercent = 10.0
	clusterAlertCount  = 5
	staleAlertCount    = 10
)

// --- Band enum ---

// Band is the qualitative reading of a score.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandFair      Band = "fair"
	BandPoor      Band = "poor"
)

// --- Direction enum ---

// Direction of a trend.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// --- Priority enum ---

// Priority of a consolidation opportunity.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var priorityRank = map[Priority]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

// Metrics are the counts a snapshot records.
type Metrics struct {
	TotalFiles           int     `json:"total_files"`
	TotalLines           int     `json:"total_lines"`
	TotalBytes           int     `json:"total_bytes"`
	AverageFileSize      float64 `json:"average_file_size"`
	RedundancyClusters   int     `json:"redundancy_clusters"`
	StaleDocs            int     `json:"stale_docs"`
	SupersededDocs       int     `json:"superseded_docs"`
	HighConfidenceIssues int     `json:"high_confidence_issues"`
}

// Snapshot is what gets persisted per run.
type Snapshot struct {
	ReportType string    `json:"report_type"`
	TakenAt    time.Time `json:"taken_at"`
	Metrics    Metrics   `json:"metrics"`
}

// Trend compares one metric against the previous snapshot.
type Trend struct {
	Metric    string    `json:"metric"`
	Previous  float64   `json:"previous"`
	Current   float64   `json:"current"`
	Delta     float64   `json:"delta"`
	Percent   float64   `json:"percent"`
	Direction Direction `json:"direction"`
}

// Opportunity is a ranked consolidation candidate.
type Opportunity struct {
	IssueID                string   `json:"issue_id"`
	Files                  []string `json:"files"`
	PrimaryFile            string   `json:"primary_file"`
	Strategy               string   `json:"strategy"`
	Confidence             float64  `json:"confidence"`
	Priority               Priority `json:"priority"`
	EstimatedLineReduction int      `json:"estimated_line_reduction"`
}

// Report is the generated health report.
type Report struct {
	Type            string              `json:"type"`
	GeneratedAt     time.Time           `json:"generated_at"`
	Snapshot        Snapshot            `json:"snapshot"`
	Previous        *Snapshot           `json:"previous,omitempty"`
	Trends          []Trend             `json:"trends"`
	Opportunities   []Opportunity       `json:"opportunities"`
	Recommendations []string            `json:"recommendations"`
	Score           float64             `json:"score"`
	Band            Band                `json:"band"`
	Staleness       corpus.StatusCounts `json:"staleness"`
	Warnings        []string            `json:"warnings,omitempty"`
}

// SnapshotStore persists snapshots by report type. LatestSnapshot returns
// nil data when there is none yet.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, reportType string, data []byte) error
	LatestSnapshot(ctx context.Context, reportType string) ([]byte, error)
}

// StalenessClassifier counts outdated documents.
type StalenessClassifier interface {
	Classify(ctx context.Context, docs []*corpus.Document) (corpus.StatusCounts, error)
}

// Estimator predicts the line reduction of consolidating an issue.
type Estimator func(issue detect.Issue) int

// Input is one report request.
type Input struct {
	ReportType string
	Corpus     *corpus.Corpus
	Issues     []detect.Issue
	// Estimate may be nil; opportunities then carry no estimate.
	Estimate Estimator
}

// Generator builds reports.
type Generator struct {
	store      SnapshotStore
	classifier StalenessClassifier
	logger     *log.Logger
}

// NewGenerator creates a Generator. A nil store disables history; a nil
// classifier means corpus.FrontmatterStatus.
func NewGenerator(store SnapshotStore, classifier StalenessClassifier, logger *log.Logger) *Generator {
	if classifier == nil {
		classifier = corpus.FrontmatterStatus{}
	}
	return &Generator{store: store, classifier: classifier, logger: logging.OrDiscard(logger)}
}

// Generate builds a report, compares it with the previous snapshot of the
// same type and saves the new snapshot. Persistence failures become
// report warnings; only cancellation is returned as an error.
func (g *Generator) Generate(ctx context.Context, in Input) (*Report, error) {
	if in.Corpus == nil {
		return nil, fmt.Errorf("health: no corpus loaded")
	}
	reportType := in.ReportType
	if reportType == "" {
		reportType = DefaultReportType
	}
	now := timeNow().UTC()
	rep := &Report{Type: reportType, GeneratedAt: now, Trends: []Trend{}}

	docs := in.Corpus.Documents()
	counts, err := g.classifier.Classify(ctx, docs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("health: classify: %w", ctx.Err())
		}
		g.logger.Warn("health: staleness classifier failed", "err", err)
		rep.Warnings = append(rep.Warnings, "staleness classification unavailable: "+err.Error())
		counts = corpus.StatusCounts{}
	}
	rep.Staleness = counts

	m := collect(docs, in.Issues, counts)
	rep.Snapshot = Snapshot{ReportType: reportType, TakenAt: now, Metrics: m}

	if prev := g.previous(ctx, reportType, rep); prev != nil {
		rep.Previous = prev
		rep.Trends = ComputeTrends(prev.Metrics, m)
	}

	rep.Opportunities = Opportunities(in.Issues, in.Estimate)
	rep.Score = Score(m, m.HighConfidenceIssues > 0)
	rep.Band = BandOf(rep.Score)
	rep.Recommendations = Recommend(m, rep.Trends, rep.Opportunities)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	g.save(ctx, rep)
	return rep, nil
}

func (g *Generator) previous(ctx context.Context, reportType string, rep *Report) *Snapshot {
	if g.store == nil {
		return nil
	}
	data, err := g.store.LatestSnapshot(ctx, reportType)
	if err != nil {
		g.logger.Warn("health: previous snapshot unavailable", "type", reportType, "err", err)
		rep.Warnings = append(rep.Warnings, "previous snapshot unavailable: "+err.Error())
		return nil
	}
	if data == nil {
		return nil
	}
	var prev Snapshot
	if err := json.Unmarshal(data, &prev); err != nil {
		g.logger.Warn("health: previous snapshot unreadable", "type", reportType, "err", err)
		rep.Warnings = append(rep.Warnings, "previous snapshot unreadable: "+err.Error())
		return nil
	}
	return &prev
}

func (g *Generator) save(ctx context.Context, rep *Report) {
	if g.store == nil {
		return
	}
	data, err := json.Marshal(rep.Snapshot)
	if err == nil {
		err = g.store.SaveSnapshot(ctx, rep.Type, data)
	}
	if err != nil {
		g.logger.Warn("health: snapshot not saved", "type", rep.Type, "err", err)
		rep.Warnings = append(rep.Warnings, "snapshot not saved: "+err.Error())
	}
}

func collect(docs []*corpus.Document, issues []detect.Issue, counts corpus.StatusCounts) Metrics {
	m := Metrics{
		TotalFiles:     len(docs),
		StaleDocs:      counts.Stale,
		SupersededDocs: counts.Superseded,
	}
	for _, d := range docs {
		m.TotalLines += d.Lines
		m.TotalBytes += d.Bytes
	}
	if m.TotalFiles > 0 {
		m.AverageFileSize = round1(float64(m.TotalBytes) / float64(m.TotalFiles))
	}
	for _, is := range issues {
		if is.Type == detect.TypeRedundant {
			m.RedundancyClusters++
		}
		if is.Confidence >= HighConfidence {
			m.HighConfidenceIssues++
		}
	}
	return m
}

// Score starts at 100, subtracts penalties proportional to the share of
// redundant, stale and superseded documents, adds a bonus when a
// high-confidence issue is ready to act on, and clamps to [0,100].
func Score(m Metrics, highConfidence bool) float64 {
	score := 100.0
	if m.TotalFiles > 0 {
		files := float64(m.TotalFiles)
		score -= math.Min(maxRedundancyPenalty, maxRedundancyPenalty*float64(m.RedundancyClusters)/files)
		score -= math.Min(maxStalePenalty, maxStalePenalty*float64(m.StaleDocs)/files)
		score -= math.Min(maxSupersededPenalty, maxSupersededPenalty*float64(m.SupersededDocs)/files)
	}
	if highConfidence {
		score += highConfidenceBonus
	}
	return round1(math.Max(0, math.Min(100, score)))
}

// BandOf maps a score to its band.
func BandOf(score float64) Band {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 75:
		return BandGood
	case score >= 60:
		return BandFair
	default:
		return BandPoor
	}
}

// ComputeTrends compares every metric of cur with prev, in a fixed order.
func ComputeTrends(prev, cur Metrics) []Trend {
	pairs := []struct {
		name      string
		prev, cur float64
	}{
		{"total_files", float64(prev.TotalFiles), float64(cur.TotalFiles)},
		{"total_lines", float64(prev.TotalLines), float64(cur.TotalLines)},
		{"average_file_size", prev.AverageFileSize, cur.AverageFileSize},
		{"redundancy_clusters", float64(prev.RedundancyClusters), float64(cur.RedundancyClusters)},
		{"stale_docs", float64(prev.StaleDocs), float64(cur.StaleDocs)},
		{"superseded_docs", float64(prev.SupersededDocs), float64(cur.SupersededDocs)},
	}
	out := make([]Trend, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, NewTrend(p.name, p.prev, p.cur))
	}
	return out
}

// NewTrend computes one trend. From zero, any growth counts as 100%.
func NewTrend(metric string, prev, cur float64) Trend {
	delta := cur - prev
	var pct float64
	switch {
	case prev != 0:
		pct = delta / math.Abs(prev) * 100
	case cur != 0:
		pct = math.Copysign(100, delta)
	}
	dir := Stable
	if pct > StableBand {
		dir = Increasing
	} else if pct < -StableBand {
		dir = Decreasing
	}
	return Trend{
		Metric:    metric,
		Previous:  prev,
		Current:   cur,
		Delta:     round1(delta),
		Percent:   round1(pct),
		Direction: dir,
	}
}

// PriorityOf maps an issue confidence to an opportunity priority.
func PriorityOf(confidence float64) Priority {
	switch {
	case confidence >= HighConfidence:
		return PriorityHigh
	case confidence >= MediumConfidence:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Opportunities ranks issues by priority, then confidence, then estimated
// reduction, then ID.
func Opportunities(issues []detect.Issue, estimate Estimator) []Opportunity {
	out := make([]Opportunity, 0, len(issues))
	for _, is := range issues {
		o := Opportunity{
			IssueID:     is.ID,
			Files:       append([]string(nil), is.AffectedFiles...),
			PrimaryFile: is.PrimaryFile,
			Strategy:    is.Action.Strategy,
			Confidence:  is.Confidence,
			Priority:    PriorityOf(is.Confidence),
		}
		if estimate != nil {
			o.EstimatedLineReduction = estimate(is)
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if priorityRank[a.Priority] != priorityRank[b.Priority] {
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.EstimatedLineReduction != b.EstimatedLineReduction {
			return a.EstimatedLineReduction > b.EstimatedLineReduction
		}
		return a.IssueID < b.IssueID
	})
	return out
}

// Recommend applies the fixed rule set. It always returns at least one
// recommendation.
func Recommend(m Metrics, trends []Trend, opps []Opportunity) []string {
	var out []string

	high := 0
	for _, o := range opps {
		if o.Priority == PriorityHigh {
			high++
		}
	}
	if high > 0 {
		first := opps[0]
		out = append(out, fmt.Sprintf("Consolidate %d high-priority cluster(s), starting with %s (%s, %d files).",
			high, first.IssueID, first.Strategy, len(first.Files)))
	}

	for _, t := range trends {
		if t.Metric == "total_files" && t.Percent > growthAlertPercent {
			out = append(out, fmt.Sprintf("Documentation grew %.1f%% since the last report; check new files for overlap before it spreads.", t.Percent))
		}
	}

	if m.RedundancyClusters > clusterAlertCount {
		out = append(out, fmt.Sprintf("%d redundancy clusters detected; schedule a consolidation pass.", m.RedundancyClusters))
	}
	if m.StaleDocs > staleAlertCount {
		out = append(out, fmt.Sprintf("%d stale documents; update or archive them.", m.StaleDocs))
	}

	if len(out) == 0 {
		out = append(out, "Documentation is in good shape; re-run detection after the next round of changes.")
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
