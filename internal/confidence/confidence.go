// Package confidence turns heterogeneous detection evidence into a single
// score in [0,1] and a severity.
//
// The weighting is fixed:
//
//	(patternMatch*0.40 + historicalSuccess*0.30 + reversibility*0.15 + contextClarity*0.15) * complexityPenalty
//
// historicalSuccess comes from a HistoryProvider. Until a learning store
// has enough recorded outcomes it is the neutral 0.5.
package confidence

import (
	"context"

	"github.com/HendryAvila/redoc/internal/similarity"
)

// Factor weights.
const (
	WeightPatternMatch      = 0.40
	WeightHistoricalSuccess = 0.30
	WeightReversibility     = 0.15
	WeightContextClarity    = 0.15
)

// DefaultAutoExecuteThreshold is the score a pattern-based issue needs to
// be flagged critical.
const DefaultAutoExecuteThreshold = 0.85

// NeutralSuccess is the historical success rate used without history.
const NeutralSuccess = 0.5

// Origin tells whether an issue came from the pattern pass or the
// pairwise fallback.
type Origin string

const (
	OriginPattern  Origin = "pattern"
	OriginPairwise Origin = "pairwise"
)

// Severity of an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Evidence is one weighted observation supporting an issue.
type Evidence struct {
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Weight      float64 `json:"weight"`
}

// Factors are the inputs of Aggregate. ComplexityPenalty is a
// multiplicative dampener in (0,1]; the rest are in [0,1].
type Factors struct {
	PatternMatch      float64 `json:"pattern_match"`
	HistoricalSuccess float64 `json:"historical_success"`
	ComplexityPenalty float64 `json:"complexity_penalty"`
	Reversibility     float64 `json:"reversibility"`
	ContextClarity    float64 `json:"context_clarity"`
}

// HistoryProvider reports how often a strategy succeeded in the past.
type HistoryProvider interface {
	SuccessRate(ctx context.Context, strategy string) float64
}

// NeutralHistory always answers 0.5.
type NeutralHistory struct{}

// SuccessRate implements HistoryProvider.
func (NeutralHistory) SuccessRate(context.Context, string) float64 { return NeutralSuccess }

// Scorer computes confidence and severity.
type Scorer struct {
	threshold float64
	history   HistoryProvider
}

// NewScorer creates a Scorer. A non-positive threshold means 0.85; a nil
// history provider means NeutralHistory.
func NewScorer(threshold float64, history HistoryProvider) *Scorer {
	if threshold <= 0 {
		threshold = DefaultAutoExecuteThreshold
	}
	if history == nil {
		history = NeutralHistory{}
	}
	return &Scorer{threshold: threshold, history: history}
}

// Threshold is the auto-execute threshold in use.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Input describes one issue to score.
type Input struct {
	Evidence       []Evidence
	Origin         Origin
	Strategy       string
	FileCount      int
	Reversible     bool
	ContextClarity float64
}

// Assessment is a scored issue.
type Assessment struct {
	Factors    Factors  `json:"factors"`
	Confidence float64  `json:"confidence"`
	Severity   Severity `json:"severity"`
}

// Score gathers factors for in, aggregates them and assigns a severity.
func (s *Scorer) Score(ctx context.Context, in Input) Assessment {
	reversibility := 0.5
	if in.Reversible {
		reversibility = 0.9
	}
	f := Factors{
		PatternMatch:      PatternMatch(in.Evidence),
		HistoricalSuccess: similarity.Clamp(s.history.SuccessRate(ctx, in.Strategy)),
		ComplexityPenalty: ComplexityPenalty(in.FileCount),
		Reversibility:     reversibility,
		ContextClarity:    similarity.Clamp(in.ContextClarity),
	}
	score := Aggregate(f)
	return Assessment{
		Factors:    f,
		Confidence: score,
		Severity:   s.Severity(score, in.Origin),
	}
}

// Severity is critical only for pattern-based issues at or above the
// threshold. Pairwise issues are never eligible.
func (s *Scorer) Severity(score float64, origin Origin) Severity {
	if origin == OriginPattern && score >= s.threshold {
		return SeverityCritical
	}
	return SeverityWarning
}

// AutoExecutable reports whether an issue may skip manual approval.
// Execution still needs an explicit caller decision.
func (s *Scorer) AutoExecutable(score float64, origin Origin) bool {
	return s.Severity(score, origin) == SeverityCritical
}

// Aggregate applies the fixed weights and the complexity dampener, then
// clamps to [0,1]. A non-positive penalty is treated as 1 (no dampening).
func Aggregate(f Factors) float64 {
	penalty := f.ComplexityPenalty
	if penalty <= 0 || penalty > 1 {
		penalty = 1
	}
	base := similarity.Clamp(f.PatternMatch)*WeightPatternMatch +
		similarity.Clamp(f.HistoricalSuccess)*WeightHistoricalSuccess +
		similarity.Clamp(f.Reversibility)*WeightReversibility +
		similarity.Clamp(f.ContextClarity)*WeightContextClarity
	return similarity.Clamp(base * penalty)
}

// PatternMatch is the mean evidence weight, 0.5 for no evidence.
func PatternMatch(evidence []Evidence) float64 {
	if len(evidence) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, e := range evidence {
		sum += similarity.Clamp(e.Weight)
	}
	return similarity.Clamp(sum / float64(len(evidence)))
}

// ComplexityPenalty is 1.0 for up to two files and loses 0.05 per extra
// file, never going below 0.5.
func ComplexityPenalty(fileCount int) float64 {
	if fileCount <= 2 {
		return 1
	}
	return max(0.5, 1-0.05*float64(fileCount-2))
}
