package confidence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedHistory float64

func (f fixedHistory) SuccessRate(context.Context, string) float64 { return float64(f) }

func TestAggregate_Weights(t *testing.T) {
	f := Factors{
		PatternMatch:      1,
		HistoricalSuccess: 0.5,
		ComplexityPenalty: 1,
		Reversibility:     1,
		ContextClarity:    1,
	}
	// 0.40 + 0.15 + 0.15 + 0.15
	assert.InDelta(t, 0.85, Aggregate(f), 1e-9)

	f.ComplexityPenalty = 0.5
	assert.InDelta(t, 0.425, Aggregate(f), 1e-9)
}

func TestAggregate_AlwaysInRange(t *testing.T) {
	cases := []Factors{
		{PatternMatch: 5, HistoricalSuccess: 5, Reversibility: 5, ContextClarity: 5, ComplexityPenalty: 1},
		{PatternMatch: -3, HistoricalSuccess: -1, Reversibility: -1, ContextClarity: -1, ComplexityPenalty: 1},
		{PatternMatch: 1, HistoricalSuccess: 1, Reversibility: 1, ContextClarity: 1, ComplexityPenalty: 0},
		{PatternMatch: 1, HistoricalSuccess: 1, Reversibility: 1, ContextClarity: 1, ComplexityPenalty: 7},
	}
	for _, f := range cases {
		got := Aggregate(f)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestPatternMatch(t *testing.T) {
	assert.Equal(t, 0.5, PatternMatch(nil))
	assert.InDelta(t, 0.6, PatternMatch([]Evidence{{Weight: 0.4}, {Weight: 0.8}}), 1e-9)
	assert.Equal(t, 1.0, PatternMatch([]Evidence{{Weight: 3}}))
}

func TestComplexityPenalty(t *testing.T) {
	assert.Equal(t, 1.0, ComplexityPenalty(0))
	assert.Equal(t, 1.0, ComplexityPenalty(2))
	assert.InDelta(t, 0.95, ComplexityPenalty(3), 1e-9)
	assert.Equal(t, 0.5, ComplexityPenalty(40))
}

func TestScorer_SeverityRequiresPatternOrigin(t *testing.T) {
	s := NewScorer(0, nil)
	assert.Equal(t, 0.85, s.Threshold())

	assert.Equal(t, SeverityCritical, s.Severity(0.9, OriginPattern))
	assert.Equal(t, SeverityCritical, s.Severity(0.85, OriginPattern))
	assert.Equal(t, SeverityWarning, s.Severity(0.84, OriginPattern))
	assert.Equal(t, SeverityWarning, s.Severity(1.0, OriginPairwise))
	assert.False(t, s.AutoExecutable(1.0, OriginPairwise))
}

func TestScorer_Score(t *testing.T) {
	s := NewScorer(0.85, fixedHistory(1))
	a := s.Score(context.Background(), Input{
		Evidence:       []Evidence{{Weight: 1}, {Weight: 1}},
		Origin:         OriginPattern,
		FileCount:      2,
		Reversible:     true,
		ContextClarity: 1,
	})

	// 0.40 + 0.30 + 0.9*0.15 + 0.15
	assert.InDelta(t, 0.985, a.Confidence, 1e-9)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, 1.0, a.Factors.HistoricalSuccess)
}

func TestScorer_ScoreNeutralHistory(t *testing.T) {
	s := NewScorer(0.85, nil)
	a := s.Score(context.Background(), Input{Origin: OriginPairwise, FileCount: 2})

	assert.Equal(t, NeutralSuccess, a.Factors.HistoricalSuccess)
	assert.Equal(t, SeverityWarning, a.Severity)
	// 0.5*0.40 + 0.5*0.30 + 0.5*0.15 + 0
	assert.InDelta(t, 0.425, a.Confidence, 1e-9)
}
