package consolidate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/HendryAvila/redoc/internal/refs"
	"github.com/HendryAvila/redoc/internal/similarity"
)

// --- Audience enum ---

// Audience is who a document is written for.
type Audience string

const (
	AudienceTechnical    Audience = "technical"
	AudienceNonTechnical Audience = "non-technical"
	AudienceMixed        Audience = "mixed"
)

// relatedHeader titles the cross-link section split-by-audience adds.
const relatedHeader = "Related Documentation"

var technicalTerms = wordSet(
	"api", "endpoint", "function", "parameter", "parameters", "configuration",
	"config", "database", "schema", "query", "implementation", "architecture",
	"deploy", "deployment", "install", "cli", "server", "module", "compile",
	"debug", "runtime", "interface", "protocol", "struct", "binary", "env",
)

var nonTechnicalTerms = wordSet(
	"overview", "introduction", "benefit", "benefits", "business", "customer",
	"customers", "user", "users", "team", "goal", "goals", "stakeholder",
	"value", "simple", "easy", "welcome", "help", "learn", "everyone",
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// AudienceScores counts technical and non-technical keyword occurrences
// in text.
func AudienceScores(text string) (technical, nonTechnical int) {
	for _, w := range similarity.Words(text) {
		switch {
		case technicalTerms[w]:
			technical++
		case nonTechnicalTerms[w]:
			nonTechnical++
		}
	}
	return technical, nonTechnical
}

// ClassifyAudience calls a document technical when technical terms
// outnumber the others by more than 1.5x, non-technical for the inverse
// and mixed otherwise.
func ClassifyAudience(text string) Audience {
	tech, non := AudienceScores(text)
	switch {
	case float64(tech) > 1.5*float64(non):
		return AudienceTechnical
	case float64(non) > 1.5*float64(tech):
		return AudienceNonTechnical
	default:
		return AudienceMixed
	}
}

type splitByAudience struct {
	engine *similarity.Engine
}

func (*splitByAudience) Name() Name { return SplitByAudience }

func (*splitByAudience) Description() string {
	return "Keep documents written for different readers apart and cross-link them"
}

func (s *splitByAudience) Analyze(in Input) (*Plan, error) {
	g, err := prepare(s.engine, in)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Strategy:    SplitByAudience,
		PrimaryFile: g.primary,
		Files:       g.files,
		Steps:       StepsFor(SplitByAudience),
		Audiences:   map[string]Audience{},
	}
	distinct := map[Audience]bool{}
	for _, f := range g.files {
		a := ClassifyAudience(g.docs[f].Normalized)
		plan.Audiences[f] = a
		distinct[a] = true
	}

	if len(distinct) == 1 {
		for _, f := range g.files {
			plan.Modifications = append(plan.Modifications, FileModification{File: f, Action: ActionNone})
		}
		plan.RecommendMerge = true
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"all documents target the %s audience; use %s or %s instead",
			plan.Audiences[g.primary], Hierarchical, MergeAndRedirect))
		return plan, nil
	}

	for _, f := range g.files {
		var siblings []string
		for _, other := range g.files {
			if other != f {
				siblings = append(siblings, other)
			}
		}
		plan.Modifications = append(plan.Modifications, FileModification{
			File:       f,
			Action:     ActionAddReferences,
			Reference:  siblings[0],
			References: siblings,
		})
	}
	return plan, nil
}

// Apply appends a Related Documentation section to each file that does
// not have one yet.
func (s *splitByAudience) Apply(ctx context.Context, plan *Plan, ws *Workspace) error {
	var errs []error
	for _, mod := range plan.Modifications {
		if mod.Action != ActionAddReferences {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		text, err := ws.Read(mod.File)
		if err != nil {
			errs = append(errs, fmt.Errorf("consolidate: %s: %w", mod.File, err))
			continue
		}
		if hasHeader(text, relatedHeader) {
			continue
		}
		ws.Write(mod.File, appendBlock(text, relatedSection(ws, mod, plan.Audiences)), ActionAddReferences)
	}
	return errors.Join(errs...)
}

func relatedSection(ws *Workspace, mod FileModification, audiences map[string]Audience) string {
	targets := append([]string(nil), mod.References...)
	sort.Strings(targets)

	var b strings.Builder
	b.WriteString("## " + relatedHeader + "\n\n")
	for _, t := range targets {
		text, _ := ws.Read(t)
		line := fmt.Sprintf("- [%s](%s)", title(text, t), refs.RelativeTarget(mod.File, t))
		if a, ok := audiences[t]; ok && a != AudienceMixed {
			line += fmt.Sprintf(" (%s audience)", a)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
