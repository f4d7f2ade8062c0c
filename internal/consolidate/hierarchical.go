package consolidate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/redoc/internal/refs"
	"github.com/HendryAvila/redoc/internal/similarity"
)

type hierarchical struct {
	engine *similarity.Engine
}

func (*hierarchical) Name() Name { return Hierarchical }

func (*hierarchical) Description() string {
	return "Keep the primary document, trim sections it already covers from the others and point them at it"
}

func (h *hierarchical) Analyze(in Input) (*Plan, error) {
	g, err := prepare(h.engine, in)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Strategy:       Hierarchical,
		PrimaryFile:    g.primary,
		Files:          g.files,
		Modifications:  []FileModification{{File: g.primary, Action: ActionKeep}},
		RecommendMerge: true,
		Steps:          StepsFor(Hierarchical),
	}
	primaryRaw := g.docs[g.primary].Raw
	for _, s := range g.secondaries() {
		r := g.pair(h.engine, g.primary, s)
		sections := matchedHeaders(r, s)
		mod := FileModification{
			File:        s,
			Action:      ActionTrimSections,
			Sections:    sections,
			Reference:   g.primary,
			Counterpart: counterparts(r, s),
		}
		if len(sections) == 0 {
			mod.Action = ActionAddReferences
			mod.References = []string{g.primary}
			mod.Counterpart = nil
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("%s has no section duplicated in %s; only a reference is added", s, g.primary))
		} else {
			_, _, kept := trimDuplicated(g.docs[s].Raw, primaryRaw, sections, mod.Counterpart)
			for _, k := range kept {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf(
					"%s: section %q keeps %d line(s) not found in %s; only the duplicated lines are trimmed",
					s, k.Header, len(k.Lines), g.primary))
			}
		}
		plan.Modifications = append(plan.Modifications, mod)
	}
	plan.EstimatedLineReduction = h.estimate(g)
	return plan, nil
}

// estimate counts the lines trimming would drop when any section
// matched, and uses the overlap heuristic otherwise.
func (h *hierarchical) estimate(g *group) int {
	total := 0
	primaryRaw := g.docs[g.primary].Raw
	for _, s := range g.secondaries() {
		r := g.pair(h.engine, g.primary, s)
		headers := matchedHeaders(r, s)
		if len(headers) == 0 {
			continue
		}
		raw := g.docs[s].Raw
		out, _, _ := trimDuplicated(raw, primaryRaw, headers, counterparts(r, s))
		total += countLines(raw) - countLines(out)
	}
	if total > 0 {
		return total
	}
	return g.estimateReduction(h.engine)
}

func (h *hierarchical) Apply(ctx context.Context, plan *Plan, ws *Workspace) error {
	primaryText, err := ws.Read(plan.PrimaryFile)
	if err != nil {
		return fmt.Errorf("consolidate: read primary: %w", err)
	}
	primaryTitle := title(primaryText, plan.PrimaryFile)

	var errs []error
	for _, mod := range plan.Modifications {
		if mod.Action != ActionTrimSections && mod.Action != ActionAddReferences {
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
		if mod.Action == ActionTrimSections {
			text, _, _ = trimDuplicated(text, primaryText, mod.Sections, mod.Counterpart)
		}
		note := seeAlsoNote(mod.File, plan.PrimaryFile, primaryTitle)
		if !strings.Contains(text, note) {
			text = insertAfterTitle(text, note)
		}
		ws.Write(mod.File, text, mod.Action)
	}
	return errors.Join(errs...)
}

func seeAlsoNote(from, primary, primaryTitle string) string {
	return fmt.Sprintf("> See [%s](%s) for the complete documentation.", primaryTitle, refs.RelativeTarget(from, primary))
}
