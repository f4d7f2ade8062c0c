package consolidate

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/HendryAvila/redoc/internal/refs"
	"github.com/HendryAvila/redoc/internal/similarity"
)

type mergeRedirect struct {
	engine     *similarity.Engine
	archiveDir string
}

func (*mergeRedirect) Name() Name { return MergeAndRedirect }

func (*mergeRedirect) Description() string {
	return "Fold every document into the primary, archive the rest and redirect inbound links"
}

func (m *mergeRedirect) Analyze(in Input) (*Plan, error) {
	g, err := prepare(m.engine, in)
	if err != nil {
		return nil, err
	}
	secondaries := g.secondaries()
	plan := &Plan{
		Strategy:       MergeAndRedirect,
		PrimaryFile:    g.primary,
		Files:          g.files,
		RecommendMerge: true,
		Steps:          StepsFor(MergeAndRedirect),
		Modifications: []FileModification{{
			File:       g.primary,
			Action:     ActionMergeContent,
			References: secondaries,
		}},
	}
	primaryRaw := g.docs[g.primary].Raw
	for _, s := range secondaries {
		for _, r := range sharedResidue(primaryRaw, g.docs[s].Raw) {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"%s: %d line(s) of section %q are added to the same section of %s",
				s, len(r.Lines), r.Header, g.primary))
		}
		plan.Modifications = append(plan.Modifications, FileModification{
			File:        s,
			Action:      ActionArchive,
			Reference:   g.primary,
			Destination: m.destination(s),
		})
	}
	if m.archiveDir == "" {
		plan.Warnings = append(plan.Warnings, "no archive directory configured; secondary documents are deleted")
	}

	// Inbound links anywhere in the corpus.
	isSecondary := map[string]bool{}
	for _, s := range secondaries {
		isSecondary[s] = true
	}
	for _, src := range refs.SourcesOf(in.Corpus) {
		if isSecondary[src.Path] {
			continue
		}
		var targets []string
		seen := map[string]bool{}
		for _, ref := range refs.Extract(src.Path, src.Text) {
			if ref.File != "" && isSecondary[ref.Resolved] && !seen[ref.Resolved] {
				seen[ref.Resolved] = true
				targets = append(targets, ref.Resolved)
			}
		}
		if len(targets) > 0 {
			plan.Modifications = append(plan.Modifications, FileModification{
				File:       src.Path,
				Action:     ActionUpdateReferences,
				Reference:  g.primary,
				References: targets,
			})
		}
	}

	plan.EstimatedLineReduction = g.estimateReduction(m.engine)
	return plan, nil
}

func (m *mergeRedirect) destination(file string) string {
	if m.archiveDir == "" {
		return ""
	}
	return path.Join(m.archiveDir, file)
}

// Apply runs in three phases whatever the modification order: merge into
// the primary, archive the secondaries, then rewrite links.
func (m *mergeRedirect) Apply(ctx context.Context, plan *Plan, ws *Workspace) error {
	var errs []error
	var moves []refs.Move
	updateFiles := []string{plan.PrimaryFile}

	for _, mod := range plan.Modifications {
		if mod.Action != ActionMergeContent {
			continue
		}
		if err := m.mergeInto(ws, mod); err != nil {
			errs = append(errs, err)
		}
	}

	for _, mod := range plan.Modifications {
		switch mod.Action {
		case ActionArchive:
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if err := archive(ws, mod); err != nil {
				errs = append(errs, err)
				continue
			}
			moves = append(moves, refs.Move{From: mod.File, To: mod.Reference})
		case ActionUpdateReferences:
			if mod.File != plan.PrimaryFile {
				updateFiles = append(updateFiles, mod.File)
			}
		}
	}

	for _, file := range updateFiles {
		if !ws.Exists(file) {
			continue
		}
		text, err := ws.Read(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		updates, err := refs.PlanUpdates(ctx, []refs.Source{{Path: file, Text: text}}, moves, ws.Exists)
		if err != nil {
			errs = append(errs, err)
			break
		}
		if out, n := refs.Rewrite(text, updates); n > 0 {
			ws.Write(file, out, ActionUpdateReferences)
		}
	}
	return errors.Join(errs...)
}

// mergeInto appends every section of the sources the primary does not
// have yet. For a section the primary already has, only the lines it
// does not say yet are added to the end of that section. Links in moved
// content are rebased onto the primary.
func (m *mergeRedirect) mergeInto(ws *Workspace, mod FileModification) error {
	text, err := ws.Read(mod.File)
	if err != nil {
		return fmt.Errorf("consolidate: read primary: %w", err)
	}

	var errs []error
	for _, src := range mod.References {
		srcText, err := ws.Read(src)
		if err != nil {
			errs = append(errs, fmt.Errorf("consolidate: merge %s: %w", src, err))
			continue
		}
		text = foldSections(text, srcText, func(block string) string {
			return refs.RebaseLinks(block, src, mod.File)
		})
	}
	ws.Write(mod.File, text, ActionMergeContent)
	return errors.Join(errs...)
}

// foldSections merges the sections of src into text: new sections are
// appended whole, shared ones contribute their unique lines.
func foldSections(text, src string, rebase func(string) string) string {
	_, sections := splitSections(src)
	for _, s := range sections {
		if blank(s.Lines[1:]) {
			continue
		}
		body, have := sectionBodies(text)[similarity.NormalizeHeader(s.Header)]
		if !have {
			text = appendBlock(text, rebase(strings.Join(s.Lines, "\n")))
			continue
		}
		if _, unique := reduceSection(s, coverageOf(body)); len(unique) > 0 {
			text = appendToSection(text, s.Header, strings.Split(rebase(strings.Join(unique, "\n")), "\n"))
		}
	}
	return text
}

// sharedResidue lists, per section src shares with primary, the lines
// primary does not have.
func sharedResidue(primary, src string) []residue {
	bodies := sectionBodies(primary)
	_, sections := splitSections(src)
	var out []residue
	for _, s := range sections {
		body, ok := bodies[similarity.NormalizeHeader(s.Header)]
		if !ok {
			continue
		}
		if _, unique := reduceSection(s, coverageOf(body)); len(unique) > 0 {
			out = append(out, residue{Header: s.Header, Lines: unique})
		}
	}
	return out
}

func archive(ws *Workspace, mod FileModification) error {
	text, err := ws.Read(mod.File)
	if err != nil {
		return fmt.Errorf("consolidate: archive %s: %w", mod.File, err)
	}
	if mod.Destination != "" {
		if ws.Exists(mod.Destination) {
			return fmt.Errorf("consolidate: archive %s: destination %s already exists", mod.File, mod.Destination)
		}
		ws.Write(mod.Destination, refs.RebaseLinks(text, mod.File, mod.Destination), ActionArchive)
	}
	ws.Remove(mod.File, ActionArchive)
	return nil
}

func blank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}
