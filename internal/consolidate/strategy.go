package consolidate

import (
	"context"
	"fmt"
	"math"

	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/similarity"
)

// defaultLineReduction is reported when no overlap data is available.
const defaultLineReduction = 50

// Input is what a strategy analyzes: a group of corpus files and any
// overlaps already computed for them.
type Input struct {
	Corpus *corpus.Corpus
	Files  []string
	// Primary overrides the primary-selection rule when set.
	Primary string
	// Overlaps may be partial; missing pairs are computed in memory.
	Overlaps []similarity.Result
}

// Strategy is one consolidation semantics.
type Strategy interface {
	Name() Name
	Description() string
	// Analyze builds a plan without touching the filesystem.
	Analyze(in Input) (*Plan, error)
	// Apply stages the plan's edits in ws. Every modification is
	// attempted; failures are joined into the returned error.
	Apply(ctx context.Context, plan *Plan, ws *Workspace) error
}

// Registry is the closed set of strategies.
type Registry struct {
	byName map[Name]Strategy
	order  []Name
}

// NewRegistry builds the three strategies around one similarity engine.
// Merged-away files are moved under archiveDir (relative to the corpus
// root); an empty archiveDir deletes them instead.
func NewRegistry(engine *similarity.Engine, archiveDir string) *Registry {
	r := &Registry{byName: map[Name]Strategy{}}
	for _, s := range []Strategy{
		&hierarchical{engine: engine},
		&mergeRedirect{engine: engine, archiveDir: archiveDir},
		&splitByAudience{engine: engine},
	} {
		r.byName[s.Name()] = s
		r.order = append(r.order, s.Name())
	}
	return r
}

// Get returns the strategy with the given name.
func (r *Registry) Get(name string) (Strategy, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return r.byName[Name(name)], nil
}

// Names lists registered strategies in registration order.
func (r *Registry) Names() []Name {
	return append([]Name(nil), r.order...)
}

// Analyze looks up a strategy and runs its analysis.
func (r *Registry) Analyze(name string, in Input) (*Plan, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return s.Analyze(in)
}

// group is the validated view of an Input shared by all strategies.
type group struct {
	files    []string
	docs     map[string]*corpus.Document
	primary  string
	overlaps map[string]similarity.Result
}

func prepare(engine *similarity.Engine, in Input) (*group, error) {
	if in.Corpus == nil {
		return nil, fmt.Errorf("consolidate: no corpus loaded")
	}
	g := &group{docs: map[string]*corpus.Document{}, overlaps: map[string]similarity.Result{}}
	for _, f := range in.Files {
		f = corpus.ToSlash(f)
		if _, dup := g.docs[f]; dup {
			continue
		}
		d, ok := in.Corpus.Get(f)
		if !ok {
			return nil, fmt.Errorf("consolidate: %s is not in the corpus", f)
		}
		g.docs[f] = d
		g.files = append(g.files, f)
	}
	if len(g.files) < 2 {
		return nil, fmt.Errorf("consolidate: need at least two distinct files, got %d", len(g.files))
	}

	for _, o := range in.Overlaps {
		if g.docs[o.FileA] != nil && g.docs[o.FileB] != nil {
			g.overlaps[pairKey(o.FileA, o.FileB)] = o
		}
	}
	var all []similarity.Result
	for i := 0; i < len(g.files); i++ {
		for j := i + 1; j < len(g.files); j++ {
			all = append(all, g.pair(engine, g.files[i], g.files[j]))
		}
	}

	if in.Primary != "" {
		p := corpus.ToSlash(in.Primary)
		if g.docs[p] == nil {
			return nil, fmt.Errorf("consolidate: primary %s is not one of the files", p)
		}
		g.primary = p
	} else {
		g.primary = similarity.Primary(g.files, all)
	}
	return g, nil
}

// pair returns the overlap of a and b, computing and caching it if the
// input did not carry it.
func (g *group) pair(engine *similarity.Engine, a, b string) similarity.Result {
	key := pairKey(a, b)
	if r, ok := g.overlaps[key]; ok {
		return r
	}
	r := engine.Compare(g.docs[a].Profile, g.docs[b].Profile)
	g.overlaps[key] = r
	return r
}

func (g *group) secondaries() []string {
	out := make([]string, 0, len(g.files)-1)
	for _, f := range g.files {
		if f != g.primary {
			out = append(out, f)
		}
	}
	return out
}

// estimateReduction scales each secondary's overlap with the primary to
// its line count. Without any overlap data it falls back to a fixed
// estimate.
func (g *group) estimateReduction(engine *similarity.Engine) int {
	total, seen := 0, false
	for _, s := range g.secondaries() {
		r := g.pair(engine, g.primary, s)
		if r.Percentage > 0 {
			seen = true
		}
		total += int(math.Round(r.Percentage * float64(g.docs[s].Lines)))
	}
	if !seen {
		return defaultLineReduction
	}
	return total
}

// matchedHeaders returns the headers of file that matched a section of
// other, as seen from file's side of the pair.
func matchedHeaders(r similarity.Result, file string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range r.SimilarSections {
		h := m.HeaderB
		if r.FileA == file {
			h = m.HeaderA
		}
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// counterparts maps each matched header of file to the header of the
// other document's section it matched. The first match wins.
func counterparts(r similarity.Result, file string) map[string]string {
	out := map[string]string{}
	for _, m := range r.SimilarSections {
		mine, theirs := m.HeaderB, m.HeaderA
		if r.FileA == file {
			mine, theirs = m.HeaderA, m.HeaderB
		}
		if _, ok := out[mine]; !ok {
			out[mine] = theirs
		}
	}
	return out
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}
