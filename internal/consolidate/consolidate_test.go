package consolidate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/HendryAvila/redoc/internal/backup"
	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/similarity"
)

// --- fixtures ---

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readDoc(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func load(t *testing.T, root string) *corpus.Corpus {
	t.Helper()
	c, failed, err := corpus.ScanAndLoad(context.Background(), root, nil, nil)
	require.NoError(t, err)
	require.Empty(t, failed)
	return c
}

type recordedOutcome struct {
	strategy string
	success  bool
	files    int
}

type outcomeLog []recordedOutcome

func (l *outcomeLog) RecordOutcome(_ context.Context, strategy string, success bool, files int) error {
	*l = append(*l, recordedOutcome{strategy, success, files})
	return nil
}

type harness struct {
	root     string
	registry *Registry
	exec     *Executor
	outcomes *outcomeLog
}

func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeDoc(t, root, rel, content)
	}
	registry := NewRegistry(similarity.NewEngine(0, 0, nil), "archive")
	outcomes := &outcomeLog{}
	return &harness{
		root:     root,
		registry: registry,
		outcomes: outcomes,
		exec: NewExecutor(ExecutorOptions{
			Root:       root,
			Registry:   registry,
			Backups:    backup.NewStore(filepath.Join(t.TempDir(), "backups")),
			Outcomes:   outcomes,
			ArchiveDir: "archive",
		}),
	}
}

func (h *harness) plan(t *testing.T, strategy string, files []string, primary string) (*corpus.Corpus, *Plan) {
	t.Helper()
	c := load(t, h.root)
	plan, err := h.registry.Analyze(strategy, Input{Corpus: c, Files: files, Primary: primary})
	require.NoError(t, err)
	return c, plan
}

const (
	guideText = "# Guide\n\n## Install\nRun make install to build it.\n\n## Configure\nEdit redoc.yaml.\n"
	setupText = "# Setup\n\n## Install\nRun make install to build it.\n\n## Troubleshooting\nCheck the logs.\n"
)

// --- hierarchical ---

func TestHierarchical_AnalyzeExecuteRollback(t *testing.T) {
	h := newHarness(t, map[string]string{"docs/guide.md": guideText, "docs/setup.md": setupText})

	c, plan := h.plan(t, string(Hierarchical), []string{"docs/guide.md", "docs/setup.md"}, "docs/guide.md")
	assert.Equal(t, "docs/guide.md", plan.PrimaryFile)
	require.Len(t, plan.Modifications, 2)
	assert.Equal(t, FileModification{File: "docs/guide.md", Action: ActionKeep}, plan.Modifications[0])
	assert.Equal(t, ActionTrimSections, plan.Modifications[1].Action)
	assert.Equal(t, []string{"Install"}, plan.Modifications[1].Sections)
	assert.Equal(t, "docs/guide.md", plan.Modifications[1].Reference)
	assert.Equal(t, 3, plan.EstimatedLineReduction)
	assert.Equal(t, StepsFor(Hierarchical), plan.Steps)

	res := h.exec.Execute(context.Background(), c, plan, false)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, []string{"docs/setup.md"}, res.ChangedFiles)
	assert.NotEmpty(t, res.BackupName)
	assert.True(t, res.Validation.SyntaxValid)
	assert.True(t, res.Validation.LinksValid, res.Validation.Errors)
	assert.Equal(t, 1, res.LinesRemoved)

	assert.Equal(t,
		"# Setup\n\n> See [Guide](guide.md) for the complete documentation.\n\n## Troubleshooting\nCheck the logs.\n",
		readDoc(t, h.root, "docs/setup.md"))
	assert.Equal(t, guideText, readDoc(t, h.root, "docs/guide.md"))
	assert.Equal(t, outcomeLog{{string(Hierarchical), true, 1}}, *h.outcomes)

	rb := h.exec.Rollback(context.Background(), res.BackupName)
	require.True(t, rb.Success, rb.Errors)
	assert.True(t, rb.RolledBack)
	assert.Equal(t, setupText, readDoc(t, h.root, "docs/setup.md"))
}

func TestHierarchical_Idempotent(t *testing.T) {
	h := newHarness(t, map[string]string{"docs/guide.md": guideText, "docs/setup.md": setupText})
	files := []string{"docs/guide.md", "docs/setup.md"}

	c, plan := h.plan(t, string(Hierarchical), files, "docs/guide.md")
	require.True(t, h.exec.Execute(context.Background(), c, plan, false).Success)
	after := readDoc(t, h.root, "docs/setup.md")

	c, plan = h.plan(t, string(Hierarchical), files, "docs/guide.md")
	res := h.exec.Execute(context.Background(), c, plan, false)
	require.True(t, res.Success, res.Errors)
	assert.Empty(t, res.ChangedFiles)
	assert.Empty(t, res.BackupName)
	assert.Equal(t, after, readDoc(t, h.root, "docs/setup.md"))
}

func TestDryRunParity(t *testing.T) {
	h := newHarness(t, map[string]string{"docs/guide.md": guideText, "docs/setup.md": setupText})
	files := []string{"docs/guide.md", "docs/setup.md"}

	c, preview := h.plan(t, string(Hierarchical), files, "")
	dry := h.exec.Execute(context.Background(), c, preview, true)
	require.True(t, dry.Success, dry.Errors)
	assert.True(t, dry.DryRun)
	assert.Empty(t, dry.BackupName)
	assert.Equal(t, setupText, readDoc(t, h.root, "docs/setup.md"))
	assert.Empty(t, *h.outcomes)

	c, real := h.plan(t, string(Hierarchical), files, "")
	assert.Equal(t, preview.PrimaryFile, real.PrimaryFile)
	assert.Equal(t, preview.Modifications, real.Modifications)

	res := h.exec.Execute(context.Background(), c, real, false)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, dry.ChangedFiles, res.ChangedFiles)
	assert.Equal(t, dry.LinesRemoved, res.LinesRemoved)
}

func TestHierarchical_KeepsUniqueLines(t *testing.T) {
	h := newHarness(t, map[string]string{
		"guide.md": "# Guide\n\n## Install\nRun make install to build the binary from source.\n",
		"setup.md": "# Setup\n\n## Install\nRun make install to build the binary from source.\nSet REDOC_KEY first.\n",
	})

	c, plan := h.plan(t, string(Hierarchical), []string{"guide.md", "setup.md"}, "guide.md")
	require.Len(t, plan.Modifications, 2)
	assert.Equal(t, []string{"Install"}, plan.Modifications[1].Sections)
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], `section "Install" keeps 1 line(s)`)
	assert.Equal(t, 1, plan.EstimatedLineReduction)

	res := h.exec.Execute(context.Background(), c, plan, false)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t,
		"# Setup\n\n> See [Guide](guide.md) for the complete documentation.\n\n## Install\nSet REDOC_KEY first.\n",
		readDoc(t, h.root, "setup.md"))
}

func TestStepsFor_HierarchicalOnlyListsWhatApplyDoes(t *testing.T) {
	for _, step := range StepsFor(Hierarchical) {
		assert.NotContains(t, step, "archive", "hierarchical never archives files")
	}
	assert.Contains(t, StepsFor(MergeAndRedirect), "archive secondary documents")
}

// --- merge-and-redirect ---

func TestMerge_FoldsUniqueLinesOfSharedSection(t *testing.T) {
	h := newHarness(t, map[string]string{
		"a.md": "# A\n\n## Install\nRun make install to build it.\n\n## Usage\nRun redoc.\n",
		"b.md": "# B\n\n## Install\nRun make install to build it.\nSet REDOC_KEY first.\n",
	})

	c, plan := h.plan(t, string(MergeAndRedirect), []string{"a.md", "b.md"}, "a.md")
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], `1 line(s) of section "Install" are added`)

	res := h.exec.Execute(context.Background(), c, plan, false)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t,
		"# A\n\n## Install\nRun make install to build it.\nSet REDOC_KEY first.\n\n## Usage\nRun redoc.\n",
		readDoc(t, h.root, "a.md"))
}

func TestMerge_FoldsArchivesAndRedirects(t *testing.T) {
	h := newHarness(t, map[string]string{
		"a.md":     "# A\n## Shared\nsame text here\n",
		"b.md":     "# B\n## Shared\nsame text here\n## Extra\nunique b\n",
		"index.md": "[b](b.md)\n",
	})

	c, plan := h.plan(t, string(MergeAndRedirect), []string{"a.md", "b.md"}, "a.md")
	require.Len(t, plan.Modifications, 3)
	assert.Equal(t, ActionMergeContent, plan.Modifications[0].Action)
	assert.Equal(t, []string{"b.md"}, plan.Modifications[0].References)
	assert.Equal(t, FileModification{File: "b.md", Action: ActionArchive, Reference: "a.md", Destination: "archive/b.md"}, plan.Modifications[1])
	assert.Equal(t, ActionUpdateReferences, plan.Modifications[2].Action)
	assert.Equal(t, "index.md", plan.Modifications[2].File)
	assert.Equal(t, []string{"a.md", "b.md", "archive/b.md", "index.md"}, plan.TouchedFiles())

	res := h.exec.Execute(context.Background(), c, plan, false)
	require.True(t, res.Success, res.Errors)
	assert.ElementsMatch(t, []string{"a.md", "archive/b.md", "b.md", "index.md"}, res.ChangedFiles)
	assert.True(t, res.Validation.LinksValid, res.Validation.Errors)
	assert.Equal(t, 2, res.LinesRemoved)

	assert.Equal(t, "# A\n## Shared\nsame text here\n\n## Extra\nunique b\n", readDoc(t, h.root, "a.md"))
	assert.Equal(t, "# B\n## Shared\nsame text here\n## Extra\nunique b\n", readDoc(t, h.root, "archive/b.md"))
	assert.Equal(t, "[b](a.md)\n", readDoc(t, h.root, "index.md"))
	_, err := os.Stat(filepath.Join(h.root, "b.md"))
	assert.True(t, os.IsNotExist(err))

	rb := h.exec.Rollback(context.Background(), res.BackupName)
	require.True(t, rb.Success, rb.Errors)
	assert.Equal(t, "[b](b.md)\n", readDoc(t, h.root, "index.md"))
	assert.Equal(t, "# A\n## Shared\nsame text here\n", readDoc(t, h.root, "a.md"))
	_, err = os.Stat(filepath.Join(h.root, "archive", "b.md"))
	assert.True(t, os.IsNotExist(err), "files created by the run are removed")
}

func TestExecute_FailureRestoresEverything(t *testing.T) {
	h := newHarness(t, map[string]string{
		"a.md": "# A\n## Shared\nsame text here\n",
		"b.md": "# B\n## Shared\nsame text here\n## Extra\nunique b\n",
	})
	// A plain file where the archive directory should be blocks archiving.
	writeDoc(t, h.root, "archive", "not a directory")

	c, plan := h.plan(t, string(MergeAndRedirect), []string{"a.md", "b.md"}, "a.md")
	res := h.exec.Execute(context.Background(), c, plan, false)

	assert.False(t, res.Success)
	assert.True(t, res.RolledBack)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, strings.Join(res.Errors, "\n"), "archive/b.md")
	assert.Equal(t, []string{"a.md"}, res.ChangedFiles)
	assert.Equal(t, "# A\n## Shared\nsame text here\n", readDoc(t, h.root, "a.md"))
	assert.Equal(t, "# B\n## Shared\nsame text here\n## Extra\nunique b\n", readDoc(t, h.root, "b.md"))
	assert.Equal(t, outcomeLog{{string(MergeAndRedirect), false, 1}}, *h.outcomes)
}

// --- split-by-audience ---

const (
	technicalText    = "# Reference\nThe api endpoint takes a parameter from the database schema.\n"
	nonTechnicalText = "# Welcome\nOur team helps every customer reach business goals.\n"
)

func TestSplitByAudience_DifferentReadersStaySeparate(t *testing.T) {
	h := newHarness(t, map[string]string{"dev.md": technicalText, "intro.md": nonTechnicalText})

	c, plan := h.plan(t, string(SplitByAudience), []string{"dev.md", "intro.md"}, "")
	assert.False(t, plan.RecommendMerge)
	assert.Equal(t, 0, plan.EstimatedLineReduction)
	assert.Equal(t, AudienceTechnical, plan.Audiences["dev.md"])
	assert.Equal(t, AudienceNonTechnical, plan.Audiences["intro.md"])
	require.Len(t, plan.Modifications, 2)
	assert.Equal(t, FileModification{File: "dev.md", Action: ActionAddReferences, Reference: "intro.md", References: []string{"intro.md"}}, plan.Modifications[0])
	assert.Equal(t, FileModification{File: "intro.md", Action: ActionAddReferences, Reference: "dev.md", References: []string{"dev.md"}}, plan.Modifications[1])

	res := h.exec.Execute(context.Background(), c, plan, false)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, technicalText+"\n## Related Documentation\n\n- [Welcome](intro.md) (non-technical audience)\n", readDoc(t, h.root, "dev.md"))
	assert.Equal(t, nonTechnicalText+"\n## Related Documentation\n\n- [Reference](dev.md) (technical audience)\n", readDoc(t, h.root, "intro.md"))

	// The section already exists, so a second run changes nothing.
	c, plan = h.plan(t, string(SplitByAudience), []string{"dev.md", "intro.md"}, "")
	again := h.exec.Execute(context.Background(), c, plan, false)
	require.True(t, again.Success, again.Errors)
	assert.Empty(t, again.ChangedFiles)
}

func TestSplitByAudience_SameAudienceDefers(t *testing.T) {
	h := newHarness(t, map[string]string{"a.md": technicalText, "b.md": technicalText})
	_, plan := h.plan(t, string(SplitByAudience), []string{"a.md", "b.md"}, "")
	assert.True(t, plan.RecommendMerge)
	assert.Equal(t, 0, plan.EstimatedLineReduction)
	for _, m := range plan.Modifications {
		assert.Equal(t, ActionNone, m.Action)
	}
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "technical")
	assert.Empty(t, plan.TouchedFiles())
}

func TestClassifyAudience(t *testing.T) {
	tests := []struct {
		text string
		want Audience
	}{
		{technicalText, AudienceTechnical},
		{nonTechnicalText, AudienceNonTechnical},
		{"api server team users", AudienceMixed},
		{"", AudienceMixed},
		{"api api api team team", AudienceMixed},
		{"api api api api team team", AudienceTechnical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyAudience(tt.text), tt.text)
	}
}

// --- registry and executor edges ---

func TestRegistry_UnknownStrategy(t *testing.T) {
	h := newHarness(t, map[string]string{"a.md": "a", "b.md": "b"})
	_, err := h.registry.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	res := h.exec.Execute(context.Background(), load(t, h.root), &Plan{Strategy: "nope"}, false)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "unknown strategy")
	assert.Equal(t, []Name{Hierarchical, MergeAndRedirect, SplitByAudience}, h.registry.Names())
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	h := newHarness(t, map[string]string{"a.md": "a", "b.md": "b"})
	c := load(t, h.root)

	_, err := h.registry.Analyze(string(Hierarchical), Input{Corpus: c, Files: []string{"a.md", "a.md"}})
	assert.ErrorContains(t, err, "at least two")
	_, err = h.registry.Analyze(string(Hierarchical), Input{Corpus: c, Files: []string{"a.md", "zzz.md"}})
	assert.ErrorContains(t, err, "zzz.md is not in the corpus")
	_, err = h.registry.Analyze(string(Hierarchical), Input{Corpus: c, Files: []string{"a.md", "b.md"}, Primary: "c.md"})
	assert.ErrorContains(t, err, "primary")
}

func TestExecute_WaitsForRunLock(t *testing.T) {
	h := newHarness(t, map[string]string{"docs/guide.md": guideText, "docs/setup.md": setupText})
	lock := semaphore.NewWeighted(1)
	require.NoError(t, lock.Acquire(context.Background(), 1))
	h.exec = NewExecutor(ExecutorOptions{Root: h.root, Registry: h.registry, Backups: backup.NewStore(t.TempDir()), Lock: lock})

	c, plan := h.plan(t, string(Hierarchical), []string{"docs/guide.md", "docs/setup.md"}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.exec.Execute(ctx, c, plan, false)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "run lock")
	assert.Equal(t, setupText, readDoc(t, h.root, "docs/setup.md"))
}

func TestExecute_RejectsPlanFromChangedCorpus(t *testing.T) {
	h := newHarness(t, map[string]string{
		"a.md":     "# A\n## Shared\nThe api endpoint takes a parameter from the database schema.\n",
		"b.md":     "# B\n## Shared\nThe api endpoint takes a parameter from the database schema.\n## Troubleshooting\nCheck the logs.\n",
		"intro.md": nonTechnicalText,
	})

	// Both plans come from one snapshot and both touch a.md.
	c := load(t, h.root)
	merge, err := h.registry.Analyze(string(MergeAndRedirect), Input{Corpus: c, Files: []string{"a.md", "b.md"}, Primary: "a.md"})
	require.NoError(t, err)
	split, err := h.registry.Analyze(string(SplitByAudience), Input{Corpus: c, Files: []string{"a.md", "intro.md"}})
	require.NoError(t, err)
	require.Equal(t, ActionAddReferences, split.Modifications[0].Action)

	first := h.exec.Execute(context.Background(), c, merge, false)
	require.True(t, first.Success, first.Errors)
	merged := readDoc(t, h.root, "a.md")
	require.Contains(t, merged, "## Troubleshooting")

	second := h.exec.Execute(context.Background(), c, split, false)
	assert.False(t, second.Success)
	require.Len(t, second.Errors, 1)
	assert.Contains(t, second.Errors[0], "corpus changed since planning")
	assert.Contains(t, second.Errors[0], "a.md")
	assert.Empty(t, second.BackupName)
	assert.Equal(t, merged, readDoc(t, h.root, "a.md"))
	assert.Equal(t, nonTechnicalText, readDoc(t, h.root, "intro.md"))
	assert.Len(t, *h.outcomes, 1)
}

// --- markdown helpers ---

func TestTrimDuplicated(t *testing.T) {
	primary := "# P\n## A\na body\n```\n# not a header\n```\n## B\nfirst. second.\n"
	text := "intro\n# A\na body\n```\n# not a header\n```\n## B2\nsecond. third.\n## C\nc body\n"

	out, removed, kept := trimDuplicated(text, primary, []string{"A", "B2"}, map[string]string{"B2": "B"})
	assert.Equal(t, []string{"A"}, removed)
	require.Len(t, kept, 1)
	assert.Equal(t, residue{Header: "B2", Lines: []string{"second. third."}}, kept[0])
	assert.Equal(t, "intro\n## B2\nsecond. third.\n## C\nc body\n", out)

	again, removed, _ := trimDuplicated(out, primary, []string{"A"}, nil)
	assert.Empty(t, removed)
	assert.Equal(t, out, again)
}

func TestReduceSection(t *testing.T) {
	cv := coverageOf([]string{"- Run make install.", "```sh", "make install", "```", ""})
	_, sections := splitSections("## Install\n\n* run   MAKE install\n```sh\nmake install\n```\n```sh\nmake test\n```\nNew line here.\n")

	reduced, unique := reduceSection(sections[0], cv)
	assert.Equal(t, []string{"```sh", "make test", "```", "New line here."}, unique)
	assert.Equal(t, "## Install\n```sh\nmake test\n```\nNew line here.\n", strings.Join(reduced.Lines, "\n"))
}

func TestFencesBalanced(t *testing.T) {
	assert.True(t, fencesBalanced("```go\nx\n```\n~~~\ny\n~~~\n"))
	assert.True(t, fencesBalanced("```\n~~~\n```\n"))
	assert.False(t, fencesBalanced("```\nopen\n"))
}

func TestInsertAfterTitle(t *testing.T) {
	assert.Equal(t, "---\nt: x\n---\n# T\n\nnote\n\nbody\n", insertAfterTitle("---\nt: x\n---\n# T\nbody\n", "note"))
	assert.Equal(t, "note\n\nbody\n", insertAfterTitle("body\n", "note"))
}
