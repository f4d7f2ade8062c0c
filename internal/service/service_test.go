package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/redoc/internal/config"
	"github.com/HendryAvila/redoc/internal/consolidate"
	"github.com/HendryAvila/redoc/internal/refs"
	"github.com/HendryAvila/redoc/internal/store"
)

const setupText = "# Install\nRun make install to build the redoc binary from source.\n" +
	"# Configure\nEdit redoc.yaml to change thresholds and ignore globs.\n"

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// newTestService builds a service over a temp corpus with a real store.
func newTestService(t *testing.T, files map[string]string) (*Service, string, *store.Store) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	cfg := config.DefaultConfig()
	st, err := store.New(store.DefaultConfig(cfg.DataPath(root)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(Options{Root: root, Config: cfg, Store: st}), root, st
}

func TestConsolidationLifecycle(t *testing.T) {
	files := map[string]string{
		"docs/setup.md":        setupText,
		"docs/install.md":      setupText + "# Upgrade\nRun make install again.\n",
		"docs/architecture.md": "# Layers\nThe engine has five packages wired by a server.\n",
	}
	svc, root, st := newTestService(t, files)
	ctx := context.Background()

	det, err := svc.DetectRedundancy(ctx, DetectRequest{})
	require.NoError(t, err)
	require.Len(t, det.Detection.Issues, 1)
	issue := det.Detection.Issues[0]
	assert.Equal(t, "setup-guides", issue.Pattern)
	assert.Contains(t, det.Summary, "1 issue(s) in 3 file(s)")

	preview, err := svc.PreviewConsolidation(ctx, ConsolidationRequest{IssueID: issue.ID})
	require.NoError(t, err)
	require.False(t, preview.Rejected())
	assert.Equal(t, consolidate.Hierarchical, preview.Plan.Strategy)
	assert.True(t, preview.Result.DryRun)
	assert.NotEmpty(t, preview.Result.ChangedFiles)
	for rel, body := range files {
		assert.Equal(t, body, readFile(t, root, rel), "preview must not write %s", rel)
	}

	exec, err := svc.ExecuteConsolidation(ctx, ConsolidationRequest{IssueID: issue.ID})
	require.NoError(t, err)
	require.True(t, exec.Result.Success, exec.Result.Errors)
	assert.Equal(t, preview.Result.ChangedFiles, exec.Result.ChangedFiles)
	assert.NotEmpty(t, exec.Result.BackupName)
	changed := false
	for rel, body := range files {
		if readFile(t, root, rel) != body {
			changed = true
		}
	}
	assert.True(t, changed)

	again, err := svc.PreviewConsolidation(ctx, ConsolidationRequest{IssueID: issue.ID})
	require.NoError(t, err)
	assert.True(t, again.Rejected(), "executed issues are forgotten")

	backups, err := svc.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups.Backups, 1)
	assert.Equal(t, exec.Result.BackupName, backups.Backups[0].Name)

	rb, err := svc.RollbackConsolidation(ctx, RollbackRequest{BackupName: exec.Result.BackupName})
	require.NoError(t, err)
	require.True(t, rb.Result.Success, rb.Result.Errors)
	for rel, body := range files {
		assert.Equal(t, body, readFile(t, root, rel))
	}

	events, err := st.RecentEvents(ctx, OpExecuteConsolidation, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, exec.Summary, events[0].Summary)

	assert.InDelta(t, 0.5, st.SuccessRate(ctx, string(consolidate.Hierarchical)), 1e-9, "one outcome is not enough history")
}

func TestConsolidation_ByFiles(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{
		"a.md": setupText,
		"b.md": setupText,
	})

	resp, err := svc.PreviewConsolidation(context.Background(), ConsolidationRequest{
		Files:    []string{"a.md", "b.md"},
		Primary:  "b.md",
		Strategy: string(consolidate.MergeAndRedirect),
	})
	require.NoError(t, err)
	require.False(t, resp.Rejected(), resp.Errors)
	assert.Equal(t, "b.md", resp.Plan.PrimaryFile)
	assert.Equal(t, consolidate.MergeAndRedirect, resp.Plan.Strategy)
}

func TestConsolidation_Rejections(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"a.md": setupText, "b.md": setupText})
	ctx := context.Background()

	_, err := svc.ExecuteConsolidation(ctx, ConsolidationRequest{})
	assert.ErrorIs(t, err, ErrMissingArgument)

	resp, err := svc.PreviewConsolidation(ctx, ConsolidationRequest{IssueID: "red-0000000000"})
	require.NoError(t, err)
	assert.True(t, resp.Rejected())
	assert.Contains(t, resp.Summary, "run redundancy detection first")

	resp, err = svc.ExecuteConsolidation(ctx, ConsolidationRequest{Files: []string{"a.md", "b.md"}, Strategy: "shuffle"})
	require.NoError(t, err)
	assert.True(t, resp.Rejected())
	assert.Contains(t, resp.Errors[0], "unknown strategy")

	resp, err = svc.ExecuteConsolidation(ctx, ConsolidationRequest{Files: []string{"a.md"}})
	require.NoError(t, err)
	assert.True(t, resp.Rejected())
	assert.Contains(t, resp.Errors[0], "at least two distinct files")
}

func TestRollback_Errors(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"a.md": "# A\n"})
	ctx := context.Background()

	_, err := svc.RollbackConsolidation(ctx, RollbackRequest{})
	assert.ErrorIs(t, err, ErrMissingArgument)

	resp, err := svc.RollbackConsolidation(ctx, RollbackRequest{BackupName: "20260101T000000Z-none-00000000"})
	require.NoError(t, err)
	assert.False(t, resp.Result.Success)
	assert.Contains(t, resp.Summary, "failed")
}

func TestReferences_MoveAndUpdate(t *testing.T) {
	svc, root, _ := newTestService(t, map[string]string{
		"docs/A.md": "# A\n",
		"docs/B.md": "See [A](A.md).\n",
	})
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "archive"), 0o755))
	require.NoError(t, os.Rename(filepath.Join(root, "docs", "A.md"), filepath.Join(root, "docs", "archive", "A.md")))

	before, err := svc.ValidateReferences(ctx, ValidateRequest{})
	require.NoError(t, err)
	assert.False(t, before.Valid)
	require.Len(t, before.Report.BrokenReferences, 1)
	assert.Equal(t, "target file not found: docs/A.md", before.Report.BrokenReferences[0].Error)

	moves := []refs.Move{{From: "docs/A.md", To: "docs/archive/A.md"}}
	dry, err := svc.UpdateReferences(ctx, UpdateRequest{Moves: moves, DryRun: true})
	require.NoError(t, err)
	require.Len(t, dry.Updates, 1)
	assert.Equal(t, "[A](archive/A.md)", dry.Updates[0].NewLink)
	assert.Equal(t, "See [A](A.md).\n", readFile(t, root, "docs/B.md"))

	applied, err := svc.UpdateReferences(ctx, UpdateRequest{Moves: moves})
	require.NoError(t, err)
	require.True(t, applied.Success, applied.Errors)
	assert.Equal(t, []string{"docs/B.md"}, applied.FilesUpdated)
	assert.Equal(t, 1, applied.LinksUpdated)
	assert.NotEmpty(t, applied.BackupName)
	assert.Equal(t, "See [A](archive/A.md).\n", readFile(t, root, "docs/B.md"))

	after, err := svc.ValidateReferences(ctx, ValidateRequest{Files: []string{"docs/B.md"}})
	require.NoError(t, err)
	assert.True(t, after.Valid)
	assert.Equal(t, 1, after.Report.FilesScanned)

	_, err = svc.UpdateReferences(ctx, UpdateRequest{})
	assert.ErrorIs(t, err, ErrMissingArgument)
	_, err = svc.UpdateReferences(ctx, UpdateRequest{Moves: []refs.Move{{From: "a.md"}}})
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestGenerateHealthReport(t *testing.T) {
	svc, _, st := newTestService(t, map[string]string{
		"one.md": "# One\nalpha beta gamma\n",
		"two.md": "# Two\ndelta epsilon zeta\n",
	})
	ctx := context.Background()

	resp, err := svc.GenerateHealthReport(ctx, HealthRequest{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, resp.Report.Score)
	assert.Equal(t, 2, resp.Report.Snapshot.Metrics.TotalFiles)
	assert.Contains(t, resp.Markdown, "# Documentation Health Report")
	assert.Contains(t, resp.Summary, "health 100.0/100")

	latest, err := st.LatestSnapshot(ctx, "health")
	require.NoError(t, err)
	assert.NotNil(t, latest)
}

func TestGenerateHealthReport_LeavesDetectionStateAlone(t *testing.T) {
	svc, _, st := newTestService(t, map[string]string{"a.md": setupText, "b.md": setupText})
	ctx := context.Background()

	rep, err := svc.GenerateHealthReport(ctx, HealthRequest{})
	require.NoError(t, err)
	require.Len(t, rep.Report.Opportunities, 1)
	assert.Empty(t, svc.issues, "a report does not fill the issue cache")
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sightings)

	det, err := svc.DetectRedundancy(ctx, DetectRequest{})
	require.NoError(t, err)
	require.Len(t, det.Detection.Issues, 1)
	assert.True(t, det.Detection.Issues[0].FirstOccurrence)
	id := det.Detection.Issues[0].ID

	_, err = svc.GenerateHealthReport(ctx, HealthRequest{})
	require.NoError(t, err)
	_, cached := svc.issues[id]
	assert.True(t, cached, "a report keeps the issues of the last detection")
	stats, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sightings)
}

func TestGenerateHealthReport_History(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"one.md": "# One\nalpha beta gamma\n"})
	ctx := context.Background()

	first, err := svc.GenerateHealthReport(ctx, HealthRequest{})
	require.NoError(t, err)
	assert.Nil(t, first.History)
	assert.NotContains(t, first.Markdown, "## History")

	resp, err := svc.GenerateHealthReport(ctx, HealthRequest{History: true})
	require.NoError(t, err)
	require.NotNil(t, resp.History)
	assert.Empty(t, resp.History.Warnings)
	require.Len(t, resp.History.Archive, 1, "one archive entry per day")
	assert.Equal(t, 1, resp.History.Archive[0].Metrics.TotalFiles)
	require.NotEmpty(t, resp.History.RecentRuns)
	assert.Equal(t, OpGenerateHealthReport, resp.History.RecentRuns[0].Operation)
	require.NotNil(t, resp.History.Stats)
	assert.Equal(t, 2, resp.History.Stats.Snapshots)
	assert.Equal(t, 1, resp.History.Stats.Events)
	assert.Contains(t, resp.Markdown, "## History")
	assert.Contains(t, resp.Markdown, "`generate-health-report` ok")
}

func TestScoreConfidence(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	resp, err := svc.ScoreConfidence(ctx, ScoreRequest{Origin: "pattern", FileCount: 2, Reversible: true, ContextClarity: 1})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.Assessment.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Assessment.Confidence, 1.0)

	_, err = svc.ScoreConfidence(ctx, ScoreRequest{Origin: "guess"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.ScoreConfidence(ctx, ScoreRequest{Strategy: "shuffle"})
	assert.True(t, IsArgumentError(err))
}

func TestDetect_InvalidThreshold(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.DetectRedundancy(context.Background(), DetectRequest{Threshold: 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNew_WithoutStore(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": setupText, "b.md": setupText})
	svc := New(Options{Root: root})

	det, err := svc.DetectRedundancy(context.Background(), DetectRequest{})
	require.NoError(t, err)
	require.Len(t, det.Detection.Issues, 1)
	assert.True(t, det.Detection.Issues[0].FirstOccurrence)

	rep, err := svc.GenerateHealthReport(context.Background(), HealthRequest{History: true})
	require.NoError(t, err)
	assert.Nil(t, rep.Report.Previous)
	assert.Equal(t, []string{"no history store configured"}, rep.History.Warnings)
}
