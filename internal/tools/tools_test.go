package tools

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

const setupText = "# Install\nRun make install to build the redoc binary from source.\n" +
	"# Configure\nEdit redoc.yaml to change thresholds and ignore globs.\n"

// newTestService builds a store-less service over a temp corpus.
func newTestService(t *testing.T, files map[string]string) (*service.Service, string) {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll() error: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error: %v", rel, err)
		}
	}
	return service.New(service.Options{Root: root}), root
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

type handler interface {
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// call runs a tool and fails the test on a Go error.
func call(t *testing.T, h handler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := h.Handle(context.Background(), makeReq(args))
	if err != nil {
		t.Fatalf("Handle(%v) error: %v", args, err)
	}
	return res
}

func wantContains(t *testing.T, text string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

// ─── Definitions ────────────────────────────────────────────────────────────

func TestDefinitions(t *testing.T) {
	svc, _ := newTestService(t, nil)
	names := map[string]mcp.Tool{
		"redundancy_detect":      NewDetectTool(svc).Definition(),
		"confidence_score":       NewConfidenceTool(svc).Definition(),
		"consolidation_preview":  NewPreviewTool(svc).Definition(),
		"consolidation_execute":  NewExecuteTool(svc).Definition(),
		"consolidation_rollback": NewRollbackTool(svc).Definition(),
		"references_validate":    NewValidateRefsTool(svc).Definition(),
		"references_update":      NewUpdateRefsTool(svc).Definition(),
		"health_report":          NewHealthTool(svc).Definition(),
		"backups_list":           NewBackupsTool(svc).Definition(),
	}
	for name, def := range names {
		if def.Name != name {
			t.Errorf("Definition().Name = %s, want %s", def.Name, name)
		}
		if def.Description == "" {
			t.Errorf("%s has no description", name)
		}
	}
	if !slices.Contains(names["consolidation_rollback"].InputSchema.Required, "backup_name") {
		t.Error("consolidation_rollback must require backup_name")
	}
	if !slices.Contains(names["references_update"].InputSchema.Required, "moves") {
		t.Error("references_update must require moves")
	}
}

// ─── Consolidation flow ─────────────────────────────────────────────────────

func TestDetectThenExecuteThenRollback(t *testing.T) {
	svc, root := newTestService(t, map[string]string{
		"docs/setup.md":   setupText,
		"docs/install.md": setupText + "# Upgrade\nRun make install again.\n",
	})

	det := call(t, NewDetectTool(svc), map[string]any{})
	if det.IsError {
		t.Fatalf("redundancy_detect returned a tool error: %s", resultText(det))
	}
	text := resultText(det)
	wantContains(t, text, "# Redundancy Detection", "pattern `setup-guides`", "📏 ~")

	issueID := between(text, "| `", "` |")
	if !strings.HasPrefix(issueID, "red-") {
		t.Fatalf("issue id = %q, want red- prefix", issueID)
	}

	preview := call(t, NewPreviewTool(svc), map[string]any{"issue_id": issueID})
	wantContains(t, resultText(preview), "## Modifications", "trim-sections")

	exec := call(t, NewExecuteTool(svc), map[string]any{"issue_id": issueID, "detail_level": "full"})
	execText := resultText(exec)
	wantContains(t, execText, "## Raw result", "consolidation_rollback")
	backupName := between(execText, "**Backup**: `", "`")
	if backupName == "" {
		t.Fatalf("no backup name in:\n%s", execText)
	}

	list := call(t, NewBackupsTool(svc), nil)
	wantContains(t, resultText(list), backupName)

	rb := call(t, NewRollbackTool(svc), map[string]any{"backup_name": backupName})
	wantContains(t, resultText(rb), "restored")

	data, err := os.ReadFile(filepath.Join(root, "docs", "setup.md"))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != setupText {
		t.Errorf("setup.md after rollback = %q, want the original", data)
	}
}

func TestArgumentErrorsBecomeToolErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res := call(t, NewExecuteTool(svc), map[string]any{})
	if !res.IsError {
		t.Error("consolidation_execute without arguments is not a tool error")
	}
	wantContains(t, resultText(res), "issue_id or files is required")

	cases := []struct {
		name string
		h    handler
		args map[string]any
	}{
		{"rollback without backup", NewRollbackTool(svc), map[string]any{}},
		{"update with malformed moves", NewUpdateRefsTool(svc), map[string]any{"moves": "a.md"}},
		{"confidence with unknown origin", NewConfidenceTool(svc), map[string]any{"origin": "guess"}},
	}
	for _, tc := range cases {
		if res := call(t, tc.h, tc.args); !res.IsError {
			t.Errorf("%s: IsError = false, want true", tc.name)
		}
	}
}

func TestRejectedPlanIsNotAToolError(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{"a.md": "# A\n"})
	res := call(t, NewPreviewTool(svc), map[string]any{"issue_id": "red-0000000000"})
	if res.IsError {
		t.Errorf("rejected plan reported as tool error: %s", resultText(res))
	}
	wantContains(t, resultText(res), "rejected")
}

// ─── References ─────────────────────────────────────────────────────────────

func TestReferencesTools(t *testing.T) {
	svc, root := newTestService(t, map[string]string{
		"docs/archive/A.md": "# A\n",
		"docs/B.md":         "See [A](A.md).\n",
	})

	res := call(t, NewValidateRefsTool(svc), map[string]any{})
	wantContains(t, resultText(res), "target file not found: docs/A.md")

	res = call(t, NewUpdateRefsTool(svc), map[string]any{
		"moves": []any{map[string]any{"from": "docs/A.md", "to": "docs/archive/A.md"}},
	})
	wantContains(t, resultText(res), "`[A](archive/A.md)`")

	data, err := os.ReadFile(filepath.Join(root, "docs", "B.md"))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "See [A](archive/A.md).\n" {
		t.Errorf("B.md = %q, want the rewritten link", data)
	}
}

// ─── Health / Confidence ────────────────────────────────────────────────────

func TestHealthAndConfidenceTools(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{"one.md": "# One\nalpha\n", "two.md": "# Two\nbeta\n"})

	standard := resultText(call(t, NewHealthTool(svc), map[string]any{}))
	wantContains(t, standard, "# Documentation Health Report")
	if strings.Contains(standard, "## History") {
		t.Error("standard detail should not list history")
	}

	res := call(t, NewHealthTool(svc), map[string]any{"detail_level": "summary"})
	wantContains(t, resultText(res), "detail_level: standard or full")

	res = call(t, NewHealthTool(svc), map[string]any{"detail_level": "full"})
	wantContains(t, resultText(res), "## History", "no history store configured", "## Raw result", `"history"`)

	res = call(t, NewConfidenceTool(svc), map[string]any{
		"evidence_weights": []any{0.9, 0.8},
		"origin":           "pattern",
		"strategy":         "hierarchical",
	})
	wantContains(t, resultText(res), "| Pattern match | 0.85 |")
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func TestStringsArg(t *testing.T) {
	want := []string{"a.md", "b.md"}
	if got := stringsArg(makeReq(map[string]any{"f": []any{"a.md", " ", "b.md"}}), "f"); !slices.Equal(got, want) {
		t.Errorf("stringsArg(array) = %v, want %v", got, want)
	}
	if got := stringsArg(makeReq(map[string]any{"f": "a.md, b.md"}), "f"); !slices.Equal(got, want) {
		t.Errorf("stringsArg(csv) = %v, want %v", got, want)
	}
	if got := stringsArg(makeReq(map[string]any{}), "f"); got != nil {
		t.Errorf("stringsArg(missing) = %v, want nil", got)
	}
}

func TestParseDetailLevel(t *testing.T) {
	tests := map[string]string{
		"summary": DetailSummary,
		"full":    DetailFull,
		"":        DetailStandard,
		"verbose": DetailStandard,
	}
	for in, want := range tests {
		if got := ParseDetailLevel(in); got != want {
			t.Errorf("ParseDetailLevel(%q) = %s, want %s", in, got, want)
		}
	}
	if got := formatNumber(1234567); got != "1,234,567" {
		t.Errorf("formatNumber() = %s, want 1,234,567", got)
	}
}

// between returns the text after the first start marker up to end.
func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return s[:j]
}
