package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

// ValidateRefsTool handles the references_validate MCP tool.
type ValidateRefsTool struct {
	svc *service.Service
}

// NewValidateRefsTool creates a ValidateRefsTool.
func NewValidateRefsTool(svc *service.Service) *ValidateRefsTool {
	return &ValidateRefsTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ValidateRefsTool) Definition() mcp.Tool {
	return mcp.NewTool("references_validate",
		mcp.WithDescription(
			"Check every markdown link in the corpus: target files must exist and #section "+
				"fragments must match a heading of the target. Web links are skipped. Read-only.",
		),
		mcp.WithArray("files",
			mcp.Description("Only check links found in these files."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		withDetailLevel(),
	)
}

// Handle processes the references_validate tool call.
func (t *ValidateRefsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := ParseDetailLevel(req.GetString("detail_level", ""))
	resp, err := t.svc.ValidateReferences(ctx, service.ValidateRequest{Files: stringsArg(req, "files")})
	if err != nil {
		return failure("validating references", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Reference Validation\n\n%s.\n", resp.Summary)

	broken := resp.Report.BrokenReferences
	if level != DetailSummary && len(broken) > 0 {
		shown := len(broken)
		if level == DetailStandard && shown > standardLimit {
			shown = standardLimit
		}
		sb.WriteString("\n| Source | Line | Link | Problem |\n|--------|------|------|---------|\n")
		for _, r := range broken[:shown] {
			fmt.Fprintf(&sb, "| `%s` | %d | `%s` | %s |\n", r.Source, r.Line, r.Original, r.Error)
		}
		sb.WriteString(NavigationHint(shown, len(broken), "Use detail_level: full for every broken link."))
		sb.WriteString("\n")
	}
	return finish(sb.String(), level, resp), nil
}
