package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/detect"
	"github.com/HendryAvila/redoc/internal/service"
)

// DetectTool handles the redundancy_detect MCP tool.
type DetectTool struct {
	svc *service.Service
}

// NewDetectTool creates a DetectTool.
func NewDetectTool(svc *service.Service) *DetectTool {
	return &DetectTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *DetectTool) Definition() mcp.Tool {
	return mcp.NewTool("redundancy_detect",
		mcp.WithDescription(
			"Scan the documentation corpus for redundant documents. Named patterns "+
				"(setup guides, README variants, troubleshooting...) are checked first, then "+
				"every remaining pair of files. Each issue gets an ID usable with "+
				"`consolidation_preview` and `consolidation_execute`. Read-only.",
		),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum vocabulary overlap (0-1) for two files to count as redundant. "+
				"Defaults to the configured threshold (0.35)."),
		),
		withDetailLevel(),
	)
}

// Handle processes the redundancy_detect tool call.
func (t *DetectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := ParseDetailLevel(req.GetString("detail_level", ""))
	resp, err := t.svc.DetectRedundancy(ctx, service.DetectRequest{Threshold: req.GetFloat("threshold", 0)})
	if err != nil {
		return failure("detecting redundancy", err)
	}

	var sb strings.Builder
	sb.WriteString("# Redundancy Detection\n\n")
	fmt.Fprintf(&sb, "%s.\n", resp.Summary)

	if level != DetailSummary && len(resp.Detection.Issues) > 0 {
		issues := resp.Detection.Issues
		shown := len(issues)
		if level == DetailStandard && shown > standardLimit {
			shown = standardLimit
		}
		sb.WriteString("\n| Issue | Source | Files | Confidence | Severity | Strategy |\n")
		sb.WriteString("|-------|--------|-------|------------|----------|----------|\n")
		for _, is := range issues[:shown] {
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %.0f%% | %s | %s |\n",
				is.ID, issueSource(is), codeList(is.AffectedFiles), is.Confidence*100, is.Severity, is.Action.Strategy)
		}
		sb.WriteString(NavigationHint(shown, len(issues), "Use detail_level: full for every issue."))
		sb.WriteString("\n")

		if level == DetailFull {
			for _, is := range issues {
				writeIssue(&sb, is)
			}
		}
	}

	if len(resp.LoadErrors) > 0 {
		items := make([]string, len(resp.LoadErrors))
		for i, le := range resp.LoadErrors {
			items[i] = fmt.Sprintf("`%s`: %s", le.Path, le.Err)
		}
		bulletList(&sb, "Skipped files", items)
	}
	return finish(sb.String(), level, resp), nil
}

func issueSource(is detect.Issue) string {
	if is.Pattern != "" {
		return "pattern `" + is.Pattern + "`"
	}
	return string(is.Origin)
}

func writeIssue(sb *strings.Builder, is detect.Issue) {
	fmt.Fprintf(sb, "\n## `%s`\n\n", is.ID)
	fmt.Fprintf(sb, "- **Primary**: `%s`\n", is.PrimaryFile)
	fmt.Fprintf(sb, "- **First seen this run**: %s\n", yesNo(is.FirstOccurrence))
	fmt.Fprintf(sb, "- **Requires approval**: %s\n", yesNo(is.Action.RequiresApproval))
	sb.WriteString("\n**Evidence**\n\n")
	for _, ev := range is.Evidence {
		fmt.Fprintf(sb, "- %s (%s, weight %.2f)\n", ev.Description, ev.Location, ev.Weight)
	}
	sb.WriteString("\n**Steps**\n\n")
	for i, step := range is.Action.Steps {
		fmt.Fprintf(sb, "%d. %s\n", i+1, step)
	}
}
