package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/consolidate"
	"github.com/HendryAvila/redoc/internal/service"
)

// consolidationOptions are the arguments shared by preview and execute.
func consolidationOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("issue_id",
			mcp.Description("ID of an issue from the latest `redundancy_detect` run."),
		),
		mcp.WithArray("files",
			mcp.Description("Explicit list of corpus-relative files to consolidate, instead of issue_id."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("primary",
			mcp.Description("File to keep as the primary document. Chosen by overlap when omitted."),
		),
		mcp.WithString("strategy",
			mcp.Description("Consolidation strategy. Defaults to the issue's recommendation, else hierarchical."),
			mcp.Enum(consolidate.NameValues()...),
		),
		withDetailLevel(),
	}
}

func consolidationRequest(req mcp.CallToolRequest) service.ConsolidationRequest {
	return service.ConsolidationRequest{
		IssueID:  req.GetString("issue_id", ""),
		Files:    stringsArg(req, "files"),
		Primary:  req.GetString("primary", ""),
		Strategy: req.GetString("strategy", ""),
	}
}

func renderConsolidation(title string, resp *service.ConsolidationResponse, level string) *mcp.CallToolResult {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n%s.\n", title, resp.Summary)
	if resp.Rejected() {
		bulletList(&sb, "Errors", resp.Errors)
		return finish(sb.String(), level, resp)
	}

	plan := resp.Plan
	if level != DetailSummary {
		fmt.Fprintf(&sb, "\n**Strategy**: %s  \n**Primary**: `%s`  \n**Recommend merge**: %s\n",
			plan.Strategy, plan.PrimaryFile, yesNo(plan.RecommendMerge))

		sb.WriteString("\n## Modifications\n\n| File | Action | Details |\n|------|--------|---------|\n")
		for _, m := range plan.Modifications {
			fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", m.File, m.Action, modificationDetails(m))
		}

		if r := resp.Result; r != nil {
			sb.WriteString("\n## Result\n\n")
			fmt.Fprintf(&sb, "- **Dry run**: %s\n", yesNo(r.DryRun))
			fmt.Fprintf(&sb, "- **Changed files**: %s\n", codeList(r.ChangedFiles))
			fmt.Fprintf(&sb, "- **Lines removed**: %d\n", r.LinesRemoved)
			if r.BackupName != "" {
				fmt.Fprintf(&sb, "- **Backup**: `%s` (undo with `consolidation_rollback`)\n", r.BackupName)
			}
			if r.RolledBack {
				sb.WriteString("- **Rolled back**: yes, every file was restored\n")
			}
			fmt.Fprintf(&sb, "- **Markdown valid**: %s\n", yesNo(r.Validation.SyntaxValid))
			fmt.Fprintf(&sb, "- **Links valid**: %s\n", yesNo(r.Validation.LinksValid))
			bulletList(&sb, "Errors", r.Errors)
			bulletList(&sb, "Validation", append(append([]string(nil), r.Validation.Errors...), r.Validation.Warnings...))
			bulletList(&sb, "Warnings", r.Warnings)
		} else {
			bulletList(&sb, "Warnings", plan.Warnings)
		}

		if level == DetailFull {
			sb.WriteString("\n## Steps\n\n")
			for i, step := range plan.Steps {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
			}
		}
	}
	return finish(sb.String(), level, resp)
}

func modificationDetails(m consolidate.FileModification) string {
	var parts []string
	if len(m.Sections) > 0 {
		parts = append(parts, "sections: "+strings.Join(m.Sections, ", "))
	}
	if m.Reference != "" {
		parts = append(parts, "points to `"+m.Reference+"`")
	}
	if len(m.References) > 0 {
		parts = append(parts, "with "+codeList(m.References))
	}
	if m.Destination != "" {
		parts = append(parts, "to `"+m.Destination+"`")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}
