package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

// RollbackTool handles the consolidation_rollback MCP tool.
type RollbackTool struct {
	svc *service.Service
}

// NewRollbackTool creates a RollbackTool.
func NewRollbackTool(svc *service.Service) *RollbackTool {
	return &RollbackTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *RollbackTool) Definition() mcp.Tool {
	return mcp.NewTool("consolidation_rollback",
		mcp.WithDescription(
			"Restore every file from a backup taken before a consolidation or reference update. "+
				"Files the run created are deleted. List backups with `backups_list`.",
		),
		mcp.WithString("backup_name",
			mcp.Required(),
			mcp.Description("Backup name as reported by `consolidation_execute` or `backups_list`."),
		),
	)
}

// Handle processes the consolidation_rollback tool call.
func (t *RollbackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.svc.RollbackConsolidation(ctx, service.RollbackRequest{BackupName: req.GetString("backup_name", "")})
	if err != nil {
		return failure("rolling back", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Rollback\n\n%s.\n", resp.Summary)
	if len(resp.Result.ChangedFiles) > 0 {
		fmt.Fprintf(&sb, "\n**Files**: %s\n", codeList(resp.Result.ChangedFiles))
	}
	bulletList(&sb, "Errors", resp.Result.Errors)
	return mcp.NewToolResultText(sb.String()), nil
}
