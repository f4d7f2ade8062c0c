package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

// BackupsTool handles the backups_list MCP tool.
type BackupsTool struct {
	svc *service.Service
}

// NewBackupsTool creates a BackupsTool.
func NewBackupsTool(svc *service.Service) *BackupsTool {
	return &BackupsTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *BackupsTool) Definition() mcp.Tool {
	return mcp.NewTool("backups_list",
		mcp.WithDescription("List backups taken before consolidations and reference updates, newest first."),
		withDetailLevel(),
	)
}

// Handle processes the backups_list tool call.
func (t *BackupsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := ParseDetailLevel(req.GetString("detail_level", ""))
	resp, err := t.svc.ListBackups(ctx)
	if err != nil {
		return failure("listing backups", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Backups\n\n%s.\n", resp.Summary)
	if level != DetailSummary && len(resp.Backups) > 0 {
		sb.WriteString("\n| Name | Reason | Created | Files |\n|------|--------|---------|-------|\n")
		for _, m := range resp.Backups {
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %d |\n",
				m.Name, m.Reason, m.CreatedAt.Format("2006-01-02 15:04:05"), len(m.Files)+len(m.Missing))
		}
	}
	return finish(sb.String(), level, resp), nil
}
