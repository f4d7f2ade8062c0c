package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

// ExecuteTool handles the consolidation_execute MCP tool.
type ExecuteTool struct {
	svc *service.Service
}

// NewExecuteTool creates an ExecuteTool.
func NewExecuteTool(svc *service.Service) *ExecuteTool {
	return &ExecuteTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ExecuteTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Apply a consolidation. Every touched file is backed up first; if any write fails " +
				"all of them are restored. Always preview first and get the user's approval. " +
				"Undo with `consolidation_rollback`.",
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Simulate only (default false)."),
		),
	}, consolidationOptions()...)
	return mcp.NewTool("consolidation_execute", opts...)
}

// Handle processes the consolidation_execute tool call.
func (t *ExecuteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := ParseDetailLevel(req.GetString("detail_level", ""))
	creq := consolidationRequest(req)
	creq.DryRun = req.GetBool("dry_run", false)

	resp, err := t.svc.ExecuteConsolidation(ctx, creq)
	if err != nil {
		return failure("executing consolidation", err)
	}
	return renderConsolidation("Consolidation", resp, level), nil
}
