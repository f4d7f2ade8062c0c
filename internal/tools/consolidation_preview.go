package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

// PreviewTool handles the consolidation_preview MCP tool.
type PreviewTool struct {
	svc *service.Service
}

// NewPreviewTool creates a PreviewTool.
func NewPreviewTool(svc *service.Service) *PreviewTool {
	return &PreviewTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *PreviewTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Plan a consolidation and simulate it without writing anything. Shows each file's " +
				"action, the estimated line reduction and what validation would report.",
		),
	}, consolidationOptions()...)
	return mcp.NewTool("consolidation_preview", opts...)
}

// Handle processes the consolidation_preview tool call.
func (t *PreviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := ParseDetailLevel(req.GetString("detail_level", ""))
	resp, err := t.svc.PreviewConsolidation(ctx, consolidationRequest(req))
	if err != nil {
		return failure("previewing consolidation", err)
	}
	return renderConsolidation("Consolidation Preview", resp, level), nil
}
