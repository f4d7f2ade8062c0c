package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

// HealthTool handles the health_report MCP tool.
type HealthTool struct {
	svc *service.Service
}

// NewHealthTool creates a HealthTool.
func NewHealthTool(svc *service.Service) *HealthTool {
	return &HealthTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("health_report",
		mcp.WithDescription(
			"Score documentation health (0-100), compare with the previous report, rank "+
				"consolidation opportunities and recommend next steps. Saves a snapshot for "+
				"future trend comparison. detail_level full also lists the dated snapshot archive "+
				"and recent runs.",
		),
		mcp.WithString("report_type",
			mcp.Description("Snapshot series to compare against (default 'health')."),
		),
		withDetailLevel(),
	)
}

// Handle processes the health_report tool call.
func (t *HealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := ParseDetailLevel(req.GetString("detail_level", ""))
	resp, err := t.svc.GenerateHealthReport(ctx, service.HealthRequest{
		ReportType: req.GetString("report_type", ""),
		History:    level == DetailFull,
	})
	if err != nil {
		return failure("generating health report", err)
	}
	if level == DetailSummary {
		return finish("# Documentation Health\n\n"+resp.Summary+".\n", level, resp), nil
	}
	if level == DetailFull {
		return finish(resp.Markdown, level, resp), nil
	}
	return finish(resp.Markdown, level, resp.Report), nil
}
