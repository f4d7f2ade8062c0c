package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/confidence"
	"github.com/HendryAvila/redoc/internal/consolidate"
	"github.com/HendryAvila/redoc/internal/service"
)

// ConfidenceTool handles the confidence_score MCP tool.
type ConfidenceTool struct {
	svc *service.Service
}

// NewConfidenceTool creates a ConfidenceTool.
func NewConfidenceTool(svc *service.Service) *ConfidenceTool {
	return &ConfidenceTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ConfidenceTool) Definition() mcp.Tool {
	return mcp.NewTool("confidence_score",
		mcp.WithDescription(
			"Score a candidate consolidation from weighted evidence. Returns the 0-1 confidence, "+
				"the factor breakdown and the severity. Only pattern-origin candidates can be critical.",
		),
		mcp.WithArray("evidence_weights",
			mcp.Description("Weight (0-1) of each piece of evidence."),
			mcp.Items(map[string]any{"type": "number"}),
		),
		mcp.WithString("origin",
			mcp.Description("Where the candidate came from."),
			mcp.Enum(string(confidence.OriginPattern), string(confidence.OriginPairwise)),
		),
		mcp.WithString("strategy",
			mcp.Description("Strategy whose past success rate should count."),
			mcp.Enum(consolidate.NameValues()...),
		),
		mcp.WithNumber("file_count",
			mcp.Description("Number of files involved. Larger groups are penalized."),
		),
		mcp.WithBoolean("reversible",
			mcp.Description("Whether the change can be rolled back (default true)."),
		),
		mcp.WithNumber("context_clarity",
			mcp.Description("How clearly the files belong together, 0-1."),
		),
	)
}

// Handle processes the confidence_score tool call.
func (t *ConfidenceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var evidence []confidence.Evidence
	if raw, ok := req.GetArguments()["evidence_weights"].([]any); ok {
		for i, item := range raw {
			w, ok := item.(float64)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("evidence_weights[%d] is not a number", i)), nil
			}
			evidence = append(evidence, confidence.Evidence{Description: fmt.Sprintf("evidence %d", i+1), Weight: w})
		}
	}

	resp, err := t.svc.ScoreConfidence(ctx, service.ScoreRequest{
		Evidence:       evidence,
		Origin:         confidence.Origin(req.GetString("origin", "")),
		Strategy:       req.GetString("strategy", ""),
		FileCount:      int(req.GetFloat("file_count", 2)),
		Reversible:     req.GetBool("reversible", true),
		ContextClarity: req.GetFloat("context_clarity", 0.5),
	})
	if err != nil {
		return failure("scoring confidence", err)
	}

	f := resp.Assessment.Factors
	var sb strings.Builder
	sb.WriteString("# Confidence\n\n")
	fmt.Fprintf(&sb, "%s.\n\n", resp.Summary)
	sb.WriteString("| Factor | Value |\n|--------|-------|\n")
	fmt.Fprintf(&sb, "| Pattern match | %.2f |\n", f.PatternMatch)
	fmt.Fprintf(&sb, "| Historical success | %.2f |\n", f.HistoricalSuccess)
	fmt.Fprintf(&sb, "| Reversibility | %.2f |\n", f.Reversibility)
	fmt.Fprintf(&sb, "| Context clarity | %.2f |\n", f.ContextClarity)
	fmt.Fprintf(&sb, "| Complexity penalty | x%.2f |\n", f.ComplexityPenalty)
	return mcp.NewToolResultText(sb.String()), nil
}
