package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/refs"
	"github.com/HendryAvila/redoc/internal/service"
)

// UpdateRefsTool handles the references_update MCP tool.
type UpdateRefsTool struct {
	svc *service.Service
}

// NewUpdateRefsTool creates an UpdateRefsTool.
func NewUpdateRefsTool(svc *service.Service) *UpdateRefsTool {
	return &UpdateRefsTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateRefsTool) Definition() mcp.Tool {
	return mcp.NewTool("references_update",
		mcp.WithDescription(
			"Rewrite links after files were moved or renamed. All moves are applied in one pass "+
				"and each file is written once. A backup is taken before writing.",
		),
		mcp.WithArray("moves",
			mcp.Required(),
			mcp.Description("Moved files, each {\"from\": \"old/path.md\", \"to\": \"new/path.md\"}."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from": map[string]any{"type": "string"},
					"to":   map[string]any{"type": "string"},
				},
				"required": []string{"from", "to"},
			}),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("List the rewrites without writing (default false)."),
		),
		withDetailLevel(),
	)
}

// Handle processes the references_update tool call.
func (t *UpdateRefsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := ParseDetailLevel(req.GetString("detail_level", ""))
	moves, err := movesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := t.svc.UpdateReferences(ctx, service.UpdateRequest{Moves: moves, DryRun: req.GetBool("dry_run", false)})
	if err != nil {
		return failure("updating references", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Reference Update\n\n%s.\n", resp.Summary)
	if level != DetailSummary && len(resp.Updates) > 0 {
		sb.WriteString("\n| File | Line | Old | New |\n|------|------|-----|-----|\n")
		for _, u := range resp.Updates {
			fmt.Fprintf(&sb, "| `%s` | %d | `%s` | `%s` |\n", u.File, u.Line, u.OldLink, u.NewLink)
		}
	}
	bulletList(&sb, "Errors", resp.Errors)
	return finish(sb.String(), level, resp), nil
}

func movesArg(req mcp.CallToolRequest) ([]refs.Move, error) {
	raw, ok := req.GetArguments()["moves"].([]any)
	if !ok {
		return nil, fmt.Errorf("moves must be an array of {from, to} objects")
	}
	moves := make([]refs.Move, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("moves[%d] must be an object", i)
		}
		from, _ := obj["from"].(string)
		to, _ := obj["to"].(string)
		moves = append(moves, refs.Move{From: from, To: to})
	}
	return moves, nil
}
