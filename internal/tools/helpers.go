// Package tools implements the MCP tool handlers of redoc.
//
// Each tool is a struct holding the service it calls, with Definition()
// returning the mcp.Tool schema and Handle() translating the call:
//   - request problems the caller can fix become mcp.NewToolResultError
//   - expected outcomes (rejected plans, broken links, failed runs) are
//     rendered as normal markdown results
//   - only environment failures are returned as Go errors
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/redoc/internal/service"
)

// Detail level constants.
const (
	DetailSummary  = "summary"
	DetailStandard = "standard"
	DetailFull     = "full"
)

// DetailLevelValues returns the enum values for tool definitions.
func DetailLevelValues() []string {
	return []string{DetailSummary, DetailStandard, DetailFull}
}

// ParseDetailLevel normalizes a detail_level string, defaulting to
// "standard" for empty or unrecognized values.
func ParseDetailLevel(s string) string {
	switch s {
	case DetailSummary, DetailFull:
		return s
	default:
		return DetailStandard
	}
}

// SummaryFooter is appended to summary-mode responses.
const SummaryFooter = "\n---\n💡 Use detail_level: standard or full for more detail."

// standardLimit caps list sections at the standard detail level.
const standardLimit = 10

func withDetailLevel() mcp.ToolOption {
	return mcp.WithString("detail_level",
		mcp.Description("Verbosity: 'summary' (counts only), 'standard' (default), "+
			"'full' (every item plus the raw JSON result)."),
		mcp.Enum(DetailLevelValues()...),
	)
}

// NavigationHint returns a footer when a list was capped.
func NavigationHint(showing, total int, hint string) string {
	if total <= 0 || showing >= total {
		return ""
	}
	if hint != "" {
		return fmt.Sprintf("\n📊 Showing %d of %d. %s", showing, total, hint)
	}
	return fmt.Sprintf("\n📊 Showing %d of %d.", showing, total)
}

// ─── Token Estimation ───────────────────────────────────────────────────────

// EstimateTokens approximates the token count with the chars/4 heuristic.
func EstimateTokens(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	if n/4 == 0 {
		return 1
	}
	return n / 4
}

// TokenFooter returns a one-line footer with the estimated token count.
func TokenFooter(estimatedTokens int) string {
	return fmt.Sprintf("\n📏 ~%s tokens", formatNumber(estimatedTokens))
}

func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

// ─── Arguments ──────────────────────────────────────────────────────────────

// stringsArg reads a string list given either as a JSON array or as one
// comma-separated string.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// ─── Results ────────────────────────────────────────────────────────────────

// finish appends the level-specific footer and, at full detail, the raw
// JSON of v.
func finish(body, level string, v any) *mcp.CallToolResult {
	var sb strings.Builder
	sb.WriteString(body)
	if level == DetailFull {
		if data, err := json.MarshalIndent(v, "", "  "); err == nil {
			sb.WriteString("\n## Raw result\n\n```json\n")
			sb.Write(data)
			sb.WriteString("\n```\n")
		}
	}
	if level == DetailSummary {
		sb.WriteString(SummaryFooter)
	}
	sb.WriteString(TokenFooter(EstimateTokens(sb.String())))
	return mcp.NewToolResultText(sb.String())
}

// failure maps a service error to a tool result: argument problems are
// reported to the caller, anything else is returned as a Go error.
func failure(op string, err error) (*mcp.CallToolResult, error) {
	if service.IsArgumentError(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

func bulletList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
}

func codeList(files []string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "`" + f + "`"
	}
	return strings.Join(quoted, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
