package corpus

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// SplitFrontmatter separates a leading `---` YAML block from the body.
// Documents without frontmatter return a nil map and the text unchanged.
// Malformed YAML still has its block stripped from the body; the metadata
// is simply dropped.
func SplitFrontmatter(raw string) (map[string]any, string) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return nil, raw
	}
	rest := text[4:]

	var block, body string
	switch {
	case strings.HasPrefix(rest, "---\n"):
		block, body = "", rest[4:]
	case strings.HasSuffix(rest, "\n---"):
		block, body = strings.TrimSuffix(rest, "\n---"), ""
	default:
		idx := strings.Index(rest, "\n---\n")
		if idx < 0 {
			return nil, raw
		}
		block, body = rest[:idx], rest[idx+5:]
	}

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, body
	}
	return meta, body
}

// metaString reads a frontmatter key as a trimmed lowercase string.
func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}
