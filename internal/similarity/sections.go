package similarity

import "strings"

// Section is one header and the normalized body text that follows it up
// to the next header of any level.
type Section struct {
	Header string `json:"header"`
	Body   string `json:"body"`
}

// ExtractSections splits a markdown document on header lines. All levels
// (1–6) are flat siblings: a "###" ends a "#" section just like another
// "#" would. Text before the first header is not part of any section.
// Header-looking lines inside fenced code blocks are ignored.
func ExtractSections(text string) []Section {
	text = StripFrontmatter(text)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		sections []Section
		current  *Section
		body     []string
		inFence  bool
		fence    string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = Normalize(strings.Join(body, "\n"))
		sections = append(sections, *current)
	}

	for _, line := range lines {
		if m := fenceLineRe.FindStringSubmatch(line); m != nil {
			switch {
			case !inFence:
				inFence, fence = true, m[1]
			case m[1] == fence:
				inFence = false
			}
			body = append(body, line)
			continue
		}
		if !inFence {
			if m := headerRe.FindStringSubmatch(line); m != nil {
				flush()
				current = &Section{Header: strings.TrimSpace(m[2])}
				body = body[:0]
				continue
			}
		}
		body = append(body, line)
	}
	flush()

	return sections
}

// Headings returns just the header texts of a document, in order.
func Headings(text string) []string {
	sections := ExtractSections(text)
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Header
	}
	return out
}
