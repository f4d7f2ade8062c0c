package consolidate

import (
	"path"
	"regexp"
	"strings"

	"github.com/HendryAvila/redoc/internal/similarity"
)

var (
	headerRe      = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.*?)[ \t]*#*[ \t]*$`)
	fenceLineRe   = regexp.MustCompile("^ {0,3}(```|~~~)")
	frontmatterRe = regexp.MustCompile(`(?s)\A---[ \t]*\r?\n.*?\r?\n---[ \t]*\r?\n`)
)

// rawSection is a header line plus every raw line up to the next header,
// as written in the file.
type rawSection struct {
	Header string
	Lines  []string
}

// splitSections cuts text into the lines before the first header and one
// rawSection per header. Header levels are flat, like similarity's
// sections, and headers inside code fences do not count.
func splitSections(text string) ([]string, []rawSection) {
	var (
		preamble []string
		sections []rawSection
		inFence  bool
		fence    string
	)
	for _, line := range strings.Split(text, "\n") {
		if m := fenceLineRe.FindStringSubmatch(line); m != nil {
			switch {
			case !inFence:
				inFence, fence = true, m[1]
			case m[1] == fence:
				inFence = false
			}
		} else if !inFence {
			if m := headerRe.FindStringSubmatch(line); m != nil {
				sections = append(sections, rawSection{Header: strings.TrimSpace(m[2]), Lines: []string{line}})
				continue
			}
		}
		if len(sections) == 0 {
			preamble = append(preamble, line)
		} else {
			last := &sections[len(sections)-1]
			last.Lines = append(last.Lines, line)
		}
	}
	return preamble, sections
}

func joinSections(preamble []string, sections []rawSection) string {
	lines := append([]string(nil), preamble...)
	for _, s := range sections {
		lines = append(lines, s.Lines...)
	}
	return strings.Join(lines, "\n")
}

func headerSet(headers []string) map[string]bool {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[similarity.NormalizeHeader(h)] = true
	}
	return set
}

// hasHeader reports whether text has a header matching h after
// normalization.
func hasHeader(text, h string) bool {
	want := similarity.NormalizeHeader(h)
	_, sections := splitSections(text)
	for _, s := range sections {
		if similarity.NormalizeHeader(s.Header) == want {
			return true
		}
	}
	return false
}

// appendBlock adds block at the end of text, separated by a blank line.
func appendBlock(text, block string) string {
	text = strings.TrimRight(text, "\n")
	block = strings.Trim(block, "\n")
	if text == "" {
		return block + "\n"
	}
	return text + "\n\n" + block + "\n"
}

// insertAfterTitle puts line right below the document title: after the
// frontmatter and a leading header, if present.
func insertAfterTitle(text, line string) string {
	fm := frontmatterRe.FindString(text)
	body := text[len(fm):]
	lines := strings.Split(body, "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	at := 0
	if i < len(lines) && headerRe.MatchString(lines[i]) {
		at = i + 1
	}
	rest := lines[at:]
	for len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
		rest = rest[1:]
	}
	out := append([]string(nil), lines[:at]...)
	if at > 0 {
		out = append(out, "")
	}
	out = append(out, line)
	if len(rest) > 0 {
		out = append(out, "")
		out = append(out, rest...)
	} else {
		out = append(out, "")
	}
	return fm + strings.Join(out, "\n")
}

// title is the first header of text, or the file's base name.
func title(text, file string) string {
	if hs := similarity.Headings(text); len(hs) > 0 && hs[0] != "" {
		return hs[0]
	}
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

// fencesBalanced reports whether every opened code fence is closed.
func fencesBalanced(text string) bool {
	inFence, fence := false, ""
	for _, line := range strings.Split(text, "\n") {
		m := fenceLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch {
		case !inFence:
			inFence, fence = true, m[1]
		case m[1] == fence:
			inFence = false
		}
	}
	return !inFence
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
