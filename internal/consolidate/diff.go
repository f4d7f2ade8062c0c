package consolidate

import (
	"regexp"
	"strings"

	"github.com/HendryAvila/redoc/internal/similarity"
)

var (
	listMarkerRe    = regexp.MustCompile(`^\s*(?:[-*+>]|\d+[.)])\s+`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// block is the unit sections are diffed in: one line of prose, or a whole
// fenced code block.
type block struct {
	lines  []string
	blank  bool
	fenced bool
}

func blocks(lines []string) []block {
	var out []block
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if m := fenceLineRe.FindStringSubmatch(line); m != nil {
			b := block{lines: []string{line}, fenced: true}
			for i+1 < len(lines) {
				i++
				b.lines = append(b.lines, lines[i])
				if c := fenceLineRe.FindStringSubmatch(lines[i]); c != nil && c[1] == m[1] {
					break
				}
			}
			out = append(out, b)
			continue
		}
		out = append(out, block{lines: []string{line}, blank: strings.TrimSpace(line) == ""})
	}
	return out
}

// sentences splits a prose line into comparison keys: lowercase, list
// markers and sentence punctuation dropped, whitespace collapsed.
func sentences(line string) []string {
	line = listMarkerRe.ReplaceAllString(line, "")
	var out []string
	for _, part := range sentenceSplitRe.Split(line, -1) {
		key := strings.Trim(strings.ToLower(strings.Join(strings.Fields(part), " ")), " ,;:")
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}

func fenceKey(b block) string {
	return strings.TrimSpace(strings.Join(b.lines, "\n"))
}

// coverage is everything a section body already says.
type coverage struct {
	sentences map[string]bool
	fences    map[string]bool
}

func coverageOf(body []string) coverage {
	cv := coverage{sentences: map[string]bool{}, fences: map[string]bool{}}
	for _, b := range blocks(body) {
		switch {
		case b.blank:
		case b.fenced:
			cv.fences[fenceKey(b)] = true
		default:
			for _, s := range sentences(b.lines[0]) {
				cv.sentences[s] = true
			}
		}
	}
	return cv
}

// covers reports whether every sentence of b is already in cv. Code
// blocks must match exactly.
func (cv coverage) covers(b block) bool {
	if b.blank {
		return true
	}
	if b.fenced {
		return cv.fences[fenceKey(b)]
	}
	for _, s := range sentences(b.lines[0]) {
		if !cv.sentences[s] {
			return false
		}
	}
	return true
}

// reduceSection drops the blocks of sec that cv covers. It returns the
// reduced section (header kept) and the unique lines that survived.
func reduceSection(sec rawSection, cv coverage) (rawSection, []string) {
	var body, unique []string
	for _, b := range blocks(sec.Lines[1:]) {
		switch {
		case b.blank:
			body = append(body, b.lines...)
		case cv.covers(b):
		default:
			body = append(body, b.lines...)
			unique = append(unique, b.lines...)
		}
	}
	if len(unique) == 0 {
		return rawSection{Header: sec.Header}, nil
	}

	var tidy []string
	for _, l := range body {
		isBlank := strings.TrimSpace(l) == ""
		if isBlank && (len(tidy) == 0 || strings.TrimSpace(tidy[len(tidy)-1]) == "") {
			continue
		}
		tidy = append(tidy, l)
	}
	if last := sec.Lines[len(sec.Lines)-1]; strings.TrimSpace(last) == "" && len(sec.Lines) > 1 {
		if strings.TrimSpace(tidy[len(tidy)-1]) != "" {
			tidy = append(tidy, "")
		}
	}
	return rawSection{Header: sec.Header, Lines: append([]string{sec.Lines[0]}, tidy...)}, unique
}

// residue is what a section holds that its counterpart does not.
type residue struct {
	Header string
	Lines  []string
}

// sectionBodies indexes the bodies of text's sections by normalized
// header. The first section wins on duplicate headers.
func sectionBodies(text string) map[string][]string {
	_, sections := splitSections(text)
	out := make(map[string][]string, len(sections))
	for _, s := range sections {
		key := similarity.NormalizeHeader(s.Header)
		if _, ok := out[key]; !ok {
			out[key] = s.Lines[1:]
		}
	}
	return out
}

// trimDuplicated removes from text what primary already says. counterpart
// maps a header of text to the header of the primary section it matched;
// headers missing from the map are compared with the primary section of
// the same name. A section with nothing unique is removed whole, otherwise
// only its duplicated lines go. Sections without a counterpart are left
// alone.
func trimDuplicated(text, primary string, headers []string, counterpart map[string]string) (string, []string, []residue) {
	want := headerSet(headers)
	other := map[string]string{}
	for h, p := range counterpart {
		other[similarity.NormalizeHeader(h)] = p
	}
	bodies := sectionBodies(primary)

	preamble, sections := splitSections(text)
	kept := sections[:0:0]
	var (
		removed []string
		partial []residue
	)
	for _, s := range sections {
		key := similarity.NormalizeHeader(s.Header)
		if !want[key] {
			kept = append(kept, s)
			continue
		}
		ph, ok := other[key]
		if !ok {
			ph = s.Header
		}
		body, ok := bodies[similarity.NormalizeHeader(ph)]
		if !ok {
			kept = append(kept, s)
			continue
		}
		reduced, unique := reduceSection(s, coverageOf(body))
		if len(unique) == 0 {
			removed = append(removed, s.Header)
			continue
		}
		partial = append(partial, residue{Header: s.Header, Lines: unique})
		kept = append(kept, reduced)
	}
	if len(removed) == 0 && len(partial) == 0 {
		return text, nil, nil
	}
	out := joinSections(preamble, kept)
	if strings.HasSuffix(text, "\n") && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, removed, partial
}

// appendToSection adds lines at the end of text's section named header,
// before its trailing blank lines. Text without that section is returned
// unchanged.
func appendToSection(text, header string, lines []string) string {
	want := similarity.NormalizeHeader(header)
	preamble, sections := splitSections(text)
	for i := range sections {
		if similarity.NormalizeHeader(sections[i].Header) != want {
			continue
		}
		body := sections[i].Lines
		end := len(body)
		for end > 1 && strings.TrimSpace(body[end-1]) == "" {
			end--
		}
		merged := append([]string(nil), body[:end]...)
		merged = append(merged, lines...)
		sections[i].Lines = append(merged, body[end:]...)
		out := joinSections(preamble, sections)
		if strings.HasSuffix(text, "\n") && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		return out
	}
	return text
}
