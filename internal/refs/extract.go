// Package refs works on the cross-reference graph of a corpus: it
// extracts markdown links, validates them against the files and headings
// they point at, and rewrites them when files move.
package refs

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// --- Link type enum ---

// LinkType classifies a reference.
type LinkType string

const (
	FileLink     LinkType = "file-link"
	SectionLink  LinkType = "section-link"
	RelativeLink LinkType = "relative-link"
)

var (
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\(\s*(<[^>]*>|[^)\s]+)(?:\s+"[^"]*")?\s*\)`)
	inlineCodeRe = regexp.MustCompile("`[^`]*`")
	fenceLineRe  = regexp.MustCompile("^ {0,3}(```|~~~)")
	schemeRe     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

// Reference is one link found in a document.
type Reference struct {
	Source   string   `json:"source"`
	Line     int      `json:"line"`
	Type     LinkType `json:"type"`
	Text     string   `json:"text"`
	Original string   `json:"original"`
	Target   string   `json:"target"`
	// File is the decoded file part of Target; empty for "#fragment" links.
	File     string `json:"file,omitempty"`
	Fragment string `json:"fragment,omitempty"`
	// Resolved is the target file relative to the corpus root.
	Resolved string `json:"resolved"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

// Extract returns every local link in text, in line order. Links inside
// fenced code blocks or code spans are ignored, as are web links and any
// other URL with a scheme (http, https, mailto, ...).
func Extract(source, text string) []Reference {
	var out []Reference
	inFence, fence := false, ""
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := fenceLineRe.FindStringSubmatch(line); m != nil {
			switch {
			case !inFence:
				inFence, fence = true, m[1]
			case m[1] == fence:
				inFence = false
			}
			continue
		}
		if inFence {
			continue
		}
		scan := inlineCodeRe.ReplaceAllStringFunc(line, func(s string) string {
			return strings.Repeat(" ", len(s))
		})
		for _, loc := range linkRe.FindAllStringSubmatchIndex(scan, -1) {
			ref, ok := newReference(source, i+1, line[loc[0]:loc[1]], line[loc[2]:loc[3]], line[loc[4]:loc[5]])
			if ok {
				out = append(out, ref)
			}
		}
	}
	return out
}

func newReference(source string, line int, original, text, target string) (Reference, bool) {
	target = strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
	if target == "" || strings.HasPrefix(target, "//") || schemeRe.MatchString(target) {
		return Reference{}, false
	}

	file, fragment, _ := strings.Cut(target, "#")
	if decoded, err := url.PathUnescape(file); err == nil {
		file = decoded
	}
	if q := strings.IndexByte(file, '?'); q >= 0 {
		file = file[:q]
	}

	ref := Reference{
		Source:   source,
		Line:     line,
		Text:     text,
		Original: original,
		Target:   target,
		File:     file,
		Fragment: fragment,
		Resolved: Resolve(source, file),
	}
	switch {
	case file == "":
		ref.Type = SectionLink
	case strings.HasPrefix(file, "./") || strings.HasPrefix(file, "../"):
		ref.Type = RelativeLink
	case fragment != "":
		ref.Type = SectionLink
	default:
		ref.Type = FileLink
	}
	return ref, true
}

// Resolve turns a link's file part into a path relative to the corpus
// root. An empty file part resolves to the source itself; a leading "/"
// is relative to the root.
func Resolve(source, file string) string {
	switch {
	case file == "":
		return source
	case strings.HasPrefix(file, "/"):
		return path.Clean(strings.TrimPrefix(file, "/"))
	default:
		return path.Join(path.Dir(source), file)
	}
}

// RelativeTarget returns the link target that reaches target (relative to
// the corpus root) from a document at fromFile.
func RelativeTarget(fromFile, target string) string {
	fromDir := strings.Split(path.Dir(fromFile), "/")
	if fromDir[0] == "." {
		fromDir = nil
	}
	to := strings.Split(path.Clean(target), "/")

	common := 0
	for common < len(fromDir) && common < len(to)-1 && fromDir[common] == to[common] {
		common++
	}
	parts := make([]string, 0, len(fromDir)-common+len(to)-common)
	for range fromDir[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return strings.Join(parts, "/")
}
