// Package similarity implements the lexical and structural comparison
// primitives used to find redundant documentation: canonical text
// normalization, flat section extraction, Jaccard word overlap and
// edit-distance ratios.
//
// Everything here is pure and deterministic. The only function that
// touches the filesystem is Engine.CompareFiles.
package similarity

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	frontmatterRe = regexp.MustCompile(`(?s)\A---[ \t]*\r?\n.*?\r?\n---[ \t]*(?:\r?\n|\z)`)
	fenceRe       = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	inlineCodeRe  = regexp.MustCompile("`[^`]*`")
	imageRe       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	spaceRe       = regexp.MustCompile(`\s+`)
	headerRe      = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.*?)[ \t]*#*[ \t]*$`)
	fenceLineRe   = regexp.MustCompile("^ {0,3}(```|~~~)")
)

// StripFrontmatter removes a leading YAML frontmatter block, if any.
func StripFrontmatter(text string) string {
	return frontmatterRe.ReplaceAllString(text, "")
}

// Normalize returns the canonical form of a markdown document: no
// frontmatter, no fenced or inline code, links reduced to their text,
// images removed and whitespace collapsed to single spaces.
//
// The transforms run to a fixed point, which makes Normalize idempotent
// even for input where one pass exposes new syntax (nested links, code
// spans split across lines).
func Normalize(text string) string {
	out := StripFrontmatter(text)
	for {
		next := normalizePass(out)
		if next == out {
			return out
		}
		out = next
	}
}

func normalizePass(s string) string {
	s = fenceRe.ReplaceAllString(s, " ")
	s = inlineCodeRe.ReplaceAllString(s, " ")
	s = imageRe.ReplaceAllString(s, " ")
	s = linkRe.ReplaceAllString(s, "$1")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Words splits text into lowercase words on any non letter/digit rune.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WordSet returns the set of lowercase words in text.
func WordSet(text string) map[string]struct{} {
	words := Words(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// JaccardOverlap is |A ∩ B| / |A ∪ B| over the lowercase word sets of a
// and b. It is 0 when both are empty.
func JaccardOverlap(a, b string) float64 {
	return JaccardSets(WordSet(a), WordSet(b))
}

// JaccardSets computes the Jaccard ratio of two precomputed word sets.
func JaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return Clamp(float64(inter) / float64(union))
}

// EditDistance is the Levenshtein distance between a and b with unit
// insert, delete and substitute costs. It works on runes and keeps two
// DP rows.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// LevenshteinRatio is (max(len) - distance) / max(len). Two empty
// strings are identical (1.0).
func LevenshteinRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return Clamp(float64(longest-EditDistance(a, b)) / float64(longest))
}

// NormalizeHeader lowercases a header, trims surrounding punctuation and
// collapses inner whitespace so "  Getting   Started: " == "getting started".
func NormalizeHeader(h string) string {
	h = strings.ToLower(h)
	h = strings.TrimFunc(h, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return spaceRe.ReplaceAllString(h, " ")
}

// Clamp limits v to [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
