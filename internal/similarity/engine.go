package similarity

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/HendryAvila/redoc/internal/logging"
)

// Default thresholds for section matching.
const (
	DefaultHeaderThreshold  = 0.8
	DefaultSectionThreshold = 0.6
)

// Profile is the memoized comparison view of one document. Build it once
// per run with NewProfile; pairwise comparison reuses it O(n) times.
type Profile struct {
	Path       string
	Normalized string
	Sections   []Section
	Words      map[string]struct{}
}

// NewProfile normalizes raw markdown once and extracts everything the
// engine compares.
func NewProfile(path, raw string) Profile {
	normalized := Normalize(raw)
	return Profile{
		Path:       path,
		Normalized: normalized,
		Sections:   ExtractSections(raw),
		Words:      WordSet(normalized),
	}
}

// SectionMatch is a pair of sections whose headers line up and whose
// bodies are similar enough to count as duplicated content.
type SectionMatch struct {
	HeaderA          string  `json:"header_a"`
	HeaderB          string  `json:"header_b"`
	HeaderSimilarity float64 `json:"header_similarity"`
	Similarity       float64 `json:"similarity"`
}

// Result is the similarity between two documents.
type Result struct {
	FileA           string         `json:"file_a"`
	FileB           string         `json:"file_b"`
	Percentage      float64        `json:"percentage"`
	SimilarSections []SectionMatch `json:"similar_sections"`
}

// Engine compares documents. The zero value is not usable; use NewEngine.
type Engine struct {
	headerThreshold  float64
	sectionThreshold float64
	logger           *log.Logger
}

// NewEngine creates an Engine. Non-positive thresholds fall back to the
// defaults (0.8 for headers, 0.6 for section bodies).
func NewEngine(headerThreshold, sectionThreshold float64, logger *log.Logger) *Engine {
	if headerThreshold <= 0 {
		headerThreshold = DefaultHeaderThreshold
	}
	if sectionThreshold <= 0 {
		sectionThreshold = DefaultSectionThreshold
	}
	return &Engine{
		headerThreshold:  headerThreshold,
		sectionThreshold: sectionThreshold,
		logger:           logging.OrDiscard(logger),
	}
}

// SectionSimilarity pairs every section of a with every section of b.
// A pair qualifies when the normalized headers are equal or their edit
// ratio exceeds the header threshold, and the body ratio exceeds the
// section threshold.
func (e *Engine) SectionSimilarity(a, b []Section) []SectionMatch {
	matches := []SectionMatch{}
	for _, sa := range a {
		ha := NormalizeHeader(sa.Header)
		for _, sb := range b {
			hb := NormalizeHeader(sb.Header)
			headerSim := 1.0
			if ha != hb {
				headerSim = LevenshteinRatio(ha, hb)
				if headerSim <= e.headerThreshold {
					continue
				}
			}
			bodySim := LevenshteinRatio(sa.Body, sb.Body)
			if bodySim <= e.sectionThreshold {
				continue
			}
			matches = append(matches, SectionMatch{
				HeaderA:          sa.Header,
				HeaderB:          sb.Header,
				HeaderSimilarity: headerSim,
				Similarity:       bodySim,
			})
		}
	}
	return matches
}

// Compare computes word overlap and section matches for two profiles.
func (e *Engine) Compare(a, b Profile) Result {
	return Result{
		FileA:           a.Path,
		FileB:           b.Path,
		Percentage:      JaccardSets(a.Words, b.Words),
		SimilarSections: e.SectionSimilarity(a.Sections, b.Sections),
	}
}

// CompareFiles reads and compares two files from disk. A file that cannot
// be read yields a zero result; the failure is logged, never returned.
func (e *Engine) CompareFiles(pathA, pathB string) Result {
	zero := Result{FileA: pathA, FileB: pathB, SimilarSections: []SectionMatch{}}

	rawA, err := os.ReadFile(pathA)
	if err != nil {
		e.logger.Warn("similarity: unreadable file", "path", pathA, "err", err)
		return zero
	}
	rawB, err := os.ReadFile(pathB)
	if err != nil {
		e.logger.Warn("similarity: unreadable file", "path", pathB, "err", err)
		return zero
	}
	return e.Compare(NewProfile(pathA, string(rawA)), NewProfile(pathB, string(rawB)))
}

// Primary picks the file with the largest summed overlap against its
// peers. Ties go to the file listed first.
func Primary(files []string, overlaps []Result) string {
	if len(files) == 0 {
		return ""
	}
	sums := make(map[string]float64, len(files))
	for _, o := range overlaps {
		sums[o.FileA] += o.Percentage
		sums[o.FileB] += o.Percentage
	}
	best := files[0]
	for _, f := range files[1:] {
		if sums[f] > sums[best] {
			best = f
		}
	}
	return best
}
