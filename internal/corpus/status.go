package corpus

import "context"

// StatusCounts is the output of a staleness classification.
type StatusCounts struct {
	Stale           int      `json:"stale"`
	Superseded      int      `json:"superseded"`
	StaleFiles      []string `json:"stale_files,omitempty"`
	SupersededFiles []string `json:"superseded_files,omitempty"`
}

// FrontmatterStatus classifies documents from their frontmatter:
//
//	status: stale | outdated          -> stale
//	status: superseded | deprecated   -> superseded
//	superseded_by: <anything>         -> superseded
//
// It stands in for a richer staleness classifier and satisfies the
// health package's StalenessClassifier.
type FrontmatterStatus struct{}

// Classify counts stale and superseded documents.
func (FrontmatterStatus) Classify(ctx context.Context, docs []*Document) (StatusCounts, error) {
	var counts StatusCounts
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		if d.Frontmatter == nil {
			continue
		}
		if _, ok := d.Frontmatter["superseded_by"]; ok {
			counts.Superseded++
			counts.SupersededFiles = append(counts.SupersededFiles, d.Path)
			continue
		}
		switch metaString(d.Frontmatter, "status") {
		case "stale", "outdated":
			counts.Stale++
			counts.StaleFiles = append(counts.StaleFiles, d.Path)
		case "superseded", "deprecated":
			counts.Superseded++
			counts.SupersededFiles = append(counts.SupersededFiles, d.Path)
		}
	}
	return counts, nil
}
