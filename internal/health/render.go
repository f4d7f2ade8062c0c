package health

import (
	"fmt"
	"strings"
)

// RenderMarkdown formats a report for humans.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	m := r.Snapshot.Metrics

	fmt.Fprintf(&sb, "# Documentation Health Report\n\n")
	fmt.Fprintf(&sb, "**Score**: %.1f/100 (%s)  \n", r.Score, r.Band)
	fmt.Fprintf(&sb, "**Generated**: %s  \n", r.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	if r.Previous != nil {
		fmt.Fprintf(&sb, "**Compared with**: %s\n\n", r.Previous.TakenAt.Format("2006-01-02 15:04 UTC"))
	} else {
		sb.WriteString("**Compared with**: no previous snapshot\n\n")
	}

	sb.WriteString("## Metrics\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Files | %d |\n", m.TotalFiles)
	fmt.Fprintf(&sb, "| Lines | %d |\n", m.TotalLines)
	fmt.Fprintf(&sb, "| Average file size | %.1f bytes |\n", m.AverageFileSize)
	fmt.Fprintf(&sb, "| Redundancy clusters | %d |\n", m.RedundancyClusters)
	fmt.Fprintf(&sb, "| Stale documents | %d |\n", m.StaleDocs)
	fmt.Fprintf(&sb, "| Superseded documents | %d |\n", m.SupersededDocs)

	if len(r.Trends) > 0 {
		sb.WriteString("\n## Trends\n\n")
		sb.WriteString("| Metric | Previous | Current | Change | Direction |\n|---|---|---|---|---|\n")
		for _, t := range r.Trends {
			fmt.Fprintf(&sb, "| %s | %g | %g | %+.1f%% | %s |\n", t.Metric, t.Previous, t.Current, t.Percent, t.Direction)
		}
	}

	sb.WriteString("\n## Opportunities\n\n")
	if len(r.Opportunities) == 0 {
		sb.WriteString("No consolidation opportunities.\n")
	} else {
		sb.WriteString("| Priority | Issue | Strategy | Confidence | Files | Est. lines saved |\n|---|---|---|---|---|---|\n")
		for _, o := range r.Opportunities {
			fmt.Fprintf(&sb, "| %s | `%s` | %s | %.0f%% | %s | %d |\n",
				o.Priority, o.IssueID, o.Strategy, o.Confidence*100, strings.Join(o.Files, ", "), o.EstimatedLineReduction)
		}
	}

	sb.WriteString("\n## Recommendations\n\n")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&sb, "- %s\n", rec)
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	return sb.String()
}
