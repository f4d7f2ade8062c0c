package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HendryAvila/redoc/internal/health"
)

const (
	archiveLimit = 14
	recentLimit  = 10
)

// history reads the snapshot archive of rep's type, the latest runs and
// the store totals. Read failures become warnings.
func (s *Service) history(ctx context.Context, rep *health.Report) *History {
	h := &History{Archive: []health.Snapshot{}}
	if s.store == nil {
		h.Warnings = append(h.Warnings, "no history store configured")
		return h
	}

	records, err := s.store.ListSnapshots(ctx, rep.Type, archiveLimit)
	if err != nil {
		h.Warnings = append(h.Warnings, "snapshot archive unavailable: "+err.Error())
	}
	for _, r := range records {
		var snap health.Snapshot
		if err := json.Unmarshal(r.Data, &snap); err != nil {
			s.logger.Warn("service: archived snapshot unreadable", "type", r.ReportType, "key", r.Key, "err", err)
			h.Warnings = append(h.Warnings, fmt.Sprintf("snapshot %s unreadable", r.Key))
			continue
		}
		h.Archive = append(h.Archive, snap)
	}

	if h.RecentRuns, err = s.store.RecentEvents(ctx, "", recentLimit); err != nil {
		h.Warnings = append(h.Warnings, "recent runs unavailable: "+err.Error())
	}
	if h.Stats, err = s.store.Stats(ctx); err != nil {
		h.Warnings = append(h.Warnings, "store totals unavailable: "+err.Error())
	}
	return h
}

func renderHistory(h *History) string {
	var sb strings.Builder
	sb.WriteString("\n## History\n\n")
	if len(h.Archive) == 0 {
		sb.WriteString("No archived snapshots.\n")
	} else {
		sb.WriteString("| Date | Files | Lines | Redundancy clusters | Stale |\n|---|---|---|---|---|\n")
		for _, snap := range h.Archive {
			m := snap.Metrics
			fmt.Fprintf(&sb, "| %s | %d | %d | %d | %d |\n",
				snap.TakenAt.Format("2006-01-02"), m.TotalFiles, m.TotalLines, m.RedundancyClusters, m.StaleDocs)
		}
	}

	if len(h.RecentRuns) > 0 {
		sb.WriteString("\n### Recent runs\n\n")
		for _, e := range h.RecentRuns {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			fmt.Fprintf(&sb, "- %s `%s` %s (%s)", e.CreatedAt.Format("2006-01-02 15:04"), e.Operation, status, e.Duration)
			if e.Summary != "" {
				fmt.Fprintf(&sb, ": %s", e.Summary)
			}
			sb.WriteString("\n")
		}
	}

	if h.Stats != nil {
		fmt.Fprintf(&sb, "\n%d snapshot(s), %d consolidation outcome(s), %d issue sighting(s), %d event(s) stored.\n",
			h.Stats.Snapshots, h.Stats.Outcomes, h.Stats.Sightings, h.Stats.Events)
	}
	for _, w := range h.Warnings {
		fmt.Fprintf(&sb, "\n> %s\n", w)
	}
	return sb.String()
}
