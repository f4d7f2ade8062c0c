package service

import (
	"errors"

	"github.com/HendryAvila/redoc/internal/backup"
	"github.com/HendryAvila/redoc/internal/confidence"
	"github.com/HendryAvila/redoc/internal/consolidate"
	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/detect"
	"github.com/HendryAvila/redoc/internal/health"
	"github.com/HendryAvila/redoc/internal/refs"
	"github.com/HendryAvila/redoc/internal/store"
)

// Errors for malformed requests. Expected conditions are reported in the
// response instead.
var (
	ErrMissingArgument = errors.New("service: missing argument")
	ErrInvalidArgument = errors.New("service: invalid argument")
)

// Operation names, as recorded in telemetry.
const (
	OpDetectRedundancy      = "detect-redundancy"
	OpScoreConfidence       = "score-confidence"
	OpPreviewConsolidation  = "preview-consolidation"
	OpExecuteConsolidation  = "execute-consolidation"
	OpRollbackConsolidation = "rollback-consolidation"
	OpValidateReferences    = "validate-references"
	OpUpdateReferences      = "update-references"
	OpGenerateHealthReport  = "generate-health-report"
	OpListBackups           = "list-backups"
)

// --- detect-redundancy ---

// DetectRequest asks for a detection run over the whole corpus.
type DetectRequest struct {
	// Threshold overrides the configured redundancy threshold when > 0.
	Threshold float64 `json:"threshold,omitempty"`
}

// DetectResponse carries the detection.
type DetectResponse struct {
	Detection  *detect.Detection  `json:"detection"`
	LoadErrors []corpus.LoadError `json:"load_errors,omitempty"`
	Summary    string             `json:"summary"`
}

// --- score-confidence ---

// ScoreRequest scores evidence outside a detection run.
type ScoreRequest struct {
	Evidence       []confidence.Evidence `json:"evidence"`
	Origin         confidence.Origin     `json:"origin"`
	Strategy       string                `json:"strategy"`
	FileCount      int                   `json:"file_count"`
	Reversible     bool                  `json:"reversible"`
	ContextClarity float64               `json:"context_clarity"`
}

// ScoreResponse is the assessment.
type ScoreResponse struct {
	Assessment     confidence.Assessment `json:"assessment"`
	AutoExecutable bool                  `json:"auto_executable"`
	Summary        string                `json:"summary"`
}

// --- preview/execute-consolidation ---

// ConsolidationRequest names a group either by the ID of an issue from
// the latest detection or by an explicit file list.
type ConsolidationRequest struct {
	IssueID  string   `json:"issue_id,omitempty"`
	Files    []string `json:"files,omitempty"`
	Primary  string   `json:"primary,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
	// DryRun is ignored by preview, which never writes.
	DryRun bool `json:"dry_run,omitempty"`
}

// ConsolidationResponse is returned by preview and execute. A rejected
// request has a nil Plan and the reasons in Errors.
type ConsolidationResponse struct {
	Plan    *consolidate.Plan   `json:"plan,omitempty"`
	Result  *consolidate.Result `json:"result,omitempty"`
	Errors  []string            `json:"errors,omitempty"`
	Summary string              `json:"summary"`
}

// Rejected reports whether planning failed.
func (r *ConsolidationResponse) Rejected() bool { return r == nil || r.Plan == nil }

// --- rollback-consolidation ---

// RollbackRequest names a backup.
type RollbackRequest struct {
	BackupName string `json:"backup_name"`
}

// RollbackResponse carries the restore result.
type RollbackResponse struct {
	Result  *consolidate.Result `json:"result"`
	Summary string              `json:"summary"`
}

// --- validate-references ---

// ValidateRequest optionally limits validation to some files.
type ValidateRequest struct {
	Files []string `json:"files,omitempty"`
}

// ValidateResponse carries the report.
type ValidateResponse struct {
	Report  *refs.Report `json:"report"`
	Valid   bool         `json:"valid"`
	Summary string       `json:"summary"`
}

// --- update-references ---

// UpdateRequest rewrites links after files moved.
type UpdateRequest struct {
	Moves  []refs.Move `json:"moves"`
	DryRun bool        `json:"dry_run"`
}

// UpdateResponse reports the rewrite.
type UpdateResponse struct {
	DryRun       bool          `json:"dry_run"`
	Success      bool          `json:"success"`
	Updates      []refs.Update `json:"updates"`
	FilesUpdated []string      `json:"files_updated"`
	LinksUpdated int           `json:"links_updated"`
	BackupName   string        `json:"backup_name,omitempty"`
	RolledBack   bool          `json:"rolled_back,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
	Summary      string        `json:"summary"`
}

// --- generate-health-report ---

// HealthRequest asks for a report.
type HealthRequest struct {
	ReportType string `json:"report_type,omitempty"`
	// History adds the dated snapshot archive and recent runs.
	History bool `json:"history,omitempty"`
}

// HealthResponse carries the report and its markdown rendering.
type HealthResponse struct {
	Report   *health.Report `json:"report"`
	History  *History       `json:"history,omitempty"`
	Markdown string         `json:"-"`
	Summary  string         `json:"summary"`
}

// History is what the store remembers about earlier runs.
type History struct {
	// Archive holds one snapshot per day, newest first.
	Archive    []health.Snapshot `json:"archive"`
	RecentRuns []store.Event     `json:"recent_runs"`
	Stats      *store.Stats      `json:"stats,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// --- list-backups ---

// BackupsResponse lists backups, newest first.
type BackupsResponse struct {
	Backups []backup.Manifest `json:"backups"`
	Summary string            `json:"summary"`
}
