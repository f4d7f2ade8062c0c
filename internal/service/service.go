// Package service is the operation boundary of redoc: every named
// operation takes a structured request and returns a structured response
// with a one-line Summary. Transports (MCP tools, the CLI) only translate.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/HendryAvila/redoc/internal/backup"
	"github.com/HendryAvila/redoc/internal/confidence"
	"github.com/HendryAvila/redoc/internal/config"
	"github.com/HendryAvila/redoc/internal/consolidate"
	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/detect"
	"github.com/HendryAvila/redoc/internal/fsutil"
	"github.com/HendryAvila/redoc/internal/health"
	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/refs"
	"github.com/HendryAvila/redoc/internal/similarity"
	"github.com/HendryAvila/redoc/internal/store"
	"github.com/HendryAvila/redoc/internal/telemetry"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// Options configures a Service.
type Options struct {
	// Root is the corpus root.
	Root   string
	Config *config.Config
	// Store enables history, snapshots, sightings and telemetry. May be nil.
	Store  *store.Store
	Logger *log.Logger
}

// Service runs operations against one corpus root.
type Service struct {
	root     string
	cfg      *config.Config
	logger   *log.Logger
	engine   *similarity.Engine
	scorer   *confidence.Scorer
	builder  *detect.Builder
	survey   *detect.Builder
	registry *consolidate.Registry
	executor *consolidate.Executor
	backups  *backup.Store
	refs     *refs.Validator
	health   *health.Generator
	events   *telemetry.Emitter
	store    *store.Store
	lock     *semaphore.Weighted

	mu     sync.Mutex
	issues map[string]detect.Issue
}

// New wires a Service.
func New(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := logging.OrDiscard(opts.Logger)

	var (
		history   confidence.HistoryProvider
		sightings detect.SightingRecorder
		outcomes  consolidate.OutcomeRecorder
		snapshots health.SnapshotStore
		sink      telemetry.Sink
	)
	if opts.Store != nil {
		history, sightings, outcomes, snapshots = opts.Store, opts.Store, opts.Store, opts.Store
		sink = telemetry.NewStoreSink(opts.Store)
	}

	engine := similarity.NewEngine(cfg.HeaderThreshold, cfg.SectionThreshold, logger)
	scorer := confidence.NewScorer(cfg.AutoExecuteThreshold, history)
	registry := consolidate.NewRegistry(engine, cfg.ArchiveDir)
	backups := backup.NewStore(filepath.Join(cfg.DataPath(opts.Root), "backups"))
	lock := semaphore.NewWeighted(1)

	s := &Service{
		root:     opts.Root,
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		scorer:   scorer,
		registry: registry,
		backups:  backups,
		refs:     refs.NewValidator(opts.Root, logger),
		health:   health.NewGenerator(snapshots, nil, logger),
		events:   telemetry.NewEmitter(sink, logger),
		store:    opts.Store,
		lock:     lock,
		issues:   map[string]detect.Issue{},
	}
	detectOpts := detect.Options{
		Patterns:  cfg.Patterns,
		Threshold: cfg.RedundancyThreshold,
		Protected: cfg.Protected,
	}
	s.builder = detect.NewBuilder(detectOpts, engine, scorer, sightings, logger)
	// Reports look at the corpus without counting as a sighting.
	s.survey = detect.NewBuilder(detectOpts, engine, scorer, nil, logger)
	s.executor = consolidate.NewExecutor(consolidate.ExecutorOptions{
		Root:       opts.Root,
		Registry:   registry,
		Backups:    backups,
		Outcomes:   outcomes,
		ArchiveDir: cfg.ArchiveDir,
		Lock:       lock,
		Logger:     logger,
	})
	return s
}

// Root is the corpus root.
func (s *Service) Root() string { return s.root }

// Config is the configuration in use.
func (s *Service) Config() *config.Config { return s.cfg }

func (s *Service) load(ctx context.Context) (*corpus.Corpus, []corpus.LoadError, error) {
	return corpus.ScanAndLoad(ctx, s.root, s.cfg.ScanIgnore(), s.logger)
}

func (s *Service) emit(ctx context.Context, op string, start time.Time, success bool, summary string) {
	s.events.Emit(ctx, op, start, success, summary)
}

// ─── Detection ─────────────────────────────────────────────────────────────

// DetectRedundancy scans the corpus and groups redundant documents. The
// issues are remembered so later calls can refer to them by ID.
func (s *Service) DetectRedundancy(ctx context.Context, req DetectRequest) (resp *DetectResponse, err error) {
	start := timeNow()
	defer func() { s.emit(ctx, OpDetectRedundancy, start, err == nil, summaryOf(resp)) }()

	if req.Threshold < 0 || req.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [0,1], got %g", ErrInvalidArgument, req.Threshold)
	}
	c, loadErrs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	det, err := s.detect(ctx, c, req.Threshold)
	if err != nil {
		return nil, err
	}

	resp = &DetectResponse{Detection: det, LoadErrors: loadErrs}
	resp.Summary = fmt.Sprintf("%d issue(s) in %d file(s): %d from patterns, %d pairwise; %d pair(s) compared",
		len(det.Issues), det.FilesAnalyzed, det.PatternIssues, det.PairwiseIssues, det.PairsCompared)
	if len(loadErrs) > 0 {
		resp.Summary += fmt.Sprintf("; %d unreadable file(s) skipped", len(loadErrs))
	}
	return resp, nil
}

func (s *Service) detect(ctx context.Context, c *corpus.Corpus, threshold float64) (*detect.Detection, error) {
	builder := s.builder
	if threshold > 0 && threshold != s.cfg.RedundancyThreshold {
		builder = detect.NewBuilder(detect.Options{
			Patterns:  s.cfg.Patterns,
			Threshold: threshold,
			Protected: s.cfg.Protected,
		}, s.engine, s.scorer, nil, s.logger)
	}
	det, err := builder.Detect(ctx, c)
	if err != nil {
		return nil, err
	}
	s.remember(det.Issues)
	return det, nil
}

func (s *Service) remember(issues []detect.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues = make(map[string]detect.Issue, len(issues))
	for _, is := range issues {
		s.issues[is.ID] = is
	}
}

func (s *Service) issue(id string) (detect.Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	is, ok := s.issues[id]
	return is, ok
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.issues, id)
}

// ScoreConfidence scores evidence directly.
func (s *Service) ScoreConfidence(ctx context.Context, req ScoreRequest) (resp *ScoreResponse, err error) {
	start := timeNow()
	defer func() { s.emit(ctx, OpScoreConfidence, start, err == nil, summaryOf(resp)) }()

	origin := req.Origin
	if origin == "" {
		origin = confidence.OriginPairwise
	}
	if origin != confidence.OriginPattern && origin != confidence.OriginPairwise {
		return nil, fmt.Errorf("%w: origin must be %q or %q", ErrInvalidArgument, confidence.OriginPattern, confidence.OriginPairwise)
	}
	if req.Strategy != "" {
		if err := consolidate.ValidateName(req.Strategy); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	a := s.scorer.Score(ctx, confidence.Input{
		Evidence:       req.Evidence,
		Origin:         origin,
		Strategy:       req.Strategy,
		FileCount:      req.FileCount,
		Reversible:     req.Reversible,
		ContextClarity: req.ContextClarity,
	})
	resp = &ScoreResponse{Assessment: a, AutoExecutable: s.scorer.AutoExecutable(a.Confidence, origin)}
	resp.Summary = fmt.Sprintf("confidence %.2f (%s)", a.Confidence, a.Severity)
	if resp.AutoExecutable {
		resp.Summary += ", eligible for execution without review"
	}
	return resp, nil
}

// ─── Consolidation ─────────────────────────────────────────────────────────

// PreviewConsolidation plans a consolidation and simulates it without
// writing anything.
func (s *Service) PreviewConsolidation(ctx context.Context, req ConsolidationRequest) (resp *ConsolidationResponse, err error) {
	start := timeNow()
	defer func() { s.emit(ctx, OpPreviewConsolidation, start, err == nil && !resp.Rejected(), summaryOf(resp)) }()

	c, plan, resp, err := s.plan(ctx, req)
	if err != nil || resp != nil {
		return resp, err
	}
	result := s.executor.Execute(ctx, c, plan, true)
	resp = &ConsolidationResponse{Plan: plan, Result: result, Errors: result.Errors}
	resp.Summary = fmt.Sprintf("%s plan for %d file(s): %d modification(s), ~%d line(s) saved, %d file(s) would change",
		plan.Strategy, len(plan.Files), len(plan.Modifications), plan.EstimatedLineReduction, len(result.ChangedFiles))
	if !plan.RecommendMerge && plan.Strategy == consolidate.SplitByAudience && len(plan.TouchedFiles()) == 0 {
		resp.Summary += "; no change recommended"
	}
	return resp, nil
}

// ExecuteConsolidation plans and applies a consolidation. With DryRun it
// is the same as a preview.
func (s *Service) ExecuteConsolidation(ctx context.Context, req ConsolidationRequest) (resp *ConsolidationResponse, err error) {
	start := timeNow()
	defer func() {
		ok := err == nil && !resp.Rejected() && resp.Result.Success
		s.emit(ctx, OpExecuteConsolidation, start, ok, summaryOf(resp))
	}()

	c, plan, resp, err := s.plan(ctx, req)
	if err != nil || resp != nil {
		return resp, err
	}
	result := s.executor.Execute(ctx, c, plan, req.DryRun)
	resp = &ConsolidationResponse{Plan: plan, Result: result, Errors: result.Errors}

	verb := "applied"
	if req.DryRun {
		verb = "simulated"
	}
	switch {
	case result.Success:
		resp.Summary = fmt.Sprintf("%s %s to %d file(s), %d line(s) removed", verb, plan.Strategy, len(result.ChangedFiles), result.LinesRemoved)
		if result.BackupName != "" {
			resp.Summary += "; backup " + result.BackupName
		}
		if !req.DryRun && req.IssueID != "" {
			s.forget(req.IssueID)
		}
	case result.RolledBack:
		resp.Summary = fmt.Sprintf("%s failed with %d error(s); all files restored from %s", plan.Strategy, len(result.Errors), result.BackupName)
	default:
		resp.Summary = fmt.Sprintf("%s failed with %d error(s)", plan.Strategy, len(result.Errors))
	}
	if !result.Validation.LinksValid || !result.Validation.SyntaxValid {
		resp.Summary += fmt.Sprintf("; %d validation problem(s)", len(result.Validation.Errors))
	}
	return resp, nil
}

// plan resolves a request to a loaded corpus and a plan. A non-nil
// response means the request was rejected.
func (s *Service) plan(ctx context.Context, req ConsolidationRequest) (*corpus.Corpus, *consolidate.Plan, *ConsolidationResponse, error) {
	if req.IssueID == "" && len(req.Files) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: issue_id or files is required", ErrMissingArgument)
	}

	in := consolidate.Input{Files: req.Files, Primary: req.Primary}
	strategy := req.Strategy
	if req.IssueID != "" {
		is, ok := s.issue(req.IssueID)
		if !ok {
			return nil, nil, reject(fmt.Sprintf("unknown issue %s; run redundancy detection first", req.IssueID)), nil
		}
		if len(in.Files) == 0 {
			in.Files = is.AffectedFiles
		}
		if in.Primary == "" {
			in.Primary = is.PrimaryFile
		}
		in.Overlaps = is.Overlaps
		if strategy == "" {
			strategy = is.Action.Strategy
		}
	}
	if strategy == "" {
		strategy = string(consolidate.Hierarchical)
	}

	c, _, err := s.load(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	in.Corpus = c
	plan, err := s.registry.Analyze(strategy, in)
	if err != nil {
		return nil, nil, reject(err.Error()), nil
	}
	return c, plan, nil, nil
}

func reject(reason string) *ConsolidationResponse {
	return &ConsolidationResponse{Errors: []string{reason}, Summary: "rejected: " + reason}
}

// RollbackConsolidation restores a backup.
func (s *Service) RollbackConsolidation(ctx context.Context, req RollbackRequest) (resp *RollbackResponse, err error) {
	start := timeNow()
	defer func() {
		s.emit(ctx, OpRollbackConsolidation, start, err == nil && resp.Result.Success, summaryOf(resp))
	}()

	if strings.TrimSpace(req.BackupName) == "" {
		return nil, fmt.Errorf("%w: backup_name is required", ErrMissingArgument)
	}
	result := s.executor.Rollback(ctx, req.BackupName)
	resp = &RollbackResponse{Result: result}
	if result.Success {
		resp.Summary = fmt.Sprintf("restored %d file(s) from %s", len(result.ChangedFiles), req.BackupName)
	} else {
		resp.Summary = fmt.Sprintf("rollback of %s failed: %s", req.BackupName, strings.Join(result.Errors, "; "))
	}
	return resp, nil
}

// ListBackups lists backups, newest first.
func (s *Service) ListBackups(ctx context.Context) (resp *BackupsResponse, err error) {
	start := timeNow()
	defer func() { s.emit(ctx, OpListBackups, start, err == nil, summaryOf(resp)) }()

	list, err := s.backups.List()
	if err != nil {
		return nil, err
	}
	resp = &BackupsResponse{Backups: list, Summary: fmt.Sprintf("%d backup(s)", len(list))}
	return resp, nil
}

// ─── References ────────────────────────────────────────────────────────────

// ValidateReferences checks every link of the corpus, or of the named
// files only.
func (s *Service) ValidateReferences(ctx context.Context, req ValidateRequest) (resp *ValidateResponse, err error) {
	start := timeNow()
	defer func() { s.emit(ctx, OpValidateReferences, start, err == nil, summaryOf(resp)) }()

	c, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sources := refs.SourcesOf(c)
	if len(req.Files) > 0 {
		want := map[string]bool{}
		for _, f := range req.Files {
			want[corpus.ToSlash(f)] = true
		}
		filtered := sources[:0]
		for _, src := range sources {
			if want[src.Path] {
				filtered = append(filtered, src)
			}
		}
		sources = filtered
	}

	report, err := s.refs.Validate(ctx, sources)
	if err != nil {
		return nil, err
	}
	resp = &ValidateResponse{Report: report, Valid: len(report.BrokenReferences) == 0}
	resp.Summary = fmt.Sprintf("%d/%d reference(s) valid across %d file(s)",
		report.ValidReferences, report.TotalReferences, report.FilesScanned)
	if n := len(report.BrokenReferences); n > 0 {
		resp.Summary += fmt.Sprintf("; %d broken", n)
	}
	return resp, nil
}

// UpdateReferences rewrites links to moved files. A real run backs up
// every affected file first and restores them all if any write fails.
func (s *Service) UpdateReferences(ctx context.Context, req UpdateRequest) (resp *UpdateResponse, err error) {
	start := timeNow()
	defer func() { s.emit(ctx, OpUpdateReferences, start, err == nil && resp.Success, summaryOf(resp)) }()

	if len(req.Moves) == 0 {
		return nil, fmt.Errorf("%w: at least one move is required", ErrMissingArgument)
	}
	moves := make([]refs.Move, len(req.Moves))
	for i, mv := range req.Moves {
		if strings.TrimSpace(mv.From) == "" || strings.TrimSpace(mv.To) == "" {
			return nil, fmt.Errorf("%w: moves[%d] needs both from and to", ErrMissingArgument, i)
		}
		moves[i] = refs.Move{From: corpus.ToSlash(mv.From), To: corpus.ToSlash(mv.To)}
	}

	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("service: waiting for run lock: %w", err)
	}
	defer s.lock.Release(1)

	c, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	exists := func(rel string) bool { return fsutil.Exists(filepath.Join(s.root, filepath.FromSlash(rel))) }
	updates, err := refs.PlanUpdates(ctx, refs.SourcesOf(c), moves, exists)
	if err != nil {
		return nil, err
	}

	resp = &UpdateResponse{DryRun: req.DryRun, Updates: updates, FilesUpdated: []string{}}
	affected := refs.Affected(updates)
	if req.DryRun || len(updates) == 0 {
		resp.Success = true
		resp.FilesUpdated = affected
		resp.LinksUpdated = len(updates)
		resp.Summary = fmt.Sprintf("%d link(s) in %d file(s) would be rewritten", len(updates), len(affected))
		if !req.DryRun {
			resp.Summary = "no links point at the moved files"
		}
		return resp, nil
	}

	manifest, err := s.backups.Create(s.root, "update-references", affected)
	if err != nil {
		resp.Errors = []string{err.Error()}
		resp.Summary = "backup failed; nothing was rewritten"
		return resp, nil
	}
	resp.BackupName = manifest.Name

	applied, err := refs.ApplyUpdates(ctx, s.root, updates)
	resp.FilesUpdated = applied.FilesUpdated
	resp.LinksUpdated = applied.LinksUpdated
	resp.Errors = applied.Errors
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
	}
	if len(resp.Errors) > 0 {
		if _, rerr := s.backups.Restore(manifest.Name); rerr != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("restore %s: %v", manifest.Name, rerr))
		} else {
			resp.RolledBack = true
		}
		resp.Summary = fmt.Sprintf("update failed with %d error(s)", len(resp.Errors))
		if resp.RolledBack {
			resp.Summary += "; all files restored"
		}
		return resp, nil
	}

	resp.Success = true
	resp.Summary = fmt.Sprintf("rewrote %d link(s) in %d file(s); backup %s", resp.LinksUpdated, len(resp.FilesUpdated), manifest.Name)
	return resp, nil
}

// ─── Health ────────────────────────────────────────────────────────────────

// GenerateHealthReport runs detection and summarizes the corpus.
func (s *Service) GenerateHealthReport(ctx context.Context, req HealthRequest) (resp *HealthResponse, err error) {
	start := timeNow()
	defer func() { s.emit(ctx, OpGenerateHealthReport, start, err == nil, summaryOf(resp)) }()

	c, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	det, err := s.survey.Detect(ctx, c)
	if err != nil {
		return nil, err
	}

	estimate := func(is detect.Issue) int {
		plan, err := s.registry.Analyze(is.Action.Strategy, consolidate.Input{
			Corpus:   c,
			Files:    is.AffectedFiles,
			Primary:  is.PrimaryFile,
			Overlaps: is.Overlaps,
		})
		if err != nil {
			return 0
		}
		return plan.EstimatedLineReduction
	}
	report, err := s.health.Generate(ctx, health.Input{
		ReportType: req.ReportType,
		Corpus:     c,
		Issues:     det.Issues,
		Estimate:   estimate,
	})
	if err != nil {
		return nil, err
	}

	resp = &HealthResponse{Report: report, Markdown: health.RenderMarkdown(report)}
	if req.History {
		resp.History = s.history(ctx, report)
		resp.Markdown += renderHistory(resp.History)
	}
	resp.Summary = fmt.Sprintf("health %.1f/100 (%s): %d file(s), %d cluster(s), %d opportunit(ies)",
		report.Score, report.Band, report.Snapshot.Metrics.TotalFiles,
		report.Snapshot.Metrics.RedundancyClusters, len(report.Opportunities))
	return resp, nil
}

// summaryOf reads the Summary of any response, tolerating nil.
func summaryOf(resp any) string {
	switch r := resp.(type) {
	case *DetectResponse:
		if r != nil {
			return r.Summary
		}
	case *ScoreResponse:
		if r != nil {
			return r.Summary
		}
	case *ConsolidationResponse:
		if r != nil {
			return r.Summary
		}
	case *RollbackResponse:
		if r != nil {
			return r.Summary
		}
	case *ValidateResponse:
		if r != nil {
			return r.Summary
		}
	case *UpdateResponse:
		if r != nil {
			return r.Summary
		}
	case *HealthResponse:
		if r != nil {
			return r.Summary
		}
	case *BackupsResponse:
		if r != nil {
			return r.Summary
		}
	}
	return ""
}

// IsArgumentError reports whether err is a request problem the caller
// should fix, as opposed to an environment failure.
func IsArgumentError(err error) bool {
	return errors.Is(err, ErrMissingArgument) || errors.Is(err, ErrInvalidArgument)
}
