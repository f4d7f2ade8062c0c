package consolidate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/HendryAvila/redoc/internal/backup"
	"github.com/HendryAvila/redoc/internal/corpus"
	"github.com/HendryAvila/redoc/internal/fsutil"
	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/refs"
)

// ErrCorpusChanged rejects a plan whose files were modified after it was
// built.
var ErrCorpusChanged = errors.New("consolidate: corpus changed since planning")

// OutcomeRecorder learns from finished consolidations.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, strategy string, success bool, filesChanged int) error
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Root       string
	Registry   *Registry
	Backups    *backup.Store
	Outcomes   OutcomeRecorder
	ArchiveDir string
	// Lock serializes every run that mutates the corpus. It must have a
	// capacity of one; nil creates a private lock.
	Lock   *semaphore.Weighted
	Logger *log.Logger
}

// Executor commits plans to disk.
type Executor struct {
	root       string
	registry   *Registry
	backups    *backup.Store
	outcomes   OutcomeRecorder
	archiveDir string
	lock       *semaphore.Weighted
	logger     *log.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	lock := opts.Lock
	if lock == nil {
		lock = semaphore.NewWeighted(1)
	}
	return &Executor{
		root:       opts.Root,
		registry:   opts.Registry,
		backups:    opts.Backups,
		outcomes:   opts.Outcomes,
		archiveDir: opts.ArchiveDir,
		lock:       lock,
		logger:     logging.OrDiscard(opts.Logger),
	}
}

// Execute applies plan to the corpus c was loaded from.
//
// A dry run does exactly the same work in memory and writes nothing. A
// real run backs up every file it is about to touch, writes each file
// atomically, and restores the whole backup if any modification failed.
// Expected failures are reported in the Result, never as a Go error.
func (e *Executor) Execute(ctx context.Context, c *corpus.Corpus, plan *Plan, dryRun bool) *Result {
	res := &Result{DryRun: dryRun, ChangedFiles: []string{}}
	if plan == nil {
		res.Errors = []string{"consolidate: no plan"}
		return res
	}
	res.Strategy = plan.Strategy
	res.Warnings = append(res.Warnings, plan.Warnings...)

	strategy, err := e.registry.Get(string(plan.Strategy))
	if err != nil {
		res.Errors = []string{err.Error()}
		return res
	}
	if err := e.lock.Acquire(ctx, 1); err != nil {
		res.Errors = []string{fmt.Sprintf("consolidate: waiting for run lock: %v", err)}
		return res
	}
	defer e.lock.Release(1)

	// Plans are built without the lock; another run may have committed since.
	if changed := e.stale(c, plan); len(changed) > 0 {
		res.Errors = []string{fmt.Sprintf("%v (%s); preview again", ErrCorpusChanged, strings.Join(changed, ", "))}
		return res
	}

	ws := NewWorkspace(e.root, c)
	errs := errorList(strategy.Apply(ctx, plan, ws))
	changes := ws.Changes()
	res.Validation = e.validate(ws, changes)
	res.LinesRemoved = e.linesRemoved(changes)

	if dryRun {
		for _, ch := range changes {
			res.ChangedFiles = append(res.ChangedFiles, ch.File)
		}
		res.Errors = errs
		res.Success = len(errs) == 0
		return res
	}

	if len(changes) > 0 {
		files := make([]string, len(changes))
		for i, ch := range changes {
			files[i] = ch.File
		}
		manifest, err := e.backups.Create(e.root, "consolidate-"+string(plan.Strategy), files)
		if err != nil {
			res.Errors = append(errs, err.Error())
			e.record(ctx, plan.Strategy, res)
			return res
		}
		res.BackupName = manifest.Name
		res.BackupPath = e.backups.Path(manifest.Name)

		for _, ch := range changes {
			if err := ctx.Err(); err != nil {
				errs = append(errs, fmt.Sprintf("consolidate: interrupted before %s: %v", ch.File, err))
				break
			}
			if err := e.commit(ch); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			res.ChangedFiles = append(res.ChangedFiles, ch.File)
		}

		if len(errs) > 0 {
			if _, err := e.backups.Restore(manifest.Name); err != nil {
				errs = append(errs, fmt.Sprintf("consolidate: restore %s: %v", manifest.Name, err))
			} else {
				res.RolledBack = true
			}
		}
	}

	res.Errors = errs
	res.Success = len(errs) == 0
	e.record(ctx, plan.Strategy, res)
	e.logger.Info("consolidate: executed",
		"strategy", plan.Strategy, "success", res.Success, "changed", len(res.ChangedFiles),
		"backup", res.BackupName, "rolled_back", res.RolledBack)
	return res
}

// Rollback restores a named backup under the run lock.
func (e *Executor) Rollback(ctx context.Context, name string) *Result {
	res := &Result{ChangedFiles: []string{}}
	if err := e.lock.Acquire(ctx, 1); err != nil {
		res.Errors = []string{fmt.Sprintf("consolidate: waiting for run lock: %v", err)}
		return res
	}
	defer e.lock.Release(1)

	m, err := e.backups.Restore(name)
	if m != nil {
		res.BackupName = m.Name
		res.BackupPath = e.backups.Path(m.Name)
		res.ChangedFiles = append(append(res.ChangedFiles, m.Files...), m.Missing...)
	}
	if err != nil {
		res.Errors = errorList(err)
		return res
	}
	res.Success = true
	res.RolledBack = true
	e.logger.Info("consolidate: rolled back", "backup", name, "files", len(res.ChangedFiles))
	return res
}

// stale lists the corpus files named by plan whose bytes on disk differ
// from what c holds, including files that disappeared.
func (e *Executor) stale(c *corpus.Corpus, plan *Plan) []string {
	seen := map[string]bool{}
	var out []string
	check := func(rel string) {
		if rel == "" || seen[rel] {
			return
		}
		seen[rel] = true
		d, ok := c.Get(rel)
		if !ok {
			return
		}
		data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(rel)))
		if err != nil || string(data) != d.Raw {
			out = append(out, rel)
		}
	}
	for _, f := range plan.Files {
		check(f)
	}
	for _, m := range plan.Modifications {
		check(m.File)
		check(m.Reference)
		for _, r := range m.References {
			check(r)
		}
	}
	return out
}

func (e *Executor) commit(ch Change) error {
	abs := filepath.Join(e.root, filepath.FromSlash(ch.File))
	if ch.Deleted {
		return fsutil.RemoveIfExists(abs)
	}
	return fsutil.WriteFileAtomic(abs, []byte(ch.Content))
}

func (e *Executor) record(ctx context.Context, strategy Name, res *Result) {
	if e.outcomes == nil {
		return
	}
	if err := e.outcomes.RecordOutcome(ctx, string(strategy), res.Success, len(res.ChangedFiles)); err != nil {
		e.logger.Warn("consolidate: outcome not recorded", "strategy", strategy, "err", err)
	}
}

func (e *Executor) archived(rel string) bool {
	if e.archiveDir == "" {
		return false
	}
	dir := path.Clean(e.archiveDir)
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

// linesRemoved is the net line count leaving the live corpus; archive
// copies do not count.
func (e *Executor) linesRemoved(changes []Change) int {
	net := 0
	for _, ch := range changes {
		if e.archived(ch.File) {
			continue
		}
		net += ch.LinesBefore - ch.LinesAfter
	}
	return max(net, 0)
}

// validate checks the state after changes: code fences of every written
// file must balance, its links must resolve, and no remaining document
// may link to a deleted file.
func (e *Executor) validate(ws *Workspace, changes []Change) Validation {
	v := Validation{SyntaxValid: true, LinksValid: true}
	checker := refs.NewChecker(ws)

	changed := map[string]bool{}
	deleted := map[string]bool{}
	for _, ch := range changes {
		changed[ch.File] = true
		if ch.Deleted {
			deleted[ch.File] = true
			continue
		}
		if e.archived(ch.File) || !corpus.IsMarkdown(ch.File) {
			continue
		}
		if !fencesBalanced(ch.Content) {
			v.SyntaxValid = false
			v.Errors = append(v.Errors, ch.File+": unbalanced code fence")
		}
		for _, r := range checker.Check(refs.Extract(ch.File, ch.Content)) {
			if !r.Valid {
				v.LinksValid = false
				v.Errors = append(v.Errors, fmt.Sprintf("%s:%d: %s", r.Source, r.Line, r.Error))
			}
		}
	}

	if len(deleted) > 0 {
		for _, src := range ws.Sources() {
			if changed[src.Path] || e.archived(src.Path) {
				continue
			}
			for _, r := range refs.Extract(src.Path, src.Text) {
				if deleted[r.Resolved] {
					v.LinksValid = false
					v.Errors = append(v.Errors, fmt.Sprintf("%s:%d: links to removed %s", r.Source, r.Line, r.Resolved))
				}
			}
		}
	}
	if !v.LinksValid {
		v.Warnings = append(v.Warnings, "run references_validate after reviewing the changes")
	}
	return v
}

// errorList flattens a joined error into its messages.
func errorList(err error) []string {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, errorList(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
