// Package server wires every redoc component and creates the MCP server.
//
// This is the composition root: it loads configuration, opens the store,
// builds the service and registers the tools. No domain logic lives here.
package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/redoc/internal/config"
	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/service"
	"github.com/HendryAvila/redoc/internal/store"
	"github.com/HendryAvila/redoc/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options configures the runtime.
type Options struct {
	// Root is the corpus root; empty means the working directory.
	Root string
	// ConfigFile overrides the redoc.yaml lookup.
	ConfigFile string
	// LogLevel overrides the configured level when set.
	LogLevel string
	// Logger replaces the configured logger (tests).
	Logger *log.Logger
}

// Runtime is a fully wired service plus what it takes to shut it down.
type Runtime struct {
	Service *service.Service
	Config  *config.Config
	Logger  *log.Logger
	// ConfigFile is the file that was loaded, or "".
	ConfigFile string
	// Persistent reports whether the store opened.
	Persistent bool

	cleanup func()
}

// Close releases the store. It is safe to call more than once.
func (r *Runtime) Close() {
	if r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
}

// Build loads configuration and wires the service. The store is an
// independent subsystem: if it fails to open, redoc keeps working with
// neutral history, no snapshots and no telemetry.
func Build(ctx context.Context, opts Options) (*Runtime, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving corpus root: %w", err)
	}

	cfg, file, err := config.Load(ctx, config.LoadOptions{Root: root, File: opts.ConfigFile})
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(logging.Options{Level: cfg.LogLevel})
	}

	rt := &Runtime{Config: cfg, Logger: logger, ConfigFile: file, cleanup: noop}

	st, stErr := store.New(store.DefaultConfig(cfg.DataPath(root)))
	if stErr != nil {
		logger.Warn("store disabled", "err", stErr)
		st = nil
	} else {
		rt.Persistent = true
		rt.cleanup = func() {
			if err := st.Close(); err != nil {
				logger.Warn("store close", "err", err)
			}
		}
	}

	rt.Service = service.New(service.Options{Root: root, Config: cfg, Store: st, Logger: logger})
	logger.Debug("runtime ready", "root", root, "config", file, "persistent", rt.Persistent)
	return rt, nil
}

// New creates the MCP server with every tool registered. The returned
// cleanup function is always non-nil and must be called on shutdown.
func New(ctx context.Context, opts Options) (*server.MCPServer, func(), error) {
	rt, err := Build(ctx, opts)
	if err != nil {
		return nil, noop, err
	}

	s := server.NewMCPServer(
		"redoc",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)
	Register(s, rt.Service)
	return s, rt.Close, nil
}

// Register adds every redoc tool to s.
func Register(s *server.MCPServer, svc *service.Service) {
	// --- Detection ---
	detectTool := tools.NewDetectTool(svc)
	s.AddTool(detectTool.Definition(), detectTool.Handle)

	confidenceTool := tools.NewConfidenceTool(svc)
	s.AddTool(confidenceTool.Definition(), confidenceTool.Handle)

	// --- Consolidation ---
	previewTool := tools.NewPreviewTool(svc)
	s.AddTool(previewTool.Definition(), previewTool.Handle)

	executeTool := tools.NewExecuteTool(svc)
	s.AddTool(executeTool.Definition(), executeTool.Handle)

	rollbackTool := tools.NewRollbackTool(svc)
	s.AddTool(rollbackTool.Definition(), rollbackTool.Handle)

	backupsTool := tools.NewBackupsTool(svc)
	s.AddTool(backupsTool.Definition(), backupsTool.Handle)

	// --- References ---
	validateTool := tools.NewValidateRefsTool(svc)
	s.AddTool(validateTool.Definition(), validateTool.Handle)

	updateTool := tools.NewUpdateRefsTool(svc)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	// --- Health ---
	healthTool := tools.NewHealthTool(svc)
	s.AddTool(healthTool.Definition(), healthTool.Handle)
}

// noop is the cleanup used when nothing needs closing.
func noop() {}

// serverInstructions tells the client how to use redoc.
func serverInstructions() string {
	return `You have access to redoc, a documentation redundancy and consolidation server.

## Workflow
1. redundancy_detect: find groups of documents that say the same thing.
2. consolidation_preview: plan a fix for one issue (by issue_id) and see
   exactly which files would change. Nothing is written.
3. Show the preview to the user and get explicit approval.
4. consolidation_execute: apply it. A backup is taken first; if any write
   fails every file is restored.
5. references_validate: confirm no link is broken afterwards.

## Strategies
- hierarchical: keep the primary document, trim duplicated sections from
  the others and point them at the primary.
- merge-and-redirect: fold everything into the primary, archive the rest
  and rewrite inbound links.
- split-by-audience: keep documents written for different readers apart
  and cross-link them.

## Rules
- Never execute without a preview the user has approved.
- Issues from the pairwise pass always require approval.
- Undo any run with consolidation_rollback and the backup name it reported.
- After moving or renaming files yourself, call references_update.
- health_report gives a 0-100 score and the best next consolidations.`
}
