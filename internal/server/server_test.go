package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/redoc/internal/logging"
	"github.com/HendryAvila/redoc/internal/service"
)

func writeRootFile(t *testing.T, root, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", name, err)
	}
}

// ─── Build ──────────────────────────────────────────────────────────────────

func TestBuild_WithStore(t *testing.T) {
	root := t.TempDir()
	writeRootFile(t, root, "a.md", "# A\n")

	rt, err := Build(context.Background(), Options{Root: root, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	defer rt.Close()

	if !rt.Persistent {
		t.Error("Persistent = false, want true")
	}
	if rt.ConfigFile != "" {
		t.Errorf("ConfigFile = %s, want none", rt.ConfigFile)
	}
	if _, err := os.Stat(filepath.Join(root, ".redoc", "redoc.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}

	resp, err := rt.Service.DetectRedundancy(context.Background(), service.DetectRequest{})
	if err != nil {
		t.Fatalf("DetectRedundancy() error: %v", err)
	}
	if resp.Detection.FilesAnalyzed != 1 {
		t.Errorf("FilesAnalyzed = %d, want 1", resp.Detection.FilesAnalyzed)
	}

	// Close is idempotent.
	rt.Close()
	rt.Close()
}

func TestBuild_StoreFailureDegrades(t *testing.T) {
	root := t.TempDir()
	// A regular file where the data directory should be.
	writeRootFile(t, root, ".redoc", "x")

	rt, err := Build(context.Background(), Options{Root: root, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	defer rt.Close()
	if rt.Persistent {
		t.Error("Persistent = true, want false without a usable data directory")
	}

	if _, err := rt.Service.GenerateHealthReport(context.Background(), service.HealthRequest{}); err != nil {
		t.Errorf("GenerateHealthReport() without store error: %v", err)
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	writeRootFile(t, root, "redoc.yaml", "redundancy_threshold: 3\n")

	_, err := Build(context.Background(), Options{Root: root})
	if err == nil || !strings.Contains(err.Error(), "redundancy_threshold") {
		t.Errorf("Build() error = %v, want a redundancy_threshold error", err)
	}
}

// ─── New ────────────────────────────────────────────────────────────────────

func TestNew_RegistersTools(t *testing.T) {
	s, cleanup, err := New(context.Background(), Options{Root: t.TempDir(), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer cleanup()

	registered := s.ListTools()
	for _, want := range []string{
		"redundancy_detect", "confidence_score",
		"consolidation_preview", "consolidation_execute", "consolidation_rollback", "backups_list",
		"references_validate", "references_update", "health_report",
	} {
		if _, ok := registered[want]; !ok {
			t.Errorf("tool %s not registered", want)
		}
	}
}
