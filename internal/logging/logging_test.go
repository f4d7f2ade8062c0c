package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_WritesWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Prefix: "test", Output: &buf})

	l.Debug("hello", "path", "docs/a.md")

	out := buf.String()
	for _, want := range []string{"test", "hello", "docs/a.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})

	l.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}

	l.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn not logged: %q", buf.String())
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "chatty", Output: &buf})

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged at fallback level: %q", buf.String())
	}
	l.Info("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("info not logged: %q", buf.String())
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) = nil")
	}

	l := New(Options{})
	if got := OrDiscard(l); got != l {
		t.Error("OrDiscard(l) did not return l")
	}
}
