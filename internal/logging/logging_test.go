package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveDir(t *testing.T) {
	exe := filepath.Join("opt", "analisis", "analisis-mcp")

	t.Setenv("LOGS_FOLDER", "/var/log/analisis")
	if got := resolveDir(exe, nil); got != "/var/log/analisis" {
		t.Errorf("LOGS_FOLDER: got %s", got)
	}

	t.Setenv("LOGS_FOLDER", "")
	t.Setenv("DATA_PATH", "/srv/data")
	if got := resolveDir(exe, nil); got != filepath.Join("/srv/data", "logs") {
		t.Errorf("DATA_PATH: got %s", got)
	}

	t.Setenv("DATA_PATH", "")
	if got := resolveDir(exe, nil); got != filepath.Join("opt", "analisis", "logs") {
		t.Errorf("binary dir: got %s", got)
	}
	if got := resolveDir("", errors.New("no executable")); got != "logs" {
		t.Errorf("fallback: got %s", got)
	}
}

func TestNew_WritesToEverySink(t *testing.T) {
	var a, b bytes.Buffer
	logger := New(&a, &b)
	logger.Info().Str("run", "r1").Msg("Analysis run created")

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		line := buf.String()
		if !strings.Contains(line, `"run":"r1"`) || !strings.Contains(line, `"time":`) {
			t.Errorf("%s sink got %q", name, line)
		}
	}
}

func TestEnsureWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	if err := ensureWritable(dir); err != nil {
		t.Fatalf("ensureWritable() = %v, want nil", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}
