package nativelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTodayFilename(t *testing.T) {
	got := TodayFilename(time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC))
	if got != "stdout_3-7-25.log" {
		t.Errorf("TodayFilename = %q, want stdout_3-7-25.log", got)
	}
}

func TestResolveDir(t *testing.T) {
	t.Setenv(EnvLogDir, "")
	if got := ResolveDir("/var/log/relay"); got != "/var/log/relay" {
		t.Errorf("ResolveDir(fallback) = %q", got)
	}
	if got := ResolveDir(""); got != filepath.Join(".", "logs") {
		t.Errorf("ResolveDir(empty) = %q", got)
	}
	t.Setenv(EnvLogDir, "/tmp/override")
	if got := ResolveDir("/var/log/relay"); got != "/tmp/override" {
		t.Errorf("ResolveDir(env) = %q", got)
	}
}

func TestWriter_RollsByDay(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	day := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return day }
	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	day = day.Add(2 * time.Hour)
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for name, want := range map[string]string{
		"stdout_1-1-25.log": "first",
		"stdout_1-2-25.log": "second",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if strings.TrimSpace(string(data)) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
}
