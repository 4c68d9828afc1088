package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogxManager_SplitsByLevel(t *testing.T) {
	dir := t.TempDir()
	m := NewManager("relay-1", LogOptions{Path: dir, Level: "debug"})
	lg := m.Logger()

	lg.Info("message queued")
	lg.Error("all neighbors exhausted")
	lg.Debug("dequeue idle")
	m.Sync()

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, "relay-1", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}

	info := read("info.log")
	if !strings.Contains(info, "message queued") || strings.Contains(info, "exhausted") {
		t.Errorf("info.log has unexpected content: %q", info)
	}
	if !strings.Contains(read("error.log"), "all neighbors exhausted") {
		t.Error("error.log missing error line")
	}
	if !strings.Contains(read("debug.log"), "dequeue idle") {
		t.Error("debug.log missing debug line")
	}
}

func TestLogxManager_LevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	m := NewManager("relay-2", LogOptions{Path: dir, Level: "info"})
	m.Logger().Debug("hidden")
	m.Sync()

	data, _ := os.ReadFile(filepath.Join(dir, "relay-2", "debug.log"))
	if strings.Contains(string(data), "hidden") {
		t.Error("debug line written despite info level")
	}
}
