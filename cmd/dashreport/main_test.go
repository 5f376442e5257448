package main

import (
	"os"
	"path/filepath"
	"testing"

	"enrolldash/inputs"
	"enrolldash/loader"
)

func TestBuildOverridesSkipsBlankPaths(t *testing.T) {
	got := buildOverrides(map[inputs.Name]string{
		inputs.History:  "uploads/history.csv",
		inputs.Forecast: "  ",
		inputs.Interest: "",
	})
	if len(got) != 1 {
		t.Fatalf("expected one override, got %d", len(got))
	}
	if src, ok := got[inputs.History].(loader.FileSource); !ok || string(src) != "uploads/history.csv" {
		t.Fatalf("unexpected history override %#v", got[inputs.History])
	}
}

func TestLoadConfigMissingPathUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Data.Dir != "data" {
		t.Fatalf("expected default data dir, got %q", cfg.Data.Dir)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte("data:\n  dir: elsewhere\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Data.Dir != "elsewhere" {
		t.Fatalf("expected data dir from file, got %q", cfg.Data.Dir)
	}
}
