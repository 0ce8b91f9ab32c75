package main

import (
	"path/filepath"
	"testing"
)

func TestResolvePaths_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NEXTRUST_HOME", home)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}

	if paths.Home != home {
		t.Errorf("Home = %q, want %q", paths.Home, home)
	}
	if want := filepath.Join(home, "config.yaml"); paths.ConfigPath != want {
		t.Errorf("ConfigPath = %q, want %q", paths.ConfigPath, want)
	}
	if want := filepath.Join(home, "state.db"); paths.StateDBPath != want {
		t.Errorf("StateDBPath = %q, want %q", paths.StateDBPath, want)
	}
	if want := filepath.Join(home, "ci-status"); paths.StatusDir != want {
		t.Errorf("StatusDir = %q, want %q", paths.StatusDir, want)
	}
	if want := filepath.Join(home, "ci-status", "pipeline-log.json"); paths.PipelineLogPath != want {
		t.Errorf("PipelineLogPath = %q, want %q", paths.PipelineLogPath, want)
	}
	if want := filepath.Join(home, "ci-status", "usage"); paths.UsageDir != want {
		t.Errorf("UsageDir = %q, want %q", paths.UsageDir, want)
	}
}

func TestResolvePaths_EnvOverrides(t *testing.T) {
	home := t.TempDir()
	other := t.TempDir()
	t.Setenv("NEXTRUST_HOME", home)
	t.Setenv("NEXTRUST_DB_PATH", filepath.Join(other, "hooks.db"))
	t.Setenv("NEXTRUST_STATUS_DIR", filepath.Join(other, "status"))
	t.Setenv("NEXTRUST_CONFIG", filepath.Join(other, "cfg.yaml"))

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}

	if want := filepath.Join(other, "hooks.db"); paths.StateDBPath != want {
		t.Errorf("StateDBPath = %q, want %q", paths.StateDBPath, want)
	}
	if want := filepath.Join(other, "cfg.yaml"); paths.ConfigPath != want {
		t.Errorf("ConfigPath = %q, want %q", paths.ConfigPath, want)
	}
	// Derived paths follow the overridden status dir.
	if want := filepath.Join(other, "status", "pipeline-log.json"); paths.PipelineLogPath != want {
		t.Errorf("PipelineLogPath = %q, want %q", paths.PipelineLogPath, want)
	}
	if want := filepath.Join(other, "status", "known-issues.json"); paths.KnownIssuesPath != want {
		t.Errorf("KnownIssuesPath = %q, want %q", paths.KnownIssuesPath, want)
	}
}
