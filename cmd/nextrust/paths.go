package main

import (
	"os"
	"path/filepath"

	"nextrust/pkg/protocol"
)

// Paths holds all resolved nextrust state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home            string // .nextrust in the repo root, or NEXTRUST_HOME
	ConfigPath      string // config.yaml or NEXTRUST_CONFIG
	StateDBPath     string // state.db or NEXTRUST_DB_PATH
	StatusDir       string // ci-status or NEXTRUST_STATUS_DIR
	PipelineLogPath string // $StatusDir/pipeline-log.json
	UsageDir        string // $StatusDir/usage
	ArchiveDir      string // $StatusDir/archive
	KnownIssuesPath string // $StatusDir/known-issues.json
}

// ResolvePaths returns all nextrust paths, respecting env var overrides.
// Environment variables:
//   - NEXTRUST_HOME: base directory for all state (default: ./.nextrust)
//   - NEXTRUST_CONFIG: config file (default: $NEXTRUST_HOME/config.yaml)
//   - NEXTRUST_DB_PATH: hook state database (default: $NEXTRUST_HOME/state.db)
//   - NEXTRUST_STATUS_DIR: pipeline status artifacts (default: $NEXTRUST_HOME/ci-status)
//
// The default base is the working directory, not the user home: hook state is
// per-repository and CI runners check out each pipeline into its own tree.
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}

	statusDir := resolvePathWithEnv("NEXTRUST_STATUS_DIR", home, protocol.StatusDirName)

	return &Paths{
		Home:            home,
		ConfigPath:      resolvePathWithEnv("NEXTRUST_CONFIG", home, "config.yaml"),
		StateDBPath:     resolvePathWithEnv("NEXTRUST_DB_PATH", home, "state.db"),
		StatusDir:       statusDir,
		PipelineLogPath: filepath.Join(statusDir, protocol.PipelineLogName),
		UsageDir:        filepath.Join(statusDir, protocol.UsageDirName),
		ArchiveDir:      filepath.Join(statusDir, protocol.ArchiveDirName),
		KnownIssuesPath: filepath.Join(statusDir, protocol.KnownIssuesName),
	}, nil
}

// resolveHome returns the state base directory from NEXTRUST_HOME or the
// working directory.
func resolveHome() (string, error) {
	if v := os.Getenv("NEXTRUST_HOME"); v != "" {
		return v, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, protocol.NextrustDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
