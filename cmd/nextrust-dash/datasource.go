package main

import (
	"os"
	"path/filepath"
	"time"

	"nextrust/pkg/config"
	"nextrust/pkg/ledger"
	"nextrust/pkg/protocol"
	"nextrust/pkg/statuslog"
)

// spendWindow is the trailing window used for the dashboard spend panel.
const spendWindow = 30 * 24 * time.Hour

// statusDir resolves the pipeline status directory the same way the CLI
// does: env overrides first, then ./.nextrust/ci-status.
func statusDir() string {
	if v := os.Getenv("NEXTRUST_STATUS_DIR"); v != "" {
		return v
	}
	base := os.Getenv("NEXTRUST_HOME")
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return protocol.StatusDirName
		}
		base = filepath.Join(cwd, protocol.NextrustDir)
	}
	return filepath.Join(base, protocol.StatusDirName)
}

// loadPipeline reads the current pipeline log document. Errors degrade to an
// empty document: the dashboard renders whatever exists.
func loadPipeline() *protocol.PipelineDocument {
	doc, err := statuslog.New(filepath.Join(statusDir(), protocol.PipelineLogName)).Snapshot()
	if err != nil || doc == nil {
		return &protocol.PipelineDocument{}
	}
	return doc
}

// loadUsage aggregates the ledger by service over the spend window and
// checks the spend thresholds from the config.
func loadUsage() (map[string]ledger.GroupStats, ledger.Severity, float64) {
	dir := statusDir()
	cfgPath := os.Getenv("NEXTRUST_CONFIG")
	if cfgPath == "" {
		cfgPath = filepath.Join(filepath.Dir(dir), "config.yaml")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}

	led := ledger.New(filepath.Join(dir, protocol.UsageDirName), cfg.Pricing)
	stats, err := led.Aggregate(time.Now().UTC().Add(-spendWindow), ledger.GroupService)
	if err != nil {
		stats = map[string]ledger.GroupStats{}
	}
	sev, total, err := led.CheckThreshold(spendWindow, cfg.Ledger.WarningUSD, cfg.Ledger.CriticalUSD)
	if err != nil {
		sev = ledger.SeverityOK
	}
	return stats, sev, total
}

// fetchAll gathers everything the dashboard (and robot mode) renders.
func fetchAll() (*protocol.PipelineDocument, map[string]ledger.GroupStats, ledger.Severity, float64) {
	doc := loadPipeline()
	stats, sev, total := loadUsage()
	return doc, stats, sev, total
}
