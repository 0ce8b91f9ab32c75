package main

import (
	"context"
	"database/sql"
	"fmt"

	"nextrust/pkg/classify"
	"nextrust/pkg/config"
	"nextrust/pkg/guard"
	"nextrust/pkg/ledger"
	"nextrust/pkg/protocol"
	"nextrust/pkg/statuslog"
)

// app bundles the resolved paths and loaded configuration every subcommand
// needs. Construct with loadApp.
type app struct {
	paths *Paths
	cfg   *config.Config
}

func loadApp() (*app, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, err
	}
	return &app{paths: paths, cfg: cfg}, nil
}

// openStore opens the hook state database and applies the schema. The schema
// is idempotent, so every invocation applies it; hooks must work on a fresh
// checkout with no prior `nextrust init`.
func (a *app) openStore(ctx context.Context) (*sql.DB, *guard.Store, error) {
	db, err := openDB(a.paths.StateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state db: %w", err)
	}
	store := guard.NewStore(db)
	if err := store.Init(ctx, protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, store, nil
}

// usageLedger returns the ledger over the status usage directory.
func (a *app) usageLedger() *ledger.Ledger {
	return ledger.New(a.paths.UsageDir, a.cfg.Pricing)
}

// pipelineLog returns the flock-guarded pipeline status log.
func (a *app) pipelineLog() *statuslog.Store {
	return statuslog.New(a.paths.PipelineLogPath)
}

// classifier loads curated rules from known-issues.json layered over the
// builtin table. A missing file falls back to the builtins.
func (a *app) classifier() (*classify.Classifier, error) {
	return classify.Load(a.paths.KnownIssuesPath)
}
