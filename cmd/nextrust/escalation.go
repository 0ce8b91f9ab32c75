package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"nextrust/pkg/config"
	"nextrust/pkg/escalate"
	"nextrust/pkg/guard"
)

// budgetError reports a spending limit that would be exceeded by one more
// escalation call. It is a policy rejection, not a system failure.
type budgetError struct {
	Service string
	Limit   string
}

func (e *budgetError) Error() string {
	return fmt.Sprintf("%s service over budget: %s", e.Service, e.Limit)
}

// checkBudget verifies the per-service request and cost limits against the
// usage ledger before a backend call is allowed. Zero-valued limits are
// unlimited. Ledger read errors fail open: a corrupt ledger must not wedge
// the pipeline, overspend is bounded by the provider-side quota anyway.
func checkBudget(a *app, svc escalate.Service) error {
	cfg, ok := a.cfg.Services[string(svc)]
	if !ok {
		return fmt.Errorf("no configuration for service %q", svc)
	}

	led := a.usageLedger()
	now := time.Now().UTC()

	dayReqs, dayCost, err := led.ServiceTotals(string(svc), now.Add(-24*time.Hour))
	if err != nil {
		return nil
	}
	if lim := cfg.RequestsPerDay(); lim > 0 && dayReqs >= lim {
		return &budgetError{Service: string(svc), Limit: fmt.Sprintf("%d requests in 24h (limit %d)", dayReqs, lim)}
	}
	if lim := cfg.CostPerDayUSD(); lim > 0 && dayCost >= lim {
		return &budgetError{Service: string(svc), Limit: fmt.Sprintf("$%.2f in 24h (limit $%.2f)", dayCost, lim)}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	_, monthCost, err := led.ServiceTotals(string(svc), monthStart)
	if err != nil {
		return nil
	}
	if lim := cfg.CostPerMonthUSD(); lim > 0 && monthCost >= lim {
		return &budgetError{Service: string(svc), Limit: fmt.Sprintf("$%.2f this month (limit $%.2f)", monthCost, lim)}
	}

	return nil
}

// newBackend constructs the backend for one service from its config section
// and the conventional credential env vars.
func newBackend(ctx context.Context, svc escalate.Service, cfg config.Service) (escalate.Backend, error) {
	switch svc {
	case escalate.DesignService:
		return escalate.NewDesignBackend(escalate.DesignOpts{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   cfg.Model,
			MaxOut:  cfg.MaxOutputTokens,
		})
	case escalate.ReviewService:
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			key = os.Getenv("GOOGLE_API_KEY")
		}
		return escalate.NewReviewBackend(ctx, escalate.ReviewOpts{
			APIKey: key,
			Model:  cfg.Model,
			MaxOut: int32(cfg.MaxOutputTokens),
		})
	default:
		return nil, fmt.Errorf("unknown service %q", svc)
	}
}

// runEscalation performs one budget-checked escalation call, with the usage
// ledger as reporter and the hook state store for quota cooldowns.
func runEscalation(ctx context.Context, a *app, store *guard.Store, req escalate.Request, sessionID string, auditPrompts bool) (escalate.Response, error) {
	if err := checkBudget(a, req.Service); err != nil {
		return escalate.Response{}, err
	}

	svcCfg, ok := a.cfg.Services[string(req.Service)]
	if !ok {
		return escalate.Response{}, fmt.Errorf("no configuration for service %q", req.Service)
	}

	backend, err := newBackend(ctx, req.Service, svcCfg)
	if err != nil {
		return escalate.Response{}, err
	}

	client := escalate.NewClient(escalate.Config{
		MaxAttempts:  svcCfg.MaxAttempts,
		CallTimeout:  svcCfg.Timeout(),
		Cooldown:     svcCfg.Cooldown(),
		SessionID:    sessionID,
		AuditPrompts: auditPrompts,
	}, []escalate.Backend{backend}, a.usageLedger(), store)

	return client.Escalate(ctx, req)
}
