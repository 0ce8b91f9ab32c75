// Package config loads the .nextrust/config.yaml settings file. Every field
// has a working default so a repository with no config file at all still gets
// a fully functional pipeline.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nextrust/pkg/escalate"
	"nextrust/pkg/ledger"
)

// Config represents the .nextrust/config.yaml structure.
type Config struct {
	Hooks    Hooks              `yaml:"hooks"`
	Services map[string]Service `yaml:"services"`
	Ledger   Ledger             `yaml:"ledger"`
	Pricing  ledger.Pricing     `yaml:"pricing"`
}

// Hooks tunes the pre/post tool-invocation dispatcher.
type Hooks struct {
	IdempotencyTTLSeconds int `yaml:"idempotency_ttl_seconds"`
	FailureCeiling        int `yaml:"failure_ceiling"`
	UnclassifiedAfter     int `yaml:"unclassified_after"`
	MaxEscalationBytes    int `yaml:"max_escalation_bytes"`
}

// Service configures one escalation backend and its spending limits.
// The limits are pointers so a merge can tell an omitted limit (keep the
// default) apart from an explicit zero (unlimited).
type Service struct {
	Model           string   `yaml:"model"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	MaxAttempts     int      `yaml:"max_attempts"`
	CooldownMinutes int      `yaml:"cooldown_minutes"`
	MaxRequestsDay  *int     `yaml:"max_requests_per_day"`
	MaxCostDayUSD   *float64 `yaml:"max_cost_per_day_usd"`
	MaxCostMonthUSD *float64 `yaml:"max_cost_per_month_usd"`
}

// Ledger configures spend-threshold alerting over the usage ledger.
type Ledger struct {
	WarningUSD          float64 `yaml:"warning_usd"`
	CriticalUSD         float64 `yaml:"critical_usd"`
	FailBuildOnCritical bool    `yaml:"fail_build_on_critical"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Hooks: Hooks{
			IdempotencyTTLSeconds: 300,
			FailureCeiling:        3,
			UnclassifiedAfter:     2,
			MaxEscalationBytes:    16 * 1024,
		},
		Services: map[string]Service{
			string(escalate.DesignService): {
				Model:           "o3",
				MaxOutputTokens: 4096,
				TimeoutSeconds:  120,
				MaxAttempts:     3,
				CooldownMinutes: 30,
				MaxRequestsDay:  ptr(25),
				MaxCostDayUSD:   ptr(5.0),
				MaxCostMonthUSD: ptr(50.0),
			},
			string(escalate.ReviewService): {
				Model:           "gemini-2.5-pro",
				MaxOutputTokens: 8192,
				TimeoutSeconds:  120,
				MaxAttempts:     3,
				CooldownMinutes: 30,
				MaxRequestsDay:  ptr(50),
				MaxCostDayUSD:   ptr(2.0),
				MaxCostMonthUSD: ptr(20.0),
			},
		},
		Ledger: Ledger{
			WarningUSD:  25.0,
			CriticalUSD: 60.0,
		},
		Pricing: ledger.Pricing{
			"o3":             {InputPer1K: 0.002, OutputPer1K: 0.008},
			"gemini-2.5-pro": {InputPer1K: 0.00125, OutputPer1K: 0.01},
		},
	}
}

// Load reads path and merges it over the defaults. A missing file is not an
// error, the defaults are returned as-is. A file that exists but does not
// parse is an error so silent typos cannot disable spending limits.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.merge(&file)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// merge applies non-zero fields of file on top of the receiver. The spending
// limits merge nil-aware instead, so an explicit zero can disable one.
func (c *Config) merge(file *Config) {
	mergeInt(&c.Hooks.IdempotencyTTLSeconds, file.Hooks.IdempotencyTTLSeconds)
	mergeInt(&c.Hooks.FailureCeiling, file.Hooks.FailureCeiling)
	mergeInt(&c.Hooks.UnclassifiedAfter, file.Hooks.UnclassifiedAfter)
	mergeInt(&c.Hooks.MaxEscalationBytes, file.Hooks.MaxEscalationBytes)

	for name, svc := range file.Services {
		base := c.Services[name]
		mergeString(&base.Model, svc.Model)
		mergeInt(&base.MaxOutputTokens, svc.MaxOutputTokens)
		mergeInt(&base.TimeoutSeconds, svc.TimeoutSeconds)
		mergeInt(&base.MaxAttempts, svc.MaxAttempts)
		mergeInt(&base.CooldownMinutes, svc.CooldownMinutes)
		if svc.MaxRequestsDay != nil {
			base.MaxRequestsDay = svc.MaxRequestsDay
		}
		if svc.MaxCostDayUSD != nil {
			base.MaxCostDayUSD = svc.MaxCostDayUSD
		}
		if svc.MaxCostMonthUSD != nil {
			base.MaxCostMonthUSD = svc.MaxCostMonthUSD
		}
		c.Services[name] = base
	}

	if file.Ledger.WarningUSD != 0 || file.Ledger.CriticalUSD != 0 {
		c.Ledger.WarningUSD = file.Ledger.WarningUSD
		c.Ledger.CriticalUSD = file.Ledger.CriticalUSD
	}
	c.Ledger.FailBuildOnCritical = c.Ledger.FailBuildOnCritical || file.Ledger.FailBuildOnCritical

	for model, price := range file.Pricing {
		c.Pricing[model] = price
	}
}

func (c *Config) validate() error {
	if c.Hooks.FailureCeiling < 1 {
		return fmt.Errorf("hooks.failure_ceiling must be at least 1, got %d", c.Hooks.FailureCeiling)
	}
	if c.Hooks.IdempotencyTTLSeconds < 0 {
		return fmt.Errorf("hooks.idempotency_ttl_seconds must not be negative")
	}
	for name, svc := range c.Services {
		if !escalate.Service(name).Valid() {
			return fmt.Errorf("unknown service %q", name)
		}
		if svc.MaxAttempts < 1 {
			return fmt.Errorf("services.%s.max_attempts must be at least 1", name)
		}
		if svc.CostPerDayUSD() < 0 || svc.CostPerMonthUSD() < 0 {
			return fmt.Errorf("services.%s cost limits must not be negative", name)
		}
	}
	if c.Ledger.WarningUSD > c.Ledger.CriticalUSD && c.Ledger.CriticalUSD != 0 {
		return fmt.Errorf("ledger.warning_usd exceeds ledger.critical_usd")
	}
	return nil
}

// IdempotencyTTL returns the hook TTL as a duration.
func (h Hooks) IdempotencyTTL() time.Duration {
	return time.Duration(h.IdempotencyTTLSeconds) * time.Second
}

// Timeout returns the per-call timeout as a duration.
func (s Service) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Cooldown returns the quota cooldown as a duration.
func (s Service) Cooldown() time.Duration {
	return time.Duration(s.CooldownMinutes) * time.Minute
}

// RequestsPerDay returns the daily request limit. Zero means unlimited.
func (s Service) RequestsPerDay() int {
	if s.MaxRequestsDay == nil {
		return 0
	}
	return *s.MaxRequestsDay
}

// CostPerDayUSD returns the daily cost limit. Zero means unlimited.
func (s Service) CostPerDayUSD() float64 {
	if s.MaxCostDayUSD == nil {
		return 0
	}
	return *s.MaxCostDayUSD
}

// CostPerMonthUSD returns the monthly cost limit. Zero means unlimited.
func (s Service) CostPerMonthUSD() float64 {
	if s.MaxCostMonthUSD == nil {
		return 0
	}
	return *s.MaxCostMonthUSD
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func ptr[T any](v T) *T {
	return &v
}
