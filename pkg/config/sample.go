package config

// Sample is the commented starter config written by `nextrust init`.
// Every value shown matches the built-in default.
const Sample = `# nextrust pipeline configuration.
# Delete any section to fall back to the built-in defaults.

hooks:
  idempotency_ttl_seconds: 300
  failure_ceiling: 3
  unclassified_after: 2
  max_escalation_bytes: 16384

services:
  design:
    model: o3
    max_output_tokens: 4096
    timeout_seconds: 120
    max_attempts: 3
    cooldown_minutes: 30
    max_requests_per_day: 25
    max_cost_per_day_usd: 5.0
    max_cost_per_month_usd: 50.0
  review:
    model: gemini-2.5-pro
    max_output_tokens: 8192
    timeout_seconds: 120
    max_attempts: 3
    cooldown_minutes: 30
    max_requests_per_day: 50
    max_cost_per_day_usd: 2.0
    max_cost_per_month_usd: 20.0

ledger:
  warning_usd: 25.0
  critical_usd: 60.0
  fail_build_on_critical: false

# Cost per 1000 tokens. Models missing from this table cost zero.
pricing:
  o3:
    input_per_1k: 0.002
    output_per_1k: 0.008
  gemini-2.5-pro:
    input_per_1k: 0.00125
    output_per_1k: 0.01
`
