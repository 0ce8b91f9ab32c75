package ledger

import "time"

// Severity is the result of a cost threshold check.
type Severity string

// Threshold severities.
const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CheckThreshold sums the cost over the trailing period and compares it
// against the warning and critical thresholds. A total exactly equal to a
// threshold counts as the higher severity. Breaches are reported via the
// returned severity, never an error: "over budget" must not masquerade as
// "tool crashed".
func (l *Ledger) CheckThreshold(period time.Duration, warning, critical float64) (Severity, float64, error) {
	since := l.nowFunc().UTC().Add(-period)
	totals, err := l.SumCost(since, GroupNone)
	if err != nil {
		return SeverityOK, 0, err
	}
	total := totals[TotalKey]

	switch {
	case critical > 0 && total >= critical:
		return SeverityCritical, total, nil
	case warning > 0 && total >= warning:
		return SeverityWarning, total, nil
	default:
		return SeverityOK, total, nil
	}
}
