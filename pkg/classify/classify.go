// Package classify implements the failure classifier: an ordered table of
// (pattern, category) rules matched against captured build output. The table
// is flat and order-sensitive so human-curated specific signatures shadow
// generic ones. Classification is pure: same input, same verdict.
package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is the classifier's verdict for a failure.
type Category string

// Failure categories.
const (
	// Known failures have a documented standard fix; no AI call needed.
	Known Category = "known"
	// DesignIssue failures need architecture input from the design service.
	DesignIssue Category = "design"
	// ImplementationIssue failures need code review from the review service.
	ImplementationIssue Category = "implementation"
	// Unclassified failures matched no rule; the dispatcher treats them
	// conservatively.
	Unclassified Category = "unclassified"
)

// Rule is one entry in the classification table. Pattern is a case-
// insensitive substring unless Regex is set. Phase and Variant, when
// non-empty, restrict the rule to matching invocations.
type Rule struct {
	ID          string   `json:"id"`
	Pattern     string   `json:"pattern"`
	Regex       bool     `json:"regex,omitempty"`
	Category    Category `json:"category"`
	Phase       string   `json:"phase,omitempty"`
	Variant     string   `json:"variant,omitempty"`
	AutoFix     string   `json:"auto_fix,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Result is the ephemeral product of one classification. Not persisted; the
// category influences what the dispatcher writes to the pipeline log.
type Result struct {
	RawText        string
	Category       Category
	MatchedPattern string
	Rule           *Rule // nil when Unclassified
}

// Classifier matches error text against an ordered rule table.
type Classifier struct {
	rules    []Rule
	compiled []*regexp.Regexp // nil entries for substring rules
}

// New builds a Classifier from an ordered rule table. Regex rules are
// compiled up front so Classify never fails.
func New(rules []Rule) (*Classifier, error) {
	c := &Classifier{
		rules:    rules,
		compiled: make([]*regexp.Regexp, len(rules)),
	}
	for i, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d (%s): empty pattern", i, r.ID)
		}
		if !r.Regex {
			continue
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): compile pattern: %w", i, r.ID, err)
		}
		c.compiled[i] = re
	}
	return c, nil
}

// Classify returns the category of the first matching rule, or Unclassified.
// Phase/variant-scoped rules are ignored here; use Match for scoped lookups.
func (c *Classifier) Classify(text string) Result {
	return c.Match(text, "", "")
}

// Match classifies error text in the context of a pipeline phase and CPU
// variant. Rules scoped to a different phase or variant are skipped; rules
// with no scope always apply. First match wins.
func (c *Classifier) Match(text, phase, variant string) Result {
	lower := strings.ToLower(text)
	for i := range c.rules {
		r := &c.rules[i]
		if r.Phase != "" && phase != "" && r.Phase != phase {
			continue
		}
		if r.Variant != "" && variant != "" && r.Variant != variant {
			continue
		}
		if c.matches(i, text, lower) {
			return Result{
				RawText:        text,
				Category:       r.Category,
				MatchedPattern: r.Pattern,
				Rule:           r,
			}
		}
	}
	return Result{RawText: text, Category: Unclassified}
}

func (c *Classifier) matches(i int, text, lower string) bool {
	if re := c.compiled[i]; re != nil {
		return re.MatchString(text)
	}
	return strings.Contains(lower, strings.ToLower(c.rules[i].Pattern))
}

// Rules returns the table in match order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}
