package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// defaultRules is the built-in classification table. Ordered most-specific
// first: compiler-internal crashes before generic segfaults, service errors
// before generic network errors.
var defaultRules = []Rule{
	// Infrastructure failures around the escalation services themselves.
	{ID: "api-auth", Pattern: `(invalid api key|authentication failed|401 unauthorized|permission denied \(publickey\))`, Regex: true, Category: Known,
		AutoFix: "check credentials in environment", Description: "Service or git authentication failure"},
	{ID: "api-quota", Pattern: `(rate limit|quota exceeded|429 too many requests|resource_exhausted)`, Regex: true, Category: Known,
		AutoFix: "wait for quota window to reset", Description: "Service rate limit or quota"},
	{ID: "net-timeout", Pattern: `(connection (refused|reset|timed out)|network is unreachable|tls handshake timeout)`, Regex: true, Category: Known,
		AutoFix: "retry after connectivity is restored", Description: "Transient network failure"},
	{ID: "disk-full", Pattern: "no space left on device", Category: Known,
		AutoFix: "prune build artifacts and caches", Description: "Disk exhausted on CI runner"},

	// LLVM backend design-level signatures: instruction selection and
	// legalization failures mean the target description is wrong, not the
	// code using it.
	{ID: "llvm-cannot-select", Pattern: "cannot select", Category: DesignIssue,
		Description: "SelectionDAG has no pattern for this node; target description gap"},
	{ID: "llvm-legalize", Pattern: "unable to legalize instruction", Category: DesignIssue,
		Description: "Legalizer dead end; operation action table gap"},
	{ID: "llvm-fatal", Pattern: "LLVM ERROR", Category: DesignIssue,
		Description: "Backend reported a fatal error"},
	{ID: "sched-model", Pattern: `no schedul(ing|e) information available`, Regex: true, Category: DesignIssue,
		Description: "Scheduling model incomplete for emitted instruction"},
	{ID: "reloc-unsupported", Pattern: "unsupported relocation", Category: DesignIssue,
		Description: "Mach-O writer missing a relocation kind"},

	// Implementation-level signatures.
	{ID: "segfault", Pattern: `(SIGSEGV|segmentation fault|signal 11)`, Regex: true, Category: ImplementationIssue,
		Description: "Tool crashed; needs a stack trace review"},
	{ID: "assert", Pattern: `assertion .*failed`, Regex: true, Category: ImplementationIssue,
		Description: "Assertion failure inside the toolchain"},
	{ID: "undefined-ref", Pattern: `undefined (reference|symbol)`, Regex: true, Category: ImplementationIssue,
		Description: "Link failure; missing or misnamed symbol"},
	{ID: "duplicate-symbol", Pattern: "duplicate symbol", Category: ImplementationIssue,
		Description: "Link failure; symbol defined twice"},
	{ID: "rustc-error", Pattern: `error\[E[0-9]{4}\]`, Regex: true, Category: ImplementationIssue,
		Description: "Rust compile error in target or test code"},
}

// Default returns a Classifier over the built-in rule table.
func Default() *Classifier {
	c, err := New(defaultRules)
	if err != nil {
		// The built-in table is validated by tests; a compile failure here
		// is a programming error.
		panic(fmt.Sprintf("classify: built-in rules invalid: %v", err))
	}
	return c
}

// knownIssuesFile is the on-disk shape of ci-status/known-issues.json,
// curated by operators and read directly by external scripts.
type knownIssuesFile struct {
	Issues []Rule `json:"issues"`
}

// LoadRules reads a curated rule table from a known-issues JSON file.
// Entries with no category default to Known (curated issues are
// auto-remediable by definition). A missing file yields an empty table.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read known issues %s: %w", path, err)
	}
	var file knownIssuesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse known issues %s: %w", path, err)
	}
	for i := range file.Issues {
		if file.Issues[i].Category == "" {
			file.Issues[i].Category = Known
		}
	}
	return file.Issues, nil
}

// Load builds a Classifier from a known-issues file layered in front of the
// built-in table: curated entries are checked first so operators can shadow
// built-in rules.
func Load(path string) (*Classifier, error) {
	curated, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(append(curated, defaultRules...))
}
