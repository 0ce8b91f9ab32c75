package classify_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"nextrust/pkg/classify"
)

func TestClassify_FirstMatchWins(t *testing.T) {
	c, err := classify.New([]classify.Rule{
		{ID: "specific", Pattern: "SIGSEGV in ScheduleDAGRRList", Category: classify.DesignIssue},
		{ID: "generic", Pattern: "SIGSEGV", Category: classify.ImplementationIssue},
	})
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}

	res := c.Classify("llc crashed: SIGSEGV in ScheduleDAGRRList::Schedule")
	if res.Category != classify.DesignIssue {
		t.Fatalf("category = %v, want the earlier rule's DesignIssue", res.Category)
	}
	if res.MatchedPattern != "SIGSEGV in ScheduleDAGRRList" {
		t.Fatalf("matched pattern = %q", res.MatchedPattern)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := classify.Default()
	input := "ld: undefined reference to `_objc_msgSend'"
	first := c.Classify(input)
	second := c.Classify(input)
	if first.Category != second.Category || first.MatchedPattern != second.MatchedPattern {
		t.Fatalf("classification not deterministic: %+v vs %+v", first, second)
	}
}

func TestClassify_Unclassified(t *testing.T) {
	c := classify.Default()
	res := c.Classify("something nobody has ever seen before")
	if res.Category != classify.Unclassified {
		t.Fatalf("category = %v, want Unclassified", res.Category)
	}
	if res.MatchedPattern != "" || res.Rule != nil {
		t.Fatalf("unclassified result should carry no rule: %+v", res)
	}
}

func TestClassify_DefaultTable(t *testing.T) {
	c := classify.Default()
	cases := []struct {
		name string
		text string
		want classify.Category
	}{
		{"isel gap", "fatal error: Cannot select: t42: f64 = fadd", classify.DesignIssue},
		{"legalizer", "unable to legalize instruction: G_FPTOSI", classify.DesignIssue},
		{"llvm fatal", "LLVM ERROR: expected relocatable expression", classify.DesignIssue},
		{"segfault", "clang: error: unable to execute command: Segmentation fault", classify.ImplementationIssue},
		{"undefined ref", "undefined reference to `__m68k_divsi3'", classify.ImplementationIssue},
		{"rustc", "error[E0308]: mismatched types", classify.ImplementationIssue},
		{"rate limit", "HTTP 429 Too Many Requests", classify.Known},
		{"auth", "OpenAI error: Invalid API key provided", classify.Known},
		{"network", "curl: (7) connection refused", classify.Known},
		{"disk", "write /tmp/out.o: no space left on device", classify.Known},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := c.Classify(tc.text)
			if res.Category != tc.want {
				t.Fatalf("Classify(%q) = %v (pattern %q), want %v", tc.text, res.Category, res.MatchedPattern, tc.want)
			}
		})
	}
}

func TestMatch_PhaseAndVariantScoping(t *testing.T) {
	c, err := classify.New([]classify.Rule{
		{ID: "scoped", Pattern: "timeout", Category: classify.Known, Phase: "phase-5", Variant: "m68040"},
		{ID: "open", Pattern: "timeout", Category: classify.ImplementationIssue},
	})
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}

	// Matching scope: the scoped rule wins by order.
	res := c.Match("emulator timeout after 300s", "phase-5", "m68040")
	if res.Rule == nil || res.Rule.ID != "scoped" {
		t.Fatalf("scoped lookup matched %+v, want rule scoped", res.Rule)
	}

	// Different phase: scoped rule is skipped, open rule matches.
	res = c.Match("emulator timeout after 300s", "phase-2", "m68040")
	if res.Rule == nil || res.Rule.ID != "open" {
		t.Fatalf("out-of-scope lookup matched %+v, want rule open", res.Rule)
	}

	// No scope given at all: scoped rules still apply.
	res = c.Match("emulator timeout after 300s", "", "")
	if res.Rule == nil || res.Rule.ID != "scoped" {
		t.Fatalf("unscoped lookup matched %+v, want rule scoped", res.Rule)
	}
}

func TestNew_RejectsBadRegex(t *testing.T) {
	_, err := classify.New([]classify.Rule{
		{ID: "bad", Pattern: "(unclosed", Regex: true, Category: classify.Known},
	})
	if err == nil {
		t.Fatal("expected error for invalid regex rule")
	}
}

func TestLoad_CuratedRulesShadowBuiltins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known-issues.json")
	file := map[string]any{
		"issues": []classify.Rule{
			{ID: "issue-042", Pattern: "SIGSEGV", AutoFix: "apply scheduler patch 0042"},
		},
	}
	data, err := json.Marshal(file)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := classify.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	res := c.Classify("SIGSEGV during instruction scheduling")
	if res.Rule == nil || res.Rule.ID != "issue-042" {
		t.Fatalf("curated rule should shadow the built-in segfault rule, got %+v", res.Rule)
	}
	if res.Category != classify.Known {
		t.Fatalf("curated rule with no category should default to Known, got %v", res.Category)
	}
}

func TestLoad_MissingFileUsesBuiltins(t *testing.T) {
	c, err := classify.Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load with missing file: %v", err)
	}
	if res := c.Classify("LLVM ERROR: out of registers"); res.Category != classify.DesignIssue {
		t.Fatalf("builtin table should still apply, got %v", res.Category)
	}
}
