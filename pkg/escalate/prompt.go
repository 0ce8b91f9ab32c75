package escalate

import (
	"fmt"
	"strings"
)

// BuildPrompt assembles the user prompt for an escalation request. Both
// backends receive the same body; the service profiles differ in their
// system instruction.
func BuildPrompt(req Request) string {
	var b strings.Builder

	writePromptHeader(&b, req)
	writePromptError(&b, req)
	writePromptAsk(&b, req)

	return b.String()
}

func writePromptHeader(b *strings.Builder, req Request) {
	fmt.Fprintf(b, "CI pipeline escalation (phase %s)\n\n", orUnknown(req.PhaseID))
	b.WriteString("## Context\n")
	b.WriteString(req.Context)
	b.WriteString("\n\n")
	if req.PriorAttempts > 0 {
		fmt.Fprintf(b, "This step has already failed %d time(s); automatic retries were not sufficient.\n\n", req.PriorAttempts)
	}
}

func writePromptError(b *strings.Builder, req Request) {
	if req.ErrorText == "" {
		return
	}
	b.WriteString("## Captured failure output\n```\n")
	b.WriteString(strings.TrimSpace(req.ErrorText))
	b.WriteString("\n```\n\n")
}

func writePromptAsk(b *strings.Builder, req Request) {
	switch req.Service {
	case DesignService:
		b.WriteString("## Your task\n")
		b.WriteString("Analyze this as an architecture/design problem. Identify the root cause ")
		b.WriteString("at the level of target description, legalization strategy, or toolchain ")
		b.WriteString("configuration, and propose a concrete design change. Be specific about ")
		b.WriteString("which component to change and why; do not suggest blind retries.\n")
	case ReviewService:
		b.WriteString("## Your task\n")
		b.WriteString("Review this failure as a code-level problem. Point at the most likely ")
		b.WriteString("defective code path, explain the failure mechanism, and propose a minimal ")
		b.WriteString("fix. If the output is insufficient to localize the bug, say exactly what ")
		b.WriteString("additional output would be needed.\n")
	}
}

// SystemInstruction returns the per-service system prompt.
func SystemInstruction(service Service) string {
	switch service {
	case DesignService:
		return "You are the design escalation service for a CI pipeline building an " +
			"LLVM M68k backend and a Rust cross-toolchain targeting NeXTSTEP. You are " +
			"consulted rarely and your answers drive architecture decisions; reason " +
			"carefully and answer with concrete, actionable design guidance."
	case ReviewService:
		return "You are the code review service for a CI pipeline building an LLVM " +
			"M68k backend and a Rust cross-toolchain targeting NeXTSTEP. Review build " +
			"and test failures pragmatically and point at specific code."
	default:
		return ""
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
