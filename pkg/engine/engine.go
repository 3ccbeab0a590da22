// Package engine defines the contract between lintd and pluggable text-lint
// engines, plus the registry and lazy resolver used to locate them.
package engine

import "context"

// Severity is the raw severity level reported by an engine.
type Severity int

// Severity levels, matching the wire values engines report.
const (
	SeverityInfo    Severity = 0
	SeverityWarning Severity = 1
	SeverityError   Severity = 2
)

// FixEdit is a concrete text edit that resolves a finding: replace the
// half-open byte range [Range[0], Range[1]) with Text.
type FixEdit struct {
	Range [2]int `json:"range"`
	Text  string `json:"text"`
}

// Finding is one raw result from a lint engine for a piece of text.
// Line and Column are 1-based; Fix is nil when the finding is not fixable.
type Finding struct {
	RuleID   string   `json:"ruleId,omitempty"`
	Message  string   `json:"message"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Severity Severity `json:"severity"`
	Fix      *FixEdit `json:"fix,omitempty"`
}

// Fixable reports whether the finding carries a concrete fix.
func (f *Finding) Fixable() bool {
	return f.Fix != nil
}

// Engine is a lint engine bound to one configuration file.
//
// Engines must:
//   - Report findings for the text as given, not for any on-disk copy.
//   - Respect context cancellation.
//   - Return error only for internal failures, not for findings.
type Engine interface {
	// AvailableExtensions returns the file extensions (with leading dot)
	// this engine can lint.
	AvailableExtensions() []string

	// ExecuteOnText lints text as if it were a file with the given
	// extension and returns all findings.
	ExecuteOnText(ctx context.Context, text string, ext string) ([]Finding, error)
}

// Supports reports whether ext is among the engine's available extensions.
func Supports(e Engine, ext string) bool {
	for _, a := range e.AvailableExtensions() {
		if a == ext {
			return true
		}
	}
	return false
}
