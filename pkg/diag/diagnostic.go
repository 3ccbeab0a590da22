// Package diag defines positioned diagnostics and the mapping from raw
// engine findings to them.
package diag

// Severity follows the LSP numbering so diagnostics publish as-is.
type Severity int

// Diagnostic severities.
const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
)

// Position is a zero-based line/character location.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is a positioned lint result, derived from a Finding and never
// hand-authored.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
	Message  string   `json:"message"`
}

// Same reports identity-equivalence: two diagnostics refer to the same
// finding when their range and message agree. Rule id is embedded in the
// message, so message equality covers it.
func (d Diagnostic) Same(other Diagnostic) bool {
	return d.Range == other.Range && d.Message == other.Message
}
