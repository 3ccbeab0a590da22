package diag

import (
	"fmt"
	"strings"

	"github.com/proselab/lintd/pkg/engine"
)

// Mapper converts raw engine findings into positioned diagnostics.
type Mapper struct {
	// Source is the tag attached to every produced diagnostic.
	Source string
}

// ToDiagnostic converts one finding into a diagnostic. The finding is
// returned alongside so callers can pick up its fix.
func (m Mapper) ToDiagnostic(f engine.Finding) (Diagnostic, engine.Finding) {
	message := f.Message
	if f.RuleID != "" {
		message = fmt.Sprintf("%s (%s)", f.Message, f.RuleID)
	}
	start := Position{
		Line:      maxZero(f.Line - 1),
		Character: maxZero(f.Column - 1),
	}
	end := Position{
		Line:      start.Line,
		Character: start.Character + spanWidth(f.Message),
	}
	return Diagnostic{
		Range:    Range{Start: start, End: end},
		Severity: toSeverity(f.Severity),
		Source:   m.Source,
		Message:  message,
	}, f
}

// spanWidth estimates the width of the violating span from the message text.
// Engines report only a point location; when the message carries a
// suggestion arrow the text before it is the violating span, and when it
// quotes a substring the quoted width is used. Falls back to zero.
func spanWidth(message string) int {
	if at := strings.Index(message, " ->"); at >= 0 {
		return at
	}
	if open := strings.Index(message, `"`); open >= 0 {
		if closing := strings.Index(message[open+1:], `"`); closing >= 0 {
			// Index of the closing quote within message, minus one.
			return open + closing
		}
	}
	return 0
}

func toSeverity(s engine.Severity) Severity {
	switch s {
	case engine.SeverityError:
		return SeverityError
	case engine.SeverityWarning:
		return SeverityWarning
	default:
		return SeverityInformation
	}
}

func maxZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
