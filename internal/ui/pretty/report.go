package pretty

import (
	"fmt"
	"strings"

	"github.com/proselab/lintd/pkg/engine"
)

// FormatFinding renders one finding as `path:line:col  severity  message
// (rule)` with a fixable marker.
func (s *Styles) FormatFinding(path string, f *engine.Finding) string {
	var builder strings.Builder

	location := fmt.Sprintf("%s:%d:%d", s.FilePath.Render(path), f.Line, f.Column)
	builder.WriteString("  " + location + "  " + s.FormatSeverity(f.Severity) + "  " + s.Message.Render(f.Message))
	if f.RuleID != "" {
		builder.WriteString("  " + s.RuleID.Render("("+f.RuleID+")"))
	}
	if f.Fixable() {
		builder.WriteString("  " + s.Fixable.Render("[fixable]"))
	}
	builder.WriteString("\n")
	return builder.String()
}

// FormatSeverity returns a styled severity string.
func (s *Styles) FormatSeverity(sev engine.Severity) string {
	switch sev {
	case engine.SeverityError:
		return s.Error.Render("error")
	case engine.SeverityWarning:
		return s.Warning.Render("warning")
	default:
		return s.Info.Render("info")
	}
}

// FormatSummary renders the closing line of a check run.
func (s *Styles) FormatSummary(files, findings, fixable, fixed int) string {
	if findings == 0 {
		return s.Success.Render("✓") + s.Dim.Render(fmt.Sprintf(" %d files checked, no problems", files)) + "\n"
	}
	line := fmt.Sprintf("%d problems in %d files", findings, files)
	if fixed > 0 {
		line += fmt.Sprintf(", %d fixed", fixed)
	} else if fixable > 0 {
		line += fmt.Sprintf(", %d fixable with --fix", fixable)
	}
	return s.Failure.Render("✗") + " " + line + "\n"
}
