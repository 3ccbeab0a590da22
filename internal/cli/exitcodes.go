package cli

import "github.com/proselab/lintd/pkg/engine"

// Exit codes for lintd.
const (
	// ExitSuccess indicates successful execution with no issues.
	ExitSuccess = 0

	// ExitLintErrors indicates the check completed but found errors.
	ExitLintErrors = 1

	// ExitLintWarnings indicates the check found warnings in strict mode.
	ExitLintWarnings = 2

	// ExitConfigError indicates configuration file errors.
	ExitConfigError = 65

	// ExitInternalError indicates an internal error.
	ExitInternalError = 70

	// ExitIOError indicates file I/O errors.
	ExitIOError = 74
)

// ExitCodeFromFindings determines the exit code for a check run.
func ExitCodeFromFindings(findings []engine.Finding, strict bool) int {
	var errors, warnings int
	for _, f := range findings {
		switch f.Severity {
		case engine.SeverityError:
			errors++
		case engine.SeverityWarning:
			warnings++
		}
	}
	if errors > 0 {
		return ExitLintErrors
	}
	if strict && warnings > 0 {
		return ExitLintWarnings
	}
	return ExitSuccess
}
