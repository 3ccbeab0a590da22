// Package prose is the built-in reference lint engine: a handful of plain
// prose and Markdown style rules with auto-fixes, driven by the resolved
// lint configuration file.
package prose

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/proselab/lintd/pkg/engine"
	"github.com/proselab/lintd/pkg/lintconfig"
)

// Name is the registry name of the built-in engine.
const Name = "prose"

// Register adds the prose engine factory to the registry.
func Register(registry *engine.Registry) error {
	return registry.Register(Name, func(configPath string) (engine.Engine, error) {
		return New(configPath)
	})
}

// Engine lints plain text and Markdown. One instance is bound to one
// configuration file; the coordinator rebinds when the path changes.
type Engine struct {
	cfg *lintconfig.Config
}

// New creates an engine bound to the configuration at configPath. An empty
// path runs every rule with its defaults.
func New(configPath string) (*Engine, error) {
	e := &Engine{}
	if configPath != "" {
		cfg, err := lintconfig.Load(configPath)
		if err != nil {
			return nil, err
		}
		e.cfg = cfg
	}
	return e, nil
}

// AvailableExtensions implements engine.Engine.
func (e *Engine) AvailableExtensions() []string {
	return []string{".md", ".markdown", ".txt"}
}

// ExecuteOnText implements engine.Engine. Markdown-only rules are skipped
// for plain-text extensions.
func (e *Engine) ExecuteOnText(ctx context.Context, text string, ext string) ([]engine.Finding, error) {
	if !engine.Supports(e, ext) {
		return nil, fmt.Errorf("prose engine: unsupported extension %q", ext)
	}
	rc := newRuleContext(text, ext == ".md" || ext == ".markdown")

	var findings []engine.Finding
	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("prose engine cancelled: %w", err)
		}
		if r.markdownOnly && !rc.markdown {
			continue
		}
		setting := e.cfg.Rule(r.id)
		if !setting.Enabled {
			continue
		}
		severity := r.severity
		if s, ok := parseSeverity(setting.Severity); ok {
			severity = s
		}
		for _, f := range r.apply(rc) {
			f.RuleID = r.id
			f.Severity = severity
			findings = append(findings, f)
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Column < findings[j].Column
	})
	return findings, nil
}

func parseSeverity(s string) (engine.Severity, bool) {
	switch s {
	case "error":
		return engine.SeverityError, true
	case "warning":
		return engine.SeverityWarning, true
	case "info":
		return engine.SeverityInfo, true
	}
	return 0, false
}

// rule is one prose check. apply returns findings with positions and fixes
// filled in; the engine stamps rule id and resolved severity.
type rule struct {
	id           string
	severity     engine.Severity
	markdownOnly bool
	apply        func(rc *ruleContext) []engine.Finding
}

//nolint:gochecknoglobals // Read-only rule table.
var rules = []rule{
	{id: "trailing-space", severity: engine.SeverityWarning, apply: checkTrailingSpace},
	{id: "sentence-spacing", severity: engine.SeverityInfo, apply: checkSentenceSpacing},
	{id: "no-todo", severity: engine.SeverityInfo, apply: checkTodo},
	{id: "no-empty-link", severity: engine.SeverityError, markdownOnly: true, apply: checkEmptyLink},
	{id: "heading-punctuation", severity: engine.SeverityWarning, markdownOnly: true, apply: checkHeadingPunctuation},
}

func checkTrailingSpace(rc *ruleContext) []engine.Finding {
	var findings []engine.Finding
	for i, line := range rc.lines {
		trimmed := strings.TrimRight(line.text, " \t")
		if len(trimmed) == len(line.text) {
			continue
		}
		start := line.start + len(trimmed)
		findings = append(findings, engine.Finding{
			Message: "Trailing whitespace is not allowed",
			Line:    i + 1,
			Column:  len(trimmed) + 1,
			Fix: &engine.FixEdit{
				Range: [2]int{start, line.start + len(line.text)},
			},
		})
	}
	return findings
}

func checkSentenceSpacing(rc *ruleContext) []engine.Finding {
	var findings []engine.Finding
	for i, line := range rc.lines {
		for col := 0; col+2 < len(line.text); col++ {
			c := line.text[col]
			if (c == '.' || c == '!' || c == '?') &&
				line.text[col+1] == ' ' && line.text[col+2] == ' ' {
				spaces := 0
				for col+1+spaces < len(line.text) && line.text[col+1+spaces] == ' ' {
					spaces++
				}
				findings = append(findings, engine.Finding{
					Message: `Multiple spaces after sentence end: "  " -> " "`,
					Line:    i + 1,
					Column:  col + 2,
					Fix: &engine.FixEdit{
						Range: [2]int{line.start + col + 1, line.start + col + 1 + spaces},
						Text:  " ",
					},
				})
				col += spaces
			}
		}
	}
	return findings
}

func checkTodo(rc *ruleContext) []engine.Finding {
	var findings []engine.Finding
	for i, line := range rc.lines {
		from := 0
		for {
			at := strings.Index(line.text[from:], "TODO")
			if at < 0 {
				break
			}
			col := from + at
			findings = append(findings, engine.Finding{
				Message: `Found task marker "TODO"`,
				Line:    i + 1,
				Column:  col + 1,
			})
			from = col + len("TODO")
		}
	}
	return findings
}
