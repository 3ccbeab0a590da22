// Package validate orchestrates lint runs over open documents: eligibility
// gating, engine execution, diagnostic mapping, fix correlation, and
// progress signaling.
package validate

import "github.com/proselab/lintd/pkg/diag"

// StatusKind classifies the outcome of a validation run.
type StatusKind int

// Status kinds.
const (
	StatusOK StatusKind = iota
	StatusError
)

// Status is the outbound per-run status signal. Error statuses carry the
// aggregated message and cause so the editor can surface them.
type Status struct {
	Kind    StatusKind
	Message string
	Cause   string
}

// Notifier receives the outbound signals the coordinator produces. The LSP
// layer implements it over the editor channel; tests implement it in memory.
type Notifier interface {
	// PublishDiagnostics replaces the full diagnostic set for a document.
	// Never incremental.
	PublishDiagnostics(uri string, diagnostics []diag.Diagnostic)

	// Status reports the outcome of a validation run or batch.
	Status(status Status)

	// ProgressStart and ProgressStop bound a set of overlapping runs.
	ProgressStart()
	ProgressStop()

	// NoConfig signals that no lint configuration file was found.
	NoConfig()

	// NoEngine signals that the named lint engine could not be located.
	NoEngine(name string)
}

// Document is an open editor document. Version increases on every content
// change; Text is the current in-memory content, which may differ from disk.
// Path is empty for documents that are not file-backed.
type Document struct {
	URI     string
	Path    string
	Version int
	Text    string
}
