package fixes

import (
	"sort"

	"github.com/proselab/lintd/pkg/diag"
	"github.com/proselab/lintd/pkg/engine"
)

// Record correlates a published diagnostic with its originating finding and
// the edit that resolves it, scoped to one document version.
type Record struct {
	Diagnostic diag.Diagnostic
	Finding    engine.Finding
	Edit       TextEdit
}

// Repository holds the fixable findings of the most recent lint run for one
// document. It is always a clean slate from that run only: Clear runs before
// any Register, so stale records never survive into a new generation.
//
// All methods assume single-threaded access; the coordinator serializes
// mutation per document.
type Repository struct {
	uri     string
	version int
	records []Record
}

// NewRepository creates an empty repository owned by the document at uri.
func NewRepository(uri string) *Repository {
	return &Repository{uri: uri}
}

// URI returns the owning document URI.
func (r *Repository) URI() string { return r.uri }

// Version returns the document version captured at the last Register call.
// Outgoing fix batches carry it so a consumer can refuse a stale apply.
func (r *Repository) Version() int { return r.version }

// Clear discards all current records. Idempotent.
func (r *Repository) Clear() {
	r.records = nil
}

// IsEmpty reports whether no records are held.
func (r *Repository) IsEmpty() bool {
	return len(r.records) == 0
}

// Len returns the number of held records.
func (r *Repository) Len() int {
	return len(r.records)
}

// Register adds a record for a fix-bearing finding and captures the document
// version. Findings without a fix are ignored; they still produce
// diagnostics but no action. Reports whether a record was added.
func (r *Repository) Register(version int, d diag.Diagnostic, f engine.Finding) bool {
	if !f.Fixable() {
		return false
	}
	r.version = version
	r.records = append(r.records, Record{
		Diagnostic: d,
		Finding:    f,
		Edit: TextEdit{
			Start:   f.Fix.Range[0],
			End:     f.Fix.Range[1],
			NewText: f.Fix.Text,
		},
	})
	return true
}

// Find returns the records whose diagnostic is identity-equivalent to one of
// the supplied diagnostics. Used to resolve "fix this problem" from an
// editor-selected diagnostic.
func (r *Repository) Find(diagnostics []diag.Diagnostic) []Record {
	var matched []Record
	for _, rec := range r.records {
		for _, d := range diagnostics {
			if rec.Diagnostic.Same(d) {
				matched = append(matched, rec)
				break
			}
		}
	}
	return matched
}

// Separated returns the maximal non-overlapping subset of current records,
// optionally pre-filtered by predicate. Records are ordered by edit start
// offset and kept greedily, so the resulting batch applies in one pass
// without text-offset corruption.
func (r *Repository) Separated(predicate func(Record) bool) []Record {
	var candidates []Record
	for _, rec := range r.records {
		if predicate == nil || predicate(rec) {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Edit.Start != candidates[j].Edit.Start {
			return candidates[i].Edit.Start < candidates[j].Edit.Start
		}
		return candidates[i].Edit.End < candidates[j].Edit.End
	})

	kept := make([]Record, 1, len(candidates))
	kept[0] = candidates[0]
	lastEnd := candidates[0].Edit.End
	for _, rec := range candidates[1:] {
		if rec.Edit.Start >= lastEnd {
			kept = append(kept, rec)
			lastEnd = rec.Edit.End
		}
	}
	return kept
}

// CountRule returns how many current records were produced by ruleID.
func (r *Repository) CountRule(ruleID string) int {
	count := 0
	for _, rec := range r.records {
		if rec.Finding.RuleID == ruleID {
			count++
		}
	}
	return count
}

// SameRule returns a predicate matching records produced by ruleID.
func SameRule(ruleID string) func(Record) bool {
	return func(rec Record) bool {
		return rec.Finding.RuleID == ruleID
	}
}

// Edits extracts the sorted edit batch from records.
func Edits(records []Record) []TextEdit {
	edits := make([]TextEdit, 0, len(records))
	for _, rec := range records {
		edits = append(edits, rec.Edit)
	}
	SortEdits(edits)
	return edits
}
