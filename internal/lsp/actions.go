package lsp

import (
	"encoding/json"
	"fmt"

	"github.com/proselab/lintd/pkg/diag"
	"github.com/proselab/lintd/pkg/fixes"
	"github.com/proselab/lintd/pkg/validate"
)

// handleCodeAction builds fix actions from the document's fix repository.
// The lint engine is never consulted here; actions come entirely from the
// correlation store populated by the last validation run.
func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	if s.coord == nil {
		return s.sendResponse(msg.ID, []codeAction{})
	}
	uri := params.TextDocument.URI
	repo, ok := s.coord.Repository(uri)
	if !ok || repo.IsEmpty() {
		return s.sendResponse(msg.ID, []codeAction{})
	}
	doc, ok := s.coord.Document(uri)
	if !ok {
		return s.sendResponse(msg.ID, []codeAction{})
	}

	actions := []codeAction{}
	seenRules := map[string]bool{}

	for _, rec := range repo.Find(params.Context.Diagnostics) {
		title := "Fix this problem"
		if rec.Finding.RuleID != "" {
			title = fmt.Sprintf("Fix this %s problem", rec.Finding.RuleID)
		}
		actions = append(actions, s.fixAction(title, doc, repo, []fixes.Record{rec}, rec))

		ruleID := rec.Finding.RuleID
		if ruleID == "" || seenRules[ruleID] {
			continue
		}
		seenRules[ruleID] = true
		if repo.CountRule(ruleID) > 1 {
			actions = append(actions, s.fixAction(
				fmt.Sprintf("Fix all %s problems", ruleID),
				doc, repo, repo.Separated(fixes.SameRule(ruleID)), rec,
			))
		}
	}

	// Catch-all over the full non-overlapping batch.
	actions = append(actions, s.fixAction(
		"Fix all auto-fixable problems",
		doc, repo, repo.Separated(nil), fixes.Record{},
	))

	return s.sendResponse(msg.ID, actions)
}

// fixAction wraps a record batch into a code action whose command carries
// the repository version for staleness rejection.
func (s *Server) fixAction(title string, doc validate.Document, repo *fixes.Repository, records []fixes.Record, origin fixes.Record) codeAction {
	edits := make([]lspTextEdit, 0, len(records))
	for _, edit := range fixes.Edits(records) {
		edits = append(edits, lspTextEdit{
			Range: diag.Range{
				Start: positionForOffset(doc.Text, edit.Start),
				End:   positionForOffset(doc.Text, edit.End),
			},
			NewText: edit.NewText,
		})
	}
	action := codeAction{
		Title: title,
		Kind:  "quickfix",
		Command: &command{
			Title:   title,
			Command: CommandApplyTextEdits,
			Arguments: []any{applyEditsArgs{
				URI:     doc.URI,
				Version: repo.Version(),
				Edits:   edits,
			}},
		},
	}
	if origin.Finding.RuleID != "" {
		action.Diagnostics = append(action.Diagnostics, origin.Diagnostic)
	}
	return action
}

// handleExecuteCommand applies a previously offered fix batch. A version
// mismatch means the document changed after the action was built; the batch
// is refused rather than applied against shifted offsets.
func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	if params.Command != CommandApplyTextEdits {
		return s.sendError(msg.ID, -32601, fmt.Sprintf("unknown command %q", params.Command))
	}
	if len(params.Arguments) == 0 {
		return s.sendError(msg.ID, -32602, "missing arguments")
	}
	var args applyEditsArgs
	if err := json.Unmarshal(params.Arguments[0], &args); err != nil {
		return s.sendError(msg.ID, -32602, "invalid arguments")
	}

	if s.coord != nil {
		if doc, ok := s.coord.Document(args.URI); ok && doc.Version != args.Version {
			if err := s.sendNotification("window/showMessage", showMessageParams{
				Type:    2, // warning
				Message: "Fixes are outdated and can't be applied to the document.",
			}); err != nil {
				return err
			}
			return s.sendResponse(msg.ID, nil)
		}
	}

	if err := s.sendRequest("workspace/applyEdit", applyWorkspaceEditParams{
		Label: "lintd fixes",
		Edit: workspaceEdit{
			Changes: map[string][]lspTextEdit{args.URI: args.Edits},
		},
	}); err != nil {
		return err
	}
	return s.sendResponse(msg.ID, nil)
}
