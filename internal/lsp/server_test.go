package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/proselab/lintd/pkg/engine"
	"github.com/proselab/lintd/pkg/engine/prose"
	"github.com/proselab/lintd/pkg/validate"
)

// newTestServer builds an initialized server over an in-memory output buffer
// and a workspace holding a lint config, so validation does not skip.
func newTestServer(t *testing.T) (*Server, *bytes.Buffer, string) {
	t.Helper()

	workspace := t.TempDir()
	err := os.WriteFile(filepath.Join(workspace, ".lintdrc"), []byte("{}"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	registry := engine.NewRegistry()
	if err := prose.Register(registry); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	server := NewServer(strings.NewReader(""), &out, ServerOptions{
		Registry: registry,
		Settings: validate.Settings{Engine: prose.Name},
	})
	server.baseCtx = context.Background()

	initMsg := request(t, 1, "initialize", initializeParams{RootURI: pathToURI(workspace)})
	if err := server.handleInitialize(initMsg); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	out.Reset()
	return server, &out, workspace
}

func request(t *testing.T, id int, method string, params any) *rpcMessage {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	msg := &rpcMessage{JSONRPC: "2.0", Method: method, Params: raw}
	if id > 0 {
		idRaw, _ := json.Marshal(id)
		msg.ID = idRaw
	}
	return msg
}

// drain decodes every framed message written so far.
func drain(t *testing.T, out *bytes.Buffer) []rpcMessage {
	t.Helper()
	reader := bufio.NewReader(bytes.NewReader(out.Bytes()))
	var msgs []rpcMessage
	for {
		payload, err := readMessage(reader)
		if errors.Is(err, io.EOF) {
			return msgs
		}
		if err != nil {
			t.Fatalf("read framed message: %v", err)
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		msgs = append(msgs, msg)
	}
}

func notifications(msgs []rpcMessage, method string) []rpcMessage {
	var out []rpcMessage
	for _, msg := range msgs {
		if msg.Method == method {
			out = append(out, msg)
		}
	}
	return out
}

func lastResponse(t *testing.T, msgs []rpcMessage) rpcMessage {
	t.Helper()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Method == "" && (len(msgs[i].Result) > 0 || msgs[i].Error != nil) {
			return msgs[i]
		}
	}
	t.Fatal("no response in output")
	return rpcMessage{}
}

func openDocument(t *testing.T, server *Server, workspace, name string, version int, text string) string {
	t.Helper()
	uri := pathToURI(filepath.Join(workspace, name))
	msg := request(t, 0, "textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "markdown", Version: version, Text: text},
	})
	if err := server.handleDidOpen(context.Background(), msg); err != nil {
		t.Fatalf("didOpen failed: %v", err)
	}
	return uri
}

func TestInitializeCapabilities(t *testing.T) {
	workspace := t.TempDir()
	registry := engine.NewRegistry()
	if err := prose.Register(registry); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	server := NewServer(strings.NewReader(""), &out, ServerOptions{
		Registry: registry,
		Settings: validate.Settings{Engine: prose.Name},
	})
	server.baseCtx = context.Background()

	msg := request(t, 1, "initialize", initializeParams{RootURI: pathToURI(workspace)})
	if err := server.handleInitialize(msg); err != nil {
		t.Fatal(err)
	}

	resp := lastResponse(t, drain(t, &out))
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	caps := result.Capabilities
	if !caps.TextDocumentSync.OpenClose || caps.TextDocumentSync.Change != 2 {
		t.Errorf("sync options = %+v", caps.TextDocumentSync)
	}
	if !caps.CodeActionProvider {
		t.Error("code actions not advertised")
	}
	if caps.ExecuteCommandProvider == nil ||
		len(caps.ExecuteCommandProvider.Commands) != 1 ||
		caps.ExecuteCommandProvider.Commands[0] != CommandApplyTextEdits {
		t.Errorf("execute command provider = %+v", caps.ExecuteCommandProvider)
	}
}

func TestDidOpenPublishesDiagnostics(t *testing.T) {
	server, out, workspace := newTestServer(t)

	uri := openDocument(t, server, workspace, "a.md", 1, "hello  \n")
	msgs := drain(t, out)

	published := notifications(msgs, "textDocument/publishDiagnostics")
	if len(published) != 1 {
		t.Fatalf("got %d publishDiagnostics, want 1", len(published))
	}
	var params publishDiagnosticsParams
	if err := json.Unmarshal(published[0].Params, &params); err != nil {
		t.Fatal(err)
	}
	if params.URI != uri {
		t.Errorf("published for %q, want %q", params.URI, uri)
	}
	if len(params.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(params.Diagnostics), params.Diagnostics)
	}
	d := params.Diagnostics[0]
	if d.Source != "lintd" {
		t.Errorf("source = %q, want lintd", d.Source)
	}
	if !strings.Contains(d.Message, "trailing-space") {
		t.Errorf("message = %q, want rule id appended", d.Message)
	}

	if len(notifications(msgs, "lintd/progress/start")) != 1 ||
		len(notifications(msgs, "lintd/progress/stop")) != 1 {
		t.Error("progress signals not paired around the run")
	}
	statuses := notifications(msgs, "lintd/status")
	if len(statuses) != 1 {
		t.Fatalf("got %d status notifications, want 1", len(statuses))
	}
	var status statusParams
	if err := json.Unmarshal(statuses[0].Params, &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ok" {
		t.Errorf("status = %+v, want ok", status)
	}

	repo, ok := server.Repository(uri)
	if !ok || repo.Len() != 1 || repo.Version() != 1 {
		t.Errorf("repository state = %v/%d records", ok, repo.Len())
	}
}

func TestCodeActionsFromRepository(t *testing.T) {
	server, out, workspace := newTestServer(t)

	// Two trailing-space problems: per-diagnostic, same-rule, and catch-all
	// actions should all be offered.
	uri := openDocument(t, server, workspace, "a.md", 1, "one  \ntwo  \n")
	msgs := drain(t, out)
	var published publishDiagnosticsParams
	if err := json.Unmarshal(notifications(msgs, "textDocument/publishDiagnostics")[0].Params, &published); err != nil {
		t.Fatal(err)
	}
	if len(published.Diagnostics) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(published.Diagnostics))
	}
	out.Reset()

	msg := request(t, 2, "textDocument/codeAction", codeActionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Range:        published.Diagnostics[0].Range,
		Context:      codeActionContext{Diagnostics: published.Diagnostics[:1]},
	})
	if err := server.handleCodeAction(msg); err != nil {
		t.Fatal(err)
	}

	resp := lastResponse(t, drain(t, out))
	var actions []codeAction
	if err := json.Unmarshal(resp.Result, &actions); err != nil {
		t.Fatal(err)
	}

	titles := make([]string, 0, len(actions))
	for _, a := range actions {
		titles = append(titles, a.Title)
	}
	want := []string{
		"Fix this trailing-space problem",
		"Fix all trailing-space problems",
		"Fix all auto-fixable problems",
	}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("title[%d] = %q, want %q", i, titles[i], want[i])
		}
	}

	for _, a := range actions {
		if a.Kind != "quickfix" {
			t.Errorf("action %q kind = %q, want quickfix", a.Title, a.Kind)
		}
		if a.Command == nil || a.Command.Command != CommandApplyTextEdits {
			t.Errorf("action %q missing apply command", a.Title)
		}
	}

	// The catch-all batch carries both edits and the current version.
	raw, err := json.Marshal(actions[2].Command.Arguments[0])
	if err != nil {
		t.Fatal(err)
	}
	var args applyEditsArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		t.Fatal(err)
	}
	if args.URI != uri || args.Version != 1 || len(args.Edits) != 2 {
		t.Errorf("catch-all args = %+v", args)
	}
}

func TestCodeActionEmptyRepository(t *testing.T) {
	server, out, workspace := newTestServer(t)

	uri := openDocument(t, server, workspace, "a.md", 1, "clean text\n")
	out.Reset()

	msg := request(t, 2, "textDocument/codeAction", codeActionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
	})
	if err := server.handleCodeAction(msg); err != nil {
		t.Fatal(err)
	}

	resp := lastResponse(t, drain(t, out))
	var actions []codeAction
	if err := json.Unmarshal(resp.Result, &actions); err != nil {
		t.Fatal(err)
	}
	if len(actions) != 0 {
		t.Errorf("got %d actions for clean document, want 0", len(actions))
	}
}

func TestDidChangeRevalidates(t *testing.T) {
	server, out, workspace := newTestServer(t)

	uri := openDocument(t, server, workspace, "a.md", 1, "clean\n")
	out.Reset()

	// Full-document change introducing a problem.
	msg := request(t, 0, "textDocument/didChange", didChangeTextDocumentParams{
		TextDocument:   versionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{Text: "dirty  \n"}},
	})
	if err := server.handleDidChange(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	published := notifications(drain(t, out), "textDocument/publishDiagnostics")
	if len(published) != 1 {
		t.Fatalf("got %d publishDiagnostics, want 1", len(published))
	}
	var params publishDiagnosticsParams
	if err := json.Unmarshal(published[0].Params, &params); err != nil {
		t.Fatal(err)
	}
	if len(params.Diagnostics) != 1 {
		t.Errorf("got %d diagnostics after change, want 1", len(params.Diagnostics))
	}

	repo, _ := server.Repository(uri)
	if repo.Version() != 2 {
		t.Errorf("repository version = %d, want 2", repo.Version())
	}
}

func TestExecuteCommandStaleVersion(t *testing.T) {
	server, out, workspace := newTestServer(t)

	uri := openDocument(t, server, workspace, "a.md", 3, "text  \n")
	out.Reset()

	args, _ := json.Marshal(applyEditsArgs{URI: uri, Version: 1})
	msg := request(t, 5, "workspace/executeCommand", executeCommandParams{
		Command:   CommandApplyTextEdits,
		Arguments: []json.RawMessage{args},
	})
	if err := server.handleExecuteCommand(msg); err != nil {
		t.Fatal(err)
	}

	msgs := drain(t, out)
	shows := notifications(msgs, "window/showMessage")
	if len(shows) != 1 {
		t.Fatalf("got %d showMessage notifications, want 1", len(shows))
	}
	var show showMessageParams
	if err := json.Unmarshal(shows[0].Params, &show); err != nil {
		t.Fatal(err)
	}
	if show.Message != "Fixes are outdated and can't be applied to the document." {
		t.Errorf("message = %q", show.Message)
	}
	if len(notifications(msgs, "workspace/applyEdit")) != 0 {
		t.Error("stale batch still reached workspace/applyEdit")
	}
}

func TestExecuteCommandAppliesEdits(t *testing.T) {
	server, out, workspace := newTestServer(t)

	uri := openDocument(t, server, workspace, "a.md", 3, "text  \n")
	out.Reset()

	args, _ := json.Marshal(applyEditsArgs{
		URI:     uri,
		Version: 3,
		Edits:   []lspTextEdit{{NewText: ""}},
	})
	msg := request(t, 5, "workspace/executeCommand", executeCommandParams{
		Command:   CommandApplyTextEdits,
		Arguments: []json.RawMessage{args},
	})
	if err := server.handleExecuteCommand(msg); err != nil {
		t.Fatal(err)
	}

	msgs := drain(t, out)
	applies := notifications(msgs, "workspace/applyEdit")
	if len(applies) != 1 {
		t.Fatalf("got %d applyEdit requests, want 1", len(applies))
	}
	var params applyWorkspaceEditParams
	if err := json.Unmarshal(applies[0].Params, &params); err != nil {
		t.Fatal(err)
	}
	if _, ok := params.Edit.Changes[uri]; !ok {
		t.Errorf("applyEdit changes = %+v, want entry for %q", params.Edit.Changes, uri)
	}
	if len(applies[0].ID) == 0 {
		t.Error("applyEdit sent as notification, want request")
	}
}

func TestExecuteCommandUnknown(t *testing.T) {
	server, out, _ := newTestServer(t)

	msg := request(t, 5, "workspace/executeCommand", executeCommandParams{Command: "other"})
	if err := server.handleExecuteCommand(msg); err != nil {
		t.Fatal(err)
	}
	resp := lastResponse(t, drain(t, out))
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("error = %+v, want method-not-found", resp.Error)
	}
}

func TestDidCloseClearsDiagnostics(t *testing.T) {
	server, out, workspace := newTestServer(t)

	uri := openDocument(t, server, workspace, "a.md", 1, "text  \n")
	out.Reset()

	msg := request(t, 0, "textDocument/didClose", didCloseTextDocumentParams{
		TextDocument: textDocumentIdentifier{URI: uri},
	})
	if err := server.handleDidClose(msg); err != nil {
		t.Fatal(err)
	}

	published := notifications(drain(t, out), "textDocument/publishDiagnostics")
	if len(published) != 1 {
		t.Fatalf("got %d publishDiagnostics on close, want 1", len(published))
	}
	var params publishDiagnosticsParams
	if err := json.Unmarshal(published[0].Params, &params); err != nil {
		t.Fatal(err)
	}
	if len(params.Diagnostics) != 0 {
		t.Errorf("close published %d diagnostics, want empty set", len(params.Diagnostics))
	}
}

func TestShutdownExitSequence(t *testing.T) {
	server, _, _ := newTestServer(t)
	ctx := context.Background()

	idRaw, _ := json.Marshal(7)
	if err := server.handleMessage(ctx, &rpcMessage{ID: idRaw, Method: "shutdown"}); err != nil {
		t.Fatal(err)
	}
	if err := server.handleMessage(ctx, &rpcMessage{Method: "exit"}); !errors.Is(err, ErrExit) {
		t.Errorf("exit after shutdown = %v, want ErrExit", err)
	}
}

func TestExitWithoutShutdown(t *testing.T) {
	server, _, _ := newTestServer(t)

	err := server.handleMessage(context.Background(), &rpcMessage{Method: "exit"})
	if !errors.Is(err, ErrExitWithoutShutdown) {
		t.Errorf("exit = %v, want ErrExitWithoutShutdown", err)
	}
}

func TestUnknownMethod(t *testing.T) {
	server, out, _ := newTestServer(t)

	idRaw, _ := json.Marshal(9)
	err := server.handleMessage(context.Background(), &rpcMessage{ID: idRaw, Method: "textDocument/hover"})
	if err != nil {
		t.Fatal(err)
	}
	resp := lastResponse(t, drain(t, out))
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("error = %+v, want method-not-found", resp.Error)
	}

	// Unknown notifications are silently dropped.
	out.Reset()
	if err := server.handleMessage(context.Background(), &rpcMessage{Method: "$/cancelRequest"}); err != nil {
		t.Fatal(err)
	}
	if msgs := drain(t, out); len(msgs) != 0 {
		t.Errorf("unknown notification produced %d messages, want 0", len(msgs))
	}
}

// TestSettingsSharedWithWatcher covers the settings handoff between the
// read loop (which applies configuration changes) and the watcher goroutine
// (which reads them for isWatchedFile and reconfiguration).
func TestSettingsSharedWithWatcher(t *testing.T) {
	server, _, workspace := newTestServer(t)

	ignorePath := filepath.Join(workspace, "custom.ignore")
	settings, _ := json.Marshal(clientSettings{Lintd: lintdSettings{
		Engine:     prose.Name,
		IgnorePath: ignorePath,
	}})
	msg := request(t, 0, "workspace/didChangeConfiguration", didChangeConfigurationParams{Settings: settings})
	if err := server.handleDidChangeConfiguration(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	// The watcher goroutine resolves watched files through the same guarded
	// accessor the read loop writes through.
	if !server.isWatchedFile(ignorePath) {
		t.Error("configured ignore file not recognized as watched")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = server.currentSettings()
			_ = server.isWatchedFile(ignorePath)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.setSettings(validate.Settings{Engine: prose.Name, IgnoreFile: ignorePath})
	}()
	wg.Wait()

	if got := server.currentSettings().IgnoreFile; got != ignorePath {
		t.Errorf("IgnoreFile = %q, want %q", got, ignorePath)
	}
}

func TestDidChangeConfigurationReconfigures(t *testing.T) {
	server, out, workspace := newTestServer(t)

	openDocument(t, server, workspace, "a.md", 1, "text  \n")
	out.Reset()

	settings, _ := json.Marshal(clientSettings{Lintd: lintdSettings{Engine: prose.Name}})
	msg := request(t, 0, "workspace/didChangeConfiguration", didChangeConfigurationParams{Settings: settings})
	if err := server.handleDidChangeConfiguration(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	published := notifications(drain(t, out), "textDocument/publishDiagnostics")
	// Clear followed by revalidation publish.
	if len(published) != 2 {
		t.Fatalf("got %d publishDiagnostics, want clear + revalidate", len(published))
	}
	var cleared publishDiagnosticsParams
	if err := json.Unmarshal(published[0].Params, &cleared); err != nil {
		t.Fatal(err)
	}
	if len(cleared.Diagnostics) != 0 {
		t.Error("first publish after reconfigure not empty")
	}
	var repopulated publishDiagnosticsParams
	if err := json.Unmarshal(published[1].Params, &repopulated); err != nil {
		t.Fatal(err)
	}
	if len(repopulated.Diagnostics) != 1 {
		t.Errorf("revalidation published %d diagnostics, want 1", len(repopulated.Diagnostics))
	}
}
