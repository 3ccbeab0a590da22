// Package lsp implements the stdio language-server transport that feeds
// editor events into the validation coordinator and carries its signals
// back out.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/proselab/lintd/internal/logging"
	"github.com/proselab/lintd/pkg/diag"
	"github.com/proselab/lintd/pkg/engine"
	"github.com/proselab/lintd/pkg/fixes"
	"github.com/proselab/lintd/pkg/validate"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// CommandApplyTextEdits is the workspace command behind every fix action.
const CommandApplyTextEdits = "lintd.applyTextEdits"

// ServerOptions configures a Server.
type ServerOptions struct {
	Registry *engine.Registry
	Settings validate.Settings
	Logger   *log.Logger
	// WatchFiles enables the server-side fsnotify watcher on the config and
	// ignore files.
	WatchFiles bool
}

// Server handles stdio JSON-RPC for lintd.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	logger *log.Logger

	registry *engine.Registry

	// settings is written by the read loop and read by the watcher
	// goroutine, so access goes through currentSettings/setSettings.
	settingsMu sync.Mutex
	settings   validate.Settings

	watchFiles bool

	coord   *validate.Coordinator
	watcher *watcher

	workspaceRoot     string
	shutdownRequested bool
	nextRequestID     atomic.Int64
	baseCtx           context.Context
}

// NewServer constructs a server reading requests from in and writing
// responses and notifications to out.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		in:         bufio.NewReader(in),
		out:        bufio.NewWriter(out),
		logger:     logger,
		registry:   opts.Registry,
		settings:   opts.Settings,
		watchFiles: opts.WatchFiles,
	}
}

// Run serves requests until shutdown or EOF.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.stopWatcher()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("failed to parse message", logging.FieldError, err)
			continue
		}
		if msg.Method == "" {
			// Response to one of our own requests (e.g. applyEdit); nothing
			// to do with it.
			continue
		}
		if err := s.handleMessage(ctx, &msg); err != nil {
			if errors.Is(err, ErrExit) || errors.Is(err, ErrExitWithoutShutdown) {
				return err
			}
			s.logger.Error("handler failed", logging.FieldMethod, msg.Method, logging.FieldError, err)
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.startWatcher()
		return nil
	case "shutdown":
		s.shutdownRequested = true
		return s.sendResponse(msg.ID, nil)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(ctx, msg)
	case "workspace/didChangeWatchedFiles":
		return s.handleDidChangeWatchedFiles(ctx, msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, msg)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, msg)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.workspaceRoot = root

	coord, err := validate.NewCoordinator(validate.Options{
		Workspace: root,
		Registry:  s.registry,
		Notifier:  s,
		Settings:  s.currentSettings(),
	})
	if err != nil {
		return s.sendError(msg.ID, -32603, err.Error())
	}
	s.coord = coord
	s.logger.Debug("initialized", logging.FieldWorkspace, root)

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save:      saveOptions{IncludeText: true},
			},
			CodeActionProvider: true,
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{CommandApplyTextEdits},
			},
		},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleDidOpen(ctx context.Context, msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if s.coord == nil {
		return nil
	}
	doc := validate.Document{
		URI:     params.TextDocument.URI,
		Path:    uriToPath(params.TextDocument.URI),
		Version: params.TextDocument.Version,
		Text:    params.TextDocument.Text,
	}
	s.coord.Open(doc)
	if err := s.coord.ValidateSingle(ctx, doc); err != nil {
		s.logger.Warn("validation failed", logging.FieldURI, doc.URI, logging.FieldError, err)
	}
	return nil
}

func (s *Server) handleDidChange(ctx context.Context, msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if s.coord == nil {
		return nil
	}
	doc, ok := s.coord.Document(params.TextDocument.URI)
	if !ok {
		return nil
	}
	doc.Text = applyChanges(doc.Text, params.ContentChanges)
	doc.Version = params.TextDocument.Version
	if err := s.coord.ValidateSingle(ctx, doc); err != nil {
		s.logger.Warn("validation failed", logging.FieldURI, doc.URI, logging.FieldError, err)
	}
	return nil
}

func (s *Server) handleDidSave(ctx context.Context, msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if s.coord == nil {
		return nil
	}
	doc, ok := s.coord.Document(params.TextDocument.URI)
	if !ok {
		return nil
	}
	if params.Text != nil {
		doc.Text = *params.Text
	}
	if err := s.coord.ValidateSingle(ctx, doc); err != nil {
		s.logger.Warn("validation failed", logging.FieldURI, doc.URI, logging.FieldError, err)
	}
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if s.coord == nil {
		return nil
	}
	s.coord.Close(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidChangeConfiguration(ctx context.Context, msg *rpcMessage) error {
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	var settings clientSettings
	if len(params.Settings) > 0 {
		if err := json.Unmarshal(params.Settings, &settings); err != nil {
			return fmt.Errorf("parse settings: %w", err)
		}
	}
	if settings.Lintd.LogLevel != "" {
		logging.SetLevel(settings.Lintd.LogLevel)
	}
	next := validate.Settings{
		Engine:     settings.Lintd.Engine,
		ConfigPath: settings.Lintd.ConfigPath,
		IgnoreFile: settings.Lintd.IgnorePath,
		TargetPath: settings.Lintd.TargetPath,
	}
	s.setSettings(next)
	if s.coord == nil {
		return nil
	}
	s.restartWatcher()
	return s.coord.Reconfigure(ctx, next)
}

func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, msg *rpcMessage) error {
	var params didChangeWatchedFilesParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if s.coord == nil || len(params.Changes) == 0 {
		return nil
	}
	return s.coord.Reconfigure(ctx, s.currentSettings())
}

func (s *Server) currentSettings() validate.Settings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.settings
}

func (s *Server) setSettings(settings validate.Settings) {
	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error":   rpcError{Code: code, Message: message},
	})
}

func (s *Server) sendNotification(method string, params any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

// sendRequest sends a server-to-client request. The response is discarded by
// the read loop.
func (s *Server) sendRequest(method string, params any) error {
	id := s.nextRequestID.Add(1)
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

// The server is the coordinator's notifier: core signals become protocol
// traffic here.

// PublishDiagnostics implements validate.Notifier.
func (s *Server) PublishDiagnostics(uri string, diagnostics []diag.Diagnostic) {
	if diagnostics == nil {
		diagnostics = []diag.Diagnostic{}
	}
	if err := s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	}); err != nil {
		s.logger.Warn("publish diagnostics failed", logging.FieldURI, uri, logging.FieldError, err)
	}
}

// Status implements validate.Notifier.
func (s *Server) Status(status validate.Status) {
	params := statusParams{Status: "ok"}
	if status.Kind == validate.StatusError {
		params = statusParams{Status: "error", Message: status.Message, Cause: status.Cause}
	}
	if err := s.sendNotification("lintd/status", params); err != nil {
		s.logger.Warn("status notification failed", logging.FieldError, err)
	}
}

// ProgressStart implements validate.Notifier.
func (s *Server) ProgressStart() {
	_ = s.sendNotification("lintd/progress/start", struct{}{})
}

// ProgressStop implements validate.Notifier.
func (s *Server) ProgressStop() {
	_ = s.sendNotification("lintd/progress/stop", struct{}{})
}

// NoConfig implements validate.Notifier.
func (s *Server) NoConfig() {
	_ = s.sendNotification("lintd/noConfig", struct{}{})
}

// NoEngine implements validate.Notifier.
func (s *Server) NoEngine(name string) {
	_ = s.sendNotification("lintd/noEngine", map[string]string{"engine": name})
}

// Repository exposes the fix repository for a URI, for tests.
func (s *Server) Repository(uri string) (*fixes.Repository, bool) {
	if s.coord == nil {
		return nil, false
	}
	return s.coord.Repository(uri)
}
