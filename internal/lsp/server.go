package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"sus/internal/compiler"
	"sus/internal/flatten"
	"sus/internal/instantiate"
	"sus/internal/linker"
	"sus/internal/project"
	"sus/internal/sema"
	"sus/internal/source"
	"sus/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// Options configures the server.
type Options struct {
	// StdDir is the standard library directory. Empty selects the embedded
	// prelude.
	StdDir string
	// Debug enables logging of every message to Log.
	Debug bool
	// Log receives debug output. Defaults to stderr.
	Log            io.Writer
	MaxDiagnostics int
}

// Server speaks JSON-RPC over one connection. Every message is fully
// processed before the next one is read.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex

	opts Options
	log  io.Writer
	l    *linker.Linker
	// docs maps the URI of every file known to the linker to its id.
	docs map[string]source.FileID
	// open holds the URIs the client currently has open.
	open      map[string]bool
	published map[string]struct{}

	workspaceRoot     string
	shutdownRequested bool
}

// NewServer constructs a server reading from in and writing to out.
func NewServer(in io.Reader, out io.Writer, opts Options) *Server {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	log := opts.Log
	if log == nil {
		log = os.Stderr
	}
	s := &Server{
		in:        bufio.NewReader(in),
		out:       bufio.NewWriter(out),
		opts:      opts,
		log:       log,
		l:         linker.New(source.NewFileSet()),
		docs:      make(map[string]source.FileID),
		open:      make(map[string]bool),
		published: make(map[string]struct{}),
	}
	if err := compiler.LoadStd(s.l, opts.StdDir); err != nil {
		s.logf("std: %v, using the embedded prelude", err)
		if err := compiler.LoadStd(s.l, ""); err != nil {
			s.logf("embedded std: %v", err)
		}
	}
	return s
}

// Linker exposes the compilation state, mainly for tests.
func (s *Server) Linker() *linker.Linker { return s.l }

// Run serves requests until the connection closes or "exit" arrives.
func (s *Server) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			if sendErr := s.sendError(nil, codeParseError, "parse error"); sendErr != nil {
				return sendErr
			}
			continue
		}
		if msg.Method == "" {
			continue
		}
		if s.opts.Debug {
			s.logf("<- %s", msg.Method)
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	if s.shutdownRequested && msg.Method != "exit" && len(msg.ID) > 0 {
		return s.sendError(msg.ID, codeInvalidRequest, "server is shutting down")
	}
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		s.shutdownRequested = true
		s.clearPublishedDiagnostics()
		return s.sendResponse(msg.ID, nil)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/definition":
		return s.handleDefinition(msg)
	case "textDocument/references":
		return s.handleReferences(msg)
	case "textDocument/documentHighlight":
		return s.handleDocumentHighlight(msg)
	case "textDocument/rename":
		return s.handleRename(msg)
	case "textDocument/semanticTokens/full":
		return s.handleSemanticTokens(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "completionItem/resolve":
		return s.handleCompletionResolve(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
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
		s.workspaceRoot = root
		s.loadWorkspace(root)
	}

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    1,
				Save:      saveOptions{IncludeText: true},
			},
			HoverProvider:             true,
			DefinitionProvider:        true,
			ReferencesProvider:        true,
			DocumentHighlightProvider: true,
			RenameProvider:            true,
			CompletionProvider:        &completionOptions{ResolveProvider: true},
			SemanticTokensProvider: &semanticTokensOptions{
				Legend: semanticTokensLegend{TokenTypes: tokenTypes, TokenModifiers: tokenModifiers},
				Full:   true,
			},
		},
		ServerInfo: serverInfo{Name: "sus_lsp", Version: version.Version},
	}
	if err := s.sendResponse(msg.ID, result); err != nil {
		return err
	}
	if len(s.docs) > 0 {
		return s.recompile()
	}
	return nil
}

// loadWorkspace adds the sources of the project rooted at root: the files
// named by sus.toml, else every .sus file in root.
func (s *Server) loadWorkspace(root string) {
	var paths []string
	m, ok, err := project.LoadFrom(root)
	switch {
	case err != nil:
		s.logf("project: %v", err)
		return
	case ok:
		paths, err = m.SourceFiles()
	default:
		paths, err = compiler.FindSources(root)
		if errors.Is(err, compiler.ErrNoSources) {
			return
		}
	}
	if err != nil {
		s.logf("workspace: %v", err)
		return
	}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			s.logf("workspace: %v", err)
			continue
		}
		s.setFile(pathToURI(path), content)
	}
}

// setFile adds a file under uri or replaces its content.
func (s *Server) setFile(uri string, content []byte) {
	if id, ok := s.docs[uri]; ok {
		s.l.UpdateFile(id, content)
		return
	}
	s.docs[uri] = s.l.AddFile(uriToPath(uri), content, false)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("didOpen: %w", err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.open[uri] = true
	s.setFile(uri, []byte(params.TextDocument.Text))
	return s.recompile()
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("didChange: %w", err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" || len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	s.setFile(uri, []byte(last.Text))
	return s.recompile()
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("didSave: %w", err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" || params.Text == nil {
		return nil
	}
	s.setFile(uri, []byte(*params.Text))
	return s.recompile()
}

// handleDidClose keeps the file in the workspace when it exists on disk,
// with its saved content. Files that only lived in the editor are dropped.
func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("didClose: %w", err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	id, ok := s.docs[uri]
	if !ok {
		return nil
	}
	delete(s.open, uri)
	if content, err := os.ReadFile(uriToPath(uri)); err == nil {
		s.l.UpdateFile(id, content)
	} else {
		s.l.RemoveFile(id)
		delete(s.docs, uri)
		if _, had := s.published[uri]; had {
			delete(s.published, uri)
			if err := s.sendPublish(uri, nil); err != nil {
				return err
			}
		}
	}
	return s.recompile()
}

// recompile brings every global up to date, elaborates the modules without
// parameters and publishes the diagnostics of every file.
func (s *Server) recompile() error {
	flatten.FlattenAll(s.l)
	sema.TypecheckAll(s.l, sema.Options{})
	s.l.ClearInstances()
	instantiate.InstantiateAll(s.l)
	return s.publishAll()
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	if id == nil {
		id = json.RawMessage("null")
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	if !s.opts.Debug {
		return
	}
	fmt.Fprintf(s.log, "lsp: "+format+"\n", args...)
}
