package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// script collects client messages for one server run.
type script struct {
	t      *testing.T
	in     bytes.Buffer
	nextID int
}

func (s *script) write(msg map[string]any) {
	s.t.Helper()
	msg["jsonrpc"] = "2.0"
	payload, err := json.Marshal(msg)
	if err != nil {
		s.t.Fatalf("encode: %v", err)
	}
	if err := writeMessage(&s.in, payload); err != nil {
		s.t.Fatalf("write: %v", err)
	}
}

func (s *script) request(method string, params any) int {
	s.nextID++
	s.write(map[string]any{"id": s.nextID, "method": method, "params": params})
	return s.nextID
}

func (s *script) notify(method string, params any) {
	s.write(map[string]any{"method": method, "params": params})
}

type transcript struct {
	responses map[int]rpcMessage
	published []publishDiagnosticsParams
}

func (s *script) run(opts Options) (transcript, error) {
	s.t.Helper()
	var out bytes.Buffer
	err := NewServer(&s.in, &out, opts).Run(context.Background())
	return decodeTranscript(s.t, &out), err
}

func decodeTranscript(t *testing.T, r io.Reader) transcript {
	t.Helper()
	tr := transcript{responses: make(map[int]rpcMessage)}
	br := bufio.NewReader(r)
	for {
		payload, err := readMessage(br)
		if errors.Is(err, io.EOF) {
			return tr
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Method == "textDocument/publishDiagnostics" {
			var p publishDiagnosticsParams
			if err := json.Unmarshal(msg.Params, &p); err != nil {
				t.Fatalf("decode publish: %v", err)
			}
			tr.published = append(tr.published, p)
			continue
		}
		id, err := strconv.Atoi(string(msg.ID))
		if err != nil {
			t.Fatalf("response id %s: %v", msg.ID, err)
		}
		tr.responses[id] = msg
	}
}

func (tr transcript) result(t *testing.T, id int, v any) {
	t.Helper()
	msg, ok := tr.responses[id]
	if !ok {
		t.Fatalf("no response to request %d", id)
	}
	if msg.Error != nil {
		t.Fatalf("request %d failed: %+v", id, msg.Error)
	}
	if err := json.Unmarshal(msg.Result, v); err != nil {
		t.Fatalf("decode result %d: %v", id, err)
	}
}

// positionOf returns the position of the nth occurrence of needle plus
// skip bytes. src must be ASCII.
func positionOf(t *testing.T, src, needle string, nth, skip int) position {
	t.Helper()
	off := int(offsetOf(t, src, needle, nth, skip))
	line := strings.Count(src[:off], "\n")
	col := off - (strings.LastIndex(src[:off], "\n") + 1)
	return position{Line: line, Character: col}
}

func openWorkspace(t *testing.T, src string) (*script, string) {
	t.Helper()
	dir := t.TempDir()
	uri := pathToURI(filepath.Join(dir, "main.sus"))
	s := &script{t: t}
	s.request("initialize", initializeParams{RootURI: pathToURI(dir)})
	s.notify("initialized", struct{}{})
	s.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "sus", Version: 1, Text: src},
	})
	return s, uri
}

func (s *script) at(uri string, pos position) textDocumentPositionParams {
	return textDocumentPositionParams{TextDocument: textDocumentIdentifier{URI: uri}, Position: pos}
}

func (s *script) finish() {
	s.request("shutdown", nil)
	s.notify("exit", nil)
}

func TestInitializeCapabilities(t *testing.T) {
	s := &script{t: t}
	id := s.request("initialize", initializeParams{})
	s.finish()
	tr, err := s.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}
	var res initializeResult
	tr.result(t, id, &res)
	c := res.Capabilities
	if c.TextDocumentSync.Change != 1 || !c.HoverProvider || !c.DefinitionProvider || !c.ReferencesProvider ||
		!c.DocumentHighlightProvider || !c.RenameProvider {
		t.Fatalf("capabilities: %+v", c)
	}
	if c.CompletionProvider == nil || !c.CompletionProvider.ResolveProvider {
		t.Fatalf("completion: %+v", c.CompletionProvider)
	}
	if c.SemanticTokensProvider == nil || !c.SemanticTokensProvider.Full || len(c.SemanticTokensProvider.Legend.TokenTypes) != len(tokenTypes) {
		t.Fatalf("semantic tokens: %+v", c.SemanticTokensProvider)
	}
}

func TestExitWithoutShutdown(t *testing.T) {
	s := &script{t: t}
	s.notify("exit", nil)
	if _, err := s.run(Options{}); !errors.Is(err, ErrExitWithoutShutdown) {
		t.Fatalf("run: %v", err)
	}
}

func TestUnknownMethod(t *testing.T) {
	s := &script{t: t}
	id := s.request("textDocument/foldingRange", nil)
	tr, err := s.run(Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if msg := tr.responses[id]; msg.Error == nil || msg.Error.Code != codeMethodNotFound {
		t.Fatalf("response: %+v", msg)
	}
}

func TestPublishDiagnostics(t *testing.T) {
	broken := "module m {\n\toutput int#(0, 3) b\n\tb = nope\n}\n"
	fixed := "module m {\n\tinput int#(0, 3) a\n\toutput int#(0, 3) b\n\tb = a\n}\n"
	s, uri := openWorkspace(t, broken)
	s.notify("textDocument/didChange", didChangeTextDocumentParams{
		TextDocument:   versionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{Text: fixed}},
	})
	s.finish()
	tr, err := s.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}
	if len(tr.published) != 2 {
		t.Fatalf("published %d times: %+v", len(tr.published), tr.published)
	}
	first := tr.published[0]
	if first.URI != uri || len(first.Diagnostics) == 0 {
		t.Fatalf("first publish: %+v", first)
	}
	found := false
	for _, d := range first.Diagnostics {
		if strings.HasPrefix(d.Code, "NAM") {
			found = true
			if d.Severity != 1 || d.Range.Start.Line != 2 || d.Range.Start.Character != len("\tb = ") || d.Source != "sus" {
				t.Fatalf("diagnostic: %+v", d)
			}
		}
	}
	if !found {
		t.Fatalf("no name error in %+v", first.Diagnostics)
	}
	if got := tr.published[1]; got.URI != uri || len(got.Diagnostics) != 0 {
		t.Fatalf("second publish: %+v", got)
	}
}

func TestNavigation(t *testing.T) {
	s, uri := openWorkspace(t, walkSrc)
	fieldO := positionOf(t, walkSrc, "step.o", 0, len("step."))
	stepUse := positionOf(t, walkSrc, "step.i", 0, 0)

	def := s.request("textDocument/definition", s.at(uri, fieldO))
	refs := s.request("textDocument/references", referenceParams{textDocumentPositionParams: s.at(uri, fieldO)})
	refsDecl := s.request("textDocument/references", referenceParams{
		textDocumentPositionParams: s.at(uri, fieldO),
		Context:                    referenceContext{IncludeDeclaration: true},
	})
	highlight := s.request("textDocument/documentHighlight", s.at(uri, stepUse))
	s.finish()
	tr, err := s.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}

	var loc location
	tr.result(t, def, &loc)
	wantDecl := positionOf(t, walkSrc, "int#(0, 8) o", 0, len("int#(0, 8) "))
	if loc.URI != uri || loc.Range.Start != wantDecl {
		t.Fatalf("definition: %+v, want %+v", loc, wantDecl)
	}

	var without, with []location
	tr.result(t, refs, &without)
	tr.result(t, refsDecl, &with)
	if len(without) != 2 || len(with) != 3 {
		t.Fatalf("references: %d without declaration, %d with", len(without), len(with))
	}

	var hl []documentHighlight
	tr.result(t, highlight, &hl)
	writes := 0
	for _, h := range hl {
		if h.Kind == highlightWrite {
			writes++
		}
	}
	if len(hl) != 3 || writes != 1 {
		t.Fatalf("highlights: %+v", hl)
	}
}

func TestHover(t *testing.T) {
	s, uri := openWorkspace(t, walkSrc)
	module := s.request("textDocument/hover", s.at(uri, positionOf(t, walkSrc, "inc step", 0, 1)))
	port := s.request("textDocument/hover", s.at(uri, positionOf(t, walkSrc, "step.o", 0, len("step."))))
	nothing := s.request("textDocument/hover", s.at(uri, position{Line: 0, Character: 0}))
	s.finish()
	tr, err := s.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}

	var h hover
	tr.result(t, module, &h)
	if !strings.Contains(h.Contents.Value, "module inc") || !strings.Contains(h.Contents.Value, "Adds one.") {
		t.Fatalf("module hover:\n%s", h.Contents.Value)
	}
	if h.Range == nil || h.Range.Start != positionOf(t, walkSrc, "inc step", 0, 0) {
		t.Fatalf("module hover range: %+v", h.Range)
	}

	tr.result(t, port, &h)
	for _, want := range []string{"output", "port of inc", "`inc`"} {
		if !strings.Contains(h.Contents.Value, want) {
			t.Fatalf("port hover lacks %q:\n%s", want, h.Contents.Value)
		}
	}

	if msg := tr.responses[nothing]; string(msg.Result) != "null" {
		t.Fatalf("hover on a comment: %s", msg.Result)
	}
}

func TestRename(t *testing.T) {
	s, uri := openWorkspace(t, walkSrc)
	at := s.at(uri, positionOf(t, walkSrc, "step.i", 0, 0))
	ok := s.request("textDocument/rename", renameParams{textDocumentPositionParams: at, NewName: "stage"})
	keyword := s.request("textDocument/rename", renameParams{textDocumentPositionParams: at, NewName: "module"})
	invalid := s.request("textDocument/rename", renameParams{textDocumentPositionParams: at, NewName: "9lives"})
	s.finish()
	tr, err := s.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}

	var edit workspaceEdit
	tr.result(t, ok, &edit)
	edits := edit.Changes[uri]
	if len(edit.Changes) != 1 || len(edits) != 3 {
		t.Fatalf("edit: %+v", edit)
	}
	for _, e := range edits {
		if e.NewText != "stage" || e.Range.End.Character-e.Range.Start.Character != len("step") {
			t.Fatalf("text edit: %+v", e)
		}
	}
	for _, id := range []int{keyword, invalid} {
		if msg := tr.responses[id]; msg.Error == nil || msg.Error.Code != codeRequestFailed {
			t.Fatalf("rename %d: %+v", id, msg)
		}
	}
}

func TestSemanticTokens(t *testing.T) {
	s, uri := openWorkspace(t, walkSrc)
	id := s.request("textDocument/semanticTokens/full", semanticTokensParams{TextDocument: textDocumentIdentifier{URI: uri}})
	s.finish()
	tr, err := s.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}
	var toks semanticTokens
	tr.result(t, id, &toks)
	if len(toks.Data) == 0 || len(toks.Data)%5 != 0 {
		t.Fatalf("token data length %d", len(toks.Data))
	}
	// The first name is the module declaration "inc" on line 1.
	first := toks.Data[:5]
	if first[0] != 1 || first[1] != uint32(len("module ")) || first[2] != 3 || first[3] != tokClass || first[4]&modDeclaration == 0 {
		t.Fatalf("first token %v", first)
	}
	line := uint32(0)
	for i := 0; i < len(toks.Data); i += 5 {
		line += toks.Data[i]
		if toks.Data[i+3] >= uint32(len(tokenTypes)) {
			t.Fatalf("token %d has unknown type %d", i/5, toks.Data[i+3])
		}
	}
	if want := uint32(strings.Count(walkSrc, "\n") - 2); line != want {
		t.Fatalf("last token on line %d, want %d", line, want)
	}
}

func TestCompletion(t *testing.T) {
	s, uri := openWorkspace(t, walkSrc)
	id := s.request("textDocument/completion", s.at(uri, positionOf(t, walkSrc, "y = step.o", 0, 0)))
	s.finish()
	tr, err := s.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}
	var list completionList
	tr.result(t, id, &list)
	byLabel := make(map[string]completionItem)
	for _, item := range list.Items {
		byLabel[item.Label] = item
	}
	for _, want := range []string{"step", "x", "y", "inc", "top", "int", "module", "reg"} {
		if _, ok := byLabel[want]; !ok {
			t.Fatalf("completion lacks %q", want)
		}
	}
	if _, ok := byLabel["i"]; ok {
		t.Fatal("completion offers a port of another module")
	}

	s2, _ := openWorkspace(t, walkSrc)
	resolve := s2.request("completionItem/resolve", byLabel["inc"])
	s2.finish()
	tr2, err := s2.run(Options{})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("run: %v", err)
	}
	var item completionItem
	tr2.result(t, resolve, &item)
	if item.Documentation == nil || item.Documentation.Value != "Adds one." || !strings.HasPrefix(item.Detail, "module inc") {
		t.Fatalf("resolved item: %+v", item)
	}
}

func TestServeTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- Serve(context.Background(), ln, Options{}) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	s := &script{t: t}
	id := s.request("initialize", initializeParams{})
	s.finish()
	if _, err := conn.Write(s.in.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := <-done; !errors.Is(err, ErrExit) {
		t.Fatalf("serve: %v", err)
	}
	tr := decodeTranscript(t, conn)
	var res initializeResult
	tr.result(t, id, &res)
	if res.ServerInfo.Name != "sus_lsp" {
		t.Fatalf("server info %+v", res.ServerInfo)
	}
}

func TestListenRejectsBadPort(t *testing.T) {
	for _, port := range []int{0, -1, 65536} {
		if _, err := Listen(port); err == nil {
			t.Fatalf("port %d accepted", port)
		}
	}
}
