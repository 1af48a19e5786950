package lsp

import (
	"slices"
	"strings"

	"sus/internal/compiler"
	"sus/internal/diag"
	"sus/internal/instantiate"
	"sus/internal/source"
)

// publishAll sends the diagnostics of every workspace file, including files
// whose list became empty.
func (s *Server) publishAll() error {
	byFile := s.instanceDiagnostics()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	slices.Sort(uris)
	for _, uri := range uris {
		id := s.docs[uri]
		bag := s.l.Diagnostics(id)
		for _, d := range byFile[id] {
			bag.Add(d)
		}
		bag.Sort()
		bag.Dedup()
		list := s.convertDiagnostics(bag.Items())
		if len(list) == 0 {
			if _, had := s.published[uri]; !had {
				continue
			}
			delete(s.published, uri)
		} else {
			s.published[uri] = struct{}{}
		}
		if err := s.sendPublish(uri, list); err != nil {
			return err
		}
	}
	return nil
}

// instanceDiagnostics groups the errors of every cached instance by file.
func (s *Server) instanceDiagnostics() map[source.FileID][]diag.Diagnostic {
	out := make(map[source.FileID][]diag.Diagnostic)
	for _, m := range s.l.Modules.All() {
		for _, inst := range instantiate.Instances(*m) {
			for _, d := range inst.Errors.Items() {
				out[d.Primary.File] = append(out[d.Primary.File], d)
			}
		}
	}
	return out
}

func (s *Server) convertDiagnostics(items []diag.Diagnostic) []lspDiagnostic {
	if len(items) > s.opts.MaxDiagnostics {
		items = items[:s.opts.MaxDiagnostics]
	}
	out := make([]lspDiagnostic, 0, len(items))
	for _, d := range items {
		f := s.l.Files.Get(d.Primary.File)
		if f == nil {
			continue
		}
		ld := lspDiagnostic{
			Range:    rangeForSpan(f, d.Primary),
			Severity: lspSeverity(d.Severity),
			Code:     d.Code.ID(),
			Source:   "sus",
			Message:  d.Message,
		}
		for _, n := range d.Notes {
			loc, ok := s.location(n.Span)
			if !ok {
				continue
			}
			ld.RelatedInformation = append(ld.RelatedInformation, diagnosticRelatedInformation{Location: loc, Message: n.Msg})
		}
		out = append(out, ld)
	}
	return out
}

func lspSeverity(sev diag.Severity) int {
	switch sev {
	case diag.SevError:
		return 1
	case diag.SevWarning:
		return 2
	default:
		return 3
	}
}

// location resolves a span for the client. Spans in the embedded prelude
// have no file the client could open.
func (s *Server) location(span source.Span) (location, bool) {
	f := s.l.Files.Get(span.File)
	if f == nil || strings.HasPrefix(f.Path, compiler.EmbeddedStdPrefix) {
		return location{}, false
	}
	if uri, ok := s.uriOf(span.File); ok {
		return location{URI: uri, Range: rangeForSpan(f, span)}, true
	}
	return locationForSpan(s.l.Files, span)
}

// uriOf returns the URI a workspace file was registered under.
func (s *Server) uriOf(id source.FileID) (string, bool) {
	for uri, fid := range s.docs {
		if fid == id {
			return uri, true
		}
	}
	return "", false
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params": publishDiagnosticsParams{
			URI:         uri,
			Diagnostics: list,
		},
	}
	return s.send(msg)
}

func (s *Server) clearPublishedDiagnostics() {
	for uri := range s.published {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
		delete(s.published, uri)
	}
}
