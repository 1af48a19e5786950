package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sus/internal/compiler"
	"sus/internal/lexer"
	"sus/internal/source"
	"sus/internal/token"
)

// locate finds the file and byte offset of a request position.
func (s *Server) locate(p textDocumentPositionParams) (*source.File, uint32, bool) {
	id, ok := s.docs[canonicalURI(p.TextDocument.URI)]
	if !ok {
		return nil, 0, false
	}
	f := s.l.Files.Get(id)
	if f == nil {
		return nil, 0, false
	}
	return f, offsetForPositionInFile(f, p.Position), true
}

// nameAt returns the name location under the request position.
func (s *Server) nameAt(p textDocumentPositionParams) (*source.File, Location, bool) {
	f, off, ok := s.locate(p)
	if !ok {
		return nil, Location{}, false
	}
	loc, ok := At(Walk(s.l, f.ID), off)
	return f, loc, ok
}

func (s *Server) handleDefinition(msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	_, loc, ok := s.nameAt(params)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	span, ok := Definition(s.l, loc.Ref)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	target, ok := s.location(span)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	return s.sendResponse(msg.ID, target)
}

func (s *Server) handleReferences(msg *rpcMessage) error {
	var params referenceParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	_, loc, ok := s.nameAt(params.textDocumentPositionParams)
	if !ok {
		return s.sendResponse(msg.ID, []location{})
	}
	out := []location{}
	for _, occ := range Occurrences(s.l, loc.Ref) {
		if occ.IsDecl && !params.Context.IncludeDeclaration {
			continue
		}
		if l, ok := s.location(occ.Span); ok {
			out = append(out, l)
		}
	}
	return s.sendResponse(msg.ID, out)
}

func (s *Server) handleDocumentHighlight(msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	f, loc, ok := s.nameAt(params)
	if !ok {
		return s.sendResponse(msg.ID, []documentHighlight{})
	}
	out := []documentHighlight{}
	for _, occ := range Walk(s.l, f.ID) {
		if occ.Ref != loc.Ref {
			continue
		}
		kind := highlightRead
		if occ.IsDecl {
			kind = highlightWrite
		}
		out = append(out, documentHighlight{Range: rangeForSpan(f, occ.Span), Kind: kind})
	}
	return s.sendResponse(msg.ID, out)
}

func (s *Server) handleRename(msg *rpcMessage) error {
	var params renameParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	if err := validIdentifier(params.NewName); err != nil {
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	}
	_, loc, ok := s.nameAt(params.textDocumentPositionParams)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	edit, err := s.renameEdit(loc.Ref, params.NewName)
	if err != nil {
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	}
	return s.sendResponse(msg.ID, edit)
}

// renameEdit replaces every occurrence of ref with name in one edit.
func (s *Server) renameEdit(ref Referent, name string) (workspaceEdit, error) {
	edit := workspaceEdit{Changes: make(map[string][]textEdit)}
	for _, occ := range Occurrences(s.l, ref) {
		f := s.l.Files.Get(occ.Span.File)
		if f != nil && strings.HasPrefix(f.Path, compiler.EmbeddedStdPrefix) {
			return workspaceEdit{}, errors.New("cannot rename a name declared in the standard library")
		}
		loc, ok := s.location(occ.Span)
		if !ok {
			continue
		}
		edit.Changes[loc.URI] = append(edit.Changes[loc.URI], textEdit{Range: loc.Range, NewText: name})
	}
	return edit, nil
}

// validIdentifier accepts names the lexer reads as one identifier.
func validIdentifier(name string) error {
	if name == "" {
		return errors.New("the new name is empty")
	}
	if !lexer.IsIdentifier(name) {
		return fmt.Errorf("%q is not a valid identifier", name)
	}
	if _, ok := token.LookupKeyword(name); ok {
		return fmt.Errorf("%q is a keyword", name)
	}
	return nil
}
