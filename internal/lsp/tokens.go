package lsp

import (
	"encoding/json"

	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/source"
)

var tokenTypes = []string{
	"type",
	"class",
	"enumMember",
	"typeParameter",
	"variable",
	"property",
	"interface",
	"parameter",
}

var tokenModifiers = []string{"declaration", "readonly"}

const (
	tokType = iota
	tokClass
	tokEnumMember
	tokTypeParameter
	tokVariable
	tokProperty
	tokInterface
	tokParameter
)

const (
	modDeclaration = 1 << iota
	modReadonly
)

func (s *Server) handleSemanticTokens(msg *rpcMessage) error {
	var params semanticTokensParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	id, ok := s.docs[canonicalURI(params.TextDocument.URI)]
	if !ok {
		return s.sendResponse(msg.ID, semanticTokens{Data: []uint32{}})
	}
	return s.sendResponse(msg.ID, semanticTokens{Data: encodeTokens(s.l, id)})
}

// encodeTokens produces the relative five-integer encoding of every name
// in file. Names that span lines are left out.
func encodeTokens(l *linker.Linker, file source.FileID) []uint32 {
	f := l.Files.Get(file)
	data := []uint32{}
	if f == nil {
		return data
	}
	var prevLine, prevChar int
	var prevEnd uint32
	for _, loc := range Walk(l, file) {
		if loc.Span.Start < prevEnd {
			continue
		}
		typ, mods, ok := tokenOf(l, loc)
		if !ok {
			continue
		}
		r := rangeForSpan(f, loc.Span)
		if r.Start.Line != r.End.Line || r.End.Character <= r.Start.Character {
			continue
		}
		deltaChar := r.Start.Character
		if r.Start.Line == prevLine {
			deltaChar -= prevChar
		}
		data = append(data,
			safeUint32(r.Start.Line-prevLine),
			safeUint32(deltaChar),
			safeUint32(r.End.Character-r.Start.Character),
			safeUint32(typ),
			safeUint32(mods),
		)
		prevLine, prevChar, prevEnd = r.Start.Line, r.Start.Character, loc.Span.End
	}
	return data
}

func tokenOf(l *linker.Linker, loc Location) (typ, mods int, ok bool) {
	if loc.IsDecl {
		mods |= modDeclaration
	}
	ref := loc.Ref
	switch ref.Kind {
	case RefGlobal:
		switch ref.Global.Kind {
		case ir.GlobalModule:
			return tokClass, mods, true
		case ir.GlobalType:
			return tokType, mods, true
		case ir.GlobalConstant:
			return tokEnumMember, mods | modReadonly, true
		}
	case RefParam:
		li := l.LinkInfo(ref.Global)
		if li == nil {
			return 0, 0, false
		}
		if p := li.Parameters.Get(ref.Param); p != nil && p.Kind == ir.ParamType {
			return tokTypeParameter, mods, true
		}
		return tokParameter, mods | modReadonly, true
	case RefLocal:
		li := l.LinkInfo(ref.Global)
		if li == nil {
			return 0, 0, false
		}
		instr := li.Instructions.Get(ref.Local)
		if instr == nil {
			return 0, 0, false
		}
		if d := instr.Decl(); d != nil && d.IsGenerative() {
			mods |= modReadonly
		}
		return tokVariable, mods, true
	case RefPort:
		return tokProperty, mods, true
	case RefInterface:
		return tokInterface, mods, true
	}
	return 0, 0, false
}
