package lsp

import (
	"encoding/json"
	"slices"
	"strings"

	"sus/internal/ir"
	"sus/internal/token"
)

// completionData travels with an item so resolve can find its documentation.
type completionData struct {
	Global ir.GlobalUUID `json:"global"`
	Local  ir.FlatID     `json:"local,omitempty"`
	Param  ir.TemplateID `json:"param,omitempty"`
}

func (s *Server) handleCompletion(msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	list := completionList{Items: []completionItem{}}
	f, off, ok := s.locate(params)
	if !ok {
		return s.sendResponse(msg.ID, list)
	}
	seen := make(map[string]bool)
	add := func(item completionItem) {
		if seen[item.Label] {
			return
		}
		seen[item.Label] = true
		list.Items = append(list.Items, item)
	}
	if g, ok := s.l.GlobalAt(f.ID, off); ok {
		for _, item := range s.localItems(g, off) {
			add(item)
		}
	}
	for _, item := range s.globalItems() {
		add(item)
	}
	keywords := token.Keywords()
	slices.Sort(keywords)
	for _, kw := range keywords {
		add(completionItem{Label: kw, Kind: completionKeyword})
	}
	return s.sendResponse(msg.ID, list)
}

// localItems lists the parameters of g and the names it declares before off.
func (s *Server) localItems(g ir.GlobalUUID, off uint32) []completionItem {
	li := s.l.LinkInfo(g)
	var out []completionItem
	for id, p := range li.Parameters.All() {
		kind := completionConstant
		if p.Kind == ir.ParamType {
			kind = completionTypeParameter
		}
		out = append(out, completionItem{Label: p.Name, Kind: kind, Data: encodeData(completionData{Global: g, Param: id})})
	}
	for id, instr := range li.Instructions.All() {
		if instr.Span.Start > off {
			continue
		}
		switch d := instr.Data.(type) {
		case *ir.Declaration:
			if d.Name == "" || d.Kind == ir.DeclTemplateParam || d.Kind == ir.DeclConstantOutput {
				continue
			}
			kind := completionVariable
			if d.Kind == ir.DeclPort {
				kind = completionProperty
			}
			out = append(out, completionItem{Label: d.Name, Kind: kind, Data: encodeData(completionData{Global: g, Local: id})})
		case *ir.SubModule:
			if d.Name != "" {
				out = append(out, completionItem{Label: d.Name, Kind: completionClass, Data: encodeData(completionData{Global: g, Local: id})})
			}
		case *ir.InterfaceDecl:
			out = append(out, completionItem{Label: d.Name, Kind: completionInterface})
		}
	}
	return out
}

// globalItems lists every uniquely named global.
func (s *Server) globalItems() []completionItem {
	var out []completionItem
	s.l.Names(func(name string, g ir.GlobalUUID) bool {
		kind := completionFunction
		switch g.Kind {
		case ir.GlobalType:
			kind = completionStruct
		case ir.GlobalConstant:
			kind = completionConstant
		}
		out = append(out, completionItem{Label: name, Kind: kind, Detail: g.Kind.String(), Data: encodeData(completionData{Global: g})})
		return true
	})
	slices.SortFunc(out, func(a, b completionItem) int { return strings.Compare(a.Label, b.Label) })
	return out
}

func encodeData(d completionData) json.RawMessage {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	return payload
}

func (s *Server) handleCompletionResolve(msg *rpcMessage) error {
	var item completionItem
	if err := json.Unmarshal(msg.Params, &item); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	var data completionData
	if len(item.Data) == 0 || json.Unmarshal(item.Data, &data) != nil {
		return s.sendResponse(msg.ID, item)
	}
	ref := Referent{Kind: RefGlobal, Global: data.Global}
	switch {
	case data.Param.IsValid():
		ref = Referent{Kind: RefParam, Global: data.Global, Param: data.Param}
	case data.Local.IsValid():
		ref = s.localReferent(data.Global, data.Local)
	}
	sig, doc := s.signature(ref)
	if sig != "" {
		item.Detail = sig
	}
	if doc != "" {
		item.Documentation = &markupContent{Kind: "markdown", Value: doc}
	}
	return s.sendResponse(msg.ID, item)
}

// localReferent maps an instruction of g to the referent the walker uses for
// it.
func (s *Server) localReferent(g ir.GlobalUUID, id ir.FlatID) Referent {
	ref := Referent{Kind: RefLocal, Global: g, Local: id}
	li := s.l.LinkInfo(g)
	if li == nil {
		return ref
	}
	if instr := li.Instructions.Get(id); instr != nil {
		if d := instr.Decl(); d != nil && d.Kind == ir.DeclPort {
			return Referent{Kind: RefPort, Global: g, Port: d.Port}
		}
	}
	return ref
}
