package cst

import (
	"sus/internal/diag"
	"sus/internal/token"
)

func (p *parser) parseSourceFile() NodeID {
	start := p.toks[0].Span
	start.Start, start.End = 0, 0
	var items []NodeID
	for {
		p.skipNewlines()
		if p.at(token.EOF) {
			break
		}
		before := p.pos
		items = append(items, p.with(FieldItem, p.parseGlobal()))
		if p.pos == before {
			// no progress: drop the offending token
			p.bump()
		}
	}
	root := p.node(KindSourceFile, start, items...)
	p.tree.nodes[root].Span.End = p.toks[len(p.toks)-1].Span.End
	return root
}

func (p *parser) parseGlobal() NodeID {
	first := p.cur()
	start := first.Span
	var children []NodeID

	if p.at(token.KwExtern) || p.at(token.KwBuiltin) {
		children = append(children, p.with(FieldExternMarker, p.leaf(KindKeyword, p.bump())))
	}
	switch p.cur().Kind {
	case token.KwModule, token.KwStruct:
		children = append(children, p.with(FieldObjectType, p.leaf(KindKeyword, p.bump())))
	case token.KwConst:
		children = append(children, p.with(FieldObjectType, p.leaf(KindKeyword, p.bump())))
		children = append(children, p.with(FieldConstType, p.parseType()))
	default:
		t := p.cur()
		p.errorf(diag.SynUnexpectedToken, t.Span, "expected 'module', 'struct' or 'const', found '%s'", describe(t))
		return p.with(FieldItem, p.skipGlobal())
	}
	children = append(children, p.ident(FieldName))
	if p.at(token.HashParen) {
		children = append(children, p.with(FieldTemplateDeclarationArguments, p.parseTemplateDeclarationArguments()))
	}
	p.skipNewlines()
	children = append(children, p.with(FieldBlock, p.parseBlock()))
	id := p.node(KindGlobal, start, children...)
	p.tree.nodes[id].Doc = first.Doc()
	return id
}

// skipGlobal recovers to the next line that starts a global.
func (p *parser) skipGlobal() NodeID {
	start := p.cur().Span
	depth := 0
	for !p.at(token.EOF) {
		t := p.toks[p.pos]
		if depth == 0 && p.pos > 0 && p.toks[p.pos-1].Kind == token.Newline {
			switch t.Kind {
			case token.KwModule, token.KwStruct, token.KwConst, token.KwExtern, token.KwBuiltin:
				return p.node(KindError, start)
			}
		}
		switch t.Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			if depth > 0 {
				depth--
			}
		}
		p.pos++
		p.last = t
	}
	return p.node(KindError, start)
}

// #( type T, int N, ... )
func (p *parser) parseTemplateDeclarationArguments() NodeID {
	start := p.bump().Span
	p.nest++
	var items []NodeID
	for !p.at(token.RParen) && !p.at(token.EOF) {
		if p.at(token.KwType) {
			s := p.bump().Span
			name := p.ident(FieldName)
			items = append(items, p.with(FieldItem, p.node(KindTemplateDeclarationType, s, name)))
		} else {
			items = append(items, p.with(FieldItem, p.parseDeclaration()))
		}
		if !p.eat(token.Comma) {
			break
		}
	}
	if !p.at(token.RParen) && !p.at(token.EOF) {
		items = append(items, p.errorNode(FieldItem))
	}
	p.expect(token.RParen, "')'")
	p.nest--
	return p.node(KindTemplateDeclarationArguments, start, items...)
}
