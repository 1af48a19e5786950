package cst

import (
	"sus/internal/diag"
	"sus/internal/token"
)

func (p *parser) parseBlock() NodeID {
	start := p.cur().Span
	if !p.expect(token.LBrace, "'{'") {
		return p.errorNode(FieldNone)
	}
	saved := p.nest
	p.nest = 0
	var items []NodeID
	for {
		p.skipNewlines()
		if p.at(token.RBrace) || p.at(token.EOF) {
			break
		}
		before := p.pos
		items = append(items, p.with(FieldItem, p.parseStatement()))
		switch p.toks[p.pos].Kind {
		case token.Newline, token.Semicolon, token.RBrace, token.EOF:
		default:
			t := p.toks[p.pos]
			p.errorf(diag.SynExpectNewline, t.Span, "expected end of statement, found '%s'", describe(t))
			items = append(items, p.errorNode(FieldItem))
		}
		if p.pos == before {
			p.bump()
		}
	}
	p.expect(token.RBrace, "'}'")
	p.nest = saved
	return p.node(KindBlock, start, items...)
}

func (p *parser) parseStatement() NodeID {
	switch p.cur().Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwIf, token.KwWhen:
		return p.parseIf()
	case token.KwFor:
		return p.parseFor()
	case token.KwDomain:
		start := p.bump().Span
		name := p.ident(FieldName)
		return p.node(KindDomainStatement, start, name)
	case token.KwInterface:
		return p.parseInterface()
	}
	return p.parseDeclAssign()
}

// decl_assign_statement := assign_left_side ['=' expression]
func (p *parser) parseDeclAssign() NodeID {
	first := p.cur()
	start := first.Span
	left := p.with(FieldAssignLeft, p.parseAssignLeftSide())
	var value NodeID
	if p.eat(token.Assign) {
		value = p.with(FieldAssignValue, p.parseExpr())
	}
	id := p.node(KindDeclAssignStatement, start, left, value)
	p.tree.nodes[id].Doc = first.Doc()
	return id
}

func (p *parser) parseAssignLeftSide() NodeID {
	start := p.cur().Span
	var items []NodeID
	for {
		items = append(items, p.with(FieldItem, p.parseAssignTo()))
		if !p.eat(token.Comma) {
			break
		}
	}
	return p.node(KindAssignLeftSide, start, items...)
}

func (p *parser) parseAssignTo() NodeID {
	first := p.cur()
	start := first.Span
	var mods NodeID
	if p.at(token.KwReg) || p.at(token.KwInitial) {
		ms := p.cur().Span
		var kws []NodeID
		for p.at(token.KwReg) || p.at(token.KwInitial) {
			kws = append(kws, p.with(FieldItem, p.leaf(KindKeyword, p.bump())))
		}
		mods = p.with(FieldWriteModifiers, p.node(KindWriteModifiers, ms, kws...))
	}
	target := p.with(FieldExprOrDecl, p.parseDeclOrExpr())
	id := p.node(KindAssignTo, start, mods, target)
	p.tree.nodes[id].Doc = first.Doc()
	return id
}

// parseDeclOrExpr parses an expression and turns it into the type of a
// declaration when an identifier follows.
func (p *parser) parseDeclOrExpr() NodeID {
	switch p.cur().Kind {
	case token.KwInput, token.KwOutput, token.KwState, token.KwGen:
		return p.parseDeclaration()
	}
	first := p.cur()
	e := p.parseExpr()
	if p.at(token.Ident) {
		return p.finishDeclaration(first.Doc(), nil, p.exprToType(e))
	}
	return e
}

// declaration := ['input'|'output'] ['state'|'gen'] type identifier [latency_specifier]
func (p *parser) parseDeclaration() NodeID {
	first := p.cur()
	var mods []NodeID
	if p.at(token.KwInput) || p.at(token.KwOutput) {
		mods = append(mods, p.with(FieldIOPortModifiers, p.leaf(KindKeyword, p.bump())))
	}
	if p.at(token.KwState) || p.at(token.KwGen) {
		mods = append(mods, p.with(FieldDeclarationModifiers, p.leaf(KindKeyword, p.bump())))
	}
	return p.finishDeclaration(first.Doc(), mods, p.parseType())
}

func (p *parser) finishDeclaration(doc string, mods []NodeID, typ NodeID) NodeID {
	start := p.tree.Span(typ)
	if len(mods) > 0 {
		start = p.tree.Span(mods[0])
	}
	children := append(mods, p.with(FieldType, typ), p.ident(FieldName))
	if p.at(token.Tick) {
		ls := p.bump().Span
		content := p.with(FieldContent, p.parseExpr())
		children = append(children, p.with(FieldLatencySpecifier, p.node(KindLatencySpecifier, ls, content)))
	}
	id := p.node(KindDeclaration, start, children...)
	p.tree.nodes[id].Doc = doc
	return id
}

// exprToType reinterprets an already parsed expression as a type.
func (p *parser) exprToType(e NodeID) NodeID {
	switch p.tree.Kind(e) {
	case KindTemplateGlobal:
		return e
	case KindArrayOp:
		n := &p.tree.nodes[e]
		n.Kind = KindArrayType
		arr := p.tree.Field(e, FieldArr)
		p.exprToType(arr)
		idx := p.tree.Field(e, FieldArrIdx)
		if p.tree.Field(idx, FieldContent) == 0 {
			p.errorf(diag.SynExpectType, p.tree.Span(idx), "array types take a size, not a slice")
		}
		return e
	case KindError:
		return e
	}
	p.errorf(diag.SynExpectType, p.tree.Span(e), "expected a type, found %s", p.tree.Kind(e))
	n := &p.tree.nodes[e]
	n.Kind = KindError
	return e
}

// type := template_global {'[' expression ']'}
func (p *parser) parseType() NodeID {
	start := p.cur().Span
	if !p.at(token.Ident) {
		t := p.cur()
		p.errorf(diag.SynExpectType, t.Span, "expected a type, found '%s'", describe(t))
		return p.errorNode(FieldNone)
	}
	typ := p.parseTemplateGlobal()
	for p.at(token.LBracket) {
		idx := p.with(FieldArrIdx, p.parseArrayBracket())
		typ = p.node(KindArrayType, start, p.with(FieldArr, typ), idx)
	}
	return typ
}

func (p *parser) parseIf() NodeID {
	kw := p.bump()
	start := kw.Span
	children := []NodeID{p.with(FieldIfKeyword, p.leaf(KindKeyword, kw))}
	children = append(children, p.with(FieldCondition, p.parseExpr()))
	children = append(children, p.with(FieldThenBlock, p.parseBlock()))

	// allow "}\nelse"
	save := p.pos
	p.skipNewlines()
	if p.eat(token.KwElse) {
		if p.at(token.KwIf) || p.at(token.KwWhen) {
			children = append(children, p.with(FieldElseBlock, p.parseIf()))
		} else {
			children = append(children, p.with(FieldElseBlock, p.parseBlock()))
		}
	} else {
		p.pos = save
	}
	return p.node(KindIfStatement, start, children...)
}

// for_statement := 'for' declaration 'in' expression '..' expression block
func (p *parser) parseFor() NodeID {
	start := p.bump().Span
	var decl NodeID
	if p.at(token.Ident) && p.peekAt(1).Kind == token.KwIn {
		// "for i in": implicitly a generative int
		name := p.ident(FieldName)
		decl = p.node(KindDeclaration, p.tree.Span(name), name)
	} else {
		decl = p.parseDeclaration()
	}
	decl = p.with(FieldForDecl, decl)
	p.expect(token.KwIn, "'in'")
	from := p.with(FieldFrom, p.parseExpr())
	p.expect(token.DotDot, "'..'")
	to := p.with(FieldTo, p.parseExpr())
	block := p.with(FieldBlock, p.parseBlock())
	return p.node(KindForStatement, start, decl, from, to, block)
}

// interface_statement := 'interface' identifier [':' [declaration_list] ['->' declaration_list]]
func (p *parser) parseInterface() NodeID {
	first := p.cur()
	start := p.bump().Span
	name := p.ident(FieldName)
	var ports NodeID
	if p.at(token.Colon) {
		ps := p.bump().Span
		var ins, outs NodeID
		if !p.at(token.Arrow) && !p.at(token.Newline) && !p.at(token.RBrace) {
			ins = p.with(FieldInputs, p.parseDeclarationList())
		}
		if p.eat(token.Arrow) {
			outs = p.with(FieldOutputs, p.parseDeclarationList())
		}
		ports = p.with(FieldInterfacePorts, p.node(KindInterfacePorts, ps, ins, outs))
	}
	id := p.node(KindInterfaceStatement, start, name, ports)
	p.tree.nodes[id].Doc = first.Doc()
	return id
}

func (p *parser) parseDeclarationList() NodeID {
	start := p.cur().Span
	var items []NodeID
	for {
		items = append(items, p.with(FieldItem, p.parseDeclaration()))
		if !p.eat(token.Comma) {
			break
		}
	}
	return p.node(KindDeclarationList, start, items...)
}
