package cst

import (
	"sus/internal/diag"
	"sus/internal/token"
)

// binary precedence, low to high
func binaryPrec(k token.Kind) int {
	switch k {
	case token.EqEq, token.BangEq, token.Lt, token.LtEq, token.Gt, token.GtEq:
		return 1
	case token.Caret:
		return 2
	case token.Pipe:
		return 3
	case token.Amp:
		return 4
	case token.Shl, token.Shr:
		return 5
	case token.Plus, token.Minus:
		return 6
	case token.Star, token.Slash, token.Percent:
		return 7
	}
	return 0
}

func isUnaryOp(k token.Kind) bool {
	switch k {
	case token.Bang, token.Minus, token.Amp, token.Pipe, token.Caret, token.Plus, token.Star:
		return true
	}
	return false
}

func (p *parser) parseExpr() NodeID {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) NodeID {
	start := p.cur().Span
	left := p.parseUnary()
	for {
		op := p.cur()
		prec := binaryPrec(op.Kind)
		if prec == 0 || prec < minPrec {
			return left
		}
		p.bump()
		opNode := p.with(FieldOperator, p.leaf(KindOperator, op))
		right := p.parseBinary(prec + 1)
		left = p.node(KindBinaryOp, start, p.with(FieldLeft, left), opNode, p.with(FieldRight, right))
	}
}

func (p *parser) parseUnary() NodeID {
	if isUnaryOp(p.cur().Kind) {
		op := p.bump()
		opNode := p.with(FieldOperator, p.leaf(KindOperator, op))
		right := p.with(FieldRight, p.parseUnary())
		return p.node(KindUnaryOp, op.Span, opNode, right)
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() NodeID {
	start := p.cur().Span
	e := p.parsePrimary()
	for {
		switch p.cur().Kind {
		case token.LBracket:
			idx := p.with(FieldArrIdx, p.parseArrayBracket())
			e = p.node(KindArrayOp, start, p.with(FieldArr, e), idx)
		case token.Dot:
			p.bump()
			name := p.ident(FieldName)
			e = p.node(KindFieldAccess, start, p.with(FieldLeft, e), name)
		case token.LParen:
			args := p.with(FieldArguments, p.parseExpressionList())
			e = p.node(KindFuncCall, start, p.with(FieldName, e), args)
		default:
			return e
		}
	}
}

func (p *parser) parsePrimary() NodeID {
	t := p.cur()
	switch t.Kind {
	case token.Ident:
		return p.parseTemplateGlobal()
	case token.Number:
		p.bump()
		return p.leaf(KindNumber, t)
	case token.LParen:
		p.bump()
		p.nest++
		content := p.with(FieldContent, p.parseExpr())
		p.expect(token.RParen, "')'")
		p.nest--
		return p.node(KindParenthesisExpression, t.Span, content)
	case token.LBracket:
		p.bump()
		p.nest++
		var items []NodeID
		for !p.at(token.RBracket) && !p.at(token.EOF) {
			items = append(items, p.with(FieldItem, p.parseExpr()))
			if !p.eat(token.Comma) {
				break
			}
		}
		p.expect(token.RBracket, "']'")
		p.nest--
		return p.node(KindArrayListExpression, t.Span, items...)
	}
	p.errorf(diag.SynExpectExpression, t.Span, "expected an expression, found '%s'", describe(t))
	if t.Kind == token.Invalid {
		p.bump()
		return p.node(KindError, t.Span)
	}
	return p.tree.add(Node{Kind: KindError, Span: t.Span.Head()})
}

// template_global := identifier [template_params]
func (p *parser) parseTemplateGlobal() NodeID {
	start := p.cur().Span
	name := p.ident(FieldName)
	var params NodeID
	if p.at(token.HashParen) {
		params = p.with(FieldTemplateParams, p.parseTemplateParams())
	}
	return p.node(KindTemplateGlobal, start, name, params)
}

// template_params := '#(' [param {',' param}] ')'
func (p *parser) parseTemplateParams() NodeID {
	start := p.bump().Span
	p.nest++
	var items []NodeID
	for !p.at(token.RParen) && !p.at(token.EOF) {
		items = append(items, p.with(FieldItem, p.parseTemplateParam()))
		if !p.eat(token.Comma) {
			break
		}
	}
	if !p.at(token.RParen) && !p.at(token.EOF) {
		items = append(items, p.errorNode(FieldItem))
	}
	p.expect(token.RParen, "')'")
	p.nest--
	return p.node(KindTemplateParams, start, items...)
}

func (p *parser) parseTemplateParam() NodeID {
	start := p.cur().Span
	var name NodeID
	if p.at(token.Ident) && p.peekAt(1).Kind == token.Colon {
		name = p.ident(FieldName)
		p.bump()
	}
	if p.eat(token.KwType) {
		typ := p.with(FieldType, p.parseType())
		return p.node(KindTemplateTypeParam, start, name, typ)
	}
	val := p.with(FieldValue, p.parseExpr())
	return p.node(KindTemplateValueParam, start, name, val)
}

// parenthesis_expression_list := '(' [expression {',' expression}] ')'
func (p *parser) parseExpressionList() NodeID {
	start := p.bump().Span
	p.nest++
	var items []NodeID
	for !p.at(token.RParen) && !p.at(token.EOF) {
		items = append(items, p.with(FieldItem, p.parseExpr()))
		if !p.eat(token.Comma) {
			break
		}
	}
	if !p.at(token.RParen) && !p.at(token.EOF) {
		items = append(items, p.errorNode(FieldItem))
	}
	p.expect(token.RParen, "')'")
	p.nest--
	return p.node(KindParenthesisExpressionList, start, items...)
}

// array_bracket_expression := '[' expr ']' | '[' [expr] ':' [expr] ']'
//
//	| '[' expr '+:' expr ']' | '[' expr '-:' expr ']'
func (p *parser) parseArrayBracket() NodeID {
	start := p.bump().Span
	p.nest++
	defer func() { p.nest-- }()

	var children []NodeID
	if p.at(token.Colon) {
		children = append(children, p.with(FieldOperator, p.leaf(KindOperator, p.bump())))
		if !p.at(token.RBracket) {
			children = append(children, p.with(FieldTo, p.parseExpr()))
		}
		p.expect(token.RBracket, "']'")
		return p.node(KindArrayBracketExpression, start, children...)
	}
	first := p.parseExpr()
	switch p.cur().Kind {
	case token.Colon:
		op := p.with(FieldOperator, p.leaf(KindOperator, p.bump()))
		children = append(children, p.with(FieldFrom, first), op)
		if !p.at(token.RBracket) {
			children = append(children, p.with(FieldTo, p.parseExpr()))
		}
	case token.PlusColon, token.MinusColon:
		op := p.with(FieldOperator, p.leaf(KindOperator, p.bump()))
		children = append(children, p.with(FieldFrom, first), op, p.with(FieldWidth, p.parseExpr()))
	default:
		children = append(children, p.with(FieldContent, first))
	}
	p.expect(token.RBracket, "']'")
	return p.node(KindArrayBracketExpression, start, children...)
}
