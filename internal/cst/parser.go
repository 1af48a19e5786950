package cst

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/lexer"
	"sus/internal/source"
	"sus/internal/token"
)

type parser struct {
	file *source.File
	toks []token.Token
	pos  int
	nest int // >0 inside (), [] and #(): newlines are insignificant
	tree *Tree
	rep  diag.Reporter
	last token.Token // most recently consumed token
}

// Parse lexes and parses file. Syntax errors are reported to rep and
// produce ERROR nodes; the returned tree is never nil.
func Parse(file *source.File, rep diag.Reporter) *Tree {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	lx := lexer.New(file, lexer.Options{Reporter: rep})
	p := &parser{
		file: file,
		toks: lx.All(),
		tree: newTree(file.ID),
		rep:  rep,
	}
	p.collectComments()
	p.tree.Root = p.parseSourceFile()
	return p.tree
}

func (p *parser) collectComments() {
	for _, tk := range p.toks {
		for _, tr := range tk.Leading {
			var k Kind
			switch tr.Kind {
			case token.TriviaLineComment:
				k = KindSingleLineComment
			case token.TriviaBlockComment:
				k = KindMultiLineComment
			case token.TriviaDocLine:
				k = KindDocComment
			default:
				continue
			}
			p.tree.Comments = append(p.tree.Comments, p.tree.add(Node{Kind: k, Span: tr.Span, Text: tr.Text}))
		}
	}
}

// cur returns the current token, skipping newlines when nested.
func (p *parser) cur() token.Token {
	if p.nest > 0 {
		for p.toks[p.pos].Kind == token.Newline {
			p.pos++
		}
	}
	return p.toks[p.pos]
}

// peekAt looks k significant tokens ahead (k=0 is cur).
func (p *parser) peekAt(k int) token.Token {
	i := p.pos
	for {
		if p.nest > 0 {
			for p.toks[i].Kind == token.Newline {
				i++
			}
		}
		if k == 0 || p.toks[i].Kind == token.EOF {
			return p.toks[i]
		}
		i++
		k--
	}
}

func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) bump() token.Token {
	t := p.cur()
	if t.Kind != token.EOF {
		p.pos++
	}
	p.last = t
	return t
}

func (p *parser) eat(k token.Kind) bool {
	if p.at(k) {
		p.bump()
		return true
	}
	return false
}

func (p *parser) skipNewlines() {
	for p.toks[p.pos].Kind == token.Newline || p.toks[p.pos].Kind == token.Semicolon {
		p.pos++
	}
}

func (p *parser) errorf(code diag.Code, sp source.Span, format string, args ...any) {
	diag.ReportError(p.rep, code, sp, fmt.Sprintf(format, args...)).Emit()
}

// expect consumes a token of kind k or reports an error.
func (p *parser) expect(k token.Kind, what string) bool {
	if p.eat(k) {
		return true
	}
	t := p.cur()
	p.errorf(diag.SynUnexpectedToken, t.Span, "expected %s, found '%s'", what, describe(t))
	return false
}

func describe(t token.Token) string {
	switch t.Kind {
	case token.EOF, token.Newline:
		return t.Kind.String()
	}
	return t.Text
}

// span from the start of tok to the end of the last consumed token.
func (p *parser) spanFrom(start source.Span) source.Span {
	end := p.last.Span.End
	if end < start.Start {
		end = start.Start
	}
	return source.Span{File: start.File, Start: start.Start, End: end}
}

// node builds an inner node; children must be in source order.
func (p *parser) node(k Kind, start source.Span, children ...NodeID) NodeID {
	kept := children[:0:0]
	for _, c := range children {
		if c != 0 {
			kept = append(kept, c)
		}
	}
	return p.tree.add(Node{Kind: k, Span: p.spanFrom(start), Children: kept})
}

func (p *parser) leaf(k Kind, t token.Token) NodeID {
	return p.tree.add(Node{Kind: k, Span: t.Span, Text: t.Text})
}

// with sets the field of id and returns it.
func (p *parser) with(f Field, id NodeID) NodeID {
	if id != 0 {
		p.tree.nodes[id].Field = f
	}
	return id
}

func (p *parser) ident(f Field) NodeID {
	t := p.cur()
	if t.Kind != token.Ident {
		p.errorf(diag.SynExpectIdentifier, t.Span, "expected identifier, found '%s'", describe(t))
		return 0
	}
	p.bump()
	return p.with(f, p.leaf(KindIdentifier, t))
}

// errorNode swallows tokens until the end of the line (or an unbalanced
// closing brace) and wraps them in an ERROR node.
func (p *parser) errorNode(f Field) NodeID {
	start := p.cur().Span
	depth := 0
	for {
		t := p.toks[p.pos]
		switch t.Kind {
		case token.EOF:
			return p.with(f, p.node(KindError, start))
		case token.Newline, token.Semicolon:
			if depth == 0 && p.nest == 0 {
				return p.with(f, p.node(KindError, start))
			}
		case token.RParen, token.RBracket:
			if depth == 0 && p.nest > 0 {
				return p.with(f, p.node(KindError, start))
			}
		case token.LBrace:
			depth++
		case token.RBrace:
			if depth == 0 {
				return p.with(f, p.node(KindError, start))
			}
			depth--
		}
		p.pos++
		p.last = t
	}
}
