package lexer

import (
	"sus/internal/diag"
	"sus/internal/token"
)

// Two-byte operators are tried first, in this order.
var pairOps = [...]struct {
	a, b byte
	kind token.Kind
}{
	{'.', '.', token.DotDot},
	{'-', '>', token.Arrow},
	{'+', ':', token.PlusColon},
	{'-', ':', token.MinusColon},
	{'#', '(', token.HashParen},
	{'=', '=', token.EqEq},
	{'!', '=', token.BangEq},
	{'<', '=', token.LtEq},
	{'>', '=', token.GtEq},
	{'<', '<', token.Shl},
	{'>', '>', token.Shr},
}

var singleOps = [256]token.Kind{
	'+': token.Plus, '-': token.Minus, '*': token.Star, '/': token.Slash, '%': token.Percent,
	'=': token.Assign, '!': token.Bang, '<': token.Lt, '>': token.Gt,
	'&': token.Amp, '|': token.Pipe, '^': token.Caret, '\'': token.Tick,
	':': token.Colon, ',': token.Comma, ';': token.Semicolon, '.': token.Dot,
	'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket,
}

func (lx *Lexer) scanOperatorOrPunct() token.Token {
	start := lx.cursor.Mark()
	kind := token.Invalid
	for _, op := range pairOps {
		if lx.try2(op.a, op.b) {
			kind = op.kind
			break
		}
	}
	if kind == token.Invalid {
		kind = singleOps[lx.cursor.Bump()]
	}
	if kind == token.Invalid {
		// one bad character is one token, even when it is multi-byte
		for !lx.cursor.EOF() && lx.cursor.Peek()&0xC0 == 0x80 {
			lx.cursor.Bump()
		}
	}
	sp := lx.cursor.SpanFrom(start)
	text := string(lx.file.Content[sp.Start:sp.End])
	if kind == token.Invalid {
		lx.errLex(diag.LexUnknownChar, sp, "unknown character '"+text+"'")
	}
	return token.Token{Kind: kind, Span: sp, Text: text}
}
