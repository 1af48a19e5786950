package lexer

import (
	"sus/internal/diag"
	"sus/internal/token"
)

// scanNumber accepts decimal, 0x and 0b integers with '_' separators.
// Values are parsed later; the lexer only checks the shape.
func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Mark()
	digit := isDec
	if b0, b1, ok := lx.cursor.Peek2(); ok && b0 == '0' {
		switch b1 {
		case 'x', 'X':
			digit = isHex
		case 'b', 'B':
			digit = func(b byte) bool { return b == '0' || b == '1' }
		}
		if b1 == 'x' || b1 == 'X' || b1 == 'b' || b1 == 'B' {
			lx.cursor.Bump()
			lx.cursor.Bump()
		}
	}
	n := 0
	for digit(lx.cursor.Peek()) || lx.cursor.Peek() == '_' {
		if lx.cursor.Peek() != '_' {
			n++
		}
		lx.cursor.Bump()
	}
	bad := n == 0
	for isIdentContinueByte(lx.cursor.Peek()) {
		bad = true
		lx.cursor.Bump()
	}
	sp := lx.cursor.SpanFrom(start)
	text := string(lx.file.Content[sp.Start:sp.End])
	if bad {
		lx.errLex(diag.LexBadNumber, sp, "malformed number literal '"+text+"'")
		return token.Token{Kind: token.Invalid, Span: sp, Text: text}
	}
	return token.Token{Kind: token.Number, Span: sp, Text: text}
}
