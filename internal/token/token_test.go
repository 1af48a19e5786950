package token_test

import (
	"testing"

	"sus/internal/token"
)

func TestKindClasses(t *testing.T) {
	tests := []struct {
		kind     token.Kind
		keyword  bool
		operator bool
	}{
		{token.KwModule, true, false},
		{token.KwType, true, false},
		{token.Ident, false, false},
		{token.Plus, false, true},
		{token.HashParen, false, true},
		{token.RBracket, false, true},
		{token.Newline, false, false},
	}
	for _, tt := range tests {
		tok := token.Token{Kind: tt.kind}
		if tok.IsKeyword() != tt.keyword || tok.IsOperator() != tt.operator {
			t.Errorf("%v: keyword=%v operator=%v", tt.kind, tok.IsKeyword(), tok.IsOperator())
		}
	}
}

func TestLookupKeyword(t *testing.T) {
	if k, ok := token.LookupKeyword("when"); !ok || k != token.KwWhen {
		t.Fatalf("when: got %v %v", k, ok)
	}
	if _, ok := token.LookupKeyword("Module"); ok {
		t.Fatalf("keywords are case-sensitive")
	}
	if _, ok := token.LookupKeyword("int"); ok {
		t.Fatalf("int is an identifier")
	}
}

func TestDocCollectsDocLines(t *testing.T) {
	tok := token.Token{Leading: []token.Trivia{
		{Kind: token.TriviaLineComment, Text: "// license"},
		{Kind: token.TriviaDocLine, Text: "/// Adds one"},
		{Kind: token.TriviaSpace, Text: " "},
		{Kind: token.TriviaDocLine, Text: "///   to x"},
	}}
	if got := tok.Doc(); got != "Adds one\nto x" {
		t.Fatalf("unexpected doc %q", got)
	}
}
