package lexer_test

import (
	"testing"

	"sus/internal/diag"
	"sus/internal/lexer"
	"sus/internal/source"
	"sus/internal/token"
)

func lexAll(t *testing.T, input string) ([]token.Token, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.sus", []byte(input))
	bag := diag.NewBag(0)
	lx := lexer.New(fs.Get(id), lexer.Options{Reporter: diag.BagReporter{Bag: bag}})
	return lx.All(), bag
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.Kind
	}{
		{
			name:  "declaration with latency",
			input: "input int x'3",
			want:  []token.Kind{token.KwInput, token.Ident, token.Ident, token.Tick, token.Number, token.EOF},
		},
		{
			name:  "template call",
			input: "FIFO #(DEPTH: 4)",
			want:  []token.Kind{token.Ident, token.HashParen, token.Ident, token.Colon, token.Number, token.RParen, token.EOF},
		},
		{
			name:  "part select and range",
			input: "a[b+:2] c[d-:1] 0..4",
			want: []token.Kind{
				token.Ident, token.LBracket, token.Ident, token.PlusColon, token.Number, token.RBracket,
				token.Ident, token.LBracket, token.Ident, token.MinusColon, token.Number, token.RBracket,
				token.Number, token.DotDot, token.Number, token.EOF,
			},
		},
		{
			name:  "newlines coalesce",
			input: "a\n\n  \nb",
			want:  []token.Kind{token.Ident, token.Newline, token.Ident, token.EOF},
		},
		{
			name:  "comparisons and shifts",
			input: "a <= b >> c != d",
			want:  []token.Kind{token.Ident, token.LtEq, token.Ident, token.Shr, token.Ident, token.BangEq, token.Ident, token.EOF},
		},
		{
			name:  "interface arrow",
			input: "interface f : int a -> int b",
			want:  []token.Kind{token.KwInterface, token.Ident, token.Colon, token.Ident, token.Ident, token.Arrow, token.Ident, token.Ident, token.EOF},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, bag := lexAll(t, tt.input)
			if bag.HasErrors() {
				t.Fatalf("unexpected errors: %v", bag.Items())
			}
			got := kinds(toks)
			if len(got) != len(tt.want) {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("token %d: want %v, got %v (all: %v)", i, tt.want[i], got[i], got)
				}
			}
		})
	}
}

func TestDocCommentSurvivesNewline(t *testing.T) {
	toks, _ := lexAll(t, "/// The adder\n/// adds\nmodule adder {}")
	var mod token.Token
	for _, tk := range toks {
		if tk.Kind == token.KwModule {
			mod = tk
		}
	}
	if got := mod.Doc(); got != "The adder\nadds" {
		t.Fatalf("unexpected doc %q", got)
	}
}

func TestNumbers(t *testing.T) {
	toks, bag := lexAll(t, "1_000 0xff 0b101")
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Items())
	}
	want := []string{"1_000", "0xff", "0b101"}
	for i, w := range want {
		if toks[i].Kind != token.Number || toks[i].Text != w {
			t.Fatalf("token %d: %v %q", i, toks[i].Kind, toks[i].Text)
		}
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		input string
		code  diag.Code
	}{
		{"a $ b", diag.LexUnknownChar},
		{"12ab", diag.LexBadNumber},
		{"/* never closed", diag.LexUnterminatedBlockComment},
	}
	for _, tt := range tests {
		_, bag := lexAll(t, tt.input)
		if bag.Len() != 1 || bag.Items()[0].Code != tt.code {
			t.Errorf("%q: want %v, got %v", tt.input, tt.code, bag.Items())
		}
	}
}

func TestIdentifierNFC(t *testing.T) {
	toks, bag := lexAll(t, "cafe\u0301 = 1")
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Items())
	}
	if toks[0].Kind != token.Ident || toks[0].Text != "caf\u00e9" {
		t.Fatalf("identifier not normalized: %q", toks[0].Text)
	}
}

func TestIsIdentifier(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"stage", true},
		{"_tmp2", true},
		{"größe", true},
		{"9lives", false},
		{"a-b", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := lexer.IsIdentifier(tt.name); got != tt.want {
			t.Fatalf("IsIdentifier(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
