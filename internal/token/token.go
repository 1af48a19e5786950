package token

import (
	"strings"

	"sus/internal/source"
)

// Token represents a single source token with its location and trivia.
type Token struct {
	Kind    Kind
	Span    source.Span
	Text    string
	Leading []Trivia
}

// IsKeyword reports whether the token is a language keyword.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwModule && t.Kind <= KwType
}

// IsOperator reports whether the token is punctuation or an operator.
func (t Token) IsOperator() bool {
	return t.Kind >= Plus && t.Kind <= RBracket
}

func (t Token) IsIdent() bool { return t.Kind == Ident }

// Doc joins the "///" lines of the leading trivia, without the slashes.
func (t Token) Doc() string {
	var lines []string
	for _, tr := range t.Leading {
		switch tr.Kind {
		case TriviaDocLine:
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(tr.Text, "///")))
		case TriviaLineComment, TriviaBlockComment:
			// a plain comment between doc lines and the item breaks the doc
			lines = lines[:0]
		}
	}
	return strings.Join(lines, "\n")
}
