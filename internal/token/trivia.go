package token

import "sus/internal/source"

type TriviaKind uint8

const (
	TriviaSpace TriviaKind = iota
	TriviaLineComment
	TriviaBlockComment
	TriviaDocLine // "///"
)

type Trivia struct {
	Kind TriviaKind
	Span source.Span
	Text string
}
