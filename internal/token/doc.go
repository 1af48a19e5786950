// Package token defines lexical token kinds and trivia for the sus compiler.
// Invariants:
//   - Token.Text is the source slice, except for identifiers, which are NFC normalized.
//   - Token.Span covers the original bytes.
//   - Comments are leading Trivia and never appear in the token stream.
//   - Newlines are significant and appear as Newline tokens; runs are coalesced.
//   - Builtin names (int, bool, true, false) are identifiers resolved by the linker.
package token
