package token

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF
	// Newline separates statements.
	Newline

	Ident
	Number

	KwModule    // module
	KwStruct    // struct
	KwConst     // const
	KwExtern    // extern
	KwBuiltin   // __builtin__
	KwInput     // input
	KwOutput    // output
	KwState     // state
	KwGen       // gen
	KwReg       // reg
	KwInitial   // initial
	KwIf        // if
	KwWhen      // when
	KwElse      // else
	KwFor       // for
	KwIn        // in
	KwDomain    // domain
	KwInterface // interface
	KwType      // type

	Plus      // +
	Minus     // -
	Star      // *
	Slash     // /
	Percent   // %
	Assign    // =
	EqEq      // ==
	BangEq    // !=
	Bang      // !
	Lt        // <
	LtEq      // <=
	Gt        // >
	GtEq      // >=
	Shl       // <<
	Shr       // >>
	Amp       // &
	Pipe      // |
	Caret     // ^
	Tick      // '
	Colon     // :
	PlusColon // +:
	MinusColon // -:
	Comma     // ,
	Semicolon // ;
	Dot       // .
	DotDot    // ..
	Arrow     // ->
	HashParen // #(
	LParen    // (
	RParen    // )
	LBrace    // {
	RBrace    // }
	LBracket  // [
	RBracket  // ]
)

var kindNames = [...]string{
	Invalid: "invalid", EOF: "end of file", Newline: "newline",
	Ident: "identifier", Number: "number",
	KwModule: "module", KwStruct: "struct", KwConst: "const", KwExtern: "extern", KwBuiltin: "__builtin__",
	KwInput: "input", KwOutput: "output", KwState: "state", KwGen: "gen", KwReg: "reg", KwInitial: "initial",
	KwIf: "if", KwWhen: "when", KwElse: "else", KwFor: "for", KwIn: "in", KwDomain: "domain",
	KwInterface: "interface", KwType: "type",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", Assign: "=", EqEq: "==", BangEq: "!=",
	Bang: "!", Lt: "<", LtEq: "<=", Gt: ">", GtEq: ">=", Shl: "<<", Shr: ">>", Amp: "&", Pipe: "|",
	Caret: "^", Tick: "'", Colon: ":", PlusColon: "+:", MinusColon: "-:", Comma: ",", Semicolon: ";",
	Dot: ".", DotDot: "..", Arrow: "->", HashParen: "#(", LParen: "(", RParen: ")", LBrace: "{",
	RBrace: "}", LBracket: "[", RBracket: "]",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}
