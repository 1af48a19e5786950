package token

var keywords = map[string]Kind{
	"module":      KwModule,
	"struct":      KwStruct,
	"const":       KwConst,
	"extern":      KwExtern,
	"__builtin__": KwBuiltin,
	"input":       KwInput,
	"output":      KwOutput,
	"state":       KwState,
	"gen":         KwGen,
	"reg":         KwReg,
	"initial":     KwInitial,
	"if":          KwIf,
	"when":        KwWhen,
	"else":        KwElse,
	"for":         KwFor,
	"in":          KwIn,
	"domain":      KwDomain,
	"interface":   KwInterface,
	"type":        KwType,
}

// LookupKeyword reports whether ident is a keyword. Keywords are case-sensitive.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// Keywords lists every keyword spelling, used by completion.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}
