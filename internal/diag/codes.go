package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Lexical
	LexInfo                     Code = 1000
	LexUnknownChar              Code = 1001
	LexUnterminatedBlockComment Code = 1002
	LexBadNumber                Code = 1003

	// Syntax
	SynInfo              Code = 2000
	SynUnexpectedToken   Code = 2001
	SynUnclosedDelimiter Code = 2002
	SynExpectIdentifier  Code = 2003
	SynExpectExpression  Code = 2004
	SynExpectType        Code = 2005
	SynExpectBlock       Code = 2006
	SynExpectNewline     Code = 2007
	SynBadDeclaration    Code = 2008
	SynBadTemplateArg    Code = 2009

	// Name resolution
	NameInfo               Code = 3000
	NameNotFound           Code = 3001
	NameCollision          Code = 3002
	NameWrongKind          Code = 3003
	NameDuplicateLocal     Code = 3004
	NameUnknownTemplateArg Code = 3005
	NameDuplicateTemplate  Code = 3006
	NameTooManyTemplateArg Code = 3007
	NameUnknownPort        Code = 3008
	NameDuplicateDomain    Code = 3009

	// Flattening
	FlatInfo               Code = 4000
	FlatNotAssignable      Code = 4001
	FlatWriteToInput       Code = 4002
	FlatWriteToReadOnly    Code = 4003
	FlatUnusedExpression   Code = 4004
	FlatExcessArgs         Code = 4005
	FlatTooFewArgs         Code = 4006
	FlatExcessOutputs      Code = 4007
	FlatTooFewOutputs      Code = 4008
	FlatNotCallable        Code = 4009
	FlatBadModifier        Code = 4010
	FlatPortOutsideModule  Code = 4011
	FlatBadLatencySpec     Code = 4012
	FlatFieldAccess        Code = 4013
	FlatModuleAsValue      Code = 4014
	FlatInterfaceNotCalled Code = 4015
	FlatBadGlobalBody      Code = 4016

	// Typing and domains
	TypeInfo           Code = 5000
	TypeMismatch       Code = 5001
	TypeInfinite       Code = 5002
	TypeNotInferred    Code = 5003
	TypeDomainConflict Code = 5004
	TypeGenerativeSink Code = 5005
	TypeIfNonGen       Code = 5006
	TypeWhenGen        Code = 5007
	TypeNotGenerative  Code = 5008
	TypeUnusedWire     Code = 5009
	TypeUnwrittenWire  Code = 5010

	// Generative evaluation
	GenInfo            Code = 6000
	GenIndexOOB        Code = 6001
	GenUnsetValue      Code = 6002
	GenDivideByZero    Code = 6003
	GenForRange        Code = 6004
	GenMissingArg      Code = 6005
	GenAssertFailed    Code = 6006
	GenBoundsDiverge   Code = 6007
	GenRecursion       Code = 6008
	GenNotSupported    Code = 6009
	GenUnconnected     Code = 6010
	GenArraySize       Code = 6011
	GenTypeNotConcrete Code = 6012
	GenBadArgument     Code = 6013

	// Latency counting
	LatInfo             Code = 7000
	LatNetPositiveCycle Code = 7001
	LatIndeterminable   Code = 7002
	LatConflicting      Code = 7003
	LatUnreachable      Code = 7004
	LatInference        Code = 7005

	// Post-instantiation checks
	PostInfo        Code = 8000
	PostSubtype     Code = 8001
	PostIndexOOB    Code = 8002
	PostSliceOOB    Code = 8003
	PostPartSelect  Code = 8004
	PostArrayLength Code = 8005
)

var codeDescription = map[Code]string{
	UnknownCode: "Unknown error",

	LexInfo:                     "Lexical information",
	LexUnknownChar:              "Unknown character",
	LexUnterminatedBlockComment: "Unterminated block comment",
	LexBadNumber:                "Malformed number literal",

	SynInfo:              "Syntax information",
	SynUnexpectedToken:   "Unexpected token",
	SynUnclosedDelimiter: "Unclosed delimiter",
	SynExpectIdentifier:  "Expected identifier",
	SynExpectExpression:  "Expected expression",
	SynExpectType:        "Expected type",
	SynExpectBlock:       "Expected block",
	SynExpectNewline:     "Expected end of statement",
	SynBadDeclaration:    "Malformed declaration",
	SynBadTemplateArg:    "Malformed template argument",

	NameInfo:               "Name resolution information",
	NameNotFound:           "Name not found",
	NameCollision:          "Ambiguous global name",
	NameWrongKind:          "Wrong kind of name",
	NameDuplicateLocal:     "Duplicate declaration",
	NameUnknownTemplateArg: "Unknown template argument",
	NameDuplicateTemplate:  "Duplicate template argument",
	NameTooManyTemplateArg: "Too many template arguments",
	NameUnknownPort:        "Unknown port or interface",
	NameDuplicateDomain:    "Duplicate domain",

	FlatInfo:               "Flattening information",
	FlatNotAssignable:      "Expression is not assignable",
	FlatWriteToInput:       "Cannot write to input",
	FlatWriteToReadOnly:    "Cannot write to read-only wire",
	FlatUnusedExpression:   "Unused expression",
	FlatExcessArgs:         "Excess arguments",
	FlatTooFewArgs:         "Too few arguments",
	FlatExcessOutputs:      "Excess output targets",
	FlatTooFewOutputs:      "Too few output targets",
	FlatNotCallable:        "Not callable",
	FlatBadModifier:        "Modifier not allowed here",
	FlatPortOutsideModule:  "Port outside module",
	FlatBadLatencySpec:     "Latency specifier not allowed",
	FlatFieldAccess:        "Field access not supported",
	FlatModuleAsValue:      "Module used as value",
	FlatInterfaceNotCalled: "Interface must be called",
	FlatBadGlobalBody:      "Invalid global body",

	TypeInfo:           "Typing information",
	TypeMismatch:       "Type mismatch",
	TypeInfinite:       "Infinite type",
	TypeNotInferred:    "Could not infer type",
	TypeDomainConflict: "Domain conflict",
	TypeGenerativeSink: "Non-generative value written to generative wire",
	TypeIfNonGen:       "Non-generative if",
	TypeWhenGen:        "Generative when",
	TypeNotGenerative:  "Expected generative value",
	TypeUnusedWire:     "Unused wire",
	TypeUnwrittenWire:  "Wire never written",

	GenInfo:            "Generative information",
	GenIndexOOB:        "Index out of bounds",
	GenUnsetValue:      "Read of unset value",
	GenDivideByZero:    "Division by zero",
	GenForRange:        "Invalid for-loop range",
	GenMissingArg:      "Missing template argument",
	GenAssertFailed:    "Assertion failed",
	GenBoundsDiverge:   "Integer bounds do not converge",
	GenRecursion:       "Recursive instantiation",
	GenNotSupported:    "Operation not supported",
	GenUnconnected:     "Wire not connected",
	GenArraySize:       "Invalid array size",
	GenTypeNotConcrete: "Type not fully known",
	GenBadArgument:     "Invalid builtin argument",

	LatInfo:             "Latency information",
	LatNetPositiveCycle: "Net-positive latency cycle",
	LatIndeterminable:   "Indeterminable port latency",
	LatConflicting:      "Conflicting specified latencies",
	LatUnreachable:      "Unreachable node",
	LatInference:        "Latency inference failed",

	PostInfo:        "Check information",
	PostSubtype:     "Value out of type bounds",
	PostIndexOOB:    "Index out of bounds",
	PostSliceOOB:    "Slice out of bounds",
	PostPartSelect:  "Part-select out of bounds",
	PostArrayLength: "Array length mismatch",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("NAM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("FLT%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("TYP%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("GEN%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("LAT%04d", ic)
	case ic >= 8000 && ic < 9000:
		return fmt.Sprintf("CHK%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
