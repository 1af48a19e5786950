package ir

// UnaryOperator enumerates prefix operators. The reductions And, Or, Xor, Sum
// and Product collapse one array dimension.
type UnaryOperator uint8

const (
	UnaryNot UnaryOperator = iota + 1
	UnaryNegate
	UnaryAnd
	UnaryOr
	UnaryXor
	UnarySum
	UnaryProduct
)

var unaryText = [...]string{"", "!", "-", "&", "|", "^", "+", "*"}

func (op UnaryOperator) String() string {
	if int(op) < len(unaryText) {
		return unaryText[op]
	}
	return "?"
}

// IsReduction reports whether the operator reduces an array.
func (op UnaryOperator) IsReduction() bool { return op >= UnaryAnd }

// BinaryOperator enumerates infix operators.
type BinaryOperator uint8

const (
	BinaryAnd BinaryOperator = iota + 1
	BinaryOr
	BinaryXor
	BinaryAdd
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryEq
	BinaryNotEq
	BinaryLess
	BinaryLessEq
	BinaryGreater
	BinaryGreaterEq
	BinaryShiftLeft
	BinaryShiftRight
)

var binaryText = [...]string{"", "&", "|", "^", "+", "-", "*", "/", "%", "==", "!=", "<", "<=", ">", ">=", "<<", ">>"}

func (op BinaryOperator) String() string {
	if int(op) < len(binaryText) {
		return binaryText[op]
	}
	return "?"
}

// IsComparison reports whether the operator yields bool from ints.
func (op BinaryOperator) IsComparison() bool { return op >= BinaryEq && op <= BinaryGreaterEq }

// IsLogical reports whether the operator works on bools.
func (op BinaryOperator) IsLogical() bool { return op <= BinaryXor }

// BinaryFromText maps operator text to an operator.
func BinaryFromText(s string) (BinaryOperator, bool) {
	for i, t := range binaryText {
		if i > 0 && t == s {
			return BinaryOperator(i), true
		}
	}
	return 0, false
}

// UnaryFromText maps operator text to an operator.
func UnaryFromText(s string) (UnaryOperator, bool) {
	for i, t := range unaryText {
		if i > 0 && t == s {
			return UnaryOperator(i), true
		}
	}
	return 0, false
}
