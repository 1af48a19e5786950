package ir

import (
	"math/big"
	"testing"
)

type testNamer struct{}

func (testNamer) GlobalName(g GlobalUUID) string {
	switch g {
	case TypeUUID(1):
		return "bool"
	case TypeUUID(2):
		return "int"
	}
	return g.String()
}

func (testNamer) ParamName(g GlobalUUID, id TemplateID) string {
	if g == TypeUUID(2) {
		return [...]string{"", "MIN", "MAX"}[id]
	}
	return ""
}

func (testNamer) DomainName(ModuleID, DomainID) string       { return "clk" }
func (testNamer) InterfaceName(ModuleID, InterfaceID) string { return "i" }

var testBuiltins = &Builtins{Bool: 1, Int: 2}

func TestConcreteDisplayAndMangle(t *testing.T) {
	arr := ArrayOf(testBuiltins.IntType(big.NewInt(0), big.NewInt(7)), 4)
	if got := arr.Display(testNamer{}); got != "int #(MIN: 0, MAX: 7)[4]" {
		t.Fatalf("display = %q", got)
	}
	if got := arr.Mangle(testNamer{}); got != "int_0_7_4x" {
		t.Fatalf("mangle = %q", got)
	}
	if !arr.IsFullyKnown() {
		t.Fatalf("expected fully known")
	}
	partial := testBuiltins.IntType(nil, big.NewInt(3))
	if partial.IsFullyKnown() {
		t.Fatalf("int with unknown MIN reported as known")
	}
}

func TestConcreteCloneIsDeep(t *testing.T) {
	a := ArrayOf(testBuiltins.IntType(big.NewInt(-2), big.NewInt(2)), 2)
	b := a.Clone()
	b.Elem.Args[1].Value.Value.Int.SetInt64(100)
	lo, hi, ok := testBuiltins.IntBounds(a.Elem)
	if !ok || lo.Int64() != -2 || hi.Int64() != 2 {
		t.Fatalf("original mutated: %v %v %v", lo, hi, ok)
	}
	if a.Equal(b) {
		t.Fatalf("clones with different bounds compare equal")
	}
}

func TestValueEqualAndMangle(t *testing.T) {
	tests := []struct {
		a, b  Value
		equal bool
	}{
		{IntValue(3), IntValue(3), true},
		{IntValue(3), IntValue(4), false},
		{BoolValue(true), BoolValue(true), true},
		{ArrayValue([]Value{IntValue(1), IntValue(2)}), ArrayValue([]Value{IntValue(1), IntValue(2)}), true},
		{ArrayValue([]Value{IntValue(1)}), ArrayValue([]Value{IntValue(1), IntValue(2)}), false},
		{Value{}, Value{}, true},
		{Value{}, IntValue(0), false},
	}
	for i, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.equal {
			t.Errorf("case %d: Equal = %v, want %v", i, got, tt.equal)
		}
	}
	if got := IntValue(-5).MangleString(); got != "n5" {
		t.Fatalf("mangle of -5 = %q", got)
	}
	if !ArrayValue([]Value{IntValue(1), {}}).ContainsUnset() {
		t.Fatalf("array with unset element not detected")
	}
}

func TestOperatorText(t *testing.T) {
	for _, s := range []string{"+", "<<", "==", "!=", ">="} {
		op, ok := BinaryFromText(s)
		if !ok || op.String() != s {
			t.Fatalf("BinaryFromText(%q) = %v, %v", s, op, ok)
		}
	}
	if op, ok := UnaryFromText("!"); !ok || op != UnaryNot {
		t.Fatalf("UnaryFromText(!) = %v, %v", op, ok)
	}
	if !UnarySum.IsReduction() || UnaryNegate.IsReduction() {
		t.Fatalf("reduction classification wrong")
	}
	if !BinaryLess.IsComparison() || BinaryAdd.IsComparison() {
		t.Fatalf("comparison classification wrong")
	}
}

func TestOperandsCoverPathAndArgs(t *testing.T) {
	ref := &WireReference{
		Root: WireRefRoot{Kind: RootLocalDecl, Local: 1},
		Path: []PathElem{{Kind: PathIndex, Idx: 2}, {Kind: PathPartSelect, From: 3, Width: 4, Dir: PartUp}},
	}
	inst := Instruction{Kind: InstrExpression, Data: &Expression{
		Source: ExprSource{Kind: SourceWireRef, Ref: ref},
		Output: OutputSubExpression,
	}}
	got := inst.Operands()
	want := []FlatID{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("operands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("operands = %v, want %v", got, want)
		}
	}
}

func TestAbstractDisplay(t *testing.T) {
	typ := AbstractRankedType{Inner: AbstractInner{Kind: InnerNamed, Named: 2}, Rank: Rank{Base: 2}}
	if got := typ.Display(testNamer{}, ModuleUUID(1)); got != "int[][]" {
		t.Fatalf("display = %q", got)
	}
	full := FullType{Typ: NamedType(1), Domain: Generative}
	if got := full.Display(testNamer{}, ModuleUUID(1)); got != "gen bool" {
		t.Fatalf("display = %q", got)
	}
}
