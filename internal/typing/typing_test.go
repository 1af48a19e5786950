package typing

import (
	"math/big"
	"reflect"
	"testing"

	"sus/internal/ir"
	"sus/internal/source"
)

func TestRankUnification(t *testing.T) {
	u := New()
	r := u.FreshRank()
	if res := u.UnifyRank(ir.Rank{Base: 2}, r.Succ()); !res.OK() {
		t.Fatalf("unify rank: %v", res)
	}
	if got := u.ResolveRank(r); got != (ir.Rank{Base: 1}) {
		t.Fatalf("rank = %+v, want base 1", got)
	}
	if res := u.UnifyRank(ir.Rank{Base: 0}, r); res != Failure {
		t.Fatalf("rank 0 vs 1 = %v, want Failure", res)
	}

	s := u.FreshRank()
	if res := u.UnifyRank(s, s.Succ()); res != FailureInfinite {
		t.Fatalf("s = s+1 gave %v, want FailureInfinite", res)
	}

	a, b := u.FreshRank(), u.FreshRank()
	if res := u.UnifyRank(a.Succ().Succ(), b); !res.OK() {
		t.Fatalf("unify vars: %v", res)
	}
	if res := u.UnifyRank(a, ir.Rank{Base: 1}); !res.OK() {
		t.Fatalf("bind a: %v", res)
	}
	if got := u.ResolveRank(b); got != (ir.Rank{Base: 3}) {
		t.Fatalf("b = %+v, want base 3", got)
	}
}

func TestOccursCheck(t *testing.T) {
	u := New()
	v := u.FreshType()
	self := ir.NamedType(1, v)
	if res := u.Unify(v, self); res != FailureInfinite {
		t.Fatalf("v = named(v) gave %v", res)
	}
}

func TestUnifySoundness(t *testing.T) {
	tests := []struct {
		name string
		mk   func(u *Unifier) (a, b ir.AbstractRankedType)
		want Result
	}{
		{
			name: "var against named",
			mk: func(u *Unifier) (ir.AbstractRankedType, ir.AbstractRankedType) {
				return u.FreshType(), ir.NamedType(2)
			},
			want: Success,
		},
		{
			name: "named args",
			mk: func(u *Unifier) (ir.AbstractRankedType, ir.AbstractRankedType) {
				a := ir.NamedType(1, u.FreshType())
				a.Rank = u.FreshRank()
				b := ir.NamedType(1, ir.NamedType(2))
				b.Rank = ir.Rank{Base: 1}
				return a, b
			},
			want: Success,
		},
		{
			name: "two vars then template",
			mk: func(u *Unifier) (ir.AbstractRankedType, ir.AbstractRankedType) {
				a, b := u.FreshType(), u.FreshType()
				u.Unify(b, ir.AbstractRankedType{Inner: ir.AbstractInner{Kind: ir.InnerTemplate, Template: 1}, Rank: ir.Rank{Base: 2}})
				return a, b
			},
			want: Success,
		},
		{
			name: "different named",
			mk: func(u *Unifier) (ir.AbstractRankedType, ir.AbstractRankedType) {
				return ir.NamedType(1), ir.NamedType(2)
			},
			want: Failure,
		},
		{
			name: "rank mismatch",
			mk: func(u *Unifier) (ir.AbstractRankedType, ir.AbstractRankedType) {
				a := ir.NamedType(1)
				a.Rank = ir.Rank{Base: 1}
				return a, ir.NamedType(1)
			},
			want: Failure,
		},
		{
			name: "error absorbs",
			mk: func(u *Unifier) (ir.AbstractRankedType, ir.AbstractRankedType) {
				return ir.ErrorType(), ir.NamedType(7)
			},
			want: Success,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New()
			a, b := tt.mk(u)
			res := u.Unify(a, b)
			if res != tt.want {
				t.Fatalf("unify = %v, want %v", res, tt.want)
			}
			if res != Success || a.IsError() || b.IsError() {
				return
			}
			fa, okA := u.FullySubstitute(a)
			fb, okB := u.FullySubstitute(b)
			if !okA || !okB {
				t.Fatalf("not fully resolved: %+v %+v", fa, fb)
			}
			if !reflect.DeepEqual(fa, fb) {
				t.Fatalf("sides differ after unify:\n%+v\n%+v", fa, fb)
			}
		})
	}
}

func TestDelayedConstraints(t *testing.T) {
	u := New()
	a, b := u.FreshType(), u.FreshType()
	fired := 0
	u.Delay(source.Span{}, "field access", func() []Var {
		if v, ok := u.InnerVar(a.Inner); ok {
			return []Var{v}
		}
		fired++
		return nil
	})
	if fired != 0 {
		t.Fatalf("constraint fired before its variable was known")
	}
	u.Unify(a, b)
	if fired != 0 {
		t.Fatalf("linking two unknowns fired the constraint")
	}
	u.Unify(b, ir.NamedType(3))
	if fired != 1 {
		t.Fatalf("fired = %d after binding, want 1", fired)
	}

	never := u.FreshType()
	u.Delay(source.Span{Start: 4, End: 9}, "subtype", func() []Var {
		if v, ok := u.InnerVar(never.Inner); ok {
			return []Var{v}
		}
		return nil
	})
	stalled := u.Stalled()
	if len(stalled) != 1 || stalled[0].What != "subtype" || stalled[0].Span.Start != 4 {
		t.Fatalf("stalled = %+v", stalled)
	}
}

func TestDomainUnification(t *testing.T) {
	u := New()
	d1, d2 := u.FreshDomain(), u.FreshDomain()
	if !u.UnifyDomain(d1, d2).OK() {
		t.Fatalf("linking domains failed")
	}
	if !u.UnifyDomain(d2, ir.PhysicalDomain(3)).OK() {
		t.Fatalf("binding domain failed")
	}
	if got := u.ResolveDomain(d1); got != ir.PhysicalDomain(3) {
		t.Fatalf("d1 = %+v", got)
	}
	if u.UnifyDomain(d1, ir.PhysicalDomain(4)).OK() {
		t.Fatalf("clk3 and clk4 unified")
	}
	if !u.UnifyDomain(ir.ErrorDomain, ir.PhysicalDomain(4)).OK() {
		t.Fatalf("error domain did not absorb")
	}
}

func TestValueUnification(t *testing.T) {
	u := New()
	a, b := u.FreshValue(), u.FreshValue()
	u.UnifyValue(a, b)
	if !u.SetValue(b, ir.IntValue(5)).OK() {
		t.Fatalf("set failed")
	}
	got := u.ResolveValue(a)
	if v, ok := got.Value.Int64(); !got.Known() || !ok || v != 5 {
		t.Fatalf("a = %+v", got)
	}
	if u.SetValue(a, ir.IntValue(6)).OK() {
		t.Fatalf("5 unified with 6")
	}
	if !u.UnifyValue(a, ir.ValueCell{}).OK() {
		t.Fatalf("unconstrained cell rejected")
	}
}

func TestConcreteUnification(t *testing.T) {
	b := &ir.Builtins{Bool: 1, Int: 2}
	u := New()
	arr := &ir.ConcreteType{Kind: ir.ConcreteArray, Elem: u.FreshConcrete(), Size: u.FreshValue()}
	if !u.UnifyConcrete(arr, ir.ArrayOf(b.BoolType(), 4)).OK() {
		t.Fatalf("unify array failed")
	}
	full, ok := u.FullySubstituteConcrete(arr)
	if !ok || !full.Equal(ir.ArrayOf(b.BoolType(), 4)) {
		t.Fatalf("array = %+v ok=%v", full, ok)
	}

	small := b.IntType(big.NewInt(0), big.NewInt(3))
	wide := b.IntType(big.NewInt(0), big.NewInt(7))
	if u.UnifyConcrete(small, wide).OK() {
		t.Fatalf("int bounds unified exactly")
	}
	if !u.UnifyShape(small, wide, b.Int).OK() {
		t.Fatalf("int shapes did not unify")
	}
	if u.UnifyShape(b.BoolType(), wide, b.Int).OK() {
		t.Fatalf("bool unified with int")
	}

	v := u.FreshConcrete()
	if res := u.UnifyConcrete(v, ir.ArrayOf(v, 2)); res != FailureInfinite {
		t.Fatalf("v = v[2] gave %v", res)
	}
}

func TestSubstituteTemplates(t *testing.T) {
	param := ir.AbstractRankedType{Inner: ir.AbstractInner{Kind: ir.InnerTemplate, Template: 1}, Rank: ir.Rank{Base: 1}}
	arg := ir.NamedType(5)
	arg.Rank = ir.Rank{Base: 2}
	got := SubstituteTemplates(param, []ir.AbstractRankedType{arg})
	if got.Inner.Kind != ir.InnerNamed || got.Inner.Named != 5 || got.Rank.Base != 3 {
		t.Fatalf("substituted = %+v", got)
	}
	nested := SubstituteTemplates(ir.NamedType(9, param), []ir.AbstractRankedType{arg})
	if nested.Inner.Args[0].Inner.Named != 5 {
		t.Fatalf("nested argument not substituted: %+v", nested)
	}
}

func TestCloneKnown(t *testing.T) {
	u := New()
	v := u.FreshType()
	orig := ir.NamedType(1, v, v)
	c := u.CloneKnown(orig)
	x, y := c.Inner.Args[0], c.Inner.Args[1]
	if x.Inner.Var == v.Inner.Var || x.Inner.Var != y.Inner.Var || x.Rank.Var != y.Rank.Var {
		t.Fatalf("clone vars: orig %+v clone %+v", orig, c)
	}
	u.Unify(x, ir.NamedType(2))
	if _, ok := u.FullySubstitute(v); ok {
		t.Fatalf("binding the clone bound the original")
	}
}

func TestBinaryRange(t *testing.T) {
	tests := []struct {
		op     ir.BinaryOperator
		a, b   IntRange
		lo, hi int64
	}{
		{ir.BinaryAdd, NewRange(0, 3), NewRange(1, 1), 1, 4},
		{ir.BinarySub, NewRange(0, 3), NewRange(0, 3), -3, 3},
		{ir.BinaryMul, NewRange(-2, 3), NewRange(-4, 1), -12, 8},
		{ir.BinaryDiv, NewRange(0, 100), NewRange(0, 10), 0, 100},
		{ir.BinaryDiv, NewRange(-8, 8), NewRange(2, 4), -4, 4},
		{ir.BinaryMod, NewRange(0, 100), NewRange(1, 8), 0, 7},
		{ir.BinaryMod, NewRange(0, 3), NewRange(1, 8), 0, 3},
		{ir.BinaryShiftLeft, NewRange(1, 3), NewRange(0, 2), 1, 12},
		{ir.BinaryShiftRight, NewRange(-8, 8), NewRange(1, 2), -4, 4},
	}
	for _, tt := range tests {
		got, ok := BinaryRange(tt.op, tt.a, tt.b)
		if !ok || !got.Equal(NewRange(tt.lo, tt.hi)) {
			t.Errorf("%v %s %v = %v (ok=%v), want [%d, %d]", tt.a, tt.op, tt.b, got, ok, tt.lo, tt.hi)
		}
	}
	if _, ok := BinaryRange(ir.BinaryDiv, NewRange(1, 2), NewRange(0, 0)); ok {
		t.Fatalf("division by zero range accepted")
	}
}

func TestBits(t *testing.T) {
	tests := []struct {
		r      IntRange
		width  int
		signed bool
	}{
		{NewRange(0, 0), 1, false},
		{NewRange(0, 7), 3, false},
		{NewRange(0, 8), 4, false},
		{NewRange(-8, 7), 4, true},
		{NewRange(-1, 0), 1, true},
		{Int32Range(), 32, true},
	}
	for _, tt := range tests {
		w, s := Bits(tt.r)
		if w != tt.width || s != tt.signed {
			t.Errorf("Bits(%v) = %d,%v want %d,%v", tt.r, w, s, tt.width, tt.signed)
		}
	}
}
