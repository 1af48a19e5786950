package flatten

import "sus/internal/ir"

// latencyForms records the ports whose latency specifier is linear in the
// template parameters.
func (f *flattener) latencyForms() {
	m := f.mod
	m.LatencyForms = nil
	n := f.li.Parameters.Len()
	for id, p := range m.Ports.All() {
		if !p.Latency.IsValid() {
			continue
		}
		form, ok := f.linear(p.Latency, n)
		if !ok {
			continue
		}
		form.Port = id
		m.LatencyForms = append(m.LatencyForms, form)
	}
}

// linear reads the expression id as Const + sum(Factors[i] * param i+1).
func (f *flattener) linear(id ir.FlatID, n int) (ir.LatencyForm, bool) {
	e := f.li.Instr(id).Expr()
	if e == nil {
		return ir.LatencyForm{}, false
	}
	src := &e.Source
	switch src.Kind {
	case ir.SourceLiteral:
		v, ok := src.Literal.Int64()
		if !ok {
			return ir.LatencyForm{}, false
		}
		return ir.LatencyForm{Const: v, Factors: make([]int64, n)}, true

	case ir.SourceWireRef:
		ref := src.Ref
		if ref.Root.Kind != ir.RootLocalDecl || len(ref.Path) > 0 {
			return ir.LatencyForm{}, false
		}
		d := f.li.Instr(ref.Root.Local).Decl()
		if d == nil || d.Kind != ir.DeclTemplateParam || !d.Param.IsValid() {
			return ir.LatencyForm{}, false
		}
		form := ir.LatencyForm{Factors: make([]int64, n)}
		form.Factors[d.Param-1] = 1
		return form, true

	case ir.SourceUnary:
		if src.Unary != ir.UnaryNegate {
			return ir.LatencyForm{}, false
		}
		r, ok := f.linear(src.Right, n)
		if !ok {
			return ir.LatencyForm{}, false
		}
		return scale(r, -1), true

	case ir.SourceBinary:
		l, ok := f.linear(src.Left, n)
		if !ok {
			return ir.LatencyForm{}, false
		}
		r, ok := f.linear(src.Right, n)
		if !ok {
			return ir.LatencyForm{}, false
		}
		switch src.Binary {
		case ir.BinaryAdd:
			return add(l, r, 1), true
		case ir.BinarySub:
			return add(l, r, -1), true
		case ir.BinaryMul:
			switch {
			case l.IsConst():
				return scale(r, l.Const), true
			case r.IsConst():
				return scale(l, r.Const), true
			}
		case ir.BinaryDiv, ir.BinaryMod:
			if !l.IsConst() || !r.IsConst() || r.Const == 0 {
				return ir.LatencyForm{}, false
			}
			v := l.Const / r.Const
			if src.Binary == ir.BinaryMod {
				v = l.Const % r.Const
			}
			return ir.LatencyForm{Const: v, Factors: make([]int64, n)}, true
		}
	}
	return ir.LatencyForm{}, false
}

func scale(f ir.LatencyForm, k int64) ir.LatencyForm {
	out := ir.LatencyForm{Const: f.Const * k, Factors: make([]int64, len(f.Factors))}
	for i, v := range f.Factors {
		out.Factors[i] = v * k
	}
	return out
}

func add(a, b ir.LatencyForm, sign int64) ir.LatencyForm {
	out := ir.LatencyForm{Const: a.Const + sign*b.Const, Factors: make([]int64, len(a.Factors))}
	for i := range out.Factors {
		out.Factors[i] = a.Factors[i] + sign*b.Factors[i]
	}
	return out
}
