package instantiate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/latency"
	"sus/internal/source"
)

// latencyTarget names the submodule argument a latency candidate infers.
type latencyTarget struct {
	sub SubModuleID
	arg int
}

// latencyProblem builds the latency graph of the instance. With infer set,
// submodules that are not instantiated yet contribute their constant port
// latencies and inference candidates; otherwise they are left out.
func (ex *executor) latencyProblem(infer bool) (*latency.Problem, []latency.Candidate, []latencyTarget) {
	g := latency.NewGraph(ex.inst.Wires.Len())
	for id, w := range ex.inst.Wires.All() {
		to := node(id)
		w.Source.Wires(func(from WireID, regs int) {
			g.Connect(node(from), to, int64(regs))
		})
	}

	var candidates []latency.Candidate
	var targets []latencyTarget
	for sid, sm := range ex.inst.SubModules.All() {
		switch {
		case sm.Instance != nil:
			ex.submoduleCycles(g, sm)
		case infer && !sm.failed:
			candidates, targets = ex.inferenceEdges(g, sid, sm, candidates, targets)
		}
	}

	p := &latency.Problem{Fanins: g}
	for id, w := range ex.inst.Wires.All() {
		if w.HasSpecified {
			p.Specified = append(p.Specified, latency.Specified{Node: node(id), Latency: w.Specified})
		}
	}
	perDomain := map[ir.DomainID][]int{}
	var order []ir.DomainID
	for _, port := range ex.inst.Ports {
		if port == nil {
			continue
		}
		p.Ports.Push(node(port.Wire), port.IsInput)
		if _, seen := perDomain[port.Domain]; !seen {
			order = append(order, port.Domain)
		}
		perDomain[port.Domain] = append(perDomain[port.Domain], node(port.Wire))
	}
	for _, d := range order {
		if len(perDomain[d]) > 1 {
			p.PortsPerDomain = append(p.PortsPerDomain, perDomain[d])
		}
	}
	return p, candidates, targets
}

// submoduleCycles ties the ports of an instantiated submodule together at
// their relative latencies, one cycle per domain.
func (ex *executor) submoduleCycles(g latency.Graph, sm *SubModule) {
	byDomain := map[ir.DomainID][]latency.Specified{}
	var order []ir.DomainID
	for i, wid := range sm.PortMap {
		lat, ok := portLatency(sm.Instance.Port(ir.PortID(i + 1)))
		if !ok {
			continue
		}
		d := ex.inst.Wire(wid).Domain
		if _, seen := byDomain[d]; !seen {
			order = append(order, d)
		}
		byDomain[d] = append(byDomain[d], latency.Specified{Node: node(wid), Latency: lat})
	}
	for _, d := range order {
		g.AddCycle(byDomain[d])
	}
}

// inferenceEdges adds what is known about the latencies of a submodule that
// is not instantiated yet. Ports with constant latency forms are tied
// together. Each input to output pair becomes a known edge, a candidate for
// the one argument their forms differ in, or a poisoned edge.
func (ex *executor) inferenceEdges(g latency.Graph, sid SubModuleID, sm *SubModule, candidates []latency.Candidate, targets []latencyTarget) ([]latency.Candidate, []latencyTarget) {
	target := ex.l.Module(sm.Module)
	known := make([]*int64, len(sm.Args))
	for i, a := range sm.Args {
		if a.Type != nil {
			continue
		}
		if c := ex.u.ResolveValue(a.Value); c.Known() {
			if v, ok := c.Value.Int64(); ok {
				known[i] = &v
			}
		}
	}
	forms := make(map[ir.PortID]ir.LatencyForm, len(target.LatencyForms))
	for _, f := range target.LatencyForms {
		forms[f.Port] = f.Substitute(known)
	}

	byDomain := map[ir.DomainID][]latency.Specified{}
	var order []ir.DomainID
	for _, lf := range target.LatencyForms {
		f := forms[lf.Port]
		if !f.IsConst() {
			continue
		}
		wid := sm.PortMap[f.Port-1]
		d := ex.inst.Wire(wid).Domain
		if _, seen := byDomain[d]; !seen {
			order = append(order, d)
		}
		byDomain[d] = append(byDomain[d], latency.Specified{Node: node(wid), Latency: f.Const})
	}
	for _, d := range order {
		g.AddCycle(byDomain[d])
	}

	for in, p := range target.Ports.All() {
		if !p.IsInput {
			continue
		}
		for out, q := range target.Ports.All() {
			if q.IsInput || q.Domain != p.Domain {
				continue
			}
			from, to := node(sm.PortMap[in-1]), node(sm.PortMap[out-1])
			fi, okIn := forms[in]
			fo, okOut := forms[out]
			if !okIn || !okOut {
				g.ConnectPoison(from, to)
				continue
			}
			pair := relate(fi, fo)
			switch pair.kind {
			case pairKnown:
				// both constant: already part of the port cycle
				if !fi.IsConst() || !fo.IsConst() {
					g.Connect(from, to, pair.offset)
				}
			case pairInferable:
				c := latency.Candidate{Factor: pair.factor, Offset: pair.offset, From: from, To: to}
				t := latencyTarget{sub: sid, arg: pair.arg}
				c.Target = slices.Index(targets, t)
				if c.Target < 0 {
					c.Target = len(targets)
					targets = append(targets, t)
				}
				candidates = append(candidates, c)
			default:
				g.ConnectPoison(from, to)
			}
		}
	}
	return candidates, targets
}

type pairKind uint8

const (
	pairKnown pairKind = iota
	pairInferable
	pairPoison
)

// portPair is what the latency forms of an input and an output say about
// the edge between them.
type portPair struct {
	kind   pairKind
	offset int64
	factor int64
	arg    int
}

// relate compares an input form with an output form. When exactly one
// argument differs the pair is a candidate for it and stands in for the edge.
// More than one differing argument leaves the edge unknown.
func relate(in, out ir.LatencyForm) portPair {
	pair := portPair{kind: pairKnown, offset: out.Const - in.Const, arg: -1}
	n := max(len(in.Factors), len(out.Factors))
	for i := range n {
		var a, b int64
		if i < len(in.Factors) {
			a = in.Factors[i]
		}
		if i < len(out.Factors) {
			b = out.Factors[i]
		}
		d := b - a
		if d == 0 {
			continue
		}
		if pair.kind != pairKnown {
			return portPair{kind: pairPoison, arg: -1}
		}
		pair.kind, pair.arg, pair.factor = pairInferable, i, d
	}
	return pair
}

// inferLatencyArgs infers submodule arguments from latencies. It reports
// whether any argument was set.
func (ex *executor) inferLatencyArgs() bool {
	pending := false
	for _, sm := range ex.inst.SubModules.All() {
		if sm.Instance == nil && !sm.failed {
			pending = true
		}
	}
	if !pending {
		return false
	}
	p, candidates, targets := ex.latencyProblem(true)
	if len(candidates) == 0 {
		return false
	}
	values := make([]latency.ValueToInfer, len(targets))
	for i := range values {
		values[i] = latency.NewValueToInfer(true)
	}
	for _, c := range candidates {
		if c.Factor < 0 {
			values[c.Target] = latency.NewValueToInfer(false)
		}
	}
	if err := latency.Infer(p, candidates, values); err != nil {
		ex.reportLatency(err)
		return false
	}

	progress := false
	for i, t := range targets {
		v, ok := values[i].Get()
		if !ok {
			continue
		}
		sm := ex.inst.SubModules.MustGet(t.sub)
		if ex.u.SetValue(sm.Args[t.arg].Value, ir.IntValue(v)).OK() {
			progress = true
		}
	}
	return progress
}

// countLatencies assigns the final latency of every wire.
func (ex *executor) countLatencies(m *ir.Module) {
	if m.Extern != ir.NotExtern {
		for _, p := range ex.inst.Ports {
			if p == nil {
				continue
			}
			w := ex.inst.Wire(p.Wire)
			w.Latency = 0
			if w.HasSpecified {
				w.Latency = w.Specified
			}
			p.Latency = w.Latency
		}
		return
	}
	p, _, _ := ex.latencyProblem(false)
	ex.inst.LatencyProblem = p
	lats, err := latency.Solve(p)
	if err != nil {
		ex.inst.FailedLatency = p
		ex.reportLatency(err)
		return
	}
	for id, w := range ex.inst.Wires.All() {
		l := lats[node(id)]
		if !latency.IsValid(l) {
			diag.ReportError(ex.rep, diag.LatUnreachable, ex.wireSpan(w), "Latency Counting couldn't reach this node").Emit()
			continue
		}
		w.Latency = l
		w.NeededUntil = l
	}
	for _, w := range ex.inst.Wires.All() {
		if w.Latency == LatencyLater {
			continue
		}
		w.Source.Wires(func(from WireID, _ int) {
			f := ex.inst.Wire(from)
			f.NeededUntil = max(f.NeededUntil, w.Latency)
		})
	}
	for _, port := range ex.inst.Ports {
		if port != nil {
			port.Latency = ex.inst.Wire(port.Wire).Latency
		}
	}
}

func (ex *executor) nodeWire(n int) *Wire { return ex.inst.Wire(WireID(n + 1)) }

func (ex *executor) formatPath(path []latency.Specified) string {
	var sb strings.Builder
	for i, s := range path {
		w := ex.nodeWire(s.Node)
		if i == 0 {
			fmt.Fprintf(&sb, "%s'%d", w.Name, s.Latency)
			continue
		}
		fmt.Fprintf(&sb, "\n-> %s'%d (+%d)", w.Name, s.Latency, s.Latency-path[i-1].Latency)
	}
	return sb.String()
}

// reportLatency turns a latency counting failure into diagnostics.
func (ex *executor) reportLatency(err error) {
	var cycle *latency.NetPositiveCycleError
	var conflict *latency.ConflictingSpecifiedError
	var indeterminable *latency.IndeterminablePortError
	var unreachable *latency.UnreachablePortError
	switch {
	case errors.As(err, &cycle):
		ex.reportCycle(cycle)
	case errors.As(err, &conflict):
		if len(conflict.Path) == 0 {
			return
		}
		first, last := ex.nodeWire(conflict.Path[0].Node), ex.nodeWire(conflict.Path[len(conflict.Path)-1].Node)
		diag.ReportError(ex.rep, diag.LatConflicting, ex.latencySpan(last),
			"Conflicting specified latency\n"+ex.formatPath(conflict.Path)).
			WithNote(ex.latencySpan(first), fmt.Sprintf("'%s' is specified at '%d", first.Name, first.Specified)).
			Emit()
	case errors.As(err, &indeterminable):
		for _, b := range indeterminable.BadPorts {
			w := ex.nodeWire(b.Node)
			diag.ReportError(ex.rep, diag.LatIndeterminable, ex.wireSpan(w),
				fmt.Sprintf("Cannot determine port latency. Options are %d and %d\nTry specifying an explicit latency or rework the module to remove this ambiguity",
					b.Found, b.Expected)).Emit()
		}
	case errors.As(err, &unreachable):
		for _, part := range unreachable.Partitions {
			for _, n := range part.NotHit {
				rb := diag.ReportError(ex.rep, diag.LatUnreachable, ex.wireSpan(ex.nodeWire(n)),
					"This port is not strongly connected to the strongly connected port cluster")
				for _, h := range part.Hit {
					w := ex.nodeWire(h)
					rb.WithNote(ex.wireSpan(w), fmt.Sprintf("'%s' is part of the cluster", w.Name))
				}
				rb.Emit()
			}
		}
	default:
		diag.ReportError(ex.rep, diag.LatInference, ex.li.NameSpan, err.Error()).Emit()
	}
}

func (ex *executor) reportCycle(cycle *latency.NetPositiveCycleError) {
	var regs, writes []source.Span
	for i := range cycle.Path {
		to := ex.nodeWire(cycle.Path[i].Node)
		var from WireID
		if i > 0 {
			from = WireID(cycle.Path[i-1].Node + 1)
		} else {
			from = WireID(cycle.Path[len(cycle.Path)-1].Node + 1)
		}
		if to.Source.Kind != SourceMux {
			continue
		}
		for _, src := range to.Source.Sources {
			if src.From != from {
				continue
			}
			if src.NumRegs > 0 {
				regs = append(regs, src.RegsSpan)
			} else {
				writes = append(writes, src.ToSpan)
			}
		}
	}
	msg := fmt.Sprintf("part of a net-positive latency cycle of +%d\n%s", cycle.Roundtrip, ex.formatPath(cycle.Path))
	switch {
	case len(regs) == 1:
		diag.ReportError(ex.rep, diag.LatNetPositiveCycle, regs[0], "This register is "+msg).Emit()
	case len(regs) > 1:
		rb := diag.ReportError(ex.rep, diag.LatNetPositiveCycle, regs[0], "These registers are "+msg)
		for _, sp := range regs[1:] {
			rb.WithNote(sp, "Register in the cycle")
		}
		rb.Emit()
	case len(writes) > 0:
		diag.ReportError(ex.rep, diag.LatNetPositiveCycle, writes[0], "This write is "+msg).Emit()
	case len(cycle.Path) > 0:
		diag.ReportError(ex.rep, diag.LatNetPositiveCycle, ex.wireSpan(ex.nodeWire(cycle.Path[0].Node)), "This wire is "+msg).Emit()
	}
}

// latencySpan points at the latency specifier of a declared wire.
func (ex *executor) latencySpan(w *Wire) source.Span {
	if d := ex.li.Instr(w.Original).Decl(); d != nil && d.LatencySpec.IsValid() {
		return ex.li.Instr(d.LatencySpec).Span
	}
	return ex.wireSpan(w)
}
