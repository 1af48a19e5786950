package instantiate

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/typing"
)

// cache holds the instances of one module by mangled name. A nil entry
// marks an instance under construction.
type cache struct {
	byName map[string]*Instance
	order  []string
}

func newCache() *cache { return &cache{byName: make(map[string]*Instance)} }

func (c *cache) Clear() {
	clear(c.byName)
	c.order = c.order[:0]
}

func (c *cache) Len() int { return len(c.order) }

func cacheOf(m *ir.Module) *cache {
	if c, ok := m.Instances.(*cache); ok {
		return c
	}
	c := newCache()
	m.Instances = c
	return c
}

// Instances returns the finished instances of a module in creation order.
func Instances(m *ir.Module) []*Instance {
	c, ok := m.Instances.(*cache)
	if !ok {
		return nil
	}
	out := make([]*Instance, 0, len(c.order))
	for _, name := range c.order {
		if inst := c.byName[name]; inst != nil {
			out = append(out, inst)
		}
	}
	return out
}

// Instantiate elaborates module id for fully known arguments, or returns
// the cached instance. Diagnostics land in the instance's Errors.
func Instantiate(l *linker.Linker, id ir.ModuleID, args []ir.ConcreteArg) (*Instance, error) {
	inst, recursive := instantiate(l, id, args)
	if recursive {
		return nil, fmt.Errorf("%s depends on itself", Mangle(l, id, args))
	}
	return inst, nil
}

// InstantiateAll elaborates every module that takes no template arguments.
func InstantiateAll(l *linker.Linker) []*Instance {
	var out []*Instance
	for id, m := range l.Modules.All() {
		if (*m).Parameters.Len() != 0 {
			continue
		}
		if inst, recursive := instantiate(l, id, nil); !recursive {
			out = append(out, inst)
		}
	}
	return out
}

func instantiate(l *linker.Linker, id ir.ModuleID, args []ir.ConcreteArg) (inst *Instance, recursive bool) {
	m := l.Module(id)
	c := cacheOf(m)
	name := Mangle(l, id, args)
	if inst, seen := c.byName[name]; seen {
		return inst, inst == nil
	}
	c.byName[name] = nil
	inst = newInstance(name, id, args, m.Ports.Len())
	build(l, m, inst)
	c.byName[name] = inst
	c.order = append(c.order, name)
	return inst, false
}

func build(l *linker.Linker, m *ir.Module, inst *Instance) {
	rep := diag.BagReporter{Bag: inst.Errors}
	if m.Errors.HasErrors() {
		diag.ReportWarning(rep, diag.GenInfo, m.NameSpan,
			fmt.Sprintf("Not Instantiating %s due to abstract typing errors", m.Name)).Emit()
		inst.subFailed = true
		return
	}
	ex := newExecutor(l, &m.LinkInfo, inst.Args, inst, typing.New(), rep)
	ex.run(m.Instructions.IDs())
	ex.elaborate()
	ex.finalizeTypes()
	if inst.HasErrors() {
		return
	}
	ex.check(m)
	ex.countLatencies(m)
}
