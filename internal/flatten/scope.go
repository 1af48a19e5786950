package flatten

import (
	"sus/internal/ir"
	"sus/internal/source"
)

type localKind uint8

const (
	localDecl localKind = iota + 1
	localSubmodule
	localTemplateType
	localDomain
)

// local is what a name in a body refers to.
type local struct {
	kind   localKind
	id     ir.FlatID // localDecl, localSubmodule
	param  ir.TemplateID
	domain ir.DomainID
	span   source.Span
}

type binding struct {
	name string
	local
}

// scope is a stack of frames. Names may shadow names of outer frames but not
// of their own frame.
type scope struct {
	locals []binding
	frames []int
}

func (s *scope) push() { s.frames = append(s.frames, len(s.locals)) }

func (s *scope) pop() {
	n := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.locals = s.locals[:n]
}

func (s *scope) lookup(name string) (local, bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return s.locals[i].local, true
		}
	}
	return local{}, false
}

// declare adds name to the innermost frame. On a conflict within that frame
// it returns the earlier binding and false.
func (s *scope) declare(name string, l local) (local, bool) {
	start := 0
	if len(s.frames) > 0 {
		start = s.frames[len(s.frames)-1]
	}
	for _, b := range s.locals[start:] {
		if b.name == name {
			return b.local, false
		}
	}
	s.locals = append(s.locals, binding{name: name, local: l})
	return l, true
}
