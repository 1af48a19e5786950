package trace

import (
	"sync/atomic"
	"time"

	"sus/internal/source"
)

var spanIDs atomic.Uint64

// Span is an open begin/end pair. The zero-cost span returned for filtered
// scopes accepts every call.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

func keeps(t Tracer, scope Scope) bool {
	return t != nil && t.Enabled() && t.Level().Keeps(scope)
}

// Begin opens a span under parent (0 for a root) and emits its begin event.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if !keeps(t, scope) {
		return &Span{}
	}
	s := &Span{tracer: t, id: spanIDs.Add(1), parent: parent, scope: scope, name: name, started: time.Now()}
	t.Emit(&Event{Time: s.started, Kind: KindBegin, Scope: scope, SpanID: s.id, ParentID: parent, Name: name})
	return s
}

// End emits the end event and returns the time since Begin.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	d := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})
	return d
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string) {
	if keeps(t, scope) {
		t.Emit(&Event{Time: time.Now(), Kind: KindPoint, Scope: scope, Name: name, Detail: detail})
	}
}

// Node records that what is processing the instruction at sp: the span goes
// into the crash history and, at debug level, to t.
func Node(t Tracer, what string, sp source.Span) {
	Touch(what, sp)
	if keeps(t, ScopeNode) {
		t.Emit(&Event{Time: time.Now(), Kind: KindPoint, Scope: ScopeNode, Name: what, At: sp})
	}
}
