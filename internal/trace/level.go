package trace

import (
	"fmt"
	"strings"
)

// Level is the verbosity of a tracer.
type Level uint8

const (
	LevelOff Level = iota
	// LevelError keeps nothing live; rings are only dumped on failure.
	LevelError
	LevelPhase  // driver and phases
	LevelDetail // plus globals and instances
	LevelDebug  // plus single instructions
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLevel parses a --trace-level value.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level %q (expected off|error|phase|detail|debug)", s)
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeDriver Scope = iota + 1
	ScopePass
	ScopeGlobal
	ScopeNode
)

var scopeNames = [...]string{ScopeDriver: "driver", ScopePass: "pass", ScopeGlobal: "global", ScopeNode: "node"}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Keeps reports whether events of scope pass at this level.
func (l Level) Keeps(scope Scope) bool {
	switch l {
	case LevelPhase:
		return scope <= ScopePass
	case LevelDetail:
		return scope <= ScopeGlobal
	case LevelDebug:
		return true
	default:
		return false
	}
}
