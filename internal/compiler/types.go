package compiler

import (
	"fmt"
	"time"
)

// Phase is one step of the pipeline. Phases run in declaration order.
type Phase uint8

const (
	PhaseInitialize Phase = iota + 1
	PhaseFlatten
	PhaseTypecheck
	PhaseLint
	PhaseInstantiate
	PhaseCodegen
)

var phaseNames = [...]string{
	PhaseInitialize:  "initialize",
	PhaseFlatten:     "flatten",
	PhaseTypecheck:   "typecheck",
	PhaseLint:        "lint",
	PhaseInstantiate: "instantiate",
	PhaseCodegen:     "codegen",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) && phaseNames[p] != "" {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// ParsePhase parses a phase name as accepted by --upto.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name != "" && name == s {
			return Phase(p), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q (expected initialize, flatten, typecheck, lint, instantiate or codegen)", s)
}

// Status captures progress state within a phase.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the whole compilation when File
// is empty). Parsing is reported with a zero Phase.
type Event struct {
	File    string
	Phase   Phase
	Status  Status
	Err     error
	Elapsed time.Duration
}

// Stage names the step an event belongs to.
func (e Event) Stage() string {
	if e.Phase == 0 {
		return "parse"
	}
	return e.Phase.String()
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, files []string, phase Phase, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Phase: phase, Status: status, Err: err, Elapsed: elapsed})
	for _, file := range files {
		sink.OnEvent(Event{File: file, Phase: phase, Status: status, Err: err, Elapsed: elapsed})
	}
}
