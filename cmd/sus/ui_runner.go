package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"sus/internal/compiler"
	"sus/internal/ui"
)

type compileOutcome struct {
	result *compiler.Result
	err    error
}

// runCompileWithUI runs the compilation in the background while a progress
// view consumes its events.
func runCompileWithUI(ctx context.Context, title string, opts *compiler.Options) (*compiler.Result, error) {
	if opts == nil {
		return nil, fmt.Errorf("missing compile options")
	}
	final := opts.Upto
	if final == 0 {
		final = compiler.PhaseCodegen
	}
	events := make(chan compiler.Event, 256)
	outcomeCh := make(chan compileOutcome, 1)

	go func() {
		optsCopy := *opts
		optsCopy.Progress = compiler.ChannelSink{Ch: events}
		res, err := compiler.Compile(ctx, &optsCopy)
		outcomeCh <- compileOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, opts.Files, final, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
