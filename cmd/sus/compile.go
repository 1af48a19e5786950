package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sus/internal/compiler"
	"sus/internal/diag"
	"sus/internal/diagfmt"
	"sus/internal/lsp"
	"sus/internal/observ"
	"sus/internal/project"
)

// inputs is what the compiler and the language server start from.
type inputs struct {
	files      []string
	stdDir     string
	outDir     string
	standalone string
	port       int
}

// resolveInputs picks the sources: positional files, else sus.toml, else
// every *.sus file in the working directory. The language server tolerates
// an empty result.
func resolveInputs(args []string, forLSP bool) (inputs, error) {
	in := inputs{stdDir: compiler.StdDir(), port: project.DefaultPort}
	cwd, err := os.Getwd()
	if err != nil {
		return in, err
	}
	m, ok, err := project.LoadFrom(cwd)
	if err != nil {
		return in, err
	}
	if ok {
		if dir, err := m.StdDir(); err != nil {
			return in, err
		} else if dir != "" {
			in.stdDir = dir
		}
		if in.outDir, err = m.OutDir(); err != nil {
			return in, err
		}
		in.standalone = m.Codegen.Standalone
		in.port = m.LSP.Port
	}
	switch {
	case len(args) > 0:
		in.files = args
	case ok:
		in.files, err = m.SourceFiles()
	default:
		in.files, err = compiler.FindSources(cwd)
	}
	if forLSP && errors.Is(err, compiler.ErrNoSources) {
		err = nil
	}
	return in, err
}

// applyColor turns color off unless --color (or a terminal) allows it.
func applyColor(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	mode, err := readUIMode("color", value)
	if err != nil {
		return err
	}
	color.NoColor = !mode.enabled(os.Stdout)
	return nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	if err := applyColor(cmd); err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	flags := cmd.Flags()
	persistent := cmd.Root().PersistentFlags()
	maxDiagnostics, err := persistent.GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	useLSP, err := flags.GetBool("lsp")
	if err != nil {
		return fmt.Errorf("failed to get lsp flag: %w", err)
	}
	in, err := resolveInputs(args, useLSP)
	if err != nil {
		return err
	}
	if useLSP {
		return runLSP(cmd, in, maxDiagnostics)
	}

	opts := &compiler.Options{
		Files:          in.files,
		StdDir:         in.stdDir,
		OutDir:         in.outDir,
		Standalone:     in.standalone,
		MaxDiagnostics: maxDiagnostics,
		Now:            time.Now,
	}
	if opts.Codegen, err = flags.GetBool("codegen"); err != nil {
		return fmt.Errorf("failed to get codegen flag: %w", err)
	}
	if flags.Changed("standalone") {
		if opts.Standalone, err = flags.GetString("standalone"); err != nil {
			return fmt.Errorf("failed to get standalone flag: %w", err)
		}
	}
	if flags.Changed("out-dir") {
		if opts.OutDir, err = flags.GetString("out-dir"); err != nil {
			return fmt.Errorf("failed to get out-dir flag: %w", err)
		}
	}
	upto, err := flags.GetString("upto")
	if err != nil {
		return fmt.Errorf("failed to get upto flag: %w", err)
	}
	if upto != "" {
		if opts.Upto, err = compiler.ParsePhase(strings.ToLower(upto)); err != nil {
			return err
		}
	}
	if opts.Jobs, err = flags.GetInt("jobs"); err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	debug, err := flags.GetBool("debug")
	if err != nil {
		return fmt.Errorf("failed to get debug flag: %w", err)
	}
	if debug {
		opts.Debug = cmd.OutOrStdout()
	}
	if opts.DebugLatency, err = flags.GetBool("debug-latency"); err != nil {
		return fmt.Errorf("failed to get debug-latency flag: %w", err)
	}
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unknown format %q (expected pretty or json)", format)
	}

	timings, err := persistent.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if timings {
		opts.Timer = observ.NewTimer()
	}
	quiet, err := persistent.GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	uiValue, err := persistent.GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	progressMode, err := readUIMode("ui", uiValue)
	if err != nil {
		return err
	}

	var res *compiler.Result
	if !quiet && format == "pretty" && progressMode.enabled(os.Stderr) {
		res, err = runCompileWithUI(cmd.Context(), "compiling", opts)
	} else {
		res, err = compiler.Compile(cmd.Context(), opts)
	}
	if res != nil {
		bag := res.Diagnostics()
		if perr := printDiagnostics(cmd.OutOrStdout(), format, bag, res, maxDiagnostics); perr != nil {
			return perr
		}
		if !quiet {
			printSummary(cmd.ErrOrStderr(), bag, res)
		}
	}
	if opts.Timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), opts.Timer.Summary())
	}
	if err != nil {
		return err
	}
	if res.HasErrors() {
		return errFailed
	}
	return nil
}

func printDiagnostics(w io.Writer, format string, bag *diag.Bag, res *compiler.Result, maxDiagnostics int) error {
	fs := res.Linker.Files
	if format == "json" {
		return diagfmt.JSON(w, bag, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     true,
			Max:              maxDiagnostics,
		})
	}
	diagfmt.Pretty(w, bag, fs, diagfmt.PrettyOpts{
		Color:     !color.NoColor,
		Context:   1,
		PathMode:  diagfmt.PathModeAuto,
		ShowNotes: true,
	})
	return nil
}

func printSummary(w io.Writer, bag *diag.Bag, res *compiler.Result) {
	errs, warnings := 0, 0
	for _, d := range bag.Items() {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warnings++
		}
	}
	if errs > 0 || warnings > 0 {
		fmt.Fprintf(w, "%d error(s), %d warning(s)\n", errs, warnings)
	}
	for _, path := range res.Written {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
}

// runLSP serves one editor session over TCP, or over stdio with --stdio.
func runLSP(cmd *cobra.Command, in inputs, maxDiagnostics int) error {
	flags := cmd.Flags()
	lspDebug, err := flags.GetBool("lsp-debug")
	if err != nil {
		return fmt.Errorf("failed to get lsp-debug flag: %w", err)
	}
	stdio, err := flags.GetBool("stdio")
	if err != nil {
		return fmt.Errorf("failed to get stdio flag: %w", err)
	}
	port := in.port
	if flags.Changed("socket") {
		if port, err = flags.GetInt("socket"); err != nil {
			return fmt.Errorf("failed to get socket flag: %w", err)
		}
	}
	opts := lsp.Options{
		StdDir:         in.stdDir,
		Debug:          lspDebug,
		Log:            cmd.ErrOrStderr(),
		MaxDiagnostics: maxDiagnostics,
	}
	if stdio {
		err = lsp.NewServer(os.Stdin, os.Stdout, opts).Run(cmd.Context())
	} else {
		if lspDebug {
			fmt.Fprintf(cmd.ErrOrStderr(), "lsp: listening on 127.0.0.1:%d\n", port)
		}
		err = lsp.ServeTCP(cmd.Context(), port, opts)
	}
	switch {
	case err == nil, errors.Is(err, lsp.ErrExit):
		return nil
	case errors.Is(err, lsp.ErrExitWithoutShutdown):
		return fmt.Errorf("lsp exit without shutdown")
	default:
		return err
	}
}
