package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sus/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "sus [flags] [file.sus...]",
	Short: "SUS hardware description language compiler",
	Long: `sus compiles SUS sources: it links, typechecks and instantiates every module,
solves latencies and optionally emits SystemVerilog. Only SystemVerilog output
is supported; there is no VHDL backend. Without files it reads sus.toml or
every *.sus file in the current directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCompile,
}

// errFailed is returned when diagnostics with errors were reported. The
// diagnostics are the message.
var errFailed = errors.New("compilation failed")

func init() {
	rootCmd.Version = version.Version
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.Flags()
	flags.Bool("lsp", false, "run the language server")
	flags.Int("socket", 0, "language server TCP port (1-65535, default 25000)")
	flags.Bool("stdio", false, "serve the language server over stdin/stdout instead of TCP")
	flags.Bool("codegen", false, "write one SystemVerilog (.sv) file per instantiated module; VHDL is not emitted")
	flags.String("standalone", "", "write one SystemVerilog (.sv) file holding `MODULE` and its dependencies; VHDL is not emitted")
	flags.String("out-dir", "", "codegen output directory (default codegen, or [codegen].out_dir)")
	flags.String("upto", "", "stop after the named phase (initialize|flatten|typecheck|lint|instantiate|codegen)")
	flags.String("format", "pretty", "diagnostic output format (pretty|json)")
	flags.Int("jobs", 0, "parallel parser workers (0=auto)")
	flags.Bool("debug", false, "dump every flattened global")
	flags.Bool("debug-latency", false, "write every latency problem as a msgpack snapshot")
	flags.Bool("lsp-debug", false, "log language server traffic to stderr")
	for _, name := range []string{"debug", "debug-latency", "lsp-debug"} {
		if err := flags.MarkHidden(name); err != nil {
			panic(err)
		}
	}

	persistent := rootCmd.PersistentFlags()
	persistent.String("color", "auto", "colorize output (auto|on|off)")
	persistent.Bool("quiet", false, "suppress non-essential output")
	persistent.Bool("timings", false, "show timing information")
	persistent.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	persistent.String("ui", "auto", "progress display (auto|on|off)")
	persistent.String("trace", "", "trace output file (- for stderr)")
	persistent.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	persistent.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	persistent.Int("trace-ring-size", 4096, "events kept by the ring tracer")
}

// main runs the root command. Any error exits with status 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "sus: %v\n", err)
		}
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
