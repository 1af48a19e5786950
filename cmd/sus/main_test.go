package main

import (
	"strings"
	"testing"
)

func TestCodegenHelpNamesSystemVerilogOnly(t *testing.T) {
	if !strings.Contains(rootCmd.Long, "no VHDL backend") {
		t.Fatalf("long help does not say VHDL is unsupported:\n%s", rootCmd.Long)
	}
	for _, name := range []string{"codegen", "standalone"} {
		f := rootCmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("flag --%s is not registered", name)
		}
		if !strings.Contains(f.Usage, "SystemVerilog") || !strings.Contains(f.Usage, "VHDL is not emitted") {
			t.Fatalf("--%s usage %q", name, f.Usage)
		}
	}
	for _, hidden := range []string{"debug", "debug-latency", "lsp-debug"} {
		if f := rootCmd.Flags().Lookup(hidden); f == nil || !f.Hidden {
			t.Fatalf("--%s should be registered and hidden", hidden)
		}
	}
}
