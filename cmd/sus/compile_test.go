package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sus/internal/compiler"
	"sus/internal/project"
)

func TestReadUIMode(t *testing.T) {
	tests := []struct {
		in   string
		want uiMode
		ok   bool
	}{
		{"", uiModeAuto, true},
		{"AUTO", uiModeAuto, true},
		{" on ", uiModeOn, true},
		{"off", uiModeOff, true},
		{"sometimes", "", false},
	}
	for _, tt := range tests {
		got, err := readUIMode("ui", tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("readUIMode(%q) = %q, %v", tt.in, got, err)
		}
	}
	if !uiModeOn.enabled(nil) || uiModeOff.enabled(nil) {
		t.Fatal("explicit modes must ignore the terminal")
	}
}

func TestResolveInputsFromManifest(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("sus.toml", "[project]\nfiles = [\"a.sus\"]\n[codegen]\nstandalone = \"top\"\n[lsp]\nport = 4000\n")
	write("a.sus", "module top {}\n")
	write("b.sus", "module other {}\n")

	in, err := resolveInputs(nil, false)
	if err != nil {
		t.Fatalf("resolveInputs: %v", err)
	}
	if len(in.files) != 1 || filepath.Base(in.files[0]) != "a.sus" {
		t.Fatalf("files = %v", in.files)
	}
	if in.standalone != "top" || in.port != 4000 || in.outDir != filepath.Join(dir, project.DefaultOutDir) {
		t.Fatalf("inputs = %+v", in)
	}

	in, err = resolveInputs([]string{"b.sus"}, false)
	if err != nil || len(in.files) != 1 || in.files[0] != "b.sus" {
		t.Fatalf("positional files = %v, %v", in.files, err)
	}
}

func TestResolveInputsEmptyDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := resolveInputs(nil, false); !errors.Is(err, compiler.ErrNoSources) {
		t.Fatalf("compile without sources: %v", err)
	}
	in, err := resolveInputs(nil, true)
	if err != nil || len(in.files) != 0 || in.port != project.DefaultPort {
		t.Fatalf("lsp without sources: %+v, %v", in, err)
	}
}
