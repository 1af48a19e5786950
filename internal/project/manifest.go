// Package project reads the optional sus.toml project file.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPort is the TCP port of the language server when none is given.
const DefaultPort = 25000

// DefaultOutDir is where per-module SystemVerilog files are written.
const DefaultOutDir = "codegen"

// Manifest is the decoded content of sus.toml.
type Manifest struct {
	// Root is the directory holding the manifest. Relative paths are
	// resolved against it.
	Root string `toml:"-"`

	Project struct {
		// Files lists source files or glob patterns.
		Files []string `toml:"files"`
		Std   string   `toml:"std"`
	} `toml:"project"`
	Codegen struct {
		OutDir     string `toml:"out_dir"`
		Standalone string `toml:"standalone"`
	} `toml:"codegen"`
	LSP struct {
		Port int `toml:"port"`
	} `toml:"lsp"`
}

var (
	// ErrBadPort indicates an [lsp].port outside 1..65535.
	ErrBadPort = errors.New("port must be in 1..65535")
	// ErrEscapesRoot indicates a path that leaves the project directory.
	ErrEscapesRoot = errors.New("escapes the project root")
)

// Load parses a sus.toml file and fills in defaults.
func Load(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	m.Root = filepath.Dir(path)
	if !meta.IsDefined("lsp", "port") {
		m.LSP.Port = DefaultPort
	}
	if m.LSP.Port < 1 || m.LSP.Port > 65535 {
		return nil, fmt.Errorf("%s: [lsp].port %d: %w", path, m.LSP.Port, ErrBadPort)
	}
	if strings.TrimSpace(m.Codegen.OutDir) == "" {
		m.Codegen.OutDir = DefaultOutDir
	}
	return &m, nil
}

// LoadFrom finds and loads the manifest governing startDir. ok is false when
// there is none.
func LoadFrom(startDir string) (m *Manifest, ok bool, err error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err = Load(path)
	return m, err == nil, err
}

// SourceFiles expands [project].files against the project root. Without
// entries every *.sus file in the root directory is used.
func (m *Manifest) SourceFiles() ([]string, error) {
	patterns := m.Project.Files
	if len(patterns) == 0 {
		patterns = []string{"*.sus"}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, pat := range patterns {
		full, err := m.resolve(pat)
		if err != nil {
			return nil, fmt.Errorf("[project].files %q: %w", pat, err)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, fmt.Errorf("[project].files %q: %w", pat, err)
		}
		if len(matches) == 0 && !strings.ContainsAny(pat, "*?[") {
			return nil, fmt.Errorf("[project].files %q: %w", pat, os.ErrNotExist)
		}
		sort.Strings(matches)
		for _, f := range matches {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out, nil
}

// StdDir returns the configured standard library directory, or "".
func (m *Manifest) StdDir() (string, error) {
	if strings.TrimSpace(m.Project.Std) == "" {
		return "", nil
	}
	if filepath.IsAbs(m.Project.Std) {
		return filepath.Clean(m.Project.Std), nil
	}
	return filepath.Join(m.Root, filepath.FromSlash(m.Project.Std)), nil
}

// OutDir returns the codegen output directory.
func (m *Manifest) OutDir() (string, error) {
	return m.resolve(m.Codegen.OutDir)
}

func (m *Manifest) resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q must be relative", rel)
	}
	full := filepath.Join(m.Root, filepath.FromSlash(rel))
	if !pathWithin(m.Root, full) {
		return "", fmt.Errorf("%q: %w", rel, ErrEscapesRoot)
	}
	return full, nil
}

func pathWithin(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..") && rel != ".."
}
