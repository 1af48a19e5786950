package compiler

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sus/internal/version"
)

//go:embed std/*.sus
var embeddedStd embed.FS

// StdEnv overrides the standard library directory.
const StdEnv = "SUS_STD"

// EmbeddedStdPrefix starts the path of every embedded prelude file.
const EmbeddedStdPrefix = "<std>/"

// StdDir returns the standard library directory: $SUS_STD, else
// ~/.sus/<version>/std when it exists. An empty result selects the
// embedded prelude.
func StdDir() string {
	if dir := os.Getenv(StdEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".sus", version.Version, "std")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

// stdFile is one standard library source.
type stdFile struct {
	path    string
	content []byte
}

// stdSources lists the *.sus files of dir, or the embedded prelude when dir
// is empty.
func stdSources(dir string) ([]stdFile, error) {
	var fsys fs.FS = embeddedStd
	pattern := "std/*.sus"
	if dir != "" {
		fsys, pattern = os.DirFS(dir), "*.sus"
	}
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no standard library sources in %q", dir)
	}
	sort.Strings(names)
	out := make([]stdFile, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read std file: %w", err)
		}
		path := filepath.Join(dir, filepath.FromSlash(name))
		if dir == "" {
			path = EmbeddedStdPrefix + filepath.Base(name)
		}
		out = append(out, stdFile{path: path, content: content})
	}
	return out, nil
}

// ErrNoSources is returned when there is nothing to compile.
var ErrNoSources = errors.New("no .sus files given and none found in the current directory")

// FindSources returns every *.sus file directly inside dir.
func FindSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sus" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSources
	}
	return out, nil
}
