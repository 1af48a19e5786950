package codegen

import (
	"fmt"
	"io"
	"strings"
	"time"

	"sus/internal/instantiate"
	"sus/internal/linker"
	"sus/internal/version"
)

// Extension is the file extension of emitted files.
const Extension = ".sv"

// maxFileName is the longest file name most platforms accept, in bytes.
const maxFileName = 255

// Header is the comment every emitted file starts with. A zero time leaves
// out the generation time so outputs can be compared.
func Header(now time.Time) string {
	var sb strings.Builder
	if now.IsZero() {
		sb.WriteString("// THIS IS A GENERATED FILE\n")
	} else {
		fmt.Fprintf(&sb, "// THIS IS A GENERATED FILE (Generated at %s)\n", now.Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "// This file was generated with SUS Compiler %s\n", version.Version)
	return sb.String()
}

// Order returns the given instances and every instance they depend on,
// submodules before the modules using them. Each instance appears once.
func Order(tops ...*instantiate.Instance) []*instantiate.Instance {
	seen := make(map[*instantiate.Instance]bool)
	var out []*instantiate.Instance
	var visit func(inst *instantiate.Instance)
	visit = func(inst *instantiate.Instance) {
		if inst == nil || seen[inst] {
			return
		}
		seen[inst] = true
		for _, sm := range inst.SubModules.All() {
			visit(sm.Instance)
		}
		out = append(out, inst)
	}
	for _, t := range tops {
		visit(t)
	}
	return out
}

// WriteAll emits every instance to w in order. Instances with errors are
// skipped and reported in the returned error after the rest was written.
func WriteAll(w io.Writer, l *linker.Linker, insts []*instantiate.Instance) error {
	var failed []string
	for _, inst := range insts {
		code, err := EmitInstance(l, inst)
		if err != nil {
			failed = append(failed, err.Error())
			continue
		}
		if _, err := io.WriteString(w, code); err != nil {
			return fmt.Errorf("write %s: %w", inst.Name, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("cannot codegen %s", strings.Join(failed, "; "))
	}
	return nil
}

// FileName returns name+ext shortened to a length every platform accepts,
// with path separators replaced.
func FileName(name, ext string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	limit := maxFileName - len(ext)
	if len(name) <= limit {
		return name + ext
	}
	var sb strings.Builder
	for _, r := range name {
		if sb.Len()+len(string(r)) > limit {
			break
		}
		sb.WriteRune(r)
	}
	return sb.String() + ext
}
