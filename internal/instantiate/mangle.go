package instantiate

import (
	"strings"

	"sus/internal/ir"
	"sus/internal/linker"
)

// Mangle names the instance of a module for the given arguments. The result
// is a valid identifier in the generated code and unique per argument tuple.
func Mangle(l *linker.Linker, id ir.ModuleID, args []ir.ConcreteArg) string {
	var sb strings.Builder
	sb.WriteString(l.GlobalName(ir.ModuleUUID(id)))
	for _, a := range args {
		sb.WriteByte('_')
		if a.Type != nil {
			sb.WriteString(a.Type.Mangle(l))
		} else {
			sb.WriteString(a.Value.Value.MangleString())
		}
	}
	return sanitize(sb.String())
}

// sanitize keeps letters and digits and collapses every other run of
// characters into one underscore.
func sanitize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	under := false
	for _, r := range s {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
		if !ok {
			under = true
			continue
		}
		if under && sb.Len() > 0 {
			sb.WriteByte('_')
		}
		under = false
		sb.WriteRune(r)
	}
	return sb.String()
}
