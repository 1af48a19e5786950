package diag

// Severity orders diagnostics; higher is more severe.
type Severity uint8

const (
	// SevInfo only appears on notes attached to another diagnostic.
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{SevInfo: "info", SevWarning: "warning", SevError: "error"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}
