// Package diag defines the diagnostic model shared by every compiler phase.
//
// A Diagnostic carries a severity, a numeric Code (see codes.go), a message,
// the primary span and optional notes. Notes point at related locations such
// as "declared here" and must add context rather than repeat the message.
//
// Phases never return findings as Go errors. They emit through a Reporter,
// usually via ReportError(...).WithNote(...).Emit(), and the linker keeps one
// Bag per global. A Bag supports checkpoints so that a phase can be re-run
// after truncating everything it produced the last time.
//
// Rendering lives in internal/diagfmt.
package diag
