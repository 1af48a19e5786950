package source

type (
	// FileID identifies a file within a FileSet.
	FileID uint32
	// FileFlags carries metadata about how a file entered the set.
	FileFlags uint8
)

const (
	// FileVirtual marks a file that did not come from disk (editor buffer, test, stdlib prelude).
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File holds the content of one source file and its line index.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // byte offsets of every '\n'
	Hash    [32]byte
	Flags   FileFlags
	Version int
}

// LineCol is a 1-based line and column (in bytes).
type LineCol struct {
	Line uint32
	Col  uint32
}
