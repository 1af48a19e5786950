package latency

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const snapshotSchema uint16 = 1

// Snapshot is a latency problem frozen to disk, so a failing instantiation
// can be replayed in isolation.
type Snapshot struct {
	Schema     uint16      `msgpack:"schema"`
	Module     string      `msgpack:"module"`
	Problem    Problem     `msgpack:"problem"`
	Candidates []Candidate `msgpack:"candidates,omitempty"`
	// Names maps nodes back to wire names.
	Names []string `msgpack:"names,omitempty"`
}

// WriteSnapshot encodes a problem to w.
func WriteSnapshot(w io.Writer, module string, p *Problem, candidates []Candidate, names []string) error {
	snap := Snapshot{
		Schema:     snapshotSchema,
		Module:     module,
		Problem:    *p,
		Candidates: candidates,
		Names:      names,
	}
	return msgpack.NewEncoder(w).Encode(&snap)
}

// ReadSnapshot decodes a problem written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Schema != snapshotSchema {
		return nil, fmt.Errorf("latency snapshot schema %d, want %d", snap.Schema, snapshotSchema)
	}
	return &snap, nil
}
