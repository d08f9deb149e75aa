// Package bowl holds the places a patch can be applied to.
package bowl

import (
	"io"

	"github.com/itchio/buoy/tlc"
)

// A Bowl receives the entries of a patch log, one at a time, in order.
type Bowl interface {
	// phase 1: patching

	// Prepare makes the entry at entry.Path match its kind, permissions
	// and size. For regular files it returns a writer that block updates
	// go to, which the caller must close. For anything else it returns nil.
	Prepare(entry *tlc.Entry) (BlockWriter, error)

	// phase 2: committing
	Commit() error
}

type BlockWriter interface {
	io.WriterAt
	io.Closer
}
