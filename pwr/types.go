// Package pwr builds and applies the three indexes of a block-level sync.
//
// A snapshot records the digest of every block of a set of files. A
// comparison, computed later against the snapshot, records which of those
// blocks are unchanged. A patch carries the metadata of each file plus the
// bytes of every block the comparison didn't mark as unchanged, and applying
// it brings a copy of the files up to date.
package pwr

import (
	"os"

	"github.com/itchio/buoy/tlc"
	"github.com/itchio/buoy/wsync"
	"github.com/itchio/headway/state"
)

// SnapshotRecord is one file of a snapshot index.
type SnapshotRecord struct {
	Path   string
	Hashes []uint64
}

func (r *SnapshotRecord) BlockCount() int64 {
	return int64(len(r.Hashes))
}

// ComparisonRecord is one file of a comparison index. Bit i of Bitmap is
// set when block i still has the digest the snapshot recorded.
type ComparisonRecord struct {
	Path       string
	BlockCount int64
	Bitmap     *wsync.Bitmap
}

// PatchRecord is one file of a patch log.
type PatchRecord struct {
	Path string
	Kind tlc.Kind
	Mode os.FileMode
	Size int64

	// BlockCount isn't stored, it follows from Size.
	BlockCount int64
	Updates    []UpdateEntry
}

// Entry returns what the path should look like once the record is applied.
func (r *PatchRecord) Entry() *tlc.Entry {
	return &tlc.Entry{
		Path: r.Path,
		Kind: r.Kind,
		Mode: r.Mode,
		Size: r.Size,
	}
}

// UpdateEntry carries the new contents of one block.
type UpdateEntry struct {
	BlockIndex int64
	Data       []byte
}

func consumerOrDefault(consumer *state.Consumer) *state.Consumer {
	if consumer == nil {
		return &state.Consumer{}
	}
	return consumer
}
