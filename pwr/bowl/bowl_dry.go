package bowl

import (
	"github.com/itchio/buoy/counter"
	"github.com/itchio/buoy/tlc"
	"github.com/pkg/errors"
)

type dryBowl struct {
	counter *counter.CounterWriter
	entries int64
}

var _ Bowl = (*dryBowl)(nil)

// DryBowl is a bowl that throws away all writes, but keeps count
type DryBowl interface {
	Bowl
	BytesWritten() int64
	EntriesPrepared() int64
}

// NewDryBowl returns a bowl that throws away all writes
func NewDryBowl() DryBowl {
	return &dryBowl{
		counter: counter.NewWriter(nil),
	}
}

func (db *dryBowl) Prepare(entry *tlc.Entry) (BlockWriter, error) {
	if entry.Kind == tlc.KindOther {
		return nil, errors.Errorf("drybowl: can't prepare %s entry %s", entry.Kind, entry.Path)
	}

	db.entries++
	if entry.Kind != tlc.KindRegular {
		return nil, nil
	}

	return &dryWriter{db: db, size: entry.Size}, nil
}

func (db *dryBowl) Commit() error {
	// literally nothing to do, we're just throwing stuff away!
	return nil
}

func (db *dryBowl) BytesWritten() int64 {
	return db.counter.Count()
}

func (db *dryBowl) EntriesPrepared() int64 {
	return db.entries
}

type dryWriter struct {
	db   *dryBowl
	size int64
}

func (dw *dryWriter) WriteAt(buf []byte, offset int64) (int, error) {
	if offset < 0 || offset+int64(len(buf)) > dw.size {
		return 0, errors.Errorf("drybowl: write of %d bytes at %d is past end of %d-byte file", len(buf), offset, dw.size)
	}
	return dw.db.counter.Write(buf)
}

func (dw *dryWriter) Close() error {
	return nil
}
