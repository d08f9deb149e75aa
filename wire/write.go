package wire

import (
	"io"

	"github.com/pkg/errors"
)

// PutUint stores v in b, least significant byte first, using all of b.
func PutUint(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// Uint is the inverse of PutUint.
func Uint(b []byte) uint64 {
	var v uint64
	for i := range b {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

// Fits returns true if v can be stored in a field of the given width.
func Fits(v uint64, width int) bool {
	if width >= 8 {
		return true
	}
	return v < 1<<(8*uint(width))
}

// A WriteContext writes index fields to a seekable sink. Indexes are
// written records-first, header-last, so the sink must support seeking.
type WriteContext struct {
	writer io.WriteSeeker
	buf    [8]byte
}

func NewWriteContext(writer io.WriteSeeker) *WriteContext {
	return &WriteContext{writer: writer}
}

func (w *WriteContext) Writer() io.WriteSeeker {
	return w.writer
}

// Tell returns the current write offset.
func (w *WriteContext) Tell() (int64, error) {
	offset, err := w.writer.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.Wrap(err, "getting write offset")
	}
	return offset, nil
}

func (w *WriteContext) SeekTo(offset int64) error {
	_, err := w.writer.Seek(offset, io.SeekStart)
	if err != nil {
		return errors.Wrapf(err, "seeking to %d", offset)
	}
	return nil
}

func (w *WriteContext) WriteBytes(b []byte) error {
	_, err := w.writer.Write(b)
	if err != nil {
		return errors.Wrap(err, "writing index")
	}
	return nil
}

// WriteUint writes v as a little-endian field of the given width.
func (w *WriteContext) WriteUint(v uint64, width int) error {
	if !Fits(v, width) {
		return errors.Wrapf(ErrCapacityExceeded, "%d does not fit in %d bytes", v, width)
	}
	PutUint(w.buf[:width], v)
	return w.WriteBytes(w.buf[:width])
}

// WritePathname writes a length-prefixed pathname.
func (w *WriteContext) WritePathname(path string) error {
	if len(path) > MaxPathnameLen {
		return errors.Wrapf(ErrCapacityExceeded, "pathname is %d bytes long, max is %d", len(path), MaxPathnameLen)
	}

	err := w.WriteUint(uint64(len(path)), PathnameLenSize)
	if err != nil {
		return err
	}
	return w.WriteBytes([]byte(path))
}

// SkipHeader positions the writer on the first record.
func (w *WriteContext) SkipHeader() error {
	return w.SeekTo(HeaderSize)
}

// WriteHeader rewinds to the start of the sink, writes the magic and
// record count, then moves back to where it was.
func (w *WriteContext) WriteHeader(magic Magic, numRecords int) error {
	if numRecords > MaxRecords {
		return errors.Wrapf(ErrCapacityExceeded, "%d records, max is %d", numRecords, MaxRecords)
	}

	end, err := w.Tell()
	if err != nil {
		return err
	}

	err = w.SeekTo(0)
	if err != nil {
		return err
	}

	err = w.WriteBytes(magic[:])
	if err != nil {
		return err
	}

	err = w.WriteUint(uint64(numRecords), RecordCountSize)
	if err != nil {
		return err
	}

	return w.SeekTo(end)
}

// A DeferredField is a fixed-width placeholder whose value is only known
// after the bytes following it have been written.
type DeferredField struct {
	w      *WriteContext
	offset int64
	width  int
	filled bool
}

// Reserve writes a zeroed field of the given width and returns a handle
// to fill it in later.
func (w *WriteContext) Reserve(width int) (*DeferredField, error) {
	offset, err := w.Tell()
	if err != nil {
		return nil, err
	}

	err = w.WriteUint(0, width)
	if err != nil {
		return nil, err
	}

	return &DeferredField{
		w:      w,
		offset: offset,
		width:  width,
	}, nil
}

// Fill seeks back to the placeholder, overwrites it with v, and seeks
// forward to where writing left off.
func (f *DeferredField) Fill(v uint64) error {
	if f.filled {
		return errors.Errorf("deferred field at %d filled twice", f.offset)
	}

	if !Fits(v, f.width) {
		return errors.Wrapf(ErrCapacityExceeded, "%d does not fit in %d bytes", v, f.width)
	}

	resume, err := f.w.Tell()
	if err != nil {
		return err
	}

	err = f.w.SeekTo(f.offset)
	if err != nil {
		return err
	}

	err = f.w.WriteUint(v, f.width)
	if err != nil {
		return err
	}

	f.filled = true
	return f.w.SeekTo(resume)
}
