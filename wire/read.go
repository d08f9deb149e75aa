package wire

import (
	"io"

	"github.com/pkg/errors"
)

// A ReadContext reads index fields sequentially and keeps track of how far
// into the stream it is, so callers reading two indexes side by side can
// check they stay aligned.
type ReadContext struct {
	reader io.Reader
	offset int64
	buf    [8]byte
}

func NewReadContext(reader io.Reader) *ReadContext {
	return &ReadContext{reader: reader}
}

func (r *ReadContext) Reader() io.Reader {
	return r.reader
}

// Offset returns the number of bytes consumed so far.
func (r *ReadContext) Offset() int64 {
	return r.offset
}

// ReadFull fills b, treating a short read as a truncated index.
func (r *ReadContext) ReadFull(b []byte) error {
	n, err := io.ReadFull(r.reader, b)
	r.offset += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.Wrapf(ErrFormatViolation, "unexpected end of index at offset %d", r.offset)
		}
		return errors.Wrap(err, "reading index")
	}
	return nil
}

// ReadUint reads a little-endian field of the given width.
func (r *ReadContext) ReadUint(width int) (uint64, error) {
	err := r.ReadFull(r.buf[:width])
	if err != nil {
		return 0, err
	}
	return Uint(r.buf[:width]), nil
}

// ReadPathname reads a length-prefixed pathname.
func (r *ReadContext) ReadPathname() (string, error) {
	length, err := r.ReadUint(PathnameLenSize)
	if err != nil {
		return "", err
	}

	path := make([]byte, length)
	err = r.ReadFull(path)
	if err != nil {
		return "", err
	}
	return string(path), nil
}

// ExpectMagic reads the index header and returns its record count.
func (r *ReadContext) ExpectMagic(magic Magic) (int, error) {
	var readMagic Magic
	err := r.ReadFull(readMagic[:])
	if err != nil {
		return 0, err
	}

	if readMagic != magic {
		return 0, errors.Wrapf(ErrFormatViolation, "expected magic %q, but read %q", magic.String(), readMagic.String())
	}

	numRecords, err := r.ReadUint(RecordCountSize)
	if err != nil {
		return 0, err
	}
	return int(numRecords), nil
}

// Skip discards n bytes, seeking when the underlying reader allows it.
// Seeking past the end of a file does not fail, so the skip is checked
// against the stream size.
func (r *ReadContext) Skip(n int64) error {
	if n == 0 {
		return nil
	}

	if seeker, ok := r.reader.(io.Seeker); ok {
		current, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return errors.Wrap(err, "skipping in index")
		}
		end, err := seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return errors.Wrap(err, "skipping in index")
		}
		if current+n > end {
			r.offset += end - current
			return errors.Wrapf(ErrFormatViolation, "unexpected end of index at offset %d", r.offset)
		}
		_, err = seeker.Seek(current+n, io.SeekStart)
		if err != nil {
			return errors.Wrap(err, "skipping in index")
		}
		r.offset += n
		return nil
	}

	copied, err := io.CopyN(io.Discard, r.reader, n)
	r.offset += copied
	if err != nil {
		if err == io.EOF {
			return errors.Wrapf(ErrFormatViolation, "unexpected end of index at offset %d", r.offset)
		}
		return errors.Wrap(err, "skipping in index")
	}
	return nil
}

// ExpectEOF fails if there is anything left to read.
func (r *ReadContext) ExpectEOF() error {
	n, err := r.reader.Read(r.buf[:1])
	if n > 0 {
		return errors.Wrapf(ErrFormatViolation, "trailing bytes after last record at offset %d", r.offset)
	}
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading index")
	}
	// a zero-byte read without error says nothing, try once more
	n, err = io.ReadFull(r.reader, r.buf[:1])
	if n > 0 {
		return errors.Wrapf(ErrFormatViolation, "trailing bytes after last record at offset %d", r.offset)
	}
	if err == io.EOF {
		return nil
	}
	return errors.Wrap(err, "reading index")
}
