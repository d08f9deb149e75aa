package counter

import (
	"io"

	"github.com/pkg/errors"
)

type CountCallback func(count int64)

// CounterReader counts the bytes read through it. Seeks are forwarded to
// the underlying reader and don't affect the count.
type CounterReader struct {
	count  int64
	reader io.Reader

	onRead CountCallback
}

var _ io.ReadSeeker = (*CounterReader)(nil)

func NewReaderCallback(onRead CountCallback, reader io.Reader) *CounterReader {
	return &CounterReader{
		reader: reader,
		onRead: onRead,
	}
}

func (r *CounterReader) Count() int64 {
	return r.count
}

func (r *CounterReader) Read(buffer []byte) (n int, err error) {
	if r.reader == nil {
		n = len(buffer)
	} else {
		n, err = r.reader.Read(buffer)
	}

	r.count += int64(n)
	if r.onRead != nil {
		r.onRead(r.count)
	}
	return
}

func (r *CounterReader) Seek(offset int64, whence int) (int64, error) {
	seeker, ok := r.reader.(io.Seeker)
	if !ok {
		return 0, errors.New("counter: underlying reader can't seek")
	}
	return seeker.Seek(offset, whence)
}
