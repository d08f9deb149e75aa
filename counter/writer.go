package counter

import "io"

// CounterWriter counts the bytes that make it to the underlying writer.
// With a nil writer every write succeeds and is discarded.
type CounterWriter struct {
	writer io.Writer
	count  int64
}

func NewWriter(writer io.Writer) *CounterWriter {
	return &CounterWriter{writer: writer}
}

func (w *CounterWriter) Count() int64 {
	return w.count
}

func (w *CounterWriter) Write(buffer []byte) (int, error) {
	if w.writer == nil {
		w.count += int64(len(buffer))
		return len(buffer), nil
	}

	n, err := w.writer.Write(buffer)
	w.count += int64(n)
	return n, err
}
