package pwr_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/itchio/buoy/pwr"
	"github.com/itchio/buoy/wtest"
	"github.com/stretchr/testify/assert"
)

// writeIndex runs write against a scratch file and returns what it wrote.
func writeIndex(t *testing.T, write func(w io.WriteSeeker) error) ([]byte, error) {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "index"))
	wtest.Must(t, err)
	defer f.Close()

	err = write(f)
	if err != nil {
		return nil, err
	}

	_, err = f.Seek(0, io.SeekStart)
	wtest.Must(t, err)

	data, err := io.ReadAll(f)
	wtest.Must(t, err)
	return data, nil
}

func snapshot(t *testing.T, dir string, paths []string) []byte {
	t.Helper()

	sctx := &pwr.SnapshotContext{BasePath: dir}
	data, err := writeIndex(t, func(w io.WriteSeeker) error {
		return sctx.WriteSnapshot(paths, w)
	})
	wtest.Must(t, err)
	return data
}

func compare(t *testing.T, dir string, snapshot []byte) []byte {
	t.Helper()

	cctx := &pwr.CompareContext{BasePath: dir}
	data, err := writeIndex(t, func(w io.WriteSeeker) error {
		return cctx.WriteComparison(bytes.NewReader(snapshot), w)
	})
	wtest.Must(t, err)
	return data
}

func patch(t *testing.T, dir string, comparison []byte) []byte {
	t.Helper()

	pctx := &pwr.PatchContext{BasePath: dir}
	data, err := writeIndex(t, func(w io.WriteSeeker) error {
		return pctx.WritePatch(bytes.NewReader(comparison), w)
	})
	wtest.Must(t, err)
	return data
}

func apply(t *testing.T, dir string, patch []byte) *pwr.ApplyContext {
	t.Helper()

	actx := &pwr.ApplyContext{TargetPath: dir}
	wtest.Must(t, actx.ApplyPatch(bytes.NewReader(patch)))
	return actx
}

// bitmaps returns the encoded bitmap of every comparison record.
func bitmaps(t *testing.T, comparison []byte) [][]byte {
	t.Helper()

	records, err := pwr.ReadComparison(bytes.NewReader(comparison))
	wtest.Must(t, err)

	var result [][]byte
	for _, r := range records {
		result = append(result, r.Bitmap.Bytes())
	}
	return result
}

func assertSameFile(t *testing.T, expected string, actual string) {
	t.Helper()

	expectedInfo, err := os.Stat(expected)
	wtest.Must(t, err)
	actualInfo, err := os.Stat(actual)
	wtest.Must(t, err)

	assert.Equal(t, expectedInfo.Mode(), actualInfo.Mode(), "mode of %s", actual)
	if expectedInfo.Mode().IsRegular() {
		assert.True(t, bytes.Equal(wtest.ReadFile(t, expected), wtest.ReadFile(t, actual)), "contents of %s", actual)
	}
}
