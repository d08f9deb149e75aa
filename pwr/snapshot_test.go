package pwr_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itchio/buoy/pwr"
	"github.com/itchio/buoy/wire"
	"github.com/itchio/buoy/wsync"
	"github.com/itchio/buoy/wtest"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotBlockCounts(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Seed: 0x515,
		Entries: []wtest.TestDirEntry{
			{Path: "empty", Data: []byte{}},
			{Path: "one", Size: 1},
			{Path: "full", Size: wtest.BlockSize},
			{Path: "spill", Size: wtest.BlockSize + 1},
			{Path: "two", Size: 2 * wtest.BlockSize},
			{Path: "sub", Dir: true},
		},
	})

	paths := []string{"empty", "one", "full", "spill", "two", "sub"}
	records, err := pwr.ReadSnapshot(bytes.NewReader(snapshot(t, dir, paths)))
	wtest.Must(t, err)

	var counts []int64
	for i, r := range records {
		assert.Equal(t, paths[i], r.Path)
		counts = append(counts, r.BlockCount())
	}
	assert.Equal(t, []int64{0, 1, 1, 2, 2, 0}, counts)

	data := wtest.ReadFile(t, filepath.Join(dir, "spill"))
	assert.Equal(t, wsync.HashBlock(data[:wtest.BlockSize]), records[3].Hashes[0])
	assert.Equal(t, wsync.HashBlock(data[wtest.BlockSize:]), records[3].Hashes[1])
}

func TestSnapshotLayout(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Entries: []wtest.TestDirEntry{
			{Path: "ab", Data: []byte("xyz")},
		},
	})

	var expected []byte
	expected = append(expected, 'T', 'A', 'B', 'I', 1)
	expected = append(expected, 2, 0, 'a', 'b')
	expected = append(expected, 1, 0, 0)
	hash := make([]byte, 8)
	wire.PutUint(hash, wsync.HashBlock([]byte("xyz")))
	expected = append(expected, hash...)

	assert.Equal(t, expected, snapshot(t, dir, []string{"ab"}))
}

func TestSnapshotEmpty(t *testing.T) {
	assert.Equal(t, []byte("TABI\x00"), snapshot(t, t.TempDir(), nil))
}

func TestSnapshotMissingPath(t *testing.T) {
	dir := t.TempDir()

	sctx := &pwr.SnapshotContext{BasePath: dir}
	_, err := writeIndex(t, func(w io.WriteSeeker) error {
		return sctx.WriteSnapshot([]string{"nope"}, w)
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, wire.ErrFormatViolation)
	assert.NotErrorIs(t, err, wire.ErrCapacityExceeded)
}

func TestSnapshotCapacity(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Entries: []wtest.TestDirEntry{
			{Path: "f", Data: []byte("f")},
		},
	})

	paths := make([]string, wire.MaxRecords)
	for i := range paths {
		paths[i] = "f"
	}

	records, err := pwr.ReadSnapshot(bytes.NewReader(snapshot(t, dir, paths)))
	wtest.Must(t, err)
	assert.Len(t, records, 255)

	sctx := &pwr.SnapshotContext{BasePath: dir}
	_, err = writeIndex(t, func(w io.WriteSeeker) error {
		return sctx.WriteSnapshot(append(paths, "f"), w)
	})
	assert.ErrorIs(t, err, wire.ErrCapacityExceeded)

	_, err = writeIndex(t, func(w io.WriteSeeker) error {
		return sctx.WriteSnapshot([]string{strings.Repeat("a", wire.MaxPathnameLen+1)}, w)
	})
	assert.ErrorIs(t, err, wire.ErrCapacityExceeded)
}

func TestSnapshotIdempotent(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Seed: 0xfee,
		Entries: []wtest.TestDirEntry{
			{Path: "a", Seed: 1},
			{Path: "b/c", Seed: 2, Size: 10 * wtest.BlockSize},
			{Path: "b/d", Seed: 3, Size: 7},
		},
	})

	paths := []string{"b/c", "a", "b", "b/d"}
	first := snapshot(t, dir, paths)
	assert.Equal(t, first, snapshot(t, dir, paths))

	for _, workers := range []int{1, 2, 16} {
		sctx := &pwr.SnapshotContext{BasePath: dir, Workers: workers}
		data, err := writeIndex(t, func(w io.WriteSeeker) error {
			return sctx.WriteSnapshot(paths, w)
		})
		wtest.Must(t, err)
		assert.Equal(t, first, data, "with %d workers", workers)
	}
}

func TestSnapshotUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read anything")
	}

	for _, size := range []int64{0, 3 * wtest.BlockSize} {
		dir := t.TempDir()
		data := make([]byte, size)
		wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
			Entries: []wtest.TestDirEntry{
				{Path: "locked", Data: data},
			},
		})
		wtest.Must(t, os.Chmod(filepath.Join(dir, "locked"), 0))

		sctx := &pwr.SnapshotContext{BasePath: dir}
		_, err := writeIndex(t, func(w io.WriteSeeker) error {
			return sctx.WriteSnapshot([]string{"locked"}, w)
		})
		assert.Error(t, err, "%d-byte file", size)
	}
}
