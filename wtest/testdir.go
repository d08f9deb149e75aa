package wtest

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/itchio/buoy/wire"
	"github.com/itchio/randsource"
	"github.com/itchio/screw"
)

const BlockSize = wire.BlockSize

type TestDirEntry struct {
	Path string
	Mode int
	Size int64
	Seed int64
	Dir  bool
	Data []byte
}

type TestDirSettings struct {
	Seed    int64
	Entries []TestDirEntry
}

// MakeTestDir fills dir with the given entries. Files get Data if set,
// otherwise Size bytes of seeded random data (BlockSize*8+64 when Size is 0).
func MakeTestDir(t *testing.T, dir string, s TestDirSettings) {
	t.Helper()

	prng := randsource.Reader{
		Source: rand.New(rand.NewSource(s.Seed)),
	}

	Must(t, screw.MkdirAll(dir, 0o755))

	for _, entry := range s.Entries {
		path := filepath.Join(dir, filepath.FromSlash(entry.Path))

		if entry.Dir {
			mode := 0o755
			if entry.Mode != 0 {
				mode = entry.Mode
			}
			Must(t, screw.MkdirAll(path, os.FileMode(mode)))
			Must(t, os.Chmod(path, os.FileMode(mode)))
			continue
		}

		Must(t, screw.MkdirAll(filepath.Dir(path), 0o755))

		if entry.Seed == 0 {
			prng.Seed(s.Seed)
		} else {
			prng.Seed(entry.Seed)
		}

		mode := 0o644
		if entry.Mode != 0 {
			mode = entry.Mode
		}

		size := int64(BlockSize*8 + 64)
		if entry.Size != 0 {
			size = entry.Size
		}

		var src io.Reader = io.LimitReader(prng, size)
		if entry.Data != nil {
			src = bytes.NewReader(entry.Data)
		}

		WriteFile(t, path, src, os.FileMode(mode))
	}
}

// WriteFile replaces path with the contents of src.
func WriteFile(t *testing.T, path string, src io.Reader, mode os.FileMode) {
	t.Helper()

	f, err := screw.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	Must(t, err)
	defer f.Close()

	_, err = io.Copy(f, src)
	Must(t, err)
	Must(t, f.Chmod(mode))
}

// ReadFile returns the contents of path.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()

	f, err := screw.Open(path)
	Must(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	Must(t, err)
	return data
}

// PatchByte adds delta to the byte at offset in path.
func PatchByte(t *testing.T, path string, offset int64, delta byte) {
	t.Helper()

	f, err := screw.OpenFile(path, os.O_RDWR, 0)
	Must(t, err)
	defer f.Close()

	b := make([]byte, 1)
	_, err = f.ReadAt(b, offset)
	Must(t, err)

	b[0] += delta
	_, err = f.WriteAt(b, offset)
	Must(t, err)
}
