package bowl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/itchio/buoy/pwr/bowl"
	"github.com/itchio/buoy/tlc"
	"github.com/itchio/buoy/wtest"
	"github.com/stretchr/testify/assert"
)

func must(t *testing.T, err error) {
	t.Helper()
	wtest.Must(t, err)
}

func TestFsBowlRequiresFolder(t *testing.T) {
	_, err := bowl.NewFsBowl(&bowl.FsBowlParams{})
	assert.Error(t, err)
}

func TestFsBowlPatchShorter(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Entries: []wtest.TestDirEntry{
			{Path: "patched", Data: []byte("nothing makes sense without the end")},
		},
	})

	b, err := bowl.NewFsBowl(&bowl.FsBowlParams{OutputFolder: dir})
	must(t, err)

	w, err := b.Prepare(&tlc.Entry{Path: "patched", Kind: tlc.KindRegular, Mode: 0o600, Size: 19})
	must(t, err)
	_, err = w.WriteAt([]byte("NOTHING"), 0)
	must(t, err)
	must(t, w.Close())
	must(t, b.Commit())

	path := filepath.Join(dir, "patched")
	assert.Equal(t, "NOTHING makes sense", string(wtest.ReadFile(t, path)))

	info, err := os.Stat(path)
	must(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFsBowlPatchLonger(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Entries: []wtest.TestDirEntry{
			{Path: "patched", Data: []byte("moon")},
		},
	})

	b, err := bowl.NewFsBowl(&bowl.FsBowlParams{OutputFolder: dir})
	must(t, err)

	w, err := b.Prepare(&tlc.Entry{Path: "patched", Kind: tlc.KindRegular, Mode: 0o644, Size: 14})
	must(t, err)
	_, err = w.WriteAt([]byte(" and stars"), 4)
	must(t, err)
	must(t, w.Close())

	assert.Equal(t, "moon and stars", string(wtest.ReadFile(t, filepath.Join(dir, "patched"))))
}

func TestFsBowlReadOnlyFile(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Entries: []wtest.TestDirEntry{
			{Path: "locked", Data: []byte("moon"), Mode: 0o444},
		},
	})

	b, err := bowl.NewFsBowl(&bowl.FsBowlParams{OutputFolder: dir})
	must(t, err)

	w, err := b.Prepare(&tlc.Entry{Path: "locked", Kind: tlc.KindRegular, Mode: 0o444, Size: 4})
	must(t, err)
	_, err = w.WriteAt([]byte("leaf"), 0)
	must(t, err)
	must(t, w.Close())

	assert.Equal(t, "leaf", string(wtest.ReadFile(t, filepath.Join(dir, "locked"))))
}

func TestFsBowlNewFileInNewDir(t *testing.T) {
	dir := t.TempDir()

	b, err := bowl.NewFsBowl(&bowl.FsBowlParams{OutputFolder: dir})
	must(t, err)

	w, err := b.Prepare(&tlc.Entry{Path: "that/is/pretty/deep", Kind: tlc.KindRegular, Mode: 0o644, Size: 3})
	must(t, err)
	_, err = w.WriteAt([]byte("egg"), 0)
	must(t, err)
	must(t, w.Close())

	assert.Equal(t, "egg", string(wtest.ReadFile(t, filepath.Join(dir, "that", "is", "pretty", "deep"))))
}

func TestFsBowlKinds(t *testing.T) {
	dir := t.TempDir()
	wtest.MakeTestDir(t, dir, wtest.TestDirSettings{
		Entries: []wtest.TestDirEntry{
			{Path: "was-file", Data: []byte("oh?")},
			{Path: "was-dir/inner", Data: []byte("oh?")},
			{Path: "fleeting", Data: []byte("gone soon")},
		},
	})

	b, err := bowl.NewFsBowl(&bowl.FsBowlParams{OutputFolder: dir})
	must(t, err)

	w, err := b.Prepare(&tlc.Entry{Path: "was-file", Kind: tlc.KindDir, Mode: 0o750})
	must(t, err)
	assert.Nil(t, w)

	w, err = b.Prepare(&tlc.Entry{Path: "was-dir", Kind: tlc.KindRegular, Mode: 0o644, Size: 0})
	must(t, err)
	must(t, w.Close())

	w, err = b.Prepare(&tlc.Entry{Path: "fleeting", Kind: tlc.KindAbsent})
	must(t, err)
	assert.Nil(t, w)

	w, err = b.Prepare(&tlc.Entry{Path: "never-was", Kind: tlc.KindAbsent})
	must(t, err)
	assert.Nil(t, w)

	_, err = b.Prepare(&tlc.Entry{Path: "weird", Kind: tlc.KindOther})
	assert.Error(t, err)

	must(t, b.Commit())

	info, err := os.Stat(filepath.Join(dir, "was-file"))
	must(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dir, "was-dir"))
	must(t, err)
	assert.True(t, info.Mode().IsRegular())

	_, err = os.Stat(filepath.Join(dir, "fleeting"))
	assert.True(t, os.IsNotExist(err))
}

func TestDryBowl(t *testing.T) {
	b := bowl.NewDryBowl()

	w, err := b.Prepare(&tlc.Entry{Path: "a", Kind: tlc.KindRegular, Size: 10})
	must(t, err)
	_, err = w.WriteAt([]byte("12345"), 5)
	must(t, err)
	_, err = w.WriteAt([]byte("12345"), 6)
	assert.Error(t, err)
	must(t, w.Close())

	w, err = b.Prepare(&tlc.Entry{Path: "d", Kind: tlc.KindDir})
	must(t, err)
	assert.Nil(t, w)

	_, err = b.Prepare(&tlc.Entry{Path: "weird", Kind: tlc.KindOther})
	assert.Error(t, err)

	must(t, b.Commit())
	assert.EqualValues(t, 5, b.BytesWritten())
	assert.EqualValues(t, 2, b.EntriesPrepared())
}

func TestFsBowlReadOnlyDir(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() {
		os.Chmod(filepath.Join(dir, "frozen"), 0o755)
	})

	b, err := bowl.NewFsBowl(&bowl.FsBowlParams{OutputFolder: dir})
	must(t, err)

	w, err := b.Prepare(&tlc.Entry{Path: "frozen", Kind: tlc.KindDir, Mode: 0o555})
	must(t, err)
	assert.Nil(t, w)

	w, err = b.Prepare(&tlc.Entry{Path: "frozen/inside", Kind: tlc.KindRegular, Mode: 0o644, Size: 2})
	must(t, err)
	_, err = w.WriteAt([]byte("ok"), 0)
	must(t, err)
	must(t, w.Close())
	must(t, b.Commit())

	info, err := os.Stat(filepath.Join(dir, "frozen"))
	must(t, err)
	assert.Equal(t, os.FileMode(0o555), info.Mode().Perm())
	assert.Equal(t, "ok", string(wtest.ReadFile(t, filepath.Join(dir, "frozen", "inside"))))

	// a second pass over the same tree gets in too
	w, err = b.Prepare(&tlc.Entry{Path: "frozen", Kind: tlc.KindDir, Mode: 0o555})
	must(t, err)
	assert.Nil(t, w)

	w, err = b.Prepare(&tlc.Entry{Path: "frozen/inside", Kind: tlc.KindRegular, Mode: 0o644, Size: 2})
	must(t, err)
	_, err = w.WriteAt([]byte("OK"), 0)
	must(t, err)
	must(t, w.Close())
	must(t, b.Commit())

	assert.Equal(t, "OK", string(wtest.ReadFile(t, filepath.Join(dir, "frozen", "inside"))))
}

func TestFsBowlReplacesSymlinks(t *testing.T) {
	outside := t.TempDir()
	wtest.MakeTestDir(t, outside, wtest.TestDirSettings{
		Entries: []wtest.TestDirEntry{
			{Path: "victim", Data: []byte("precious")},
		},
	})
	victim := filepath.Join(outside, "victim")

	dir := t.TempDir()
	must(t, os.Symlink(victim, filepath.Join(dir, "f")))
	must(t, os.Symlink(filepath.Join(outside, "nowhere"), filepath.Join(dir, "gone")))
	must(t, os.Symlink(outside, filepath.Join(dir, "linkdir")))

	b, err := bowl.NewFsBowl(&bowl.FsBowlParams{OutputFolder: dir})
	must(t, err)

	w, err := b.Prepare(&tlc.Entry{Path: "f", Kind: tlc.KindRegular, Mode: 0o644, Size: 2})
	must(t, err)
	_, err = w.WriteAt([]byte("pw"), 0)
	must(t, err)
	must(t, w.Close())

	w, err = b.Prepare(&tlc.Entry{Path: "gone", Kind: tlc.KindAbsent})
	must(t, err)
	assert.Nil(t, w)

	_, err = b.Prepare(&tlc.Entry{Path: "linkdir/victim", Kind: tlc.KindRegular, Mode: 0o644, Size: 2})
	assert.Error(t, err)

	w, err = b.Prepare(&tlc.Entry{Path: "linkdir", Kind: tlc.KindDir, Mode: 0o755})
	must(t, err)
	assert.Nil(t, w)
	must(t, b.Commit())

	assert.Equal(t, "precious", string(wtest.ReadFile(t, victim)))

	info, err := os.Lstat(filepath.Join(dir, "f"))
	must(t, err)
	assert.True(t, info.Mode().IsRegular())
	assert.Equal(t, "pw", string(wtest.ReadFile(t, filepath.Join(dir, "f"))))

	_, err = os.Lstat(filepath.Join(dir, "gone"))
	assert.True(t, os.IsNotExist(err))

	info, err = os.Lstat(filepath.Join(dir, "linkdir"))
	must(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(outside, "victim"))
	must(t, err)
}
