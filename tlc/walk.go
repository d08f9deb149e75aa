package tlc

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/itchio/screw"
	"github.com/pkg/errors"

	laketlc "github.com/itchio/lake/tlc"
)

// Resolve returns where a recorded pathname lives on disk. Relative
// pathnames are relative to basePath.
func Resolve(basePath string, path string) string {
	native := filepath.FromSlash(path)
	if basePath == "" || filepath.IsAbs(native) {
		return native
	}
	return filepath.Join(basePath, native)
}

// Stat returns what lives at path. Symlinks are followed.
func Stat(basePath string, path string) (*Entry, error) {
	info, err := screw.Stat(Resolve(basePath, path))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return EntryFromInfo(path, info), nil
}

// StatOrAbsent is like Stat but reports a missing path as KindAbsent
// instead of failing.
func StatOrAbsent(basePath string, path string) (*Entry, error) {
	entry, err := Stat(basePath, path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return &Entry{Path: path, Kind: KindAbsent}, nil
		}
		return nil, err
	}
	return entry, nil
}

func EntryFromInfo(path string, info os.FileInfo) *Entry {
	entry := &Entry{
		Path: path,
		Mode: info.Mode().Perm(),
	}

	switch {
	case info.Mode().IsRegular():
		entry.Kind = KindRegular
		entry.Size = info.Size()
	case info.IsDir():
		entry.Kind = KindDir
	default:
		entry.Kind = KindOther
	}
	return entry
}

func ignored(path string) bool {
	for _, component := range strings.Split(path, "/") {
		for _, dir := range IgnoredDirs {
			if component == dir {
				return true
			}
		}
	}
	return false
}

// List returns every directory, file and symlink under basePath, as
// slash-separated paths relative to it: directories first, so that
// applying a patch creates parents before children, then everything else,
// each group sorted.
func List(basePath string) ([]string, error) {
	container, err := laketlc.WalkDir(basePath, laketlc.WalkOpts{})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var dirs []string
	for _, d := range container.Dirs {
		if d.Path == "." || d.Path == "" || ignored(d.Path) {
			continue
		}
		dirs = append(dirs, d.Path)
	}

	var files []string
	for _, f := range container.Files {
		if ignored(f.Path) {
			continue
		}
		files = append(files, f.Path)
	}
	for _, l := range container.Symlinks {
		if ignored(l.Path) {
			continue
		}
		files = append(files, l.Path)
	}

	sort.Strings(dirs)
	sort.Strings(files)
	return append(dirs, files...), nil
}
