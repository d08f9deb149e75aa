package bowl

import (
	"os"
	"path"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/itchio/buoy/tlc"
	"github.com/itchio/screw"
	"github.com/pkg/errors"
)

type fsBowl struct {
	OutputFolder string

	// directory modes are applied on commit, so read-only directories
	// can still be filled in
	pendingDirs []*tlc.Entry
}

var _ Bowl = (*fsBowl)(nil)

type FsBowlParams struct {
	// OutputFolder is where relative pathnames are resolved.
	OutputFolder string
}

// NewFsBowl returns a bowl that updates files in place under a folder
func NewFsBowl(params *FsBowlParams) (Bowl, error) {
	err := validation.ValidateStruct(params,
		validation.Field(&params.OutputFolder, validation.Required),
	)
	if err != nil {
		return nil, errors.Wrap(err, "fsbowl")
	}

	return &fsBowl{
		OutputFolder: params.OutputFolder,
	}, nil
}

func (fb *fsBowl) Prepare(entry *tlc.Entry) (BlockWriter, error) {
	err := fb.checkParents(entry.Path)
	if err != nil {
		return nil, err
	}

	dest := tlc.Resolve(fb.OutputFolder, entry.Path)

	// symlinks are replaced, never followed
	existing, err := screw.Lstat(dest)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WithStack(err)
		}
		existing = nil
	}

	switch entry.Kind {
	case tlc.KindAbsent:
		if existing == nil {
			return nil, nil
		}
		return nil, errors.WithStack(screw.RemoveAll(dest))

	case tlc.KindDir:
		if existing != nil {
			if existing.IsDir() {
				// children may still have to be written
				err = os.Chmod(dest, existing.Mode().Perm()|0o700)
			} else {
				err = screw.Remove(dest)
			}
			if err != nil {
				return nil, errors.WithStack(err)
			}
		}

		err = screw.MkdirAll(dest, 0o755)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		fb.pendingDirs = append(fb.pendingDirs, entry)
		return nil, nil

	case tlc.KindRegular:
		if existing != nil {
			if existing.Mode().IsRegular() {
				// we might not be able to open it for writing otherwise
				err = os.Chmod(dest, existing.Mode().Perm()|0o200)
			} else {
				err = screw.RemoveAll(dest)
			}
			if err != nil {
				return nil, errors.WithStack(err)
			}
		}

		err = screw.MkdirAll(filepath.Dir(dest), 0o755)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		f, err := screw.OpenFile(dest, os.O_CREATE|os.O_WRONLY, entry.Mode|0o200)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		err = f.Truncate(entry.Size)
		if err == nil {
			err = f.Chmod(entry.Mode)
		}
		if err != nil {
			f.Close()
			return nil, errors.WithStack(err)
		}
		return f, nil
	}

	return nil, errors.Errorf("fsbowl: can't prepare %s entry %s", entry.Kind, entry.Path)
}

// checkParents refuses to go through a symlinked folder on the way to
// entryPath, which could point anywhere.
func (fb *fsBowl) checkParents(entryPath string) error {
	for dir := path.Dir(entryPath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		info, err := screw.Lstat(tlc.Resolve(fb.OutputFolder, dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.WithStack(err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return errors.Errorf("fsbowl: won't write %s through symlink %s", entryPath, dir)
		}
	}
	return nil
}

func (fb *fsBowl) Commit() error {
	// deepest first
	for i := len(fb.pendingDirs) - 1; i >= 0; i-- {
		entry := fb.pendingDirs[i]
		dest := tlc.Resolve(fb.OutputFolder, entry.Path)

		info, err := screw.Lstat(dest)
		if err != nil {
			if os.IsNotExist(err) {
				// removed by a later entry
				continue
			}
			return errors.WithStack(err)
		}
		if !info.IsDir() {
			continue
		}

		err = os.Chmod(dest, entry.Mode)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	fb.pendingDirs = nil
	return nil
}
