// Package fspool opens the files a stage reads, keeping a bounded number of
// them open at once.
package fspool

import (
	"os"

	lru "github.com/hashicorp/golang-lru"
	"github.com/itchio/buoy/tlc"
	"github.com/itchio/screw"
	"github.com/pkg/errors"
)

// DefaultSize is how many files a pool keeps open when not told otherwise.
const DefaultSize = 16

// Pool hands out read handles for pathnames relative to a base path.
// Handles stay valid until they are evicted or the pool is closed, so
// callers must not hold on to one past their next GetReader call unless
// the pool is large enough.
type Pool struct {
	basePath string
	readers  *lru.Cache

	closeErr error
}

func New(basePath string, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultSize
	}

	p := &Pool{basePath: basePath}

	readers, err := lru.NewWithEvict(size, func(key interface{}, value interface{}) {
		if f, ok := value.(*os.File); ok {
			cErr := f.Close()
			if cErr != nil && p.closeErr == nil {
				p.closeErr = errors.WithStack(cErr)
			}
		}
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	p.readers = readers
	return p, nil
}

// GetPath returns where path lives on disk.
func (p *Pool) GetPath(path string) string {
	return tlc.Resolve(p.basePath, path)
}

// Stat reports what lives at path, absent paths included.
func (p *Pool) Stat(path string) (*tlc.Entry, error) {
	return tlc.StatOrAbsent(p.basePath, path)
}

// GetReader returns an open handle on path.
func (p *Pool) GetReader(path string) (*os.File, error) {
	if v, ok := p.readers.Get(path); ok {
		return v.(*os.File), nil
	}

	f, err := screw.Open(p.GetPath(path))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	p.readers.Add(path, f)
	return f, nil
}

// Release closes the handle on path, if one is open. Stages call it once
// they are done with a file.
func (p *Pool) Release(path string) {
	p.readers.Remove(path)
}

// Close closes every open handle and returns the first error any close
// returned over the life of the pool.
func (p *Pool) Close() error {
	p.readers.Purge()
	return p.closeErr
}
