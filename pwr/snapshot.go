package pwr

import (
	"io"
	"sync"

	"github.com/itchio/buoy/counter"
	"github.com/itchio/buoy/tlc"
	"github.com/itchio/buoy/wire"
	"github.com/itchio/headway/state"
	"github.com/itchio/screw"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// SnapshotContext holds options for building a snapshot index.
type SnapshotContext struct {
	// BasePath is where relative pathnames are resolved. Optional.
	BasePath string
	// Workers is how many files are hashed at once. Defaults to DefaultWorkers.
	Workers int
	// optional
	Consumer *state.Consumer
}

// WriteSnapshot stats and hashes every path, then writes a snapshot index
// to writer. Nothing is written if any path can't be snapshotted.
func (sctx *SnapshotContext) WriteSnapshot(paths []string, writer io.WriteSeeker) error {
	consumer := consumerOrDefault(sctx.Consumer)

	if len(paths) > wire.MaxRecords {
		return capacityExceeded("%d paths, max is %d", len(paths), wire.MaxRecords)
	}

	hs := mksync()
	entries := make([]*tlc.Entry, len(paths))
	var totalBytes int64

	for i, path := range paths {
		if len(path) > wire.MaxPathnameLen {
			return capacityExceeded("pathname is %d bytes long, max is %d", len(path), wire.MaxPathnameLen)
		}

		entry, err := tlc.Stat(sctx.BasePath, path)
		if err != nil {
			return errors.Wrapf(err, "snapshotting %s", path)
		}

		if entry.Kind == tlc.KindRegular {
			err = hs.CheckSize(entry.Size)
			if err != nil {
				return errors.Wrapf(err, "snapshotting %s", path)
			}
			totalBytes += entry.Size
		}
		entries[i] = entry
	}

	hashes, err := sctx.hashAll(entries, totalBytes, consumer)
	if err != nil {
		return err
	}

	wc := wire.NewWriteContext(writer)
	err = wc.SkipHeader()
	if err != nil {
		return err
	}

	for i, path := range paths {
		err = wc.WritePathname(path)
		if err != nil {
			return err
		}

		err = wc.WriteUint(uint64(len(hashes[i])), wire.BlockCountSize)
		if err != nil {
			return err
		}

		for _, hash := range hashes[i] {
			err = wc.WriteUint(hash, wire.HashSize)
			if err != nil {
				return err
			}
		}
	}

	err = wc.WriteHeader(wire.SnapshotMagic, len(paths))
	if err != nil {
		return err
	}

	consumer.Debugf("snapshotted %d entries", len(paths))
	return nil
}

// hashAll hashes regular files concurrently. The result is indexed like
// entries, so records come out in input order whichever file finishes
// first.
func (sctx *SnapshotContext) hashAll(entries []*tlc.Entry, totalBytes int64, consumer *state.Consumer) ([][]uint64, error) {
	hashes := make([][]uint64, len(entries))

	workers := sctx.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var progressMutex sync.Mutex
	var doneBytes int64
	onRead := func(delta int64) {
		progressMutex.Lock()
		defer progressMutex.Unlock()

		doneBytes += delta
		if totalBytes > 0 {
			consumer.Progress(float64(doneBytes) / float64(totalBytes))
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i, entry := range entries {
		// empty files are still opened, an unreadable one is an error
		if entry.Kind != tlc.KindRegular {
			continue
		}

		i, entry := i, entry
		g.Go(func() error {
			fileHashes, err := sctx.hashFile(entry, onRead)
			if err != nil {
				return errors.Wrapf(err, "snapshotting %s", entry.Path)
			}
			hashes[i] = fileHashes
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func (sctx *SnapshotContext) hashFile(entry *tlc.Entry, onRead func(delta int64)) ([]uint64, error) {
	f, err := screw.Open(tlc.Resolve(sctx.BasePath, entry.Path))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	var lastCount int64
	cr := counter.NewReaderCallback(func(count int64) {
		onRead(count - lastCount)
		lastCount = count
	}, f)

	return mksync().ComputeHashes(cr, entry.Size)
}
