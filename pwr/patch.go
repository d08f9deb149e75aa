package pwr

import (
	"io"

	"github.com/itchio/buoy/pools/fspool"
	"github.com/itchio/buoy/tlc"
	"github.com/itchio/buoy/wire"
	"github.com/itchio/buoy/wsync"
	"github.com/itchio/headway/state"
	"github.com/pkg/errors"
)

// PatchContext holds options for building a patch log out of a comparison
// index and the current files.
type PatchContext struct {
	// BasePath is where relative pathnames are resolved. Optional.
	BasePath string
	// PoolSize is how many current files are kept open. Optional.
	PoolSize int
	// optional
	Consumer *state.Consumer

	// set after WritePatch
	Stats PatchStats
}

type PatchStats struct {
	Updates     int64
	UpdateBytes int64
}

// WritePatch reads a comparison index and writes a patch log with one
// record per comparison record, in the same order. Each record carries
// the bytes of every block of the current file that the comparison didn't
// mark as unchanged.
func (pctx *PatchContext) WritePatch(comparison io.Reader, writer io.WriteSeeker) (retErr error) {
	consumer := consumerOrDefault(pctx.Consumer)
	pctx.Stats = PatchStats{}

	rc := wire.NewReadContext(comparison)
	numRecords, err := rc.ExpectMagic(wire.ComparisonMagic)
	if err != nil {
		return errors.WithMessage(err, "reading comparison")
	}

	pool, err := fspool.New(pctx.BasePath, pctx.PoolSize)
	if err != nil {
		return err
	}
	defer func() {
		cErr := pool.Close()
		if cErr != nil && retErr == nil {
			retErr = cErr
		}
	}()

	wc := wire.NewWriteContext(writer)
	err = wc.SkipHeader()
	if err != nil {
		return err
	}

	hs := mksync()
	for i := 0; i < numRecords; i++ {
		consumer.Progress(float64(i) / float64(numRecords))

		record, err := readComparisonRecord(rc)
		if err != nil {
			return errors.WithMessage(err, "reading comparison")
		}
		consumer.ProgressLabel(record.Path)

		err = pctx.patchRecord(record, wc, pool, hs, consumer)
		if err != nil {
			return err
		}
	}

	err = wc.WriteHeader(wire.PatchMagic, numRecords)
	if err != nil {
		return err
	}

	err = rc.ExpectEOF()
	if err != nil {
		return errors.WithMessage(err, "reading comparison")
	}

	consumer.Debugf("patched %d entries, %d updates", numRecords, pctx.Stats.Updates)
	return nil
}

func (pctx *PatchContext) patchRecord(record *ComparisonRecord, wc *wire.WriteContext, pool *fspool.Pool, hs *wsync.Context, consumer *state.Consumer) error {
	entry, err := pool.Stat(record.Path)
	if err != nil {
		return errors.Wrapf(err, "patching %s", record.Path)
	}

	switch entry.Kind {
	case tlc.KindAbsent:
		consumer.Infof("%s: removed", record.Path)
	case tlc.KindRegular:
		err = hs.CheckSize(entry.Size)
		if err != nil {
			return errors.Wrapf(err, "patching %s", record.Path)
		}
	default:
		entry.Size = 0
	}

	err = wc.WritePathname(record.Path)
	if err != nil {
		return err
	}

	err = wc.WriteBytes([]byte(entry.ModeString()))
	if err != nil {
		return err
	}

	err = wc.WriteUint(uint64(entry.Size), wire.FileSizeSize)
	if err != nil {
		return errors.Wrapf(err, "patching %s", record.Path)
	}

	updateCount, err := wc.Reserve(wire.UpdateCountSize)
	if err != nil {
		return err
	}

	var numUpdates int64
	numBlocks := hs.BlockCount(entry.Size)
	if numBlocks > 0 {
		reader, err := pool.GetReader(record.Path)
		if err != nil {
			return errors.Wrapf(err, "patching %s", record.Path)
		}
		defer pool.Release(record.Path)

		for blockIndex := int64(0); blockIndex < numBlocks; blockIndex++ {
			// blocks past the end of the snapshot are never set
			if record.Bitmap.IsSet(blockIndex) {
				continue
			}

			block, err := hs.ReadBlock(reader, entry.Size, blockIndex)
			if err != nil {
				return errors.Wrapf(err, "patching %s", record.Path)
			}

			err = wc.WriteUint(uint64(blockIndex), wire.BlockIndexSize)
			if err != nil {
				return err
			}

			err = wc.WriteUint(uint64(len(block)), wire.UpdateLenSize)
			if err != nil {
				return err
			}

			err = wc.WriteBytes(block)
			if err != nil {
				return err
			}

			numUpdates++
			pctx.Stats.UpdateBytes += int64(len(block))
		}
	}

	pctx.Stats.Updates += numUpdates
	consumer.Debugf("%s: %d/%d blocks changed", record.Path, numUpdates, numBlocks)
	return updateCount.Fill(uint64(numUpdates))
}
