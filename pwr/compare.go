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

// CompareContext holds options for comparing local files against a
// snapshot index.
type CompareContext struct {
	// BasePath is where relative pathnames are resolved. Optional.
	BasePath string
	// PoolSize is how many local files are kept open. Optional.
	PoolSize int
	// optional
	Consumer *state.Consumer
}

// WriteComparison reads a snapshot index and writes a comparison index
// with one record per snapshot record, in the same order.
func (cctx *CompareContext) WriteComparison(snapshot io.Reader, writer io.WriteSeeker) (retErr error) {
	consumer := consumerOrDefault(cctx.Consumer)

	rc := wire.NewReadContext(snapshot)
	numRecords, err := rc.ExpectMagic(wire.SnapshotMagic)
	if err != nil {
		return errors.WithMessage(err, "reading snapshot")
	}

	pool, err := fspool.New(cctx.BasePath, cctx.PoolSize)
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

		err = cctx.compareRecord(rc, wc, pool, hs, consumer)
		if err != nil {
			return err
		}
	}

	err = wc.WriteHeader(wire.ComparisonMagic, numRecords)
	if err != nil {
		return err
	}

	err = rc.ExpectEOF()
	if err != nil {
		return errors.WithMessage(err, "reading snapshot")
	}

	consumer.Debugf("compared %d entries", numRecords)
	return nil
}

func (cctx *CompareContext) compareRecord(rc *wire.ReadContext, wc *wire.WriteContext, pool *fspool.Pool, hs *wsync.Context, consumer *state.Consumer) error {
	record, _, err := matchRecord(rc, pool, hs, consumer)
	if err != nil {
		return err
	}

	err = wc.WritePathname(record.Path)
	if err != nil {
		return err
	}

	err = wc.WriteUint(uint64(record.BlockCount), wire.BlockCountSize)
	if err != nil {
		return err
	}

	return wc.WriteBytes(record.Bitmap.Bytes())
}

// matchRecord reads one snapshot record and checks its digests against the
// local copy of the file. It also returns how many blocks the local copy
// has now, which may be more than the snapshot knows about.
func matchRecord(rc *wire.ReadContext, pool *fspool.Pool, hs *wsync.Context, consumer *state.Consumer) (*ComparisonRecord, int64, error) {
	path, blockCount, err := readSnapshotRecordHeader(rc)
	if err != nil {
		return nil, 0, err
	}
	consumer.ProgressLabel(path)

	record := &ComparisonRecord{
		Path:       path,
		BlockCount: blockCount,
		Bitmap:     wsync.NewBitmap(blockCount),
	}

	entry, err := pool.Stat(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "comparing %s", path)
	}

	var localBlocks int64
	if entry.Kind == tlc.KindRegular {
		localBlocks = hs.BlockCount(entry.Size)
	}

	if blockCount == 0 {
		return record, localBlocks, nil
	}

	local, err := localHashes(pool, hs, entry, blockCount, consumer)
	if err != nil {
		return nil, 0, err
	}

	if local == nil {
		// nothing to match against, every block counts as changed
		err = rc.Skip(blockCount * wire.HashSize)
		if err != nil {
			return nil, 0, err
		}
		return record, localBlocks, nil
	}

	snapshotHashes := make([]uint64, blockCount)
	for i := range snapshotHashes {
		snapshotHashes[i], err = rc.ReadUint(wire.HashSize)
		if err != nil {
			return nil, 0, err
		}
	}

	record.Bitmap = wsync.MatchBitmap(snapshotHashes, local)
	consumer.Debugf("%s: %d/%d blocks unchanged", path, record.Bitmap.Count(), blockCount)
	return record, localBlocks, nil
}

// localHashes digests the blocks of the local copy of entry that the
// snapshot has a counterpart for. It returns nil when there is no usable
// local copy.
func localHashes(pool *fspool.Pool, hs *wsync.Context, entry *tlc.Entry, blockCount int64, consumer *state.Consumer) ([]uint64, error) {
	path := entry.Path

	switch {
	case entry.Kind == tlc.KindAbsent:
		consumer.Warnf("%s: gone since snapshot", path)
		return nil, nil
	case entry.Kind != tlc.KindRegular:
		consumer.Warnf("%s: now a %s", path, entry.Kind)
		return nil, nil
	case entry.Size == 0:
		return nil, nil
	}

	reader, err := pool.GetReader(path)
	if err != nil {
		consumer.Warnf("%s: can't open: %s", path, err.Error())
		return nil, nil
	}
	defer pool.Release(path)

	size := entry.Size
	if limit := blockCount * int64(hs.BlockSize()); size > limit {
		size = limit
	}

	hashes, err := hs.ComputeHashes(reader, size)
	if err != nil {
		return nil, errors.Wrapf(err, "comparing %s", path)
	}
	return hashes, nil
}
