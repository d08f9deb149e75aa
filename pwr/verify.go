package pwr

import (
	"fmt"
	"io"

	"github.com/itchio/buoy/pools/fspool"
	"github.com/itchio/buoy/wire"
	"github.com/itchio/headway/state"
	"github.com/pkg/errors"
)

// ErrHasWound is returned by Verify in FailFast mode when a file doesn't
// match the snapshot.
var ErrHasWound = errors.New("files don't match snapshot")

// A Wound is a run of consecutive blocks of a file that no longer match
// their snapshot digests.
type Wound struct {
	Path string
	// Start is the first mismatched block, End is one past the last.
	Start int64
	End   int64
}

func (w Wound) String() string {
	if w.End-w.Start == 1 {
		return fmt.Sprintf("%s: block %d", w.Path, w.Start)
	}
	return fmt.Sprintf("%s: blocks %d to %d", w.Path, w.Start, w.End-1)
}

// VerifyContext holds options for checking local files against a
// snapshot index without writing anything.
type VerifyContext struct {
	// BasePath is where relative pathnames are resolved. Optional.
	BasePath string
	// PoolSize is how many local files are kept open. Optional.
	PoolSize int
	// optional
	Consumer *state.Consumer

	// FailFast makes Verify stop at the first wound
	FailFast bool

	// set after Verify
	Wounds          []Wound
	CorruptedBlocks int64
}

// Verify reads a snapshot index and records a wound for every run of
// blocks whose digest changed or that a file gained since. It only returns
// an error for invalid snapshots, I/O failures, or a wound in FailFast mode.
func (vctx *VerifyContext) Verify(snapshot io.Reader) (retErr error) {
	consumer := consumerOrDefault(vctx.Consumer)
	vctx.Wounds = nil
	vctx.CorruptedBlocks = 0

	rc := wire.NewReadContext(snapshot)
	numRecords, err := rc.ExpectMagic(wire.SnapshotMagic)
	if err != nil {
		return errors.WithMessage(err, "reading snapshot")
	}

	pool, err := fspool.New(vctx.BasePath, vctx.PoolSize)
	if err != nil {
		return err
	}
	defer func() {
		cErr := pool.Close()
		if cErr != nil && retErr == nil {
			retErr = cErr
		}
	}()

	hs := mksync()
	for i := 0; i < numRecords; i++ {
		consumer.Progress(float64(i) / float64(numRecords))

		record, localBlocks, err := matchRecord(rc, pool, hs, consumer)
		if err != nil {
			return err
		}

		for _, wound := range woundsOf(record, localBlocks) {
			consumer.Warnf("wound: %s", wound)
			vctx.Wounds = append(vctx.Wounds, wound)
			vctx.CorruptedBlocks += wound.End - wound.Start

			if vctx.FailFast {
				return errors.Wrap(ErrHasWound, wound.String())
			}
		}
	}

	err = rc.ExpectEOF()
	if err != nil {
		return errors.WithMessage(err, "reading snapshot")
	}

	consumer.Debugf("verified %d entries, %d corrupted blocks", numRecords, vctx.CorruptedBlocks)
	return nil
}

// woundsOf groups mismatched blocks into runs. Blocks the file gained since
// the snapshot never match.
func woundsOf(record *ComparisonRecord, localBlocks int64) []Wound {
	var wounds []Wound
	var current *Wound

	numBlocks := record.BlockCount
	if localBlocks > numBlocks {
		numBlocks = localBlocks
	}

	for i := int64(0); i < numBlocks; i++ {
		if record.Bitmap.IsSet(i) {
			current = nil
			continue
		}

		if current == nil {
			wounds = append(wounds, Wound{Path: record.Path, Start: i, End: i + 1})
			current = &wounds[len(wounds)-1]
		} else {
			current.End = i + 1
		}
	}
	return wounds
}

