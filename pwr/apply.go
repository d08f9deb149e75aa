package pwr

import (
	"io"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/itchio/buoy/pwr/bowl"
	"github.com/itchio/buoy/tlc"
	"github.com/itchio/buoy/wire"
	"github.com/itchio/headway/state"
	"github.com/pkg/errors"
)

// ApplyContext holds options for applying a patch log.
type ApplyContext struct {
	// TargetPath is the folder the patch log is applied to. Required
	// unless DryRun is set.
	TargetPath string
	// DryRun validates the patch log without touching the disk.
	DryRun bool
	// optional
	Consumer *state.Consumer

	// set after ApplyPatch
	Stats ApplyStats
}

type ApplyStats struct {
	Entries     int64
	Skipped     int64
	Updates     int64
	UpdateBytes int64
}

// ApplyPatch reads a patch log and brings every entry it names up to date,
// in order.
func (actx *ApplyContext) ApplyPatch(patch io.Reader) error {
	consumer := consumerOrDefault(actx.Consumer)
	actx.Stats = ApplyStats{}

	var bwl bowl.Bowl
	if actx.DryRun {
		bwl = bowl.NewDryBowl()
	} else {
		err := validation.ValidateStruct(actx,
			validation.Field(&actx.TargetPath, validation.Required),
		)
		if err != nil {
			return errors.Wrap(err, "applying patch")
		}

		bwl, err = bowl.NewFsBowl(&bowl.FsBowlParams{
			OutputFolder: actx.TargetPath,
		})
		if err != nil {
			return err
		}
	}

	rc := wire.NewReadContext(patch)
	numRecords, err := rc.ExpectMagic(wire.PatchMagic)
	if err != nil {
		return errors.WithMessage(err, "reading patch")
	}

	buf := make([]byte, wire.BlockSize)
	for i := 0; i < numRecords; i++ {
		consumer.Progress(float64(i) / float64(numRecords))

		err = actx.applyRecord(rc, bwl, buf, consumer)
		if err != nil {
			return err
		}
	}

	err = rc.ExpectEOF()
	if err != nil {
		return errors.WithMessage(err, "reading patch")
	}

	err = bwl.Commit()
	if err != nil {
		return err
	}

	consumer.Debugf("applied %d entries, %d updates", actx.Stats.Entries, actx.Stats.Updates)
	return nil
}

func (actx *ApplyContext) applyRecord(rc *wire.ReadContext, bwl bowl.Bowl, buf []byte, consumer *state.Consumer) (retErr error) {
	record, updateCount, err := readPatchRecordHeader(rc)
	if err != nil {
		return errors.WithMessage(err, "reading patch")
	}
	consumer.ProgressLabel(record.Path)

	err = checkPathname(record.Path)
	if err != nil {
		return err
	}

	if record.Kind == tlc.KindOther {
		consumer.Warnf("%s: don't know how to apply %s entries, skipping", record.Path, record.Kind)
		actx.Stats.Skipped++
		return nil
	}

	writer, err := bwl.Prepare(record.Entry())
	if err != nil {
		return errors.Wrapf(err, "applying %s", record.Path)
	}
	actx.Stats.Entries++

	if writer == nil {
		return nil
	}
	defer func() {
		cErr := writer.Close()
		if cErr != nil && retErr == nil {
			retErr = errors.Wrapf(cErr, "applying %s", record.Path)
		}
	}()

	for j := int64(0); j < updateCount; j++ {
		blockIndex, data, err := readUpdate(rc, record, buf)
		if err != nil {
			return errors.WithMessage(err, "reading patch")
		}

		_, err = writer.WriteAt(data, blockIndex*wire.BlockSize)
		if err != nil {
			return errors.Wrapf(err, "applying %s", record.Path)
		}

		actx.Stats.Updates++
		actx.Stats.UpdateBytes += int64(len(data))
	}

	return nil
}
