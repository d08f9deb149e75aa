package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/itchio/buoy/pwr"
	"github.com/itchio/buoy/wire"
	"github.com/itchio/buoy/wsync"
	"github.com/itchio/headway/united"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func runInspect(opts *globalOptions, log zerolog.Logger, args []string) error {
	fs, err := parseCommand("inspect", args, 1, 1, nil)
	if err != nil {
		return err
	}

	f, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	var magic wire.Magic
	_, err = io.ReadFull(f, magic[:])
	if err != nil {
		return errors.Wrapf(wire.ErrFormatViolation, "%s is too short to be an index", fs.Arg(0))
	}

	_, err = f.Seek(0, io.SeekStart)
	if err != nil {
		return errors.WithStack(err)
	}

	switch magic {
	case wire.SnapshotMagic:
		return inspectSnapshot(f)
	case wire.ComparisonMagic:
		return inspectComparison(f)
	case wire.PatchMagic:
		return inspectPatch(f)
	}
	return errors.Wrapf(wire.ErrFormatViolation, "%s has unknown magic %q", fs.Arg(0), magic.String())
}

func inspectSnapshot(r io.Reader) error {
	records, err := pwr.ReadSnapshot(r)
	if err != nil {
		return err
	}

	fmt.Printf("snapshot, %d entries\n", len(records))
	for _, record := range records {
		fmt.Printf("  %s: %d blocks\n", record.Path, record.BlockCount())
		for i, hash := range record.Hashes {
			fmt.Printf("    #%d %016x\n", i, hash)
		}
	}
	return nil
}

func formatBitmap(b *wsync.Bitmap) string {
	var sb strings.Builder
	for i := int64(0); i < b.NumBlocks(); i++ {
		if b.IsSet(i) {
			sb.WriteByte('=')
		} else {
			sb.WriteByte('x')
		}
	}
	return sb.String()
}

func inspectComparison(r io.Reader) error {
	records, err := pwr.ReadComparison(r)
	if err != nil {
		return err
	}

	fmt.Printf("comparison, %d entries\n", len(records))
	for _, record := range records {
		fmt.Printf("  %s: %d/%d blocks unchanged\n", record.Path, record.Bitmap.Count(), record.BlockCount)
		if record.BlockCount > 0 {
			fmt.Printf("    %s\n", formatBitmap(record.Bitmap))
		}
	}
	return nil
}

func inspectPatch(r io.Reader) error {
	records, err := pwr.ReadPatch(r)
	if err != nil {
		return err
	}

	fmt.Printf("patch, %d entries\n", len(records))
	for _, record := range records {
		var updateBytes int64
		for _, u := range record.Updates {
			updateBytes += int64(len(u.Data))
		}

		fmt.Printf("  %s %s: %s, %d updates (%s)\n",
			record.Entry().ModeString(), record.Path,
			united.FormatBytes(record.Size), len(record.Updates), united.FormatBytes(updateBytes))
		for _, u := range record.Updates {
			fmt.Printf("    #%d %s\n", u.BlockIndex, united.FormatBytes(int64(len(u.Data))))
		}
	}
	return nil
}
