package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/itchio/buoy/pwr"
	"github.com/itchio/buoy/tlc"
	"github.com/itchio/headway/united"
	"github.com/itchio/screw"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func parseCommand(name string, args []string, minArgs int, maxArgs int, setup func(fs *flag.FlagSet)) (*flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if setup != nil {
		setup(fs)
	}

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}

	if fs.NArg() < minArgs || (maxArgs >= 0 && fs.NArg() > maxArgs) {
		fs.Usage()
		return nil, errors.Errorf("%s: wrong number of arguments", name)
	}
	return fs, nil
}

// writeOutput creates path and runs write against it. The file is removed
// if write fails, so a half-written index never lingers.
func writeOutput(path string, write func(w io.WriteSeeker) error) error {
	if path == "" {
		return errors.New("missing output file (-o)")
	}

	f, err := screw.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}

	err = write(f)
	cErr := f.Close()
	if err == nil && cErr != nil {
		err = errors.WithStack(cErr)
	}
	if err != nil {
		screw.Remove(path)
		return err
	}
	return nil
}

func openInput(path string) (*os.File, error) {
	f, err := screw.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

func outputSize(path string) string {
	info, err := screw.Stat(path)
	if err != nil {
		return "?"
	}
	return united.FormatBytes(info.Size())
}

func runSnapshot(opts *globalOptions, log zerolog.Logger, args []string) error {
	var output string
	var workers int
	fs, err := parseCommand("snapshot", args, 0, -1, func(fs *flag.FlagSet) {
		fs.StringVar(&output, "o", "", "Snapshot index to write")
		fs.IntVar(&workers, "j", 0, "Number of files hashed at once (default: one per CPU)")
	})
	if err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		root := opts.dir
		if root == "" {
			root = "."
		}
		paths, err = tlc.List(root)
		if err != nil {
			return err
		}
		log.Debug().Int("entries", len(paths)).Str("dir", root).Msg("listed directory")
	}

	sctx := &pwr.SnapshotContext{
		BasePath: opts.dir,
		Workers:  workers,
		Consumer: newConsumer(log),
	}
	err = writeOutput(output, func(w io.WriteSeeker) error {
		return sctx.WriteSnapshot(paths, w)
	})
	if err != nil {
		return err
	}

	log.Info().Int("entries", len(paths)).Msgf("wrote %s snapshot to %s", outputSize(output), output)
	return nil
}

func runCompare(opts *globalOptions, log zerolog.Logger, args []string) error {
	var output string
	fs, err := parseCommand("compare", args, 1, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&output, "o", "", "Comparison index to write")
	})
	if err != nil {
		return err
	}

	snapshot, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer snapshot.Close()

	cctx := &pwr.CompareContext{
		BasePath: opts.dir,
		Consumer: newConsumer(log),
	}
	err = writeOutput(output, func(w io.WriteSeeker) error {
		return cctx.WriteComparison(snapshot, w)
	})
	if err != nil {
		return err
	}

	log.Info().Msgf("wrote %s comparison to %s", outputSize(output), output)
	return nil
}

func runPatch(opts *globalOptions, log zerolog.Logger, args []string) error {
	var output string
	fs, err := parseCommand("patch", args, 1, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&output, "o", "", "Patch log to write")
	})
	if err != nil {
		return err
	}

	comparison, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer comparison.Close()

	pctx := &pwr.PatchContext{
		BasePath: opts.dir,
		Consumer: newConsumer(log),
	}
	err = writeOutput(output, func(w io.WriteSeeker) error {
		return pctx.WritePatch(comparison, w)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("updates", pctx.Stats.Updates).
		Msgf("wrote %s patch to %s (%s of changed blocks)",
			outputSize(output), output, united.FormatBytes(pctx.Stats.UpdateBytes))
	return nil
}

func runApply(opts *globalOptions, log zerolog.Logger, args []string) error {
	var dryRun bool
	fs, err := parseCommand("apply", args, 1, 1, func(fs *flag.FlagSet) {
		fs.BoolVar(&dryRun, "dry-run", false, "Validate the patch log without writing anything")
	})
	if err != nil {
		return err
	}

	patch, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer patch.Close()

	target := opts.dir
	if target == "" {
		target = "."
	}

	actx := &pwr.ApplyContext{
		TargetPath: target,
		DryRun:     dryRun,
		Consumer:   newConsumer(log),
	}
	err = actx.ApplyPatch(patch)
	if err != nil {
		return err
	}

	verb := "applied"
	if dryRun {
		verb = "validated"
	}
	log.Info().
		Int64("entries", actx.Stats.Entries).
		Int64("skipped", actx.Stats.Skipped).
		Msg(fmt.Sprintf("%s %d updates (%s)", verb, actx.Stats.Updates, united.FormatBytes(actx.Stats.UpdateBytes)))
	return nil
}

func runVerify(opts *globalOptions, log zerolog.Logger, args []string) error {
	var failFast bool
	fs, err := parseCommand("verify", args, 1, 1, func(fs *flag.FlagSet) {
		fs.BoolVar(&failFast, "fail-fast", false, "Stop at the first mismatched block")
	})
	if err != nil {
		return err
	}

	snapshot, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer snapshot.Close()

	vctx := &pwr.VerifyContext{
		BasePath: opts.dir,
		FailFast: failFast,
		Consumer: newConsumer(log),
	}
	err = vctx.Verify(snapshot)
	if err != nil {
		return err
	}

	if len(vctx.Wounds) > 0 {
		return errors.Errorf("%d blocks changed since snapshot", vctx.CorruptedBlocks)
	}
	log.Info().Msg("everything matches the snapshot")
	return nil
}
