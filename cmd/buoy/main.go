// buoy snapshots a set of files, and later brings a copy of them up to
// date by shipping only the blocks that changed.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

const usage = `Usage: buoy [options] <command> [args]

Commands:
  snapshot -o OUT [paths...]   hash files into a snapshot index
  compare -o OUT SNAPSHOT      find which blocks are unchanged since a snapshot
  patch -o OUT COMPARISON      collect changed blocks into a patch log
  apply [-dry-run] PATCH       apply a patch log
  verify [-fail-fast] SNAPSHOT list blocks that changed since a snapshot
  inspect FILE                 print the records of any index

Options:
`

type globalOptions struct {
	dir     string
	verbose bool
	json    bool
}

type command func(opts *globalOptions, log zerolog.Logger, args []string) error

var commands = map[string]command{
	"snapshot": runSnapshot,
	"compare":  runCompare,
	"patch":    runPatch,
	"apply":    runApply,
	"verify":   runVerify,
	"inspect":  runInspect,
}

func main() {
	opts := &globalOptions{}
	flag.StringVar(&opts.dir, "C", "", "Directory pathnames are relative to (default: current directory)")
	flag.BoolVar(&opts.verbose, "v", false, "Log debug messages")
	flag.BoolVar(&opts.json, "json", false, "Log JSON lines instead of human-readable text")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}

	log := newLogger(opts)
	err := cmd(opts, log, flag.Args()[1:])
	if err != nil {
		if opts.verbose {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		}
		log.Error().Err(err).Msgf("%s failed", flag.Arg(0))
		os.Exit(1)
	}
}
