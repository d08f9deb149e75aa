package pwr

import (
	"runtime"

	"github.com/itchio/buoy/wsync"
)

// DefaultWorkers is how many files a snapshot hashes at once when not told
// otherwise.
var DefaultWorkers = runtime.NumCPU()

func mksync() *wsync.Context {
	return wsync.DefaultContext()
}
