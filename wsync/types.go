// Package wsync splits files into fixed-size blocks, hashes them, and
// records which blocks of a file still match an earlier signature.
//
// Blocks are aligned on fixed offsets: an insertion in the middle of a file
// shifts every following block and makes them all mismatch.
package wsync

import "github.com/itchio/buoy/wire"

// BlockHash identifies the contents of one block of a file.
type BlockHash struct {
	BlockIndex int64
	Hash       uint64
}

type SignatureWriter func(hash BlockHash) error

// Context holds the block size and a reusable read buffer. It is not safe
// for concurrent use, each worker needs its own.
type Context struct {
	blockSize int
	buffer    []byte
}

func NewContext(blockSize int) *Context {
	return &Context{
		blockSize: blockSize,
	}
}

// DefaultContext returns a context using the deployment-wide block size.
func DefaultContext() *Context {
	return NewContext(wire.BlockSize)
}

func (ctx *Context) BlockSize() int {
	return ctx.blockSize
}
