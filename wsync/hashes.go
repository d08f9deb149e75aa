package wsync

import (
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/itchio/buoy/wire"
	"github.com/pkg/errors"
)

// BlockCount returns the number of blocks a file of the given size spans,
// the last one possibly short.
func (ctx *Context) BlockCount(size int64) int64 {
	if size <= 0 {
		return 0
	}
	bs := int64(ctx.blockSize)
	return (size + bs - 1) / bs
}

// TrailingSize returns the size of the last block of a file.
func (ctx *Context) TrailingSize(size int64) int64 {
	if size <= 0 {
		return 0
	}
	bs := int64(ctx.blockSize)
	if rem := size % bs; rem != 0 {
		return rem
	}
	return bs
}

// BlockLength returns the size of block blockIndex of a file.
func (ctx *Context) BlockLength(size int64, blockIndex int64) int64 {
	if blockIndex == ctx.BlockCount(size)-1 {
		return ctx.TrailingSize(size)
	}
	return int64(ctx.blockSize)
}

// CheckSize fails if a file of the given size has more blocks than a block
// count field can hold.
func (ctx *Context) CheckSize(size int64) error {
	numBlocks := ctx.BlockCount(size)
	if numBlocks > wire.MaxBlockCount {
		return errors.Wrapf(wire.ErrCapacityExceeded, "%d blocks, max is %d", numBlocks, wire.MaxBlockCount)
	}
	return nil
}

// HashBlock digests the contents of a single block.
func HashBlock(block []byte) uint64 {
	return xxhash.Sum64(block)
}

// ReadBlock seeks to block blockIndex of a file of the given size and
// returns its bytes. The returned slice is only valid until the next call.
func (ctx *Context) ReadBlock(reader io.ReadSeeker, size int64, blockIndex int64) ([]byte, error) {
	if len(ctx.buffer) < ctx.blockSize {
		ctx.buffer = make([]byte, ctx.blockSize)
	}

	_, err := reader.Seek(blockIndex*int64(ctx.blockSize), io.SeekStart)
	if err != nil {
		return nil, errors.Wrapf(err, "seeking to block %d", blockIndex)
	}

	block := ctx.buffer[:ctx.BlockLength(size, blockIndex)]
	_, err = io.ReadFull(reader, block)
	if err != nil {
		return nil, errors.Wrapf(err, "reading block %d", blockIndex)
	}
	return block, nil
}

// CreateSignature hashes every block of a file of the given size, in order.
func (ctx *Context) CreateSignature(reader io.ReadSeeker, size int64, writeHash SignatureWriter) error {
	numBlocks := ctx.BlockCount(size)

	for blockIndex := int64(0); blockIndex < numBlocks; blockIndex++ {
		block, err := ctx.ReadBlock(reader, size, blockIndex)
		if err != nil {
			return err
		}

		blockHash := BlockHash{
			BlockIndex: blockIndex,
			Hash:       HashBlock(block),
		}

		err = writeHash(blockHash)
		if err != nil {
			return err
		}
	}

	return nil
}

// ComputeHashes returns the digest of every block of a file of the given size.
func (ctx *Context) ComputeHashes(reader io.ReadSeeker, size int64) ([]uint64, error) {
	hashes := make([]uint64, 0, ctx.BlockCount(size))

	err := ctx.CreateSignature(reader, size, func(bh BlockHash) error {
		hashes = append(hashes, bh.Hash)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return hashes, nil
}
