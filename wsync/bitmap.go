package wsync

import (
	"github.com/itchio/buoy/wire"
	"github.com/pkg/errors"
)

// Bitmap has one bit per block of a file. Block i is stored in byte i/8,
// most significant bit first, so block 0 is bit 7 of byte 0. Bits past the
// last block are always zero.
type Bitmap struct {
	numBlocks int64
	bits      []byte
}

// BitmapSize returns how many bytes a bitmap for numBlocks blocks takes.
func BitmapSize(numBlocks int64) int64 {
	return (numBlocks + 7) / 8
}

func NewBitmap(numBlocks int64) *Bitmap {
	return &Bitmap{
		numBlocks: numBlocks,
		bits:      make([]byte, BitmapSize(numBlocks)),
	}
}

// BitmapFromBytes wraps an encoded bitmap, rejecting one whose padding
// bits are set.
func BitmapFromBytes(numBlocks int64, bits []byte) (*Bitmap, error) {
	if int64(len(bits)) != BitmapSize(numBlocks) {
		return nil, errors.Wrapf(wire.ErrFormatViolation, "bitmap for %d blocks should be %d bytes, got %d",
			numBlocks, BitmapSize(numBlocks), len(bits))
	}

	if used := numBlocks % 8; used != 0 {
		padding := byte(0xFF) >> uint(used)
		if bits[len(bits)-1]&padding != 0 {
			return nil, errors.Wrapf(wire.ErrFormatViolation, "bitmap for %d blocks has padding bits set", numBlocks)
		}
	}

	return &Bitmap{
		numBlocks: numBlocks,
		bits:      bits,
	}, nil
}

func (b *Bitmap) NumBlocks() int64 {
	return b.numBlocks
}

func mask(blockIndex int64) byte {
	return 0x80 >> uint(blockIndex%8)
}

func (b *Bitmap) Set(blockIndex int64) {
	if blockIndex < 0 || blockIndex >= b.numBlocks {
		return
	}
	b.bits[blockIndex/8] |= mask(blockIndex)
}

// IsSet returns false for any index outside the bitmap.
func (b *Bitmap) IsSet(blockIndex int64) bool {
	if blockIndex < 0 || blockIndex >= b.numBlocks {
		return false
	}
	return b.bits[blockIndex/8]&mask(blockIndex) != 0
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int64 {
	var count int64
	for i := int64(0); i < b.numBlocks; i++ {
		if b.IsSet(i) {
			count++
		}
	}
	return count
}

func (b *Bitmap) Bytes() []byte {
	return b.bits
}

// MatchBitmap sets bit i when the i-th snapshot hash equals the i-th local
// hash. Blocks the local file doesn't have never match.
func MatchBitmap(snapshot []uint64, local []uint64) *Bitmap {
	b := NewBitmap(int64(len(snapshot)))
	for i := range snapshot {
		if i < len(local) && snapshot[i] == local[i] {
			b.Set(int64(i))
		}
	}
	return b
}
