package wire

// Field widths, in bytes. Every encoder and decoder of the three index
// formats must agree on these.
const (
	MagicSize       = 4
	RecordCountSize = 1
	HeaderSize      = MagicSize + RecordCountSize

	PathnameLenSize = 2
	BlockCountSize  = 3
	HashSize        = 8

	ModeSize        = 10
	FileSizeSize    = 4
	UpdateCountSize = 3
	BlockIndexSize  = 3
	UpdateLenSize   = 2
)

// BlockSize is the size of every block but the last one of a file.
const BlockSize = 256

// Limits implied by the field widths above.
const (
	MaxRecords     = 1<<(8*RecordCountSize) - 1
	MaxPathnameLen = 1<<(8*PathnameLenSize) - 1
	MaxBlockCount  = 1<<(8*BlockCountSize) - 1
	MaxFileSize    = 1<<(8*FileSizeSize) - 1
)

// Magic identifies which stage produced an index.
type Magic [MagicSize]byte

var (
	SnapshotMagic   = Magic{'T', 'A', 'B', 'I'}
	ComparisonMagic = Magic{'T', 'B', 'B', 'I'}
	PatchMagic      = Magic{'T', 'C', 'B', 'I'}
)

func (m Magic) String() string {
	return string(m[:])
}
