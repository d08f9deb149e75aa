package pwr

import (
	"io"
	"path/filepath"

	"github.com/itchio/buoy/tlc"
	"github.com/itchio/buoy/wire"
	"github.com/itchio/buoy/wsync"
)

func readSnapshotRecordHeader(rc *wire.ReadContext) (string, int64, error) {
	path, err := rc.ReadPathname()
	if err != nil {
		return "", 0, err
	}

	blockCount, err := rc.ReadUint(wire.BlockCountSize)
	if err != nil {
		return "", 0, err
	}
	return path, int64(blockCount), nil
}

func readComparisonRecord(rc *wire.ReadContext) (*ComparisonRecord, error) {
	path, err := rc.ReadPathname()
	if err != nil {
		return nil, err
	}

	blockCount, err := rc.ReadUint(wire.BlockCountSize)
	if err != nil {
		return nil, err
	}

	bits := make([]byte, wsync.BitmapSize(int64(blockCount)))
	err = rc.ReadFull(bits)
	if err != nil {
		return nil, err
	}

	bitmap, err := wsync.BitmapFromBytes(int64(blockCount), bits)
	if err != nil {
		return nil, err
	}

	return &ComparisonRecord{
		Path:       path,
		BlockCount: int64(blockCount),
		Bitmap:     bitmap,
	}, nil
}

// readPatchRecordHeader reads everything up to the updates of a patch
// record and returns the update count.
func readPatchRecordHeader(rc *wire.ReadContext) (*PatchRecord, int64, error) {
	path, err := rc.ReadPathname()
	if err != nil {
		return nil, 0, err
	}

	modeString := make([]byte, wire.ModeSize)
	err = rc.ReadFull(modeString)
	if err != nil {
		return nil, 0, err
	}

	kind, mode, err := tlc.ParseMode(string(modeString))
	if err != nil {
		return nil, 0, err
	}

	size, err := rc.ReadUint(wire.FileSizeSize)
	if err != nil {
		return nil, 0, err
	}

	updateCount, err := rc.ReadUint(wire.UpdateCountSize)
	if err != nil {
		return nil, 0, err
	}

	if kind != tlc.KindRegular {
		if size != 0 {
			return nil, 0, formatViolation("%s entry %s has size %d", kind, path, size)
		}
		if updateCount != 0 {
			return nil, 0, formatViolation("%s entry %s has %d updates", kind, path, updateCount)
		}
	}

	record := &PatchRecord{
		Path:       path,
		Kind:       kind,
		Mode:       mode,
		Size:       int64(size),
		BlockCount: mksync().BlockCount(int64(size)),
	}
	return record, int64(updateCount), nil
}

// readUpdate reads one update of record into buf, which must hold at least
// one block. The returned data aliases buf.
func readUpdate(rc *wire.ReadContext, record *PatchRecord, buf []byte) (int64, []byte, error) {
	blockIndex, err := rc.ReadUint(wire.BlockIndexSize)
	if err != nil {
		return 0, nil, err
	}

	length, err := rc.ReadUint(wire.UpdateLenSize)
	if err != nil {
		return 0, nil, err
	}

	if length == 0 || length > wire.BlockSize {
		return 0, nil, formatViolation("%s: update of block %d is %d bytes long", record.Path, blockIndex, length)
	}

	end := int64(blockIndex)*wire.BlockSize + int64(length)
	if end > record.Size {
		return 0, nil, formatViolation("%s: update of block %d ends at %d, past end of %d-byte file",
			record.Path, blockIndex, end, record.Size)
	}

	data := buf[:length]
	err = rc.ReadFull(data)
	if err != nil {
		return 0, nil, err
	}
	return int64(blockIndex), data, nil
}

// checkPathname rejects pathnames that would land outside the target
// folder when a patch is applied.
func checkPathname(path string) error {
	if !filepath.IsLocal(filepath.FromSlash(path)) {
		return formatViolation("pathname %q is not relative to the target", path)
	}
	return nil
}

// ReadSnapshot decodes a whole snapshot index.
func ReadSnapshot(reader io.Reader) ([]*SnapshotRecord, error) {
	rc := wire.NewReadContext(reader)
	numRecords, err := rc.ExpectMagic(wire.SnapshotMagic)
	if err != nil {
		return nil, err
	}

	records := make([]*SnapshotRecord, 0, numRecords)
	for i := 0; i < numRecords; i++ {
		path, blockCount, err := readSnapshotRecordHeader(rc)
		if err != nil {
			return nil, err
		}

		record := &SnapshotRecord{
			Path:   path,
			Hashes: make([]uint64, blockCount),
		}
		for j := range record.Hashes {
			record.Hashes[j], err = rc.ReadUint(wire.HashSize)
			if err != nil {
				return nil, err
			}
		}
		records = append(records, record)
	}

	err = rc.ExpectEOF()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadComparison decodes a whole comparison index.
func ReadComparison(reader io.Reader) ([]*ComparisonRecord, error) {
	rc := wire.NewReadContext(reader)
	numRecords, err := rc.ExpectMagic(wire.ComparisonMagic)
	if err != nil {
		return nil, err
	}

	records := make([]*ComparisonRecord, 0, numRecords)
	for i := 0; i < numRecords; i++ {
		record, err := readComparisonRecord(rc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	err = rc.ExpectEOF()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadPatch decodes a whole patch log, update data included.
func ReadPatch(reader io.Reader) ([]*PatchRecord, error) {
	rc := wire.NewReadContext(reader)
	numRecords, err := rc.ExpectMagic(wire.PatchMagic)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, wire.BlockSize)
	records := make([]*PatchRecord, 0, numRecords)
	for i := 0; i < numRecords; i++ {
		record, updateCount, err := readPatchRecordHeader(rc)
		if err != nil {
			return nil, err
		}

		for j := int64(0); j < updateCount; j++ {
			blockIndex, data, err := readUpdate(rc, record, buf)
			if err != nil {
				return nil, err
			}
			record.Updates = append(record.Updates, UpdateEntry{
				BlockIndex: blockIndex,
				Data:       append([]byte(nil), data...),
			})
		}
		records = append(records, record)
	}

	err = rc.ExpectEOF()
	if err != nil {
		return nil, err
	}
	return records, nil
}
