// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/sstable/block"
)

// Table file layout:
//
//	[data block 1]
//	...
//	[data block N]
//	[compression dictionary block] (optional)
//	[index block]
//	[footer]
//
// Every block is followed by a block.Trailer holding its compression
// indicator and checksum. The dictionary and index blocks are never
// compressed. The index block is a sequence of varint-encoded data block
// handles.
//
// The footer has a fixed size and is little endian:
//
//	dictionary handle offset  uint64
//	dictionary handle length  uint64
//	index handle offset       uint64
//	index handle length       uint64
//	checksum type             uint8
//	flags                     uint8
//	reserved                  [6]byte
//	magic                     [8]byte
//
// A zero-length dictionary handle means the table has no dictionary.
const (
	footerLen   = 48
	footerMagic = "sstdict\x01"

	flagsOffset = 33
	magicOffset = footerLen - len(footerMagic)
)

// Footer flags.
const (
	// footerFlagDefinitelyZstd is set when every data block is
	// zstd-compressed.
	footerFlagDefinitelyZstd = 1 << 0
)

// Footer describes the metadata stored at the end of a table.
type Footer struct {
	// DictionaryHandle locates the compression dictionary block. It is null
	// if the table has no dictionary.
	DictionaryHandle block.Handle
	// IndexHandle locates the index block.
	IndexHandle block.Handle
	// ChecksumType is the checksum used by every block of the table.
	ChecksumType block.ChecksumType
	// BlocksDefinitelyZstd is set when every data block is zstd-compressed.
	BlocksDefinitelyZstd bool
}

// SafeFormat implements redact.SafeFormatter.
func (f Footer) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("dict=%s index=%s checksum=%s definitely-zstd=%t",
		f.DictionaryHandle, f.IndexHandle, f.ChecksumType, redact.Safe(f.BlocksDefinitelyZstd))
}

// String implements fmt.Stringer.
func (f Footer) String() string {
	return redact.StringWithoutMarkers(f)
}

func (f Footer) encode(buf []byte) []byte {
	buf = append(buf[:0], make([]byte, footerLen)...)
	binary.LittleEndian.PutUint64(buf[0:], f.DictionaryHandle.Offset)
	binary.LittleEndian.PutUint64(buf[8:], f.DictionaryHandle.Length)
	binary.LittleEndian.PutUint64(buf[16:], f.IndexHandle.Offset)
	binary.LittleEndian.PutUint64(buf[24:], f.IndexHandle.Length)
	buf[32] = byte(f.ChecksumType)
	if f.BlocksDefinitelyZstd {
		buf[flagsOffset] |= footerFlagDefinitelyZstd
	}
	copy(buf[magicOffset:], footerMagic)
	return buf
}

// decodeFooter decodes and validates the footer of a table of the given
// size. buf holds the last footerLen bytes of the table.
func decodeFooter(buf []byte, size int64, fileNum base.DiskFileNum) (Footer, error) {
	if len(buf) != footerLen {
		return Footer{}, errors.AssertionFailedf("footer buffer has %d bytes", len(buf))
	}
	if string(buf[magicOffset:]) != footerMagic {
		return Footer{}, base.CorruptionErrorf("sstdict: invalid table %s (bad magic number: 0x%x)",
			fileNum, errors.Safe(buf[magicOffset:]))
	}
	f := Footer{
		DictionaryHandle: block.Handle{
			Offset: binary.LittleEndian.Uint64(buf[0:]),
			Length: binary.LittleEndian.Uint64(buf[8:]),
		},
		IndexHandle: block.Handle{
			Offset: binary.LittleEndian.Uint64(buf[16:]),
			Length: binary.LittleEndian.Uint64(buf[24:]),
		},
		ChecksumType:         block.ChecksumType(buf[32]),
		BlocksDefinitelyZstd: buf[flagsOffset]&footerFlagDefinitelyZstd != 0,
	}
	switch f.ChecksumType {
	case block.ChecksumTypeCRC32c, block.ChecksumTypeXXHash64:
	default:
		return Footer{}, base.CorruptionErrorf("sstdict: invalid table %s (unsupported checksum type %d)",
			fileNum, errors.Safe(buf[32]))
	}
	if err := checkBlockBounds(f.IndexHandle, uint64(size-footerLen), "index", fileNum); err != nil {
		return Footer{}, err
	}
	// The dictionary precedes the index block.
	if !f.DictionaryHandle.IsNull() {
		if err := checkBlockBounds(f.DictionaryHandle, f.IndexHandle.Offset, "dictionary", fileNum); err != nil {
			return Footer{}, err
		}
	}
	return f, nil
}

// checkBlockBounds returns a corruption error unless the block, including its
// trailer, ends at or before limit.
func checkBlockBounds(bh block.Handle, limit uint64, kind string, fileNum base.DiskFileNum) error {
	if !bh.Within(limit) {
		return base.CorruptionErrorf("sstdict: invalid table %s (%s block %s out of bounds)",
			fileNum, errors.Safe(kind), bh)
	}
	return nil
}
