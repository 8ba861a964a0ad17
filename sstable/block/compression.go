// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/internal/compression"
	"github.com/pebblekv/sstdict/internal/invariants"
)

// CompressionIndicator is the byte stored physically within the
// block.Trailer to indicate the compression type.
type CompressionIndicator byte

// The compression indicators. These constants are part of the file format
// and should not be changed.
const (
	NoCompressionIndicator     CompressionIndicator = 0
	SnappyCompressionIndicator CompressionIndicator = 1
	ZstdCompressionIndicator   CompressionIndicator = 7
	MinlzCompressionIndicator  CompressionIndicator = 8
)

// String implements fmt.Stringer.
func (i CompressionIndicator) String() string {
	if a, ok := i.Algorithm(); ok {
		return a.String()
	}
	return "unknown"
}

// Algorithm returns the compression algorithm for the indicator, or false if
// the indicator is not one this package knows how to decompress.
func (i CompressionIndicator) Algorithm() (compression.Algorithm, bool) {
	switch i {
	case NoCompressionIndicator:
		return compression.NoCompression, true
	case SnappyCompressionIndicator:
		return compression.SnappyAlgorithm, true
	case ZstdCompressionIndicator:
		return compression.Zstd, true
	case MinlzCompressionIndicator:
		return compression.MinLZ, true
	default:
		return 0, false
	}
}

// IndicatorFor returns the compression indicator for an algorithm.
func IndicatorFor(a compression.Algorithm) CompressionIndicator {
	switch a {
	case compression.NoCompression:
		return NoCompressionIndicator
	case compression.SnappyAlgorithm:
		return SnappyCompressionIndicator
	case compression.Zstd:
		return ZstdCompressionIndicator
	case compression.MinLZ:
		return MinlzCompressionIndicator
	default:
		panic(errors.AssertionFailedf("invalid compression algorithm %s", a))
	}
}

// Dict is a zstd raw-content dictionary used to decompress the data blocks
// of a table.
type Dict struct {
	// Data is the dictionary contents.
	Data []byte
	// DefinitelyZstd is set when every data block of the table is known to be
	// zstd-compressed; the dictionary decompressor is then used without
	// consulting the block's compression indicator.
	DefinitelyZstd bool
}

func (d *Dict) usable() bool {
	return d != nil && len(d.Data) > 0
}

// getDecompressor returns the decompressor for a block with the given
// compression indicator.
func getDecompressor(i CompressionIndicator, dict *Dict) (compression.Decompressor, error) {
	if dict.usable() && (dict.DefinitelyZstd || i == ZstdCompressionIndicator) {
		return compression.GetZstdDictDecompressor(dict.Data)
	}
	algo, ok := i.Algorithm()
	if !ok {
		return nil, base.CorruptionErrorf("unknown block compression indicator: %d", errors.Safe(i))
	}
	return compression.GetDecompressor(algo), nil
}

// DecompressedLen returns the length of the provided block once
// decompressed, allowing the caller to allocate a buffer exactly sized to the
// decompressed payload.
func DecompressedLen(i CompressionIndicator, b []byte, dict *Dict) (decompressedLen int, err error) {
	decompressor, err := getDecompressor(i, dict)
	if err != nil {
		return 0, err
	}
	defer decompressor.Close()
	n, err := decompressor.DecompressedLen(b)
	if err != nil {
		return 0, base.MarkCorruptionError(err)
	}
	return n, nil
}

// DecompressInto decompresses compressed into buf. The buf slice must have
// the exact size as the decompressed value. Callers may use DecompressedLen
// to determine the correct size.
func DecompressInto(i CompressionIndicator, compressed []byte, buf []byte, dict *Dict) error {
	decompressor, err := getDecompressor(i, dict)
	if err != nil {
		return err
	}
	defer decompressor.Close()
	if err := decompressor.DecompressInto(buf, compressed); err != nil {
		return base.MarkCorruptionError(err)
	}
	return nil
}

// PhysicalBlock represents a block (possibly compressed) as it is stored
// physically on disk, including its trailer.
type PhysicalBlock struct {
	// data contains the possibly compressed block data.
	data    []byte
	trailer Trailer
}

// Indicator returns the compression indicator recorded in the trailer.
func (b PhysicalBlock) Indicator() CompressionIndicator {
	return CompressionIndicator(b.trailer[0])
}

// LengthWithTrailer returns the length of the block, including the trailer.
func (b PhysicalBlock) LengthWithTrailer() int {
	return len(b.data) + TrailerLen
}

// LengthWithoutTrailer returns the length of the block data, excluding the
// trailer.
func (b PhysicalBlock) LengthWithoutTrailer() int {
	return len(b.data)
}

// WriteTo writes the block (including its trailer) to the provided writer.
// If err == nil, n is the number of bytes successfully written.
//
// WriteTo might mangle the block data.
func (b PhysicalBlock) WriteTo(w io.Writer) (n int, err error) {
	if _, err := w.Write(b.data); err != nil {
		return 0, err
	}
	if _, err := w.Write(b.trailer[:]); err != nil {
		return 0, err
	}
	// WriteTo is allowed to mangle the data. Mangle it ourselves some of the
	// time in invariant builds to catch callers that don't handle this.
	if invariants.Sometimes(1) {
		invariants.Mangle(b.data)
	}
	return len(b.data) + len(b.trailer), nil
}

// CompressAndChecksum compresses and checksums the provided block, returning
// the compressed block and its trailer. The result is appended to dst[:0]
// and *dst is updated to the (possibly grown) buffer.
//
// If the compressed block is not sufficiently smaller than the original
// block, the compressed payload is discarded and the original, uncompressed
// block data is used to avoid unnecessary decompression overhead at read
// time.
func CompressAndChecksum(
	dst *[]byte, blockData []byte, compressor compression.Compressor, checksummer *Checksummer,
) PhysicalBlock {
	buf, setting := compressor.Compress((*dst)[:0], blockData)
	// Discard the result if the improvement isn't at least 12.5%.
	if len(buf) >= len(blockData)-len(blockData)/8 {
		buf = append(buf[:0], blockData...)
		setting = compression.None
	}
	*dst = buf

	indicator := IndicatorFor(setting.Algorithm)
	return PhysicalBlock{
		data:    buf,
		trailer: MakeTrailer(indicator, checksummer.Checksum(buf, indicator)),
	}
}
