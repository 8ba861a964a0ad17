// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/internal/bitflip"
)

// TrailerLen is the length of the trailer at the end of a block.
const TrailerLen = 5

// Trailer is the trailer at the end of a block, encoding the compression
// indicator and a checksum.
type Trailer = [TrailerLen]byte

// MakeTrailer constructs a trailer from a compression indicator and a
// checksum.
func MakeTrailer(indicator CompressionIndicator, checksum uint32) (t Trailer) {
	t[0] = byte(indicator)
	binary.LittleEndian.PutUint32(t[1:5], checksum)
	return t
}

// ChecksumType specifies the checksum used for blocks.
type ChecksumType byte

// The available checksum types. These values are part of the durable format
// and should not be changed.
const (
	ChecksumTypeNone     ChecksumType = 0
	ChecksumTypeCRC32c   ChecksumType = 1
	ChecksumTypeXXHash64 ChecksumType = 3
)

// String implements fmt.Stringer.
func (t ChecksumType) String() string {
	switch t {
	case ChecksumTypeCRC32c:
		return "crc32c"
	case ChecksumTypeNone:
		return "none"
	case ChecksumTypeXXHash64:
		return "xxhash64"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// SafeValue implements redact.SafeValue.
func (t ChecksumType) SafeValue() {}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

func checksumFunc(t ChecksumType) func([]byte) uint32 {
	switch t {
	case ChecksumTypeCRC32c:
		return func(b []byte) uint32 { return crc32.Checksum(b, crc32cTable) }
	case ChecksumTypeXXHash64:
		return func(b []byte) uint32 { return uint32(xxhash.Sum64(b)) }
	default:
		return nil
	}
}

// A Checksummer calculates checksums for blocks.
type Checksummer struct {
	Type         ChecksumType
	xxHasher     *xxhash.Digest
	blockTypeBuf [1]byte
}

// Checksum computes a checksum over the provided block and compression
// indicator.
func (c *Checksummer) Checksum(block []byte, indicator CompressionIndicator) (checksum uint32) {
	c.blockTypeBuf[0] = byte(indicator)
	switch c.Type {
	case ChecksumTypeCRC32c:
		checksum = crc32.Update(crc32.Checksum(block, crc32cTable), crc32cTable, c.blockTypeBuf[:])
	case ChecksumTypeXXHash64:
		if c.xxHasher == nil {
			c.xxHasher = xxhash.New()
		} else {
			c.xxHasher.Reset()
		}
		_, _ = c.xxHasher.Write(block)
		_, _ = c.xxHasher.Write(c.blockTypeBuf[:])
		checksum = uint32(c.xxHasher.Sum64())
	default:
		panic(errors.AssertionFailedf("unsupported checksum type: %d", c.Type))
	}
	return checksum
}

// ValidateChecksum validates the checksum of a block. b holds the block data
// followed by its trailer.
func ValidateChecksum(checksumType ChecksumType, b []byte, bh Handle) error {
	expectedChecksum := binary.LittleEndian.Uint32(b[bh.Length+1:])
	fn := checksumFunc(checksumType)
	if fn == nil {
		return base.CorruptionErrorf("unsupported checksum type: %d", errors.Safe(checksumType))
	}
	computedChecksum := fn(b[:bh.Length+1])
	if expectedChecksum != computedChecksum {
		// Check if the checksum was due to a singular bit flip and report it.
		data := slices.Clone(b[:bh.Length+1])
		found, indexFound, bitFound := bitflip.CheckSliceForBitFlip(data, fn, expectedChecksum)
		err := base.CorruptionErrorf("block %d/%d: %s checksum mismatch %x != %x",
			errors.Safe(bh.Offset), errors.Safe(bh.Length), checksumType,
			expectedChecksum, computedChecksum)
		if found {
			err = errors.WithSafeDetails(err, ". bit flip found: byte index %d. got: %x. want: %x.",
				errors.Safe(indexFound), errors.Safe(data[indexFound]), errors.Safe(data[indexFound]^(1<<bitFound)))
		}
		return err
	}
	return nil
}
