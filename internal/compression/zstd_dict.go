// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pebblekv/sstdict/internal/base"
)

// zstdRawDictID is the dictionary ID written into (and expected from) frames
// compressed with a raw-content dictionary. A table has at most one
// dictionary, so a fixed ID suffices.
const zstdRawDictID = 1

// GetZstdDictCompressor returns a Compressor producing zstd frames that
// reference the raw-content dictionary dict. The output must be decompressed
// with a Decompressor obtained from GetZstdDictDecompressor for the same
// dictionary. The dictionary bytes are retained until Close.
func GetZstdDictCompressor(level int, dict []byte) (Compressor, error) {
	if len(dict) == 0 {
		return nil, errors.AssertionFailedf("empty compression dictionary")
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderDictRaw(zstdRawDictID, dict))
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd dictionary compressor")
	}
	return &zstdDictCompressor{encoder: encoder, level: level}, nil
}

type zstdDictCompressor struct {
	encoder *zstd.Encoder
	level   int
}

var _ Compressor = (*zstdDictCompressor)(nil)

func (z *zstdDictCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	return encodeZstd(z.encoder, dst, src), Setting{Algorithm: Zstd, Level: uint8(z.level)}
}

func (z *zstdDictCompressor) Close() {
	_ = z.encoder.Close()
	z.encoder = nil
}

// GetZstdDictDecompressor returns a Decompressor for zstd blocks compressed
// with the raw-content dictionary dict. The dictionary bytes must remain
// valid until Close is called.
func GetZstdDictDecompressor(dict []byte) (Decompressor, error) {
	if len(dict) == 0 {
		return nil, errors.AssertionFailedf("empty compression dictionary")
	}
	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderDictRaw(zstdRawDictID, dict))
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd dictionary decompressor")
	}
	return &zstdDictDecompressor{decoder: decoder}, nil
}

type zstdDictDecompressor struct {
	decoder *zstd.Decoder
}

var _ Decompressor = (*zstdDictDecompressor)(nil)

func (z *zstdDictDecompressor) DecompressInto(dst, src []byte) error {
	return decodeZstd(z.decoder, dst, src)
}

func (z *zstdDictDecompressor) DecompressedLen(b []byte) (int, error) {
	return zstdDecompressedLen(b)
}

func (z *zstdDictDecompressor) Close() {
	z.decoder.Close()
	z.decoder = nil
}

// encodeZstd compresses b into compressedBuf[:0] using the given encoder. The
// payload is prefixed with a varint encoding the decompressed length.
func encodeZstd(encoder *zstd.Encoder, compressedBuf, b []byte) []byte {
	if cap(compressedBuf) < binary.MaxVarintLen64 {
		compressedBuf = make([]byte, binary.MaxVarintLen64)
	}
	compressedBuf = compressedBuf[:binary.MaxVarintLen64]
	varIntLen := binary.PutUvarint(compressedBuf, uint64(len(b)))
	return encoder.EncodeAll(b, compressedBuf[:varIntLen])
}

// decodeZstd decompresses a varint-prefixed zstd payload into dst, which must
// be exactly the decompressed size.
func decodeZstd(decoder *zstd.Decoder, dst, src []byte) error {
	_, prefixLen := binary.Uvarint(src)
	if prefixLen <= 0 {
		return base.CorruptionErrorf("sstdict: zstd block has invalid length prefix")
	}
	src = src[prefixLen:]
	result, err := decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return err
	}
	if len(result) != len(dst) || (len(result) > 0 && &result[0] != &dst[0]) {
		return base.CorruptionErrorf("sstdict: decompressed into unexpected buffer: %p != %p",
			errors.Safe(result), errors.Safe(dst))
	}
	return nil
}

func zstdDecompressedLen(b []byte) (int, error) {
	decodedLenU64, varIntLen := binary.Uvarint(b)
	if varIntLen <= 0 {
		return 0, base.CorruptionErrorf("sstdict: compression block has invalid length")
	}
	return int(decodedLenU64), nil
}
