// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !cgo

package compression

import (
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

type zstdCompressor struct {
	level int
}

var _ Compressor = (*zstdCompressor)(nil)

func getZstdCompressor(level int) *zstdCompressor {
	return &zstdCompressor{level: level}
}

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository.
//
// This constant is only used in tests. Some tests rely on reproducibility of
// compressed output, but a custom implementation of zstd will produce
// different compression result.
//
// We cannot always use the official facebook/zstd implementation since it
// relies on CGo.
const UseStandardZstdLib = false

func (z *zstdCompressor) Compress(compressedBuf, b []byte) ([]byte, Setting) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(errors.Wrap(err, "zstd compression"))
	}
	defer func() { _ = encoder.Close() }()
	return encodeZstd(encoder, compressedBuf, b), Setting{Algorithm: Zstd, Level: uint8(z.level)}
}

func (z *zstdCompressor) Close() {}

type zstdDecompressor struct{}

var _ Decompressor = zstdDecompressor{}

func (zstdDecompressor) DecompressInto(dst, src []byte) error {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return err
	}
	defer decoder.Close()
	return decodeZstd(decoder, dst, src)
}

func (zstdDecompressor) DecompressedLen(b []byte) (decompressedLen int, err error) {
	return zstdDecompressedLen(b)
}

func (zstdDecompressor) Close() {}

func getZstdDecompressor() zstdDecompressor {
	return zstdDecompressor{}
}
