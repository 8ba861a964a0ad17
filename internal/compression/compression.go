// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package compression implements the block compression algorithms supported
// by table files, including zstd with a shared raw-content dictionary.
package compression

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/minio/minlz"
)

// Algorithm identifies a compression algorithm.
type Algorithm uint8

// The available algorithms.
const (
	NoCompression Algorithm = iota
	SnappyAlgorithm
	Zstd
	MinLZ

	NumAlgorithms
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case NoCompression:
		return "NoCompression"
	case SnappyAlgorithm:
		return "Snappy"
	case Zstd:
		return "ZSTD"
	case MinLZ:
		return "MinLZ"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// Setting contains the information needed to compress a block: the algorithm
// and the level (when applicable).
type Setting struct {
	Algorithm Algorithm
	Level     uint8
}

// String implements fmt.Stringer.
func (s Setting) String() string {
	if s.Algorithm == Zstd || s.Algorithm == MinLZ {
		return fmt.Sprintf("%s%d", s.Algorithm, s.Level)
	}
	return s.Algorithm.String()
}

// Predefined settings.
var (
	None          = Setting{Algorithm: NoCompression}
	Snappy        = Setting{Algorithm: SnappyAlgorithm}
	ZstdLevel1    = Setting{Algorithm: Zstd, Level: 1}
	ZstdLevel3    = Setting{Algorithm: Zstd, Level: 3}
	MinLZFastest  = Setting{Algorithm: MinLZ, Level: minlz.LevelFastest}
	MinLZBalanced = Setting{Algorithm: MinLZ, Level: minlz.LevelBalanced}
)

var presets = []Setting{None, Snappy, ZstdLevel1, ZstdLevel3, MinLZFastest, MinLZBalanced}

// ParseSetting returns the predefined setting with the given name, as
// returned by Setting.String. The comparison is case-insensitive.
func ParseSetting(name string) (Setting, bool) {
	for _, s := range presets {
		if strings.EqualFold(s.String(), name) {
			return s, true
		}
	}
	return Setting{}, false
}

// Compressor compresses blocks.
type Compressor interface {
	// Compress a block, appending the compressed data to dst[:0]. Returns the
	// compressed data and the setting that was used.
	Compress(dst, src []byte) ([]byte, Setting)
	// Close must be called when the Compressor is no longer needed. After Close
	// is called, the Compressor must not be used again.
	Close()
}

// Decompressor decompresses blocks.
type Decompressor interface {
	// DecompressInto decompresses compressed into buf. The buf slice must have
	// the exact size as the decompressed value. Callers may use
	// DecompressedLen to determine the correct size.
	DecompressInto(buf, compressed []byte) error
	// DecompressedLen returns the length of the provided block once
	// decompressed, allowing the caller to allocate a buffer exactly sized to
	// the decompressed payload.
	DecompressedLen(b []byte) (decompressedLen int, err error)
	// Close must be called when the Decompressor is no longer needed. After
	// Close is called, the Decompressor must not be used again.
	Close()
}

// GetCompressor returns a Compressor for the given setting.
func GetCompressor(s Setting) Compressor {
	switch s.Algorithm {
	case NoCompression:
		return noopCompressor{}
	case SnappyAlgorithm:
		return snappyCompressor{}
	case Zstd:
		return getZstdCompressor(int(s.Level))
	case MinLZ:
		return getMinlzCompressor(int(s.Level))
	default:
		panic(errors.AssertionFailedf("invalid compression setting %s", s))
	}
}

// GetDecompressor returns a Decompressor for the given algorithm.
func GetDecompressor(a Algorithm) Decompressor {
	switch a {
	case NoCompression:
		return noopDecompressor{}
	case SnappyAlgorithm:
		return snappyDecompressor{}
	case Zstd:
		return getZstdDecompressor()
	case MinLZ:
		return minlzDecompressor{}
	default:
		panic(errors.AssertionFailedf("invalid compression algorithm %d", a))
	}
}
