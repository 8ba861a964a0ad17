// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package block provides the block-level read path of a table: block
// handles, trailers and checksums, compression indicators, buffer handles
// over cached or privately owned block bytes, and a cache-aware block reader.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/redact"
)

// Handle is the file offset and length of a block.
type Handle struct {
	// Offset identifies the offset of the block within the file.
	Offset uint64
	// Length is the length of the block data (excludes the trailer).
	Length uint64
}

// IsNull returns true if the handle does not reference a block. Tables
// without a block of some kind (e.g. a compression dictionary) store a zero
// handle.
func (h Handle) IsNull() bool {
	return h.Length == 0
}

// Within returns true if the block and its trailer fit in [0, limit). None of
// the arithmetic can overflow, so corrupt handles are rejected.
func (h Handle) Within(limit uint64) bool {
	return h.Length <= limit && limit-h.Length >= TrailerLen &&
		h.Offset <= limit-h.Length-TrailerLen
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	return redact.StringWithoutMarkers(h)
}

// SafeFormat implements redact.SafeFormatter.
func (h Handle) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("(%d, %d)", redact.Safe(h.Offset), redact.Safe(h.Length))
}

var _ fmt.Stringer = Handle{}

// EncodeVarints encodes the block handle into dst using a variable-width
// encoding and returns the number of bytes written.
func (h Handle) EncodeVarints(dst []byte) int {
	n := binary.PutUvarint(dst, h.Offset)
	m := binary.PutUvarint(dst[n:], h.Length)
	return n + m
}

// DecodeHandle returns the block handle encoded in a variable-width encoding
// at the start of src, as well as the number of bytes it occupies. It returns
// zero if given invalid input.
func DecodeHandle(src []byte) (Handle, int) {
	offset, n := binary.Uvarint(src)
	if n <= 0 {
		return Handle{}, 0
	}
	length, m := binary.Uvarint(src[n:])
	if m <= 0 {
		return Handle{}, 0
	}
	return Handle{Offset: offset, Length: length}, n + m
}
