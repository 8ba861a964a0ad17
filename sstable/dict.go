// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import "github.com/pebblekv/sstdict/sstable/block"

// DecompressionDict is the dictionary value consumed by block decompression.
// It refers to the dictionary bytes without copying them and keeps alive
// whatever holds those bytes (a block cache reference or nothing, for an
// unowned view) until Release is called.
//
// A DecompressionDict is moved, never copied.
type DecompressionDict struct {
	block.Dict
	holder block.BufferHandle
}

// TakeOwnership moves h into the dictionary, leaving h empty. The dictionary
// must not already hold a buffer.
func (d *DecompressionDict) TakeOwnership(h *block.BufferHandle) {
	h.TransferTo(&d.holder)
}

// Holder returns the mode of the buffer kept alive by the dictionary.
func (d *DecompressionDict) Holder() block.BufferMode {
	return d.holder.Mode()
}

// Release releases the dictionary bytes. The dictionary must not be used
// afterwards.
func (d *DecompressionDict) Release() {
	d.holder.Release()
	d.Dict = block.Dict{}
}
