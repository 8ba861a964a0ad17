// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/cache"
	"github.com/pebblekv/sstdict/internal/invariants"
)

// Alloc allocates a new cache.Value for a block of length n (excluding the
// block trailer). The value carries a single reference owned by the caller;
// it may later be added to the block cache or wrapped in an owned
// BufferHandle.
func Alloc(n int) *cache.Value {
	return cache.Alloc(n)
}

// BufferMode describes what a BufferHandle holds.
type BufferMode uint8

const (
	// Empty is the zero mode: the handle holds nothing.
	Empty BufferMode = iota
	// Owned is a private buffer allocated outside the block cache. Releasing
	// the handle frees the buffer.
	Owned
	// Borrowed is either a block resident in the block cache, in which case
	// the handle holds one reference on the cache value, or an unowned view
	// of bytes whose lifetime is guaranteed by someone else.
	Borrowed
)

// String implements fmt.Stringer.
func (m BufferMode) String() string {
	switch m {
	case Empty:
		return "empty"
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	default:
		return fmt.Sprintf("BufferMode(%d)", m)
	}
}

// A BufferHandle is a handle to the bytes of a block. It is exactly one of
// Empty, Owned and Borrowed (see BufferMode).
//
// A BufferHandle is moved, never copied: ownership is handed over with
// TransferTo, which leaves the source Empty. Releasing two copies of an owned
// handle panics.
type BufferHandle struct {
	mode BufferMode
	// cv is set for Owned handles and for Borrowed handles backed by the
	// block cache. The handle holds one reference on it.
	cv *cache.Value
	// view is set for Borrowed handles that do not hold a reference.
	view []byte
}

// OwnedBufferHandle constructs an Owned BufferHandle from a value that was
// allocated with Alloc and never added to the cache. The handle takes over
// the caller's reference.
func OwnedBufferHandle(cv *cache.Value) BufferHandle {
	if invariants.Enabled && cv.Refs() != 1 {
		panic(errors.AssertionFailedf("owned block buffer with refs=%d", cv.Refs()))
	}
	return BufferHandle{mode: Owned, cv: cv}
}

// CacheBufferHandle constructs a Borrowed BufferHandle from a block cache
// value. The handle takes over the caller's reference on cv.
func CacheBufferHandle(cv *cache.Value) BufferHandle {
	return BufferHandle{mode: Borrowed, cv: cv}
}

// UnownedBufferHandle constructs a Borrowed BufferHandle over bytes owned by
// someone else. The bytes must outlive the handle.
func UnownedBufferHandle(b []byte) BufferHandle {
	return BufferHandle{mode: Borrowed, view: b}
}

// Mode returns what the handle holds.
func (bh *BufferHandle) Mode() BufferMode {
	return bh.mode
}

// Valid returns true if the BufferHandle holds a value.
func (bh *BufferHandle) Valid() bool {
	return bh.mode != Empty
}

// Owned returns true if the handle holds a private buffer.
func (bh *BufferHandle) Owned() bool {
	return bh.mode == Owned
}

// BlockData retrieves the block bytes. No copy is made; the bytes are valid
// until the handle is released.
func (bh *BufferHandle) BlockData() []byte {
	if bh.cv != nil {
		return bh.cv.RawBuffer()
	}
	return bh.view
}

// Size returns the number of bytes of memory the handle's buffer occupies,
// whether or not the handle owns it.
func (bh *BufferHandle) Size() int {
	if bh.cv != nil {
		return cap(bh.cv.RawBuffer())
	}
	return cap(bh.view)
}

// View returns a Borrowed handle over the same bytes. For cache-backed
// handles the view acquires its own reference on the cache value; otherwise
// it is an unowned view which is only valid while bh is held. The returned
// handle must be released independently of bh.
func (bh *BufferHandle) View() BufferHandle {
	switch bh.mode {
	case Empty:
		return BufferHandle{}
	case Borrowed:
		if bh.cv != nil {
			bh.cv.Ref()
			return CacheBufferHandle(bh.cv)
		}
		return UnownedBufferHandle(bh.view)
	default:
		return UnownedBufferHandle(bh.cv.RawBuffer())
	}
}

// TransferTo moves the contents of bh into dst, leaving bh Empty. dst must be
// Empty.
func (bh *BufferHandle) TransferTo(dst *BufferHandle) {
	if dst.Valid() {
		panic(errors.AssertionFailedf("transferring block buffer into a %s handle", dst.mode))
	}
	*dst = *bh
	*bh = BufferHandle{}
}

// Release releases whatever the handle holds and resets it to Empty. It is
// okay to call Release on an Empty handle (to no effect).
func (bh *BufferHandle) Release() {
	switch bh.mode {
	case Owned:
		cache.Free(bh.cv)
	case Borrowed:
		bh.cv.Release()
	}
	*bh = BufferHandle{}
}
