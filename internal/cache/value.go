// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/pebblekv/sstdict/internal/invariants"
)

// Value holds a reference counted immutable value.
//
// A Value is created by Alloc with a reference count of 1, owned by the
// caller. Handle.Set takes an additional reference that the cache holds until
// the value is evicted or replaced; Handle.Get returns the value with a
// reference acquired on behalf of the caller. Every reference must eventually
// be released. When the last reference is released the buffer is considered
// freed and, in invariants builds, it is mangled.
type Value struct {
	buf  []byte
	refs atomic.Int32
}

const valueSize = int(unsafe.Sizeof(Value{}))

// Alloc allocates a Value with a buffer of n bytes and a reference count of 1.
func Alloc(n int) *Value {
	v := &Value{buf: make([]byte, n)}
	v.refs.Store(1)
	invariants.SetFinalizer(v, func(obj interface{}) {
		if v := obj.(*Value); v.refs.Load() > 0 && v.buf != nil {
			panic(fmt.Sprintf("sstdict: cache value %p of %d bytes leaked (refs=%d)",
				v, len(v.buf), v.refs.Load()))
		}
	})
	return v
}

// Free releases the reference on a Value that was allocated with Alloc but
// never handed to the cache. It is fine to call Free on a nil Value.
func Free(v *Value) {
	if v == nil {
		return
	}
	if invariants.Enabled && v.refs.Load() != 1 {
		panic(fmt.Sprintf("sstdict: freeing value with refs=%d", v.refs.Load()))
	}
	v.Release()
}

// RawBuffer returns the buffer associated with the value. The contents of the
// buffer should not be changed once the value has been added to the cache.
// Instead, a new Value should be created and added to the cache to replace
// the existing value.
func (v *Value) RawBuffer() []byte {
	if v == nil {
		return nil
	}
	return v.buf
}

// Truncate the buffer to the specified length. The buffer length should not
// be changed once the value has been added to the cache as there may be
// concurrent readers of the Value.
func (v *Value) Truncate(n int) {
	v.buf = v.buf[:n]
}

// Ref acquires an additional reference on the value.
func (v *Value) Ref() {
	if n := v.refs.Add(1); n <= 1 {
		panic(fmt.Sprintf("sstdict: inconsistent reference count: %d", n))
	}
}

// Release releases a reference on the value. It is fine to call Release on a
// nil Value.
func (v *Value) Release() {
	if v == nil {
		return
	}
	switch n := v.refs.Add(-1); {
	case n < 0:
		panic(fmt.Sprintf("sstdict: inconsistent reference count: %d", n))
	case n == 0:
		invariants.Mangle(v.buf)
	}
}

// Refs returns the current reference count. Used in tests.
func (v *Value) Refs() int32 {
	return v.refs.Load()
}

// Size returns the number of bytes the value accounts for in the cache,
// including its own header.
func (v *Value) Size() int64 {
	return int64(valueSize + cap(v.buf))
}
