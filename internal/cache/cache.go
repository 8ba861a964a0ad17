// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cache implements the shared block cache consulted by table readers.
package cache

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/pebblekv/sstdict/internal/base"
)

// Metrics holds metrics for the cache.
type Metrics struct {
	// The number of bytes inuse by the cache.
	Size int64
	// The count of objects (blocks) in the cache.
	Count int64
	// The number of cache hits.
	Hits int64
	// The number of cache misses.
	Misses int64
}

// Cache implements a sharded block cache. In order to provide better
// concurrency, 4 x NumCPUs shards are created, with each shard being given 1/n
// of the target cache size. Each shard runs a CLOCK replacement policy
// independently.
//
// Blocks are keyed by an (handleID, fileNum, offset) triple. The handleID is a
// namespace for file numbers and allows a single Cache to be shared between
// multiple stores (via separate Handles). The fileNum and offset refer to a
// table file number and the offset of the block within the file. Because
// tables are immutable and file numbers are never reused, (fileNum,offset)
// are unique for the lifetime of a store.
//
// Values are reference counted. A reader that obtains a value through Get
// holds a reference that keeps the bytes valid even if the entry is evicted
// concurrently; it must release the reference when done.
type Cache struct {
	refs    atomic.Int64
	maxSize int64
	idAlloc atomic.Uint64
	shards  []shard
}

// New creates a new cache of the specified size. Memory for the cache is
// allocated on demand, not during initialization. The cache is created with a
// reference count of 1. Each Handle adds a reference, so the creator of the
// cache should usually release their reference after creating the handles.
//
//	c := cache.New(...)
//	defer c.Unref()
//	h := c.NewHandle()
func New(size int64) *Cache {
	m := 4 * runtime.GOMAXPROCS(0)

	// In tests we can use large CPU machines with small cache sizes and have
	// many caches in existence at a time. If sharding into m shards would
	// produce too small shards, constrain the number of shards to 4.
	const minimumShardSize = 4 << 20 // 4 MiB
	if m > 4 && int(size)/m < minimumShardSize {
		m = 4
	}
	return NewWithShards(size, m)
}

// NewWithShards creates a new cache with the specified size and number of
// shards.
func NewWithShards(size int64, shards int) *Cache {
	if shards <= 0 {
		panic(fmt.Sprintf("sstdict: invalid number of cache shards: %d", shards))
	}
	c := &Cache{
		maxSize: size,
		shards:  make([]shard, shards),
	}
	c.refs.Store(1)
	for i := range c.shards {
		c.shards[i].init(size / int64(len(c.shards)))
	}
	return c
}

// Ref adds a reference to the cache. The cache only remains valid as long a
// reference is maintained to it.
func (c *Cache) Ref() {
	v := c.refs.Add(1)
	if v <= 1 {
		panic(fmt.Sprintf("sstdict: inconsistent reference count: %d", v))
	}
}

// Unref releases a reference on the cache.
func (c *Cache) Unref() {
	v := c.refs.Add(-1)
	switch {
	case v < 0:
		panic(fmt.Sprintf("sstdict: inconsistent reference count: %d", v))
	case v == 0:
		for i := range c.shards {
			c.shards[i].free()
		}
	}
}

// NewHandle creates a new Handle, a namespace within the cache. The handle
// holds a reference on the cache until it is closed.
func (c *Cache) NewHandle() *Handle {
	c.Ref()
	id := handleID(c.idAlloc.Add(1))
	return &Handle{
		cache: c,
		id:    id,
	}
}

// Reserve N bytes in the cache. This effectively shrinks the size of the cache
// by N bytes, without actually consuming any memory. The returned closure
// should be invoked to release the reservation.
func (c *Cache) Reserve(n int) func() {
	// Round-up the per-shard reservation. Most reservations should be large, so
	// this probably doesn't matter in practice.
	shardN := (n + len(c.shards) - 1) / len(c.shards)
	for i := range c.shards {
		c.shards[i].reserve(shardN)
	}
	return func() {
		if shardN == -1 {
			panic("sstdict: cache reservation already released")
		}
		for i := range c.shards {
			c.shards[i].reserve(-shardN)
		}
		shardN = -1
	}
}

// Metrics returns the metrics for the cache.
func (c *Cache) Metrics() Metrics {
	var m Metrics
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		m.Count += int64(s.mu.blocks.Len())
		m.Size += s.mu.size
		s.mu.RUnlock()
		m.Hits += s.hits.Load()
		m.Misses += s.misses.Load()
	}
	return m
}

// MaxSize returns the max size of the cache.
func (c *Cache) MaxSize() int64 {
	return c.maxSize
}

// Size returns the current space used by the cache.
func (c *Cache) Size() int64 {
	var size int64
	for i := range c.shards {
		size += c.shards[i].size()
	}
	return size
}

func (c *Cache) getShard(k key) *shard {
	return &c.shards[k.shardIdx(len(c.shards))]
}

// Handle is the interface through which a store uses the cache. Each store
// uses a separate "handle". A handle corresponds to a separate "namespace"
// inside the cache; a handle cannot see another handle's blocks.
type Handle struct {
	cache *Cache
	id    handleID
}

// handleID is an ID associated with a Handle; it is unique in the context of a
// Cache instance and serves as a namespace for file numbers.
type handleID uint64

// Cache returns the Cache instance associated with the handle.
func (c *Handle) Cache() *Cache {
	return c.cache
}

// Get retrieves the cache value for the specified file and offset, returning
// nil if no value is present. A non-nil value carries a reference owned by the
// caller, which must be released with Value.Release.
func (c *Handle) Get(fileNum base.DiskFileNum, offset uint64) *Value {
	k := makeKey(c.id, fileNum, offset)
	return c.cache.getShard(k).get(k)
}

// Set sets the cache value for the specified file and offset, overwriting an
// existing value if present. The value must have been allocated by Alloc.
//
// The cache takes a reference on the Value and holds it until it gets evicted.
// The caller's reference is unaffected.
func (c *Handle) Set(fileNum base.DiskFileNum, offset uint64, value *Value) {
	k := makeKey(c.id, fileNum, offset)
	c.cache.getShard(k).set(k, value)
}

// Delete deletes the cached value for the specified file and offset.
func (c *Handle) Delete(fileNum base.DiskFileNum, offset uint64) {
	k := makeKey(c.id, fileNum, offset)
	c.cache.getShard(k).delete(k)
}

// EvictFile evicts all cache values for the specified file.
func (c *Handle) EvictFile(fileNum base.DiskFileNum) {
	for i := range c.cache.shards {
		c.cache.shards[i].evictFile(c.id, fileNum)
	}
}

// Close releases the handle's reference on the cache.
func (c *Handle) Close() {
	c.cache.Unref()
	*c = Handle{}
}
