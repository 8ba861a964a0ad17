// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// unit is the size accounted for a value holding a 100 byte buffer.
const unit = int64(valueSize + 100)

func setTestValue(c *Handle, fileNum base.DiskFileNum, offset uint64, s string, repeat int) {
	b := bytes.Repeat([]byte(s), repeat)
	v := Alloc(len(b))
	copy(v.RawBuffer(), b)
	c.Set(fileNum, offset, v)
	v.Release()
}

func TestCacheGetSet(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(10*unit, 1)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	require.Nil(t, h.Get(1, 0))

	v := Alloc(100)
	copy(v.RawBuffer(), bytes.Repeat([]byte("a"), 100))
	require.EqualValues(t, 1, v.Refs())
	h.Set(1, 0, v)
	// One reference for the caller, one for the cache.
	require.EqualValues(t, 2, v.Refs())
	v.Release()
	require.EqualValues(t, 1, v.Refs())

	got := h.Get(1, 0)
	require.NotNil(t, got)
	require.Same(t, v, got)
	require.EqualValues(t, 2, got.Refs())
	require.Equal(t, bytes.Repeat([]byte("a"), 100), got.RawBuffer())
	got.Release()

	m := cache.Metrics()
	require.EqualValues(t, 1, m.Count)
	require.EqualValues(t, unit, m.Size)
	require.EqualValues(t, 1, m.Hits)
	require.EqualValues(t, 1, m.Misses)
}

func TestCacheEvictionClock(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(3*unit, 1)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	for i := 0; i < 3; i++ {
		setTestValue(h, 1, uint64(i), "a", 100)
	}
	require.EqualValues(t, 3*unit, cache.Size())

	// Inserting a fourth block evicts the oldest unreferenced block.
	setTestValue(h, 1, 3, "a", 100)
	require.Nil(t, h.Get(1, 0))

	// Block 1 is referenced and gets a second chance; block 2 is evicted.
	v := h.Get(1, 1)
	require.NotNil(t, v)
	v.Release()
	setTestValue(h, 1, 4, "a", 100)
	require.Nil(t, h.Get(1, 2))
	for _, off := range []uint64{1, 3, 4} {
		v := h.Get(1, off)
		require.NotNil(t, v, "offset %d", off)
		v.Release()
	}
	require.EqualValues(t, 3*unit, cache.Size())
}

func TestCacheReferenceOutlivesEviction(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(10*unit, 1)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	setTestValue(h, 1, 0, "z", 100)
	v := h.Get(1, 0)
	require.NotNil(t, v)
	h.Delete(1, 0)
	require.Nil(t, h.Get(1, 0))
	// The reader's reference keeps the bytes valid.
	require.EqualValues(t, 1, v.Refs())
	require.Equal(t, bytes.Repeat([]byte("z"), 100), v.RawBuffer())
	v.Release()
	require.EqualValues(t, 0, v.Refs())
}

func TestCacheReplace(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(10*unit, 1)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	old := Alloc(100)
	h.Set(1, 0, old)
	setTestValue(h, 1, 0, "b", 100)
	// The cache dropped its reference on the replaced value.
	require.EqualValues(t, 1, old.Refs())
	old.Release()

	v := h.Get(1, 0)
	require.Equal(t, byte('b'), v.RawBuffer()[0])
	v.Release()
	require.EqualValues(t, 1, cache.Metrics().Count)
}

func TestCacheEvictFile(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(100*unit, 4)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	for f := base.DiskFileNum(1); f <= 3; f++ {
		for off := uint64(0); off < 5; off++ {
			setTestValue(h, f, off, "x", 100)
		}
	}
	require.EqualValues(t, 15, cache.Metrics().Count)
	h.EvictFile(2)
	require.EqualValues(t, 10, cache.Metrics().Count)
	for f := base.DiskFileNum(1); f <= 3; f++ {
		for off := uint64(0); off < 5; off++ {
			v := h.Get(f, off)
			if f == 2 {
				require.Nil(t, v)
				continue
			}
			require.NotNil(t, v)
			v.Release()
		}
	}
	// Evicting an absent file is a no-op.
	h.EvictFile(9)
	require.EqualValues(t, 10, cache.Metrics().Count)
}

func TestCacheHandleNamespaces(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(10*unit, 2)
	defer cache.Unref()
	h1 := cache.NewHandle()
	defer h1.Close()
	h2 := cache.NewHandle()
	defer h2.Close()

	setTestValue(h1, 1, 0, "a", 100)
	require.Nil(t, h2.Get(1, 0))
	v := h1.Get(1, 0)
	require.NotNil(t, v)
	v.Release()
}

func TestCacheReserve(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(4*unit, 1)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	for i := 0; i < 4; i++ {
		setTestValue(h, 1, uint64(i), "a", 100)
	}
	release := cache.Reserve(int(2 * unit))
	require.EqualValues(t, 2, cache.Metrics().Count)
	release()
	require.Panics(t, release)
	setTestValue(h, 1, 10, "a", 100)
	setTestValue(h, 1, 11, "a", 100)
	require.EqualValues(t, 4, cache.Metrics().Count)
}

func TestCacheConcurrent(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(50*unit, 8)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		seed := uint64(w)
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(0, seed))
			for i := 0; i < 2000; i++ {
				off := uint64(rng.IntN(100))
				if v := h.Get(1, off); v != nil {
					if got := v.RawBuffer()[0]; got != byte(off) {
						v.Release()
						return fmt.Errorf("offset %d: unexpected contents %d", off, got)
					}
					v.Release()
					continue
				}
				v := Alloc(100)
				v.RawBuffer()[0] = byte(off)
				h.Set(1, off, v)
				v.Release()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.LessOrEqual(t, cache.Size(), cache.MaxSize())
}

func TestCacheCollector(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cache := NewWithShards(10*unit, 1)
	defer cache.Unref()
	h := cache.NewHandle()
	defer h.Close()

	setTestValue(h, 1, 0, "a", 100)
	v := h.Get(1, 0)
	v.Release()
	require.Nil(t, h.Get(1, 1))

	c := NewCollector("test", cache)
	require.Equal(t, 4, testutil.CollectAndCount(c))
	const expected = `
# HELP test_block_cache_blocks Number of blocks in the block cache.
# TYPE test_block_cache_blocks gauge
test_block_cache_blocks 1
# HELP test_block_cache_hits_total Block cache hits.
# TYPE test_block_cache_hits_total counter
test_block_cache_hits_total 1
# HELP test_block_cache_misses_total Block cache misses.
# TYPE test_block_cache_misses_total counter
test_block_cache_misses_total 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"test_block_cache_blocks", "test_block_cache_hits_total", "test_block_cache_misses_total"))
}
