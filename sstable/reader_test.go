// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/internal/cache"
	"github.com/pebblekv/sstdict/internal/compression"
	"github.com/pebblekv/sstdict/internal/rate"
	"github.com/pebblekv/sstdict/objstorage"
	"github.com/pebblekv/sstdict/sstable/block"
	"github.com/stretchr/testify/require"
)

func testDictionary() []byte {
	var b bytes.Buffer
	for i := 0; i < 64; i++ {
		fmt.Fprintf(&b, "user-%04d:{name:%q,region:%q,plan:%q};", i, "customer", "us-east", "premium")
	}
	return b.Bytes()
}

func testDataBlock(i int) []byte {
	var b bytes.Buffer
	for j := 0; b.Len() < 4096; j++ {
		fmt.Fprintf(&b, "user-%04d:{name:%q,region:%q,plan:%q};", i*100+j, "customer", "eu-west", "basic")
	}
	return b.Bytes()
}

const testNumBlocks = 10

func writeTestTable(t *testing.T, opts WriterOptions) []byte {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, opts)
	require.NoError(t, err)
	for i := 0; i < testNumBlocks; i++ {
		require.NoError(t, w.AddBlock(testDataBlock(i)))
	}
	require.NoError(t, w.Close())
	meta, err := w.Metadata()
	require.NoError(t, err)
	require.Equal(t, uint64(buf.Len()), meta.Size)
	require.Equal(t, testNumBlocks, meta.NumDataBlocks)
	return buf.Bytes()
}

type testCache struct {
	c *cache.Cache
	h *cache.Handle
}

func newTestCache() *testCache {
	c := cache.New(1 << 20)
	return &testCache{c: c, h: c.NewHandle()}
}

func (c *testCache) close() {
	c.h.Close()
	c.c.Unref()
}

func readAllBlocks(t *testing.T, r *Reader, env block.ReadEnv) {
	for i := 0; i < r.NumDataBlocks(); i++ {
		h, err := r.ReadDataBlock(context.Background(), env, nil, i, false /* noIO */, nil)
		require.NoError(t, err)
		require.Equal(t, testDataBlock(i), h.BlockData())
		h.Release()
	}
}

func TestReaderRoundTrip(t *testing.T) {
	settings := []compression.Setting{compression.ZstdLevel1, compression.ZstdLevel3, compression.Snappy, compression.MinLZFastest}
	for _, setting := range settings {
		for _, withDict := range []bool{false, true} {
			wo := WriterOptions{Compression: &setting, Checksum: block.ChecksumTypeXXHash64}
			if withDict {
				wo.Dictionary = testDictionary()
			}
			data := writeTestTable(t, wo)
			for _, useCache := range []bool{false, true} {
				for _, ro := range []ReaderOptions{{}, {PrefetchDictionary: true}, {PinDictionary: true}} {
					name := fmt.Sprintf("%s/dict=%t/cache=%t/prefetch=%t/pin=%t",
						setting, withDict, useCache, ro.PrefetchDictionary, ro.PinDictionary)
					t.Run(name, func(t *testing.T) {
						var tc *testCache
						if useCache {
							tc = newTestCache()
							defer tc.close()
							ro.CacheHandle = tc.h
						}
						ro.FileNum = 1
						r, err := Open(context.Background(), objstorage.NewMemObj(data), ro)
						require.NoError(t, err)
						defer r.Close()

						require.Equal(t, testNumBlocks, r.NumDataBlocks())
						require.Equal(t, withDict, r.DictionaryReader() != nil)
						require.Equal(t, withDict, !r.DictionaryBlock().IsNull())
						require.Equal(t, setting.Algorithm == compression.Zstd, r.BlocksDefinitelyZstd())
						require.Equal(t, block.ChecksumTypeXXHash64, r.Footer().ChecksumType)
						readAllBlocks(t, r, block.NoReadEnv)
						// A second pass is served from the cache, if any.
						readAllBlocks(t, r, block.NoReadEnv)
					})
				}
			}
		}
	}
}

func TestReaderDictionaryIO(t *testing.T) {
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})
	ctx := context.Background()

	testCases := []struct {
		opts ReaderOptions
		// reads is the number of reads of the object after opening the table
		// and reading the first two data blocks.
		reads int64
	}{
		// Footer, tail prefetch, then dictionary and the first block, then the
		// second block with the dictionary served by the cache.
		{ReaderOptions{}, 5},
		// The dictionary is in the cache (or held) from the start.
		{ReaderOptions{PrefetchDictionary: true}, 4},
		{ReaderOptions{PinDictionary: true}, 4},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%+v", tc.opts), func(t *testing.T) {
			c := newTestCache()
			defer c.close()
			tc.opts.CacheHandle = c.h
			obj := objstorage.NewMemObj(data)
			r, err := Open(ctx, obj, tc.opts)
			require.NoError(t, err)
			defer r.Close()
			require.Equal(t, int64(2), obj.Reads())

			stats := &block.ReadStats{}
			for i := 0; i < 2; i++ {
				h, err := r.ReadDataBlock(ctx, block.ReadEnv{Stats: stats}, nil, i, false, nil)
				require.NoError(t, err)
				h.Release()
			}
			require.Equal(t, tc.reads, obj.Reads())
			// Every read past the two at open time is a block read.
			require.Equal(t, uint64(tc.reads-2), stats.BlocksRead.Load())

			// Cached blocks are available without I/O.
			var lc block.LookupContext
			h, err := r.ReadDataBlock(ctx, block.NoReadEnv, nil, 1, true /* noIO */, &lc)
			require.NoError(t, err)
			require.True(t, lc.CacheHit)
			h.Release()
			_, err = r.ReadDataBlock(ctx, block.NoReadEnv, nil, 2, true /* noIO */, nil)
			require.ErrorIs(t, err, base.ErrCacheMissNoIO)
			require.Equal(t, tc.reads, obj.Reads())
		})
	}
}

func TestReaderNoIOWithoutCache(t *testing.T) {
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})
	obj := objstorage.NewMemObj(data)
	r, err := Open(context.Background(), obj, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	reads := obj.Reads()
	_, err = r.ReadDataBlock(context.Background(), block.NoReadEnv, nil, 0, true /* noIO */, nil)
	require.ErrorIs(t, err, base.ErrCacheMissNoIO)
	require.Equal(t, reads, obj.Reads())

	_, err = r.ReadDataBlock(context.Background(), block.NoReadEnv, nil, testNumBlocks, false, nil)
	require.True(t, errors.HasAssertionFailure(err))
}

func TestReaderMemoryUsage(t *testing.T) {
	dict := testDictionary()
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: dict})
	ctx := context.Background()

	noCache, err := Open(ctx, objstorage.NewMemObj(data), ReaderOptions{})
	require.NoError(t, err)
	defer noCache.Close()

	c := newTestCache()
	defer c.close()
	pinned, err := Open(ctx, objstorage.NewMemObj(data), ReaderOptions{
		ReaderOptions: block.ReaderOptions{CacheHandle: c.h, FileNum: 2},
		PinDictionary: true,
	})
	require.NoError(t, err)
	defer pinned.Close()

	// The pinned dictionary is accounted for by the cache.
	require.GreaterOrEqual(t, noCache.ApproximateMemoryUsage()-pinned.ApproximateMemoryUsage(), uint64(len(dict)))
	require.Greater(t, c.c.Size(), int64(len(dict)))
}

func TestReaderCorruption(t *testing.T) {
	ctx := context.Background()
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})

	open := func(b []byte, o ReaderOptions) error {
		r, err := Open(ctx, objstorage.NewMemObj(b), o)
		if err == nil {
			return r.Close()
		}
		return err
	}
	require.NoError(t, open(data, ReaderOptions{}))

	corrupt := func(off int) []byte {
		b := append([]byte(nil), data...)
		b[off] ^= 0x5a
		return b
	}
	// Bad magic.
	require.True(t, base.IsCorruptionError(open(corrupt(len(data)-1), ReaderOptions{})))
	// Bad checksum type.
	require.True(t, base.IsCorruptionError(open(corrupt(len(data)-footerLen+32), ReaderOptions{})))
	// Truncated file.
	require.True(t, base.IsCorruptionError(open(data[:footerLen-1], ReaderOptions{})))

	f, err := decodeFooter(data[len(data)-footerLen:], int64(len(data)), 0)
	require.NoError(t, err)
	dictCorrupted := corrupt(int(f.DictionaryHandle.Offset) + 5)

	// Without a cache the dictionary is read eagerly, so opening fails.
	var logger base.InMemLogger
	err = open(dictCorrupted, ReaderOptions{
		ReaderOptions: block.ReaderOptions{LoggerAndTracer: &base.LoggerWithNoopTracer{Logger: &logger}},
	})
	require.True(t, base.IsCorruptionError(err))
	require.Contains(t, logger.String(), "compression dictionary block")

	// With a cache and no prefetch, the table opens and reading a data block
	// fails.
	c := newTestCache()
	defer c.close()
	r, err := Open(ctx, objstorage.NewMemObj(dictCorrupted), ReaderOptions{
		ReaderOptions: block.ReaderOptions{CacheHandle: c.h},
	})
	require.NoError(t, err)
	defer r.Close()
	_, err = r.ReadDataBlock(ctx, block.NoReadEnv, nil, 0, false, nil)
	require.True(t, base.IsCorruptionError(err))
}

func TestReaderIOError(t *testing.T) {
	ctx := context.Background()
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})
	injected := errors.New("injected I/O error")

	c := newTestCache()
	defer c.close()
	obj := objstorage.NewMemObj(data)
	r, err := Open(ctx, obj, ReaderOptions{ReaderOptions: block.ReaderOptions{CacheHandle: c.h}})
	require.NoError(t, err)
	defer r.Close()

	obj.InjectError(injected)
	_, err = r.ReadDataBlock(ctx, block.NoReadEnv, nil, 0, false, nil)
	require.ErrorIs(t, err, injected)

	// The reader remains usable once the error clears.
	obj.InjectError(nil)
	readAllBlocks(t, r, block.NoReadEnv)
}

func TestReaderFile(t *testing.T) {
	ctx := context.Background()
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})
	path := filepath.Join(t.TempDir(), base.MakeFilename(7))
	require.NoError(t, os.WriteFile(path, data, 0644))

	f, err := objstorage.OpenFile(path)
	require.NoError(t, err)
	limiter := rate.NewLimiter(float64(100<<20), float64(1<<20))
	r, err := Open(ctx, objstorage.NewRateLimitedReadable(f, limiter), ReaderOptions{
		ReaderOptions: block.ReaderOptions{FileNum: 7},
	})
	require.NoError(t, err)
	defer r.Close()

	rh := r.NewReadHandle()
	defer rh.Close()
	rh.SetupForCompaction()
	tctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	for i := 0; i < r.NumDataBlocks(); i++ {
		h, err := r.ReadDataBlock(tctx, block.NoReadEnv, rh, i, false, nil)
		require.NoError(t, err)
		require.Equal(t, testDataBlock(i), h.BlockData())
		h.Release()
	}
	pb := rh.(*objstorage.PrefetchBuffer)
	require.Equal(t, int64(1), pb.Stats().Fills)
}

func TestWriterErrors(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{})
	require.NoError(t, err)
	require.Error(t, w.AddBlock(nil))
	_, err = w.Metadata()
	require.Error(t, err)
	require.NoError(t, w.Close())
	require.Error(t, w.AddBlock([]byte("x")))

	meta, err := w.Metadata()
	require.NoError(t, err)
	require.Zero(t, meta.NumDataBlocks)
	require.False(t, meta.Footer.BlocksDefinitelyZstd)
	require.True(t, meta.Footer.DictionaryHandle.IsNull())

	r, err := Open(context.Background(), objstorage.NewMemObj(buf.Bytes()), ReaderOptions{})
	require.NoError(t, err)
	require.Zero(t, r.NumDataBlocks())
	require.NoError(t, r.Close())
}

// withFooter returns a copy of the table with its footer modified by fn.
func withFooter(t *testing.T, data []byte, fn func(f *Footer)) []byte {
	f, err := decodeFooter(data[len(data)-footerLen:], int64(len(data)), 0)
	require.NoError(t, err)
	fn(&f)
	b := append([]byte(nil), data[:len(data)-footerLen]...)
	return append(b, f.encode(nil)...)
}

// withIndex returns a copy of the table with its index block replaced by one
// listing the given data block handles.
func withIndex(t *testing.T, data []byte, handles []block.Handle) []byte {
	f, err := decodeFooter(data[len(data)-footerLen:], int64(len(data)), 0)
	require.NoError(t, err)
	var index []byte
	var tmp [2 * 10]byte
	for _, bh := range handles {
		n := bh.EncodeVarints(tmp[:])
		index = append(index, tmp[:n]...)
	}
	b := append([]byte(nil), data[:f.IndexHandle.Offset]...)
	ck := block.Checksummer{Type: f.ChecksumType}
	trailer := block.MakeTrailer(block.NoCompressionIndicator, ck.Checksum(index, block.NoCompressionIndicator))
	f.IndexHandle = block.Handle{Offset: uint64(len(b)), Length: uint64(len(index))}
	b = append(b, index...)
	b = append(b, trailer[:]...)
	return append(b, f.encode(nil)...)
}

func TestReaderCorruptFooterHandles(t *testing.T) {
	ctx := context.Background()
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})
	f, err := decodeFooter(data[len(data)-footerLen:], int64(len(data)), 0)
	require.NoError(t, err)

	testCases := []struct {
		name string
		fn   func(f *Footer)
	}{
		{"dict-overflow", func(f *Footer) { f.DictionaryHandle = block.Handle{Offset: 1 << 63, Length: 1 << 63} }},
		{"dict-wraparound", func(f *Footer) { f.DictionaryHandle = block.Handle{Offset: 1<<64 - 4, Length: 8} }},
		{"dict-huge-length", func(f *Footer) { f.DictionaryHandle.Length = 1<<64 - 1 }},
		{"dict-overlaps-index", func(f *Footer) { f.DictionaryHandle.Length += 1 }},
		{"index-overflow", func(f *Footer) { f.IndexHandle = block.Handle{Offset: 1 << 63, Length: 1 << 63} }},
		{"index-wraparound", func(f *Footer) { f.IndexHandle = block.Handle{Offset: 1<<64 - 4, Length: 8} }},
		{"index-past-footer", func(f *Footer) { f.IndexHandle.Length += 1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := withFooter(t, data, tc.fn)
			_, err := decodeFooter(b[len(b)-footerLen:], int64(len(b)), 0)
			require.True(t, base.IsCorruptionError(err), "%v", err)

			for _, useCache := range []bool{false, true} {
				var o ReaderOptions
				if useCache {
					c := newTestCache()
					defer c.close()
					o.CacheHandle = c.h
				}
				_, err := Open(ctx, objstorage.BytesReadable(b), o)
				require.True(t, base.IsCorruptionError(err), "%v", err)
			}
		})
	}
	// The unmodified footer still opens.
	r, err := Open(ctx, objstorage.BytesReadable(withFooter(t, data, func(*Footer) {})), ReaderOptions{})
	require.NoError(t, err)
	require.Equal(t, f, r.Footer())
	require.NoError(t, r.Close())
}

func TestReaderCorruptIndex(t *testing.T) {
	ctx := context.Background()
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})
	r, err := Open(ctx, objstorage.NewMemObj(data), ReaderOptions{})
	require.NoError(t, err)
	handles := make([]block.Handle, r.NumDataBlocks())
	for i := range handles {
		handles[i] = r.DataBlockHandle(i)
	}
	dictHandle := r.DictionaryBlock()
	require.NoError(t, r.Close())

	// Rewriting the index with the same handles yields a valid table.
	r, err = Open(ctx, objstorage.NewMemObj(withIndex(t, data, handles)), ReaderOptions{})
	require.NoError(t, err)
	readAllBlocks(t, r, block.NoReadEnv)
	require.NoError(t, r.Close())

	for _, bh := range []block.Handle{
		{Offset: 1<<64 - 4, Length: 8},
		{Offset: 1 << 63, Length: 1 << 63},
		{Offset: 0, Length: 1<<64 - 1},
		// Overlaps the dictionary block.
		{Offset: dictHandle.Offset - 10, Length: 20},
		{Offset: dictHandle.Offset, Length: dictHandle.Length},
	} {
		t.Run(bh.String(), func(t *testing.T) {
			corrupt := append(append([]block.Handle(nil), handles...), bh)
			for _, useCache := range []bool{false, true} {
				var o ReaderOptions
				if useCache {
					c := newTestCache()
					defer c.close()
					o.CacheHandle = c.h
				}
				_, err := Open(ctx, objstorage.NewMemObj(withIndex(t, data, corrupt)), o)
				require.True(t, base.IsCorruptionError(err), "%v", err)
			}
		})
	}
}

// TestReaderDataBlockLookups checks that reading a data block through the
// cache counts a single lookup, whether or not the block is resident.
func TestReaderDataBlockLookups(t *testing.T) {
	ctx := context.Background()
	data := writeTestTable(t, WriterOptions{Compression: &compression.ZstdLevel3, Dictionary: testDictionary()})
	c := newTestCache()
	defer c.close()
	r, err := Open(ctx, objstorage.NewMemObj(data), ReaderOptions{
		ReaderOptions: block.ReaderOptions{CacheHandle: c.h},
		PinDictionary: true,
	})
	require.NoError(t, err)
	defer r.Close()

	before := c.c.Metrics()
	var lc block.LookupContext
	h, err := r.ReadDataBlock(ctx, block.NoReadEnv, nil, 0, false /* noIO */, &lc)
	require.NoError(t, err)
	h.Release()
	require.Equal(t, 1, lc.NumLookups)
	require.False(t, lc.CacheHit)
	after := c.c.Metrics()
	require.Equal(t, before.Misses+1, after.Misses)
	require.Equal(t, before.Hits, after.Hits)

	lc = block.LookupContext{}
	h, err = r.ReadDataBlock(ctx, block.NoReadEnv, nil, 0, false /* noIO */, &lc)
	require.NoError(t, err)
	h.Release()
	require.Equal(t, 1, lc.NumLookups)
	require.True(t, lc.CacheHit)
	require.Equal(t, after.Misses, c.c.Metrics().Misses)
	require.Equal(t, after.Hits+1, c.c.Metrics().Hits)
}
