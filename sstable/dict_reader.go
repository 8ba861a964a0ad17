// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/objstorage"
	"github.com/pebblekv/sstdict/sstable/block"
)

// DictionaryTable is the view of a table needed by a DictionaryReader. The
// table must outlive the reader.
type DictionaryTable interface {
	// DictionaryBlock returns the handle of the compression dictionary block.
	DictionaryBlock() block.Handle
	// BlocksDefinitelyZstd returns true if every data block of the table is
	// zstd-compressed.
	BlocksDefinitelyZstd() bool
	// Logger returns the logger used to report dictionary read failures.
	Logger() base.LoggerAndTracer
}

// DictionaryReaderOptions controls when the dictionary block is read and
// whether the reader keeps it.
type DictionaryReaderOptions struct {
	// UseCache is set when blocks of the table go through a block cache.
	UseCache bool
	// Prefetch reads the dictionary block at construction.
	Prefetch bool
	// Pin keeps the block read at construction for the lifetime of the
	// reader. Requires Prefetch.
	Pin bool
}

// DictionaryReader provides access to the compression dictionary of a
// table.
//
// The dictionary block is read eagerly at construction when Prefetch is set
// or when there is no block cache. The block is kept by the reader when
// there is no block cache (every later access would otherwise go to the
// file) or when Pin is set; with a block cache and without Pin the eager read
// only warms the cache and later accesses go through it.
//
// GetOrReadDictionary and GetOrReadDictionaryBlock are safe for concurrent
// use: the held block is never modified after construction and all other
// state lives in the block cache.
type DictionaryReader struct {
	table   DictionaryTable
	fetcher block.Fetcher
	// dictBlock is either empty or set once, in NewDictionaryReader.
	dictBlock block.BufferHandle
}

// NewDictionaryReader creates a DictionaryReader for the table. readHandle
// and lc are optional and only used by an eager read.
//
// It is a programming error for table or fetcher to be nil, for the table to
// have a null dictionary handle, or for opts.Pin to be set without
// opts.Prefetch; these are reported as assertion failures (see
// errors.HasAssertionFailure). An error from the eager read is returned
// unchanged.
func NewDictionaryReader(
	ctx context.Context,
	table DictionaryTable,
	fetcher block.Fetcher,
	readHandle objstorage.ReadHandle,
	opts DictionaryReaderOptions,
	lc *block.LookupContext,
) (*DictionaryReader, error) {
	switch {
	case table == nil:
		return nil, errors.AssertionFailedf("sstdict: dictionary reader requires a table")
	case fetcher == nil:
		return nil, errors.AssertionFailedf("sstdict: dictionary reader requires a block fetcher")
	case table.DictionaryBlock().IsNull():
		return nil, errors.AssertionFailedf("sstdict: table has no compression dictionary")
	case opts.Pin && !opts.Prefetch:
		return nil, errors.AssertionFailedf("sstdict: pinning the compression dictionary requires prefetching it")
	}

	r := &DictionaryReader{table: table, fetcher: fetcher}
	if opts.Prefetch || !opts.UseCache {
		h, err := readDictionaryBlock(ctx, table, fetcher, readHandle, block.ReadOptions{}, block.NoReadEnv, lc)
		if err != nil {
			return nil, err
		}
		if opts.UseCache && !opts.Pin {
			h.Release()
		} else {
			h.TransferTo(&r.dictBlock)
		}
	}
	return r, nil
}

// readDictionaryBlock fetches the dictionary block of the table. Failures
// are returned unchanged, and logged unless they are cache misses of a
// CacheOnly read.
func readDictionaryBlock(
	ctx context.Context,
	table DictionaryTable,
	fetcher block.Fetcher,
	readHandle objstorage.ReadHandle,
	opts block.ReadOptions,
	env block.ReadEnv,
	lc *block.LookupContext,
) (block.BufferHandle, error) {
	bh := table.DictionaryBlock()
	h, err := fetcher.Read(ctx, env, readHandle, bh, opts, lc, nil /* dict */)
	if err != nil {
		if base.IsCacheMissNoIO(err) {
			return block.BufferHandle{}, err
		}
		table.Logger().Errorf("encountered error while reading data from compression dictionary block %s: %v", bh, err)
		return block.BufferHandle{}, err
	}
	return h, nil
}

// GetOrReadDictionaryBlock returns the dictionary block. A block held by the
// reader is returned as a Borrowed view without any I/O or cache access.
// Otherwise the block is fetched; with noIO set the fetch only consults the
// block cache and fails with base.ErrCacheMissNoIO if the block is not
// resident.
//
// The returned handle must be released by the caller.
func (r *DictionaryReader) GetOrReadDictionaryBlock(
	ctx context.Context,
	env block.ReadEnv,
	readHandle objstorage.ReadHandle,
	noIO bool,
	lc *block.LookupContext,
) (block.BufferHandle, error) {
	if r.dictBlock.Valid() {
		return r.dictBlock.View(), nil
	}
	opts := block.ReadOptions{Tier: block.ReadAll}
	if noIO {
		opts.Tier = block.CacheOnly
	}
	return readDictionaryBlock(ctx, r.table, r.fetcher, readHandle, opts, env, lc)
}

// GetOrReadDictionary returns the dictionary used to decompress the data
// blocks of the table. The returned dictionary must be released by the
// caller once decompression is done.
func (r *DictionaryReader) GetOrReadDictionary(
	ctx context.Context,
	env block.ReadEnv,
	readHandle objstorage.ReadHandle,
	noIO bool,
	lc *block.LookupContext,
) (DecompressionDict, error) {
	h, err := r.GetOrReadDictionaryBlock(ctx, env, readHandle, noIO, lc)
	if err != nil {
		return DecompressionDict{}, err
	}
	d := DecompressionDict{
		Dict: block.Dict{
			Data:           h.BlockData(),
			DefinitelyZstd: r.table.BlocksDefinitelyZstd(),
		},
	}
	d.TakeOwnership(&h)
	return d, nil
}

// ApproximateMemoryUsage returns the memory used by the reader. Dictionary
// bytes are only counted when the reader owns them; a block held through the
// block cache is accounted for by the cache.
func (r *DictionaryReader) ApproximateMemoryUsage() uint64 {
	usage := uint64(unsafe.Sizeof(DictionaryReader{}))
	if r.dictBlock.Owned() {
		usage += uint64(r.dictBlock.Size())
	}
	return usage
}

// Close releases the dictionary block held by the reader, if any.
func (r *DictionaryReader) Close() {
	r.dictBlock.Release()
}
