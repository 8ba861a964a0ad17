// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"

	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/internal/cache"
	"github.com/pebblekv/sstdict/objstorage"
	"github.com/pebblekv/sstdict/sstable"
)

// table is an open table together with the block cache it reads through.
type table struct {
	*sstable.Reader
	cache  *cache.Cache
	handle *cache.Handle
}

func openTable(ctx context.Context, path string, wrap func(objstorage.Readable) objstorage.Readable) (*table, error) {
	f, err := objstorage.OpenFile(path)
	if err != nil {
		return nil, err
	}
	if wrap != nil {
		f = wrap(f)
	}
	t := &table{}
	opts := sstable.ReaderOptions{
		PrefetchDictionary: prefetch,
		PinDictionary:      pin,
	}
	opts.FileNum = 1
	if verbose {
		opts.LoggerAndTracer = &base.LoggerWithNoopTracer{Logger: base.DefaultLogger}
	}
	if cacheSize > 0 {
		t.cache = cache.New(cacheSize)
		t.handle = t.cache.NewHandle()
		opts.CacheHandle = t.handle
	}
	if benchConfig.maxConcurrentLoads > 0 {
		opts.LoadBlockSema = newLoadBlockSema(benchConfig.maxConcurrentLoads)
	}
	t.Reader, err = sstable.Open(ctx, f, opts)
	if err != nil {
		t.closeCache()
		return nil, err
	}
	return t, nil
}

func (t *table) closeCache() {
	if t.handle != nil {
		t.handle.Close()
		t.cache.Unref()
		t.handle, t.cache = nil, nil
	}
}

func (t *table) Close() error {
	err := t.Reader.Close()
	t.closeCache()
	return err
}

// dictPolicy describes how the table's dictionary is held.
func dictPolicy(t *table) string {
	switch {
	case t.handle == nil:
		return "owned (no cache)"
	case pin:
		return "pinned in cache"
	case prefetch:
		return "prefetched into cache"
	default:
		return "read lazily through cache"
	}
}
