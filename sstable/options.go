// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/internal/compression"
	"github.com/pebblekv/sstdict/sstable/block"
)

// ReaderOptions holds the parameters needed for reading a table.
type ReaderOptions struct {
	block.ReaderOptions

	// PrefetchDictionary reads the compression dictionary block when the
	// table is opened. With a block cache the read only warms the cache,
	// unless PinDictionary is also set.
	PrefetchDictionary bool

	// PinDictionary keeps the compression dictionary block referenced for the
	// lifetime of the reader, so that it can't be evicted from the block
	// cache. PinDictionary implies PrefetchDictionary.
	PinDictionary bool
}

func (o ReaderOptions) ensureDefaults() ReaderOptions {
	if o.LoggerAndTracer == nil {
		o.LoggerAndTracer = base.NoopLoggerAndTracer{}
	}
	if o.PinDictionary {
		o.PrefetchDictionary = true
	}
	return o
}

// WriterOptions holds the parameters used to control building a table.
type WriterOptions struct {
	// Compression is the compression used for data blocks.
	//
	// The default value is Snappy.
	Compression *compression.Setting

	// Dictionary is the raw-content dictionary stored in the table. zstd
	// data blocks are compressed with it.
	Dictionary []byte

	// Checksum specifies which checksum to use.
	//
	// The default value is CRC32c.
	Checksum block.ChecksumType
}

func (o WriterOptions) ensureDefaults() WriterOptions {
	if o.Compression == nil {
		o.Compression = &compression.Snappy
	}
	if o.Checksum == block.ChecksumTypeNone {
		o.Checksum = block.ChecksumTypeCRC32c
	}
	return o
}
