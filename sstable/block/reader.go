// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/crlib/fifo"
	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/internal/cache"
	"github.com/pebblekv/sstdict/objstorage"
)

// Fetcher retrieves blocks of a table, from the block cache if resident and
// from the file otherwise. *Reader implements Fetcher; tests may substitute
// their own.
type Fetcher interface {
	// Read reads the block referenced by bh. The readHandle and lookup
	// context are optional. dict, if non-nil, is the dictionary used to
	// decompress the block.
	//
	// With opts.Tier == CacheOnly, Read never performs I/O and returns
	// base.ErrCacheMissNoIO if the block is not resident in the cache.
	Read(
		ctx context.Context,
		env ReadEnv,
		readHandle objstorage.ReadHandle,
		bh Handle,
		opts ReadOptions,
		lc *LookupContext,
		dict *Dict,
	) (BufferHandle, error)
}

// A Reader reads blocks from a single file, handling caching, checksum
// validation and decompression.
type Reader struct {
	readable     objstorage.Readable
	opts         ReaderOptions
	checksumType ChecksumType
}

var _ Fetcher = (*Reader)(nil)

// ReaderOptions configures a block reader.
type ReaderOptions struct {
	// CacheHandle is the block cache namespace of the store. If nil, blocks
	// are not cached and every read returns an owned buffer.
	CacheHandle *cache.Handle
	// FileNum identifies the file in the block cache.
	FileNum base.DiskFileNum
	// LoadBlockSema, if set, is used to limit the number of blocks that can be
	// loaded (i.e. read from the filesystem) in parallel. Each load acquires
	// one unit from the semaphore for the duration of the read.
	LoadBlockSema *fifo.Semaphore
	// LoggerAndTracer is an optional logger and tracer.
	LoggerAndTracer base.LoggerAndTracer
}

// Init initializes the Reader to read blocks from the provided Readable.
func (r *Reader) Init(readable objstorage.Readable, ro ReaderOptions, checksumType ChecksumType) {
	if ro.LoggerAndTracer == nil {
		ro.LoggerAndTracer = base.NoopLoggerAndTracer{}
	}
	r.readable = readable
	r.opts = ro
	r.checksumType = checksumType
}

// FileNum returns the file number of the file being read.
func (r *Reader) FileNum() base.DiskFileNum {
	return r.opts.FileNum
}

// ChecksumType returns the checksum type used by the reader.
func (r *Reader) ChecksumType() ChecksumType {
	return r.checksumType
}

// Read implements Fetcher.
//
// A block read from the file is added to the cache when the reader has a
// cache handle, and the returned handle is Borrowed; otherwise the block is
// returned as an Owned buffer.
func (r *Reader) Read(
	ctx context.Context,
	env ReadEnv,
	readHandle objstorage.ReadHandle,
	bh Handle,
	opts ReadOptions,
	lc *LookupContext,
	dict *Dict,
) (BufferHandle, error) {
	ch := r.opts.CacheHandle
	if !opts.SkipCacheLookup {
		if ch != nil {
			if cv := ch.Get(r.opts.FileNum, bh.Offset); cv != nil {
				recordCacheHit(ctx, env, readHandle, bh)
				lc.record(bh, true /* cacheHit */)
				return CacheBufferHandle(cv), nil
			}
		}
		lc.record(bh, false /* cacheHit */)
	}
	if opts.Tier == CacheOnly {
		return BufferHandle{}, base.ErrCacheMissNoIO
	}

	value, err := r.doRead(ctx, env, readHandle, bh, dict)
	if err != nil {
		return BufferHandle{}, env.maybeReportCorruption(err)
	}
	if ch == nil {
		return OwnedBufferHandle(value), nil
	}
	// The cache takes its own reference; the caller's reference from Alloc
	// moves into the returned handle.
	ch.Set(r.opts.FileNum, bh.Offset, value)
	return CacheBufferHandle(value), nil
}

func recordCacheHit(ctx context.Context, env ReadEnv, readHandle objstorage.ReadHandle, bh Handle) {
	if readHandle != nil {
		readHandle.RecordCacheHit(ctx, int64(bh.Offset), int64(bh.Length+TrailerLen))
	}
	env.BlockServedFromCache(bh.Length)
}

// doRead is a helper for Read that does the read, checksum check and
// decompression, and returns either a value with a single reference or an
// error.
func (r *Reader) doRead(
	ctx context.Context, env ReadEnv, readHandle objstorage.ReadHandle, bh Handle, dict *Dict,
) (*cache.Value, error) {
	if !bh.Within(uint64(r.readable.Size())) {
		return nil, base.CorruptionErrorf("sstdict: file %s: block %s out of bounds", r.opts.FileNum, bh)
	}
	// First acquire loadBlockSema, if needed.
	if sema := r.opts.LoadBlockSema; sema != nil {
		if err := sema.Acquire(ctx, 1); err != nil {
			// An error here can only come from the context.
			return nil, err
		}
		defer sema.Release(1)
	}

	compressed := Alloc(int(bh.Length + TrailerLen))
	readStopwatch := base.MakeStopwatch()
	var err error
	if readHandle != nil {
		err = readHandle.ReadAt(ctx, compressed.RawBuffer(), int64(bh.Offset))
	} else {
		err = r.readable.ReadAt(ctx, compressed.RawBuffer(), int64(bh.Offset))
	}
	readDuration := readStopwatch.Stop()
	// Call IsTracingEnabled to avoid the allocations of boxing integers into
	// an interface{}, unless necessary.
	if readDuration >= base.SlowReadTracingThreshold && r.opts.LoggerAndTracer.IsTracingEnabled(ctx) {
		_, file1, line1, _ := runtime.Caller(1)
		_, file2, line2, _ := runtime.Caller(2)
		r.opts.LoggerAndTracer.Eventf(ctx, "reading block of %d bytes took %s (fileNum=%s; %s/%s:%d -> %s/%s:%d)",
			int(bh.Length+TrailerLen), readDuration.String(),
			r.opts.FileNum,
			filepath.Base(filepath.Dir(file2)), filepath.Base(file2), line2,
			filepath.Base(filepath.Dir(file1)), filepath.Base(file1), line1)
	}
	if err != nil {
		cache.Free(compressed)
		return nil, err
	}
	env.BlockRead(bh.Length, readDuration)
	if err = ValidateChecksum(r.checksumType, compressed.RawBuffer(), bh); err != nil {
		cache.Free(compressed)
		return nil, errors.Wrapf(err, "sstdict: file %s", r.opts.FileNum)
	}
	typ := CompressionIndicator(compressed.RawBuffer()[bh.Length])
	compressed.Truncate(int(bh.Length))
	if typ == NoCompressionIndicator && !(dict.usable() && dict.DefinitelyZstd) {
		return compressed, nil
	}

	// Decode the length of the decompressed value.
	decodedLen, err := DecompressedLen(typ, compressed.RawBuffer(), dict)
	if err != nil {
		cache.Free(compressed)
		return nil, errors.Wrapf(err, "sstdict: file %s: block %s", r.opts.FileNum, bh)
	}
	decompressed := Alloc(decodedLen)
	err = DecompressInto(typ, compressed.RawBuffer(), decompressed.RawBuffer(), dict)
	cache.Free(compressed)
	if err != nil {
		cache.Free(decompressed)
		return nil, errors.Wrapf(err, "sstdict: file %s: block %s", r.opts.FileNum, bh)
	}
	return decompressed, nil
}

// Readable returns the underlying objstorage.Readable.
func (r *Reader) Readable() objstorage.Readable {
	return r.readable
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	var err error
	if r.readable != nil {
		err = r.readable.Close()
		r.readable = nil
	}
	return err
}

// ReadRaw reads len(buf) bytes from the provided Readable at the given
// offset into buf. It's used to read the footer of a table.
func ReadRaw(
	ctx context.Context,
	f objstorage.Readable,
	readHandle objstorage.ReadHandle,
	logger base.LoggerAndTracer,
	fileNum base.DiskFileNum,
	buf []byte,
	off int64,
) ([]byte, error) {
	size := f.Size()
	if size < int64(len(buf)) {
		return nil, base.CorruptionErrorf("sstdict: invalid file %s (file size is too small)", errors.Safe(fileNum))
	}

	readStopwatch := base.MakeStopwatch()
	var err error
	if readHandle != nil {
		err = readHandle.ReadAt(ctx, buf, off)
	} else {
		err = f.ReadAt(ctx, buf, off)
	}
	readDuration := readStopwatch.Stop()
	// Call IsTracingEnabled to avoid the allocations of boxing integers into
	// an interface{}, unless necessary.
	if readDuration >= base.SlowReadTracingThreshold && logger.IsTracingEnabled(ctx) {
		logger.Eventf(ctx, "reading footer of %d bytes took %s",
			len(buf), readDuration.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "sstdict: invalid file (could not read footer)")
	}
	return buf, nil
}
