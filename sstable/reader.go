// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
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

// Reader is a table reader.
type Reader struct {
	blockReader block.Reader
	opts        ReaderOptions
	footer      Footer
	dataBlocks  []block.Handle
	// dictReader is nil if the table has no compression dictionary.
	dictReader *DictionaryReader
}

var _ DictionaryTable = (*Reader)(nil)

// Open returns a new table reader for the file. Open takes ownership of the
// readable and will close it on Close, or on error.
func Open(ctx context.Context, f objstorage.Readable, o ReaderOptions) (_ *Reader, err error) {
	if f == nil {
		return nil, errors.New("sstdict: nil file")
	}
	o = o.ensureDefaults()
	r := &Reader{opts: o}
	r.blockReader.Init(f, o.ReaderOptions, block.ChecksumTypeNone)
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	rh := f.NewReadHandle()
	defer func() { _ = rh.Close() }()

	size := f.Size()
	if size < footerLen {
		return nil, base.CorruptionErrorf("sstdict: invalid table %s (file size is too small)", o.FileNum)
	}
	// The dictionary, index and footer are adjacent at the end of the file.
	// Prefetch the footer, and further if the handle supports it.
	buf, err := block.ReadRaw(ctx, f, nil, o.LoggerAndTracer, o.FileNum, make([]byte, footerLen), size-footerLen)
	if err != nil {
		return nil, err
	}
	if r.footer, err = decodeFooter(buf, size, o.FileNum); err != nil {
		return nil, err
	}
	r.blockReader.Init(f, o.ReaderOptions, r.footer.ChecksumType)
	if pb, ok := rh.(*objstorage.PrefetchBuffer); ok {
		tail := r.footer.IndexHandle.Offset
		if !r.footer.DictionaryHandle.IsNull() {
			tail = r.footer.DictionaryHandle.Offset
		}
		if err := pb.Prefetch(ctx, int64(tail), size-footerLen-int64(tail)); err != nil {
			return nil, err
		}
	}

	if err := r.readIndex(ctx, rh); err != nil {
		return nil, err
	}
	if !r.footer.DictionaryHandle.IsNull() {
		r.dictReader, err = NewDictionaryReader(ctx, r, &r.blockReader, rh, DictionaryReaderOptions{
			UseCache: o.CacheHandle != nil,
			Prefetch: o.PrefetchDictionary,
			Pin:      o.PinDictionary,
		}, nil /* lc */)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Reader) readIndex(ctx context.Context, rh objstorage.ReadHandle) error {
	h, err := r.blockReader.Read(ctx, block.NoReadEnv, rh, r.footer.IndexHandle, block.ReadOptions{}, nil, nil)
	if err != nil {
		return err
	}
	defer h.Release()
	// Data blocks precede the dictionary block, if any, and the index block.
	limit := r.footer.IndexHandle.Offset
	if !r.footer.DictionaryHandle.IsNull() {
		limit = r.footer.DictionaryHandle.Offset
	}
	for data := h.BlockData(); len(data) > 0; {
		bh, n := block.DecodeHandle(data)
		if n == 0 {
			return base.CorruptionErrorf("sstdict: invalid table %s (bad index block)", r.opts.FileNum)
		}
		if err := checkBlockBounds(bh, limit, "data", r.opts.FileNum); err != nil {
			return err
		}
		r.dataBlocks = append(r.dataBlocks, bh)
		data = data[n:]
	}
	return nil
}

// DictionaryBlock implements DictionaryTable.
func (r *Reader) DictionaryBlock() block.Handle {
	return r.footer.DictionaryHandle
}

// BlocksDefinitelyZstd implements DictionaryTable.
func (r *Reader) BlocksDefinitelyZstd() bool {
	return r.footer.BlocksDefinitelyZstd
}

// Logger implements DictionaryTable.
func (r *Reader) Logger() base.LoggerAndTracer {
	return r.opts.LoggerAndTracer
}

// Footer returns the decoded footer of the table.
func (r *Reader) Footer() Footer {
	return r.footer
}

// NumDataBlocks returns the number of data blocks in the table.
func (r *Reader) NumDataBlocks() int {
	return len(r.dataBlocks)
}

// DataBlockHandle returns the handle of the i-th data block.
func (r *Reader) DataBlockHandle(i int) block.Handle {
	return r.dataBlocks[i]
}

// DictionaryReader returns the reader for the table's compression
// dictionary, or nil if the table has none.
func (r *Reader) DictionaryReader() *DictionaryReader {
	return r.dictReader
}

// NewReadHandle returns a read handle for a sequence of related reads of the
// table.
func (r *Reader) NewReadHandle() objstorage.ReadHandle {
	return r.blockReader.Readable().NewReadHandle()
}

// ReadDataBlock returns the decompressed contents of the i-th data block.
// readHandle and lc are optional. With noIO set, only the block cache is
// consulted and base.ErrCacheMissNoIO is returned if the block is not
// resident.
//
// The returned handle must be released by the caller.
func (r *Reader) ReadDataBlock(
	ctx context.Context,
	env block.ReadEnv,
	readHandle objstorage.ReadHandle,
	i int,
	noIO bool,
	lc *block.LookupContext,
) (block.BufferHandle, error) {
	if i < 0 || i >= len(r.dataBlocks) {
		return block.BufferHandle{}, errors.AssertionFailedf("data block %d out of range [0, %d)", i, len(r.dataBlocks))
	}
	bh := r.dataBlocks[i]
	var opts block.ReadOptions
	// A cached block is already decompressed and doesn't need the dictionary.
	if r.opts.CacheHandle != nil {
		h, err := r.blockReader.Read(ctx, env, readHandle, bh, block.ReadOptions{Tier: block.CacheOnly}, lc, nil)
		if err == nil || noIO || !base.IsCacheMissNoIO(err) {
			return h, err
		}
		opts.SkipCacheLookup = true
	} else if noIO {
		return block.BufferHandle{}, base.ErrCacheMissNoIO
	}

	var dict *block.Dict
	if r.dictReader != nil {
		d, err := r.dictReader.GetOrReadDictionary(ctx, env, readHandle, false /* noIO */, nil /* lc */)
		if err != nil {
			return block.BufferHandle{}, err
		}
		// The dictionary bytes must stay valid until decompression is done.
		defer d.Release()
		dict = &d.Dict
	}
	return r.blockReader.Read(ctx, env, readHandle, bh, opts, lc, dict)
}

// ApproximateMemoryUsage returns the memory used by the reader, excluding
// blocks held by the block cache.
func (r *Reader) ApproximateMemoryUsage() uint64 {
	usage := uint64(unsafe.Sizeof(Reader{})) + uint64(cap(r.dataBlocks))*uint64(unsafe.Sizeof(block.Handle{}))
	if r.dictReader != nil {
		usage += r.dictReader.ApproximateMemoryUsage()
	}
	return usage
}

// Close the reader. The readable is closed too.
func (r *Reader) Close() error {
	if r.dictReader != nil {
		r.dictReader.Close()
		r.dictReader = nil
	}
	return r.blockReader.Close()
}
