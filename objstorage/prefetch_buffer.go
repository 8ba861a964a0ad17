// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package objstorage

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/invariants"
)

// PrefetchStats holds counters describing how a PrefetchBuffer served reads.
type PrefetchStats struct {
	// Hits is the number of reads served entirely from the buffer.
	Hits int64
	// Misses is the number of reads that were not served from the buffer.
	Misses int64
	// Fills is the number of times the buffer was (re)filled from the
	// underlying Readable.
	Fills int64
	// BytesRead is the number of bytes read from the underlying Readable,
	// through fills and direct reads.
	BytesRead int64
}

// PrefetchBuffer is a ReadHandle which keeps an in-memory window of the
// object. Reads that fall within the window are served without touching the
// underlying Readable; when a sequential access pattern is detected the window
// is refilled ahead of the reads, growing from 64KB up to 256KB.
//
// The window can also be filled explicitly with Prefetch, for example to read
// the tail of a table (dictionary, index and footer) with a single I/O when
// the table is opened.
//
// A PrefetchBuffer is not safe for concurrent use.
type PrefetchBuffer struct {
	r  Readable
	rs readaheadState

	buf       []byte
	bufOffset int64

	forCompaction bool
	stats         PrefetchStats
	closed        invariants.CloseChecker
}

var _ ReadHandle = (*PrefetchBuffer)(nil)

// NewPrefetchBuffer returns a PrefetchBuffer reading from r.
func NewPrefetchBuffer(r Readable) *PrefetchBuffer {
	return &PrefetchBuffer{r: r, rs: makeReadaheadState()}
}

// Prefetch fills the buffer with the range [off, off+n), clipped to the size
// of the object.
func (b *PrefetchBuffer) Prefetch(ctx context.Context, off, n int64) error {
	if off < 0 || n < 0 {
		return errors.AssertionFailedf("invalid prefetch range [%d, %d+%d)", off, off, n)
	}
	return b.fill(ctx, off, n)
}

// ReadAt is part of the ReadHandle interface.
func (b *PrefetchBuffer) ReadAt(ctx context.Context, p []byte, off int64) error {
	if b.serve(p, off) {
		b.stats.Hits++
		return nil
	}
	b.stats.Misses++

	readahead := b.rs.maybeReadahead(off, int64(len(p)))
	if b.forCompaction {
		readahead = maxReadaheadSize
	}
	if readahead > int64(len(p)) {
		if err := b.fill(ctx, off, readahead); err != nil {
			return err
		}
		if b.serve(p, off) {
			return nil
		}
	}
	if err := b.r.ReadAt(ctx, p, off); err != nil {
		return err
	}
	b.stats.BytesRead += int64(len(p))
	return nil
}

// serve copies p from the buffer if the buffer covers [off, off+len(p)).
func (b *PrefetchBuffer) serve(p []byte, off int64) bool {
	if off < b.bufOffset || off+int64(len(p)) > b.bufOffset+int64(len(b.buf)) {
		return false
	}
	copy(p, b.buf[off-b.bufOffset:])
	return true
}

func (b *PrefetchBuffer) fill(ctx context.Context, off, n int64) error {
	if size := b.r.Size(); off+n > size {
		n = size - off
	}
	if n <= 0 {
		return nil
	}
	if int64(cap(b.buf)) < n {
		b.buf = make([]byte, n)
	}
	b.buf = b.buf[:n]
	if err := b.r.ReadAt(ctx, b.buf, off); err != nil {
		// Never serve reads from a partially filled buffer.
		b.buf = b.buf[:0]
		return err
	}
	b.bufOffset = off
	b.stats.Fills++
	b.stats.BytesRead += n
	return nil
}

// Stats returns the read counters accumulated so far.
func (b *PrefetchBuffer) Stats() PrefetchStats {
	return b.stats
}

// Close is part of the ReadHandle interface.
func (b *PrefetchBuffer) Close() error {
	b.closed.Close()
	invariants.Mangle(b.buf)
	b.buf = nil
	return nil
}

// SetupForCompaction is part of the ReadHandle interface. All subsequent
// misses read ahead the maximum amount, and the OS is advised that the file
// is read sequentially if the Readable supports it.
func (b *PrefetchBuffer) SetupForCompaction() {
	b.forCompaction = true
	if s, ok := b.r.(interface{ adviseSequential() }); ok {
		s.adviseSequential()
	}
}

// RecordCacheHit is part of the ReadHandle interface.
func (b *PrefetchBuffer) RecordCacheHit(_ context.Context, offset, size int64) {
	b.rs.recordCacheHit(offset, size)
}
