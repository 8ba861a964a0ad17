// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package objstorage

import (
	"context"
	"io"
)

// BytesReadable implements Readable for a byte slice.
type BytesReadable []byte

var _ Readable = (BytesReadable)(nil)
var _ ReadHandle = (BytesReadable)(nil)

// ReadAt is part of the Readable interface.
func (r BytesReadable) ReadAt(_ context.Context, p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > int64(len(r)) {
		return io.ErrUnexpectedEOF
	}
	copy(p, r[off:])
	return nil
}

// Close is part of the Readable interface.
func (r BytesReadable) Close() error { return nil }

// Size is part of the Readable interface.
func (r BytesReadable) Size() int64 { return int64(len(r)) }

// NewReadHandle is part of the Readable interface.
func (r BytesReadable) NewReadHandle() ReadHandle { return r }

// SetupForCompaction is part of the ReadHandle interface.
func (r BytesReadable) SetupForCompaction() {}

// RecordCacheHit is part of the ReadHandle interface.
func (r BytesReadable) RecordCacheHit(ctx context.Context, offset, size int64) {}
