// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package objstorage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// MemObj is an in-memory Readable which counts the reads issued against it
// and can be made to fail them. It is used by tests that need to observe or
// disturb the I/O performed by table readers.
type MemObj struct {
	data  []byte
	reads atomic.Int64
	bytes atomic.Int64
	mu    struct {
		sync.Mutex
		err error
	}
}

var _ Readable = (*MemObj)(nil)

// NewMemObj returns a MemObj holding a copy of data.
func NewMemObj(data []byte) *MemObj {
	return &MemObj{data: append([]byte(nil), data...)}
}

// Data returns the object's contents.
func (f *MemObj) Data() []byte {
	return f.data
}

// InjectError causes all subsequent reads to fail with err. A nil err clears
// a previously injected error.
func (f *MemObj) InjectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mu.err = err
}

// Reads returns the number of ReadAt calls served so far, including failed
// ones.
func (f *MemObj) Reads() int64 {
	return f.reads.Load()
}

// BytesRead returns the number of bytes successfully read so far.
func (f *MemObj) BytesRead() int64 {
	return f.bytes.Load()
}

// ReadAt is part of the Readable interface.
func (f *MemObj) ReadAt(ctx context.Context, p []byte, off int64) error {
	f.reads.Add(1)
	f.mu.Lock()
	err := f.mu.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if f.Size() < off+int64(len(p)) {
		return errors.Errorf("read past the end of object")
	}
	copy(p, f.data[off:off+int64(len(p))])
	f.bytes.Add(int64(len(p)))
	return nil
}

// Close is part of the Readable interface.
func (f *MemObj) Close() error { return nil }

// Size is part of the Readable interface.
func (f *MemObj) Size() int64 {
	return int64(len(f.data))
}

// NewReadHandle is part of the Readable interface.
func (f *MemObj) NewReadHandle() ReadHandle {
	return NewPrefetchBuffer(f)
}
