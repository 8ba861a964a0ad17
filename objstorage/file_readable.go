// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package objstorage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/invariants"
)

// fileReadable implements Readable on top of an *os.File.
type fileReadable struct {
	file *os.File
	size int64
}

var _ Readable = (*fileReadable)(nil)

// OpenFile opens the file at path for reading.
func OpenFile(path string) (Readable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewFileReadable(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// NewFileReadable returns a Readable for an open file. The Readable takes
// ownership of the file and closes it when closed.
func NewFileReadable(f *os.File) (Readable, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r := &fileReadable{
		file: f,
		size: info.Size(),
	}
	invariants.SetFinalizer(r, func(obj interface{}) {
		if obj.(*fileReadable).file != nil {
			fmt.Fprintf(os.Stderr, "Readable was not closed")
			os.Exit(1)
		}
	})
	return r, nil
}

// ReadAt is part of the Readable interface.
func (r *fileReadable) ReadAt(_ context.Context, p []byte, off int64) error {
	n, err := r.file.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Close is part of the Readable interface.
func (r *fileReadable) Close() error {
	defer func() { r.file = nil }()
	return r.file.Close()
}

// Size is part of the Readable interface.
func (r *fileReadable) Size() int64 {
	return r.size
}

// NewReadHandle is part of the Readable interface.
func (r *fileReadable) NewReadHandle() ReadHandle {
	return NewPrefetchBuffer(r)
}
