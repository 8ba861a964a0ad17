// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrCorruption is a marker to indicate that data in a file (sstable block,
// footer) isn't in the expected format.
var ErrCorruption = errors.New("sstdict: corruption")

// ErrCacheMissNoIO is returned when a block is requested with a cache-only
// read tier and the block is not resident in the block cache. No file I/O is
// performed on this path. Callers may retry with I/O permitted.
var ErrCacheMissNoIO = errors.New("sstdict: block not found in cache and I/O is not permitted")

// MarkCorruptionError marks given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return errors.Is(err, ErrCorruption)
}

// CorruptionErrorf formats according to a format specifier and returns
// the string as an error value that is marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// IsCacheMissNoIO returns true if the error indicates that a cache-only read
// did not find the block in the cache.
func IsCacheMissNoIO(err error) bool {
	return errors.Is(err, ErrCacheMissNoIO)
}
