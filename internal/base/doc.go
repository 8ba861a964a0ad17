// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types used across sstdict: the error
// taxonomy surfaced by block reads, logging and tracing interfaces, and file
// numbers.
//
// # Errors
//
// Three classes of errors flow out of a block read:
//
//   - I/O errors returned by the underlying objstorage.Readable. These are
//     propagated unchanged (possibly wrapped with context).
//   - Corruption errors, marked with [ErrCorruption]. These are produced by
//     checksum validation and decompression.
//   - [ErrCacheMissNoIO], returned when a cache-only read misses.
//
// Misuse of an API (violated preconditions) is reported using
// errors.AssertionFailedf and is distinct from all of the above.
package base
