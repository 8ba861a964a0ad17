// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

func TestCorruptionError(t *testing.T) {
	err := CorruptionErrorf("block %d: checksum mismatch", errors.Safe(7))
	require.True(t, IsCorruptionError(err))
	require.True(t, IsCorruptionError(errors.Wrap(err, "reading")))
	require.False(t, IsCacheMissNoIO(err))

	plain := errors.New("boom")
	require.False(t, IsCorruptionError(plain))
	marked := MarkCorruptionError(plain)
	require.True(t, IsCorruptionError(marked))
	// Marking twice is a no-op.
	require.Equal(t, marked, MarkCorruptionError(marked))
}

func TestCacheMissNoIO(t *testing.T) {
	err := errors.Wrapf(ErrCacheMissNoIO, "file %s", DiskFileNum(3))
	require.True(t, IsCacheMissNoIO(err))
	require.False(t, IsCorruptionError(err))
}

func TestDiskFileNumFormat(t *testing.T) {
	require.Equal(t, "000042", DiskFileNum(42).String())
	require.Equal(t, "000042", string(redact.Sprint(DiskFileNum(42)).Redact()))
	require.Equal(t, "000042.sst", MakeFilename(42))
}

func TestInMemLogger(t *testing.T) {
	var l InMemLogger
	l.Infof("hello %d", 1)
	l.Errorf("world\n")
	require.Equal(t, "hello 1\nworld\n", l.String())
	l.Reset()
	require.Equal(t, "", l.String())
}
