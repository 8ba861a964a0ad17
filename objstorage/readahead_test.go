// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package objstorage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// parseRange parses an "offset, size" command input.
func parseRange(t *testing.T, d *datadriven.TestData) (offset, size int64) {
	args := strings.Split(d.Input, ",")
	require.Len(t, args, 2, "%s: expected offset, size", d.Pos)
	offset, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	require.NoError(t, err)
	size, err = strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
	require.NoError(t, err)
	return offset, size
}

func TestMaybeReadahead(t *testing.T) {
	rs := makeReadaheadState()
	datadriven.RunTest(t, "testdata/readahead", func(t *testing.T, d *datadriven.TestData) string {
		var raSize int64
		switch d.Cmd {
		case "reset":
			rs = makeReadaheadState()
			return ""
		case "cache-read":
			rs.recordCacheHit(parseRange(t, d))
		case "read":
			raSize = rs.maybeReadahead(parseRange(t, d))
		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}
		return fmt.Sprintf("readahead:  %d\nnumReads:   %d\nsize:       %d\nprevSize:   %d\nlimit:      %d",
			raSize, rs.numReads, rs.size, rs.prevSize, rs.limit)
	})
}

// TestPrefetchBufferReadahead drives a PrefetchBuffer and shows how block
// cache hits and compaction reads shape its window.
func TestPrefetchBufferReadahead(t *testing.T) {
	ctx := context.Background()
	var obj *MemObj
	var pb *PrefetchBuffer
	defer func() {
		if pb != nil {
			require.NoError(t, pb.Close())
		}
	}()

	datadriven.RunTest(t, "testdata/prefetch_buffer", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "init":
			var size int
			d.ScanArgs(t, "size", &size)
			if pb != nil {
				require.NoError(t, pb.Close())
			}
			obj = NewMemObj(testData(size))
			pb = NewPrefetchBuffer(obj)
			return "ok"

		case "setup-for-compaction":
			pb.SetupForCompaction()
			return "ok"

		case "read":
			off, n := parseRange(t, d)
			p := make([]byte, n)
			require.NoError(t, pb.ReadAt(ctx, p, off))
			require.Equal(t, obj.Data()[off:off+n], p)

		case "cache-hit":
			off, n := parseRange(t, d)
			pb.RecordCacheHit(ctx, off, n)

		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}

		var buf strings.Builder
		fmt.Fprintf(&buf, "readahead: numReads=%d size=%d prevSize=%d limit=%d\n",
			pb.rs.numReads, pb.rs.size, pb.rs.prevSize, pb.rs.limit)
		fmt.Fprintf(&buf, "buffer: [%d, %d)\n", pb.bufOffset, pb.bufOffset+int64(len(pb.buf)))
		s := pb.Stats()
		fmt.Fprintf(&buf, "stats: hits=%d misses=%d fills=%d bytes-read=%d\n",
			s.Hits, s.Misses, s.Fills, s.BytesRead)
		fmt.Fprintf(&buf, "obj-reads: %d\n", obj.Reads())
		return buf.String()
	})
}
