// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package objstorage

const (
	// Constants for dynamic readahead of data blocks. Note that the size values
	// make sense as some multiple of the default block size; and they should
	// both be larger than the default block size.
	minFileReadsForReadahead = 2
	initialReadaheadSize     = 64 << 10  /* 64KB */
	maxReadaheadSize         = 256 << 10 /* 256KB */
)

// readaheadState contains state variables related to readahead. Updated on
// file reads.
type readaheadState struct {
	// Number of sequential reads.
	numReads int64
	// Size issued to the next call to Prefetch. Starts at or above
	// initialReadaheadSize and grows exponentially until maxReadaheadSize.
	size int64
	// prevSize is the size used in the last Prefetch call.
	prevSize int64
	// The byte offset up to which the buffer has been filled. When reading
	// ahead, reads up to this limit should not incur an IO operation. Reads
	// after this limit can benefit from a new readahead.
	limit int64
}

func makeReadaheadState() readaheadState {
	return readaheadState{size: initialReadaheadSize}
}

func (rs *readaheadState) reset(offset, blockLength int64) {
	rs.numReads = 1
	rs.limit = offset + blockLength
	rs.size = initialReadaheadSize
	rs.prevSize = 0
}

func (rs *readaheadState) recordCacheHit(offset, blockLength int64) {
	currentReadEnd := offset + blockLength
	if rs.numReads >= minFileReadsForReadahead {
		if currentReadEnd >= rs.limit && offset <= rs.limit+maxReadaheadSize {
			// This is a read that would have resulted in a readahead, had it
			// not been a cache hit.
			rs.limit = currentReadEnd
			return
		}
		if currentReadEnd < rs.limit-rs.prevSize || offset > rs.limit+maxReadaheadSize {
			// We read too far away from rs.limit to benefit from readahead in
			// any scenario.
			rs.reset(offset, blockLength)
			return
		}
		// Reads in the range [rs.limit - rs.prevSize, rs.limit] end up here.
		// This is a read that is potentially benefitting from a past readahead.
		return
	}
	if currentReadEnd >= rs.limit && offset <= rs.limit+maxReadaheadSize {
		// Blocks are being read sequentially and would benefit from readahead
		// down the line.
		rs.numReads++
		return
	}
	// We read too far ahead of the last read, or before it. This indicates a
	// random read, where readahead is not desirable.
	rs.reset(offset, blockLength)
}

// maybeReadahead updates state and determines whether to issue a readahead
// for a block read at offset for blockLength bytes. Returns a size value
// (greater than 0) that should be read ahead if readahead would be beneficial.
func (rs *readaheadState) maybeReadahead(offset, blockLength int64) int64 {
	currentReadEnd := offset + blockLength
	if rs.numReads >= minFileReadsForReadahead {
		// The read overlaps [rs.limit, rs.limit + maxReadaheadSize]: the
		// sequential pattern continues.
		if currentReadEnd >= rs.limit && offset <= rs.limit+maxReadaheadSize {
			rs.numReads++
			rs.limit = offset + rs.size
			rs.prevSize = rs.size
			// Increase rs.size for the next read.
			rs.size *= 2
			if rs.size > maxReadaheadSize {
				rs.size = maxReadaheadSize
			}
			return rs.prevSize
		}
		if currentReadEnd < rs.limit-rs.prevSize || offset > rs.limit+maxReadaheadSize {
			// We read too far away from rs.limit to benefit from readahead in
			// any scenario.
			rs.reset(offset, blockLength)
			return 0
		}
		// Reads in the range [rs.limit - rs.prevSize, rs.limit] end up here.
		// This is a read that is potentially benefitting from a past readahead,
		// but there's no reason to issue a readahead at the moment.
		rs.numReads++
		return 0
	}
	if currentReadEnd >= rs.limit && offset <= rs.limit+maxReadaheadSize {
		// Blocks are being read sequentially and would benefit from readahead
		// down the line.
		rs.numReads++
		return 0
	}
	// We read too far ahead of the last read, or before it. This indicates a
	// random read, where readahead is not desirable.
	rs.reset(offset, blockLength)
	return 0
}
