// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/redact"
	"github.com/pebblekv/sstdict/internal/base"
)

// ReadTier controls whether a block read may perform I/O.
type ReadTier uint8

const (
	// ReadAll reads the block from the cache if resident and from the file
	// otherwise.
	ReadAll ReadTier = iota
	// CacheOnly only consults the block cache. A block that is not resident
	// results in base.ErrCacheMissNoIO; no file I/O is performed.
	CacheOnly
)

// String implements fmt.Stringer.
func (t ReadTier) String() string {
	switch t {
	case ReadAll:
		return "read-all"
	case CacheOnly:
		return "cache-only"
	default:
		return fmt.Sprintf("ReadTier(%d)", t)
	}
}

// ReadOptions are the per-read options of a block read.
type ReadOptions struct {
	Tier ReadTier
	// SkipCacheLookup is set by a caller that has just missed the block cache
	// with a CacheOnly read of the same block. The block is read from the file
	// and added to the cache without looking it up again, so the miss is only
	// counted once.
	SkipCacheLookup bool
}

// ReadStats accumulates statistics about block reads. It is safe for
// concurrent use; a single ReadStats is typically shared by all the reads
// performed on behalf of a higher-level operation.
type ReadStats struct {
	// BlockBytes is the number of bytes of blocks accessed, whether from the
	// cache or from the file.
	BlockBytes atomic.Uint64
	// BlockBytesInCache is the subset of BlockBytes served from the cache.
	BlockBytesInCache atomic.Uint64
	// BlockReadDuration is the total duration of file reads, in nanoseconds.
	BlockReadDuration atomic.Int64
	// BlocksRead is the number of blocks read from the file.
	BlocksRead atomic.Uint64
}

// SafeFormat implements redact.SafeFormatter.
func (s *ReadStats) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("(block-bytes: %d, in-cache: %d, blocks-read: %d, read-duration: %s)",
		redact.Safe(s.BlockBytes.Load()), redact.Safe(s.BlockBytesInCache.Load()),
		redact.Safe(s.BlocksRead.Load()), redact.Safe(time.Duration(s.BlockReadDuration.Load())))
}

// String implements fmt.Stringer.
func (s *ReadStats) String() string {
	return redact.StringWithoutMarkers(s)
}

// NoReadEnv is the empty ReadEnv which reports no stats.
var NoReadEnv = ReadEnv{}

// ReadEnv contains arguments used when reading a block which apply to all
// the block reads performed by a higher-level operation.
type ReadEnv struct {
	// Stats, if non-nil, accumulates statistics about the reads.
	Stats *ReadStats

	// ReportCorruptionFn is called with ReportCorruptionArg and the error
	// whenever a corruption is detected. The argument is used to avoid
	// allocating a separate function for each object. It returns an error
	// with more details.
	ReportCorruptionFn  func(opaque any, err error) error
	ReportCorruptionArg any
}

// BlockServedFromCache updates the stats when a block was found in the
// cache.
func (env *ReadEnv) BlockServedFromCache(blockLength uint64) {
	if env.Stats != nil {
		env.Stats.BlockBytes.Add(blockLength)
		env.Stats.BlockBytesInCache.Add(blockLength)
	}
}

// BlockRead updates the stats when a block had to be read.
func (env *ReadEnv) BlockRead(blockLength uint64, readDuration time.Duration) {
	if env.Stats != nil {
		env.Stats.BlockBytes.Add(blockLength)
		env.Stats.BlocksRead.Add(1)
		env.Stats.BlockReadDuration.Add(int64(readDuration))
	}
}

// maybeReportCorruption calls the ReportCorruptionFn if the given error
// indicates corruption.
func (env *ReadEnv) maybeReportCorruption(err error) error {
	if env.ReportCorruptionFn != nil && base.IsCorruptionError(err) {
		return env.ReportCorruptionFn(env.ReportCorruptionArg, err)
	}
	return err
}

// LookupContext records what happened during a single block lookup. It is
// optional; callers that want to trace block cache behavior pass one in.
type LookupContext struct {
	// Caller is a free-form label identifying the lookup.
	Caller string
	// CacheHit is set if the block was found in the block cache.
	CacheHit bool
	// BlockSize is the length of the block that was looked up.
	BlockSize uint64
	// NumLookups counts the lookups recorded in this context.
	NumLookups int
}

func (lc *LookupContext) record(bh Handle, cacheHit bool) {
	if lc == nil {
		return
	}
	lc.CacheHit = cacheHit
	lc.BlockSize = bh.Length
	lc.NumLookups++
}
