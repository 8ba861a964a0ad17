// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"time"

	"github.com/cockroachdb/crlib/crtime"
)

// SlowReadTracingThreshold is the duration above which block reads are
// traced.
const SlowReadTracingThreshold = 5 * time.Millisecond

// DeterministicReadDurationForTesting is for tests that want a deterministic
// value of the time to read (that is not in the cache). The return value is a
// function that must be called before the test exits.
func DeterministicReadDurationForTesting() func() {
	drbdForTesting := deterministicReadDurationForTesting
	deterministicReadDurationForTesting = true
	return func() {
		deterministicReadDurationForTesting = drbdForTesting
	}
}

var deterministicReadDurationForTesting = false

// Stopwatch measures the duration of a read.
type Stopwatch struct {
	startTime crtime.Mono
}

// MakeStopwatch starts a new Stopwatch.
func MakeStopwatch() Stopwatch {
	return Stopwatch{startTime: crtime.NowMono()}
}

// Stop returns the elapsed time since the stopwatch was started.
func (w Stopwatch) Stop() time.Duration {
	dur := w.startTime.Elapsed()
	if deterministicReadDurationForTesting {
		dur = SlowReadTracingThreshold
	}
	return dur
}
