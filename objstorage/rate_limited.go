// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package objstorage

import (
	"context"

	"github.com/pebblekv/sstdict/internal/rate"
)

// rateLimitedReadable is a Readable which waits on a limiter for every byte
// it reads from the wrapped Readable.
type rateLimitedReadable struct {
	Readable
	limiter *rate.Limiter
}

// NewRateLimitedReadable wraps r so that reads consume tokens from limiter,
// one token per byte. A read that is waiting for tokens returns early with
// the context's error if the context is done.
func NewRateLimitedReadable(r Readable, limiter *rate.Limiter) Readable {
	return &rateLimitedReadable{Readable: r, limiter: limiter}
}

// ReadAt is part of the Readable interface.
func (r *rateLimitedReadable) ReadAt(ctx context.Context, p []byte, off int64) error {
	if err := r.limiter.Wait(ctx, float64(len(p))); err != nil {
		return err
	}
	return r.Readable.ReadAt(ctx, p, off)
}

// NewReadHandle is part of the Readable interface. Reads through the handle
// are rate limited as well.
func (r *rateLimitedReadable) NewReadHandle() ReadHandle {
	return NewPrefetchBuffer(r)
}
