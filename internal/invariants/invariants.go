// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants contains assertions that are only enabled in builds
// tagged with "invariants" (or "race").
package invariants

import (
	"math/rand/v2"
	"runtime"
)

// Sometimes returns true percent% of the time if we were built with the
// "invariants" of "race" build tags
func Sometimes(percent int) bool {
	return Enabled && rand.Uint32N(100) < uint32(percent)
}

// SetFinalizer is a wrapper around runtime.SetFinalizer that is a no-op
// unless invariants are enabled. Finalizers are used for leak detection of
// manually released objects (block cache values, buffer handles, readables).
func SetFinalizer(obj, finalizer interface{}) {
	if Enabled {
		runtime.SetFinalizer(obj, finalizer)
	}
}

// Mangle overwrites the contents of b with garbage when invariants are
// enabled. It is used on buffers that have been released so that any
// lingering reference observes garbage instead of plausible data.
func Mangle(b []byte) {
	if !Enabled {
		return
	}
	for i := range b {
		b[i] = 0xCC
	}
}
