// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// DiskFileNum identifies a file or object on disk. Block cache entries are
// keyed by DiskFileNum, so a number must never be reused for a different
// table while the cache is alive.
type DiskFileNum uint64

func (dfn DiskFileNum) String() string { return fmt.Sprintf("%06d", dfn) }

// SafeFormat implements redact.SafeFormatter.
func (dfn DiskFileNum) SafeFormat(w redact.SafePrinter, verb rune) {
	w.Printf("%06d", redact.SafeUint(dfn))
}

// MakeFilename builds a table filename from a file number.
func MakeFilename(dfn DiskFileNum) string {
	return fmt.Sprintf("%s.sst", dfn)
}
