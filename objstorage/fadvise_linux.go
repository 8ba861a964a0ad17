// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build linux

package objstorage

import "golang.org/x/sys/unix"

// adviseSequential tells the kernel that the file is going to be read
// sequentially, enabling more aggressive OS-level readahead.
func (r *fileReadable) adviseSequential() {
	_ = unix.Fadvise(int(r.file.Fd()), 0 /* offset */, 0 /* length */, unix.FADV_SEQUENTIAL)
}
