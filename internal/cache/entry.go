// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/pebblekv/sstdict/internal/base"
)

// key is associated with a specific block in an sstable.
type key struct {
	// id is the namespace of the Handle that inserted the block.
	id      handleID
	fileNum base.DiskFileNum
	offset  uint64
}

func makeKey(id handleID, fileNum base.DiskFileNum, offset uint64) key {
	return key{id: id, fileNum: fileNum, offset: offset}
}

// fileKey identifies all the blocks of a file within a Handle namespace.
type fileKey struct {
	id      handleID
	fileNum base.DiskFileNum
}

func (k key) file() fileKey {
	return fileKey{id: k.id, fileNum: k.fileNum}
}

func (k key) shardIdx(numShards int) int {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(k.id))
	binary.LittleEndian.PutUint64(buf[8:], uint64(k.fileNum))
	binary.LittleEndian.PutUint64(buf[16:], k.offset)
	return int(xxhash.Sum64(buf[:]) % uint64(numShards))
}

// entry holds the metadata for a cache entry. Entries of a shard form a
// circular list swept by the clock hand; entries of the same file form a
// second circular list used by EvictFile.
type entry struct {
	key key
	// The value associated with the entry. The entry holds a reference on the
	// value which is maintained by entry.setValue().
	val       *Value
	blockLink struct {
		next *entry
		prev *entry
	}
	fileLink struct {
		next *entry
		prev *entry
	}
	size int64
	// referenced is atomically set to indicate that this entry has been
	// accessed since the last time the clock hand swept it.
	referenced atomic.Bool
}

func newEntry(k key) *entry {
	e := &entry{key: k}
	e.blockLink.next = e
	e.blockLink.prev = e
	e.fileLink.next = e
	e.fileLink.prev = e
	return e
}

func (e *entry) link(s *entry) {
	s.blockLink.prev = e.blockLink.prev
	s.blockLink.prev.blockLink.next = s
	s.blockLink.next = e
	s.blockLink.next.blockLink.prev = s
}

func (e *entry) unlink() *entry {
	next := e.blockLink.next
	e.blockLink.prev.blockLink.next = e.blockLink.next
	e.blockLink.next.blockLink.prev = e.blockLink.prev
	e.blockLink.prev = e
	e.blockLink.next = e
	return next
}

func (e *entry) linkFile(s *entry) {
	s.fileLink.prev = e.fileLink.prev
	s.fileLink.prev.fileLink.next = s
	s.fileLink.next = e
	s.fileLink.next.fileLink.prev = s
}

func (e *entry) unlinkFile() *entry {
	next := e.fileLink.next
	e.fileLink.prev.fileLink.next = e.fileLink.next
	e.fileLink.next.fileLink.prev = e.fileLink.prev
	e.fileLink.prev = e
	e.fileLink.next = e
	return next
}

func (e *entry) setValue(v *Value) {
	if v != nil {
		v.Ref()
		e.size = v.Size()
	} else {
		e.size = 0
	}
	old := e.val
	e.val = v
	old.Release()
}

func (e *entry) acquireValue() *Value {
	v := e.val
	if v != nil {
		v.Ref()
	}
	return v
}
