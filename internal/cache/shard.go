// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/swiss"
	"github.com/pebblekv/sstdict/internal/base"
)

// shard is one partition of the cache. Each shard runs an independent CLOCK
// (second chance) replacement policy: entries that were accessed since the
// hand last passed them survive one more sweep.
type shard struct {
	hits   atomic.Int64
	misses atomic.Int64

	mu struct {
		sync.RWMutex

		maxSize      int64
		reservedSize int64
		size         int64
		blocks       swiss.Map[key, *entry]
		// files maps a file to an arbitrary entry of its fileLink list.
		files swiss.Map[fileKey, *entry]
		// hand is the clock hand. It is nil when the shard is empty.
		hand *entry
	}
}

func (s *shard) init(maxSize int64) {
	s.mu.maxSize = maxSize
	s.mu.blocks.Init(16)
	s.mu.files.Init(16)
}

func (s *shard) get(k key) *Value {
	s.mu.RLock()
	var v *Value
	if e, ok := s.mu.blocks.Get(k); ok {
		v = e.acquireValue()
		e.referenced.Store(true)
	}
	s.mu.RUnlock()
	if v == nil {
		s.misses.Add(1)
	} else {
		s.hits.Add(1)
	}
	return v
}

func (s *shard) set(k key, v *Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.mu.blocks.Get(k); ok {
		s.mu.size -= e.size
		e.setValue(v)
		s.mu.size += e.size
		e.referenced.Store(true)
		s.evictLocked()
		return
	}

	e := newEntry(k)
	e.setValue(v)
	s.mu.blocks.Put(k, e)
	if head, ok := s.mu.files.Get(k.file()); ok {
		head.linkFile(e)
	} else {
		s.mu.files.Put(k.file(), e)
	}
	if s.mu.hand == nil {
		s.mu.hand = e
	} else {
		// Insert just behind the hand so that the new entry is the last one
		// swept.
		s.mu.hand.link(e)
	}
	s.mu.size += e.size
	s.evictLocked()
}

func (s *shard) delete(k key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.mu.blocks.Get(k); ok {
		s.removeLocked(e)
	}
}

func (s *shard) evictFile(id handleID, fileNum base.DiskFileNum) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fk := fileKey{id: id, fileNum: fileNum}
	for {
		e, ok := s.mu.files.Get(fk)
		if !ok {
			return
		}
		s.removeLocked(e)
	}
}

func (s *shard) reserve(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.reservedSize += int64(n)
	s.evictLocked()
}

// removeLocked unlinks the entry from every structure of the shard and drops
// the cache's reference on its value.
func (s *shard) removeLocked(e *entry) {
	s.mu.blocks.Delete(e.key)

	fk := e.key.file()
	if next := e.unlinkFile(); next == e {
		s.mu.files.Delete(fk)
	} else if head, _ := s.mu.files.Get(fk); head == e {
		s.mu.files.Put(fk, next)
	}

	if next := e.unlink(); next == e {
		s.mu.hand = nil
	} else if s.mu.hand == e {
		s.mu.hand = next
	}

	s.mu.size -= e.size
	e.setValue(nil)
}

func (s *shard) evictLocked() {
	for s.mu.hand != nil && s.mu.size+s.mu.reservedSize > s.mu.maxSize {
		e := s.mu.hand
		if e.referenced.Swap(false) {
			s.mu.hand = e.blockLink.next
			continue
		}
		s.removeLocked(e)
	}
}

func (s *shard) size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.size
}

// free releases every value held by the shard.
func (s *shard) free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.mu.hand != nil {
		s.removeLocked(s.mu.hand)
	}
}
