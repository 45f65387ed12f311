// Copyright 2026 The Soliloquy Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ipc implements handle tables and channel IPC.
//
// A HandleTable maps opaque handle IDs to kernel objects with rights.
// Channels are bidirectional paired message queues addressed by endpoint
// handles; writing on one endpoint enqueues on the peer's inbound queue.
//
// Lock order: handle table, then channel pair. The reverse is never taken.
package ipc

import (
	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/kernel/kobject"
	"soliloquy.dev/nucleus/pkg/sync"
)

// Handle names an entry in a handle table. Zero is never a valid handle.
type Handle uint32

// InvalidHandle is the sentinel "no handle" value.
const InvalidHandle Handle = 0

// defaultBuckets is used when NewHandleTable is given zero buckets.
const defaultBuckets = 64

// entry is a handle-table entry. refCount tracks the number of live IDs
// naming the entry; duplication installs a new entry aliasing the same
// object, possibly with narrower rights.
type entry struct {
	id       Handle
	obj      kobject.Object
	rights   Rights
	refCount uint32

	// next chains entries within a hash bucket.
	next *entry
}

// HandleTable maps handle IDs to kernel objects with rights.
//
// IDs are assigned from a monotone counter and are never reused within the
// table's lifetime, so a stale ID can never alias a newer entry.
type HandleTable struct {
	mu      sync.Mutex
	buckets []*entry
	count   uint32
	lastID  uint32
}

// NewHandleTable creates a handle table with the given bucket count. Zero
// buckets selects the default.
func NewHandleTable(buckets uint32) *HandleTable {
	if buckets == 0 {
		buckets = defaultBuckets
	}
	return &HandleTable{
		buckets: make([]*entry, buckets),
	}
}

// Size returns the number of live entries.
func (t *HandleTable) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.count)
}

// Alloc installs obj with the given rights and returns a fresh handle ID.
func (t *HandleTable) Alloc(obj kobject.Object, rights Rights) (Handle, error) {
	if obj == nil {
		return InvalidHandle, kernelerr.InvalidArgs
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocLocked(obj, rights), nil
}

// Get returns the object named by id if the entry carries all required
// rights.
func (t *HandleTable) Get(id Handle, required Rights) (kobject.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.lookupLocked(id)
	if e == nil {
		return nil, kernelerr.BadHandle
	}
	if !e.rights.Has(required) {
		return nil, kernelerr.InvalidArgs
	}
	return e.obj, nil
}

// Rights returns the rights mask of the entry named by id.
func (t *HandleTable) Rights(id Handle) (Rights, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.lookupLocked(id)
	if e == nil {
		return RightNone, kernelerr.BadHandle
	}
	return e.rights, nil
}

// Duplicate installs a new handle aliasing the object named by id. The
// source entry must carry RightDuplicate; the new entry's rights are the
// intersection of requested and the source's rights, so duplication never
// gains rights.
func (t *HandleTable) Duplicate(id Handle, requested Rights) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.lookupLocked(id)
	if e == nil {
		return InvalidHandle, kernelerr.BadHandle
	}
	if !e.rights.Has(RightDuplicate) {
		return InvalidHandle, kernelerr.InvalidArgs
	}
	return t.allocLocked(e.obj, requested&e.rights), nil
}

// Close drops a reference on the entry named by id, removing it when the
// last ID is closed. Closing an unknown or invalid ID fails without side
// effects.
//
// Close does not destroy the entry's object; object teardown belongs to the
// object's own lifecycle (channel endpoints are closed via Close on the
// channel, not here).
func (t *HandleTable) Close(id Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.lookupLocked(id)
	if e == nil {
		return kernelerr.BadHandle
	}
	t.closeEntryLocked(e)
	return nil
}

// Destroy removes every entry. Objects are not destroyed.
func (t *HandleTable) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.buckets {
		t.buckets[i] = nil
	}
	t.count = 0
}

// allocLocked installs obj and returns its fresh ID.
//
// Preconditions: t.mu must be locked.
func (t *HandleTable) allocLocked(obj kobject.Object, rights Rights) Handle {
	t.lastID++
	if t.lastID == uint32(InvalidHandle) {
		// Counter wrap; 2^32-1 IDs have been issued in this table's
		// lifetime.
		panic("ipc: handle ID space exhausted")
	}
	id := Handle(t.lastID)

	e := &entry{
		id:       id,
		obj:      obj,
		rights:   rights,
		refCount: 1,
	}
	b := uint32(id) % uint32(len(t.buckets))
	e.next = t.buckets[b]
	t.buckets[b] = e
	t.count++
	return id
}

// lookupLocked returns the entry for id, or nil.
//
// Preconditions: t.mu must be locked.
func (t *HandleTable) lookupLocked(id Handle) *entry {
	if id == InvalidHandle {
		return nil
	}
	b := uint32(id) % uint32(len(t.buckets))
	for e := t.buckets[b]; e != nil; e = e.next {
		if e.id == id {
			return e
		}
	}
	return nil
}

// closeEntryLocked drops a reference on e and unlinks it at zero.
//
// Preconditions: t.mu must be locked; e must be live in t.
func (t *HandleTable) closeEntryLocked(e *entry) {
	e.refCount--
	if e.refCount > 0 {
		return
	}

	b := uint32(e.id) % uint32(len(t.buckets))
	for pp := &t.buckets[b]; *pp != nil; pp = &(*pp).next {
		if *pp == e {
			*pp = e.next
			e.next = nil
			t.count--
			return
		}
	}
	panic("ipc: closing entry not present in its bucket")
}
