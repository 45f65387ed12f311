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

// Package vm implements virtual memory objects and page fault resolution.
//
// A VMO is a sized, page-indexed container of optionally-committed physical
// pages. Pages are committed lazily, normally by the fault handler; the VMO
// alone owns commitment bookkeeping.
package vm

import (
	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/hostarch"
	"soliloquy.dev/nucleus/pkg/kernel/kobject"
	"soliloquy.dev/nucleus/pkg/kernel/pmm"
	"soliloquy.dev/nucleus/pkg/log"
	"soliloquy.dev/nucleus/pkg/sync"
)

// VMO is a virtual memory object backed by an arena.
//
// Lock order: a VMO's mutex may be held while acquiring the arena's mutex,
// never the reverse.
type VMO struct {
	// arena is the arena every committed page is drawn from. Immutable.
	arena *pmm.Arena

	// mu protects the fields below.
	mu sync.Mutex

	// size is the VMO size in bytes. Zero after Destroy.
	size uint64

	// pages holds one slot per page; nil slots are uncommitted.
	pages []*pmm.Page
}

// NewVMO creates a VMO of size bytes bound to arena. The slot array is
// reserved eagerly; no pages are committed.
func NewVMO(arena *pmm.Arena, size uint64) (*VMO, error) {
	if arena == nil || size == 0 {
		return nil, kernelerr.InvalidArgs
	}
	return &VMO{
		arena: arena,
		size:  size,
		pages: make([]*pmm.Page, hostarch.PagesFor(size)),
	}, nil
}

// Kind implements kobject.Object.Kind.
func (v *VMO) Kind() kobject.Kind {
	return kobject.KindVMO
}

// Size returns the VMO size in bytes.
func (v *VMO) Size() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

// PageCount returns the number of page slots.
func (v *VMO) PageCount() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return uint64(len(v.pages))
}

// CommittedPages returns the number of committed slots.
func (v *VMO) CommittedPages() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	var n uint64
	for _, p := range v.pages {
		if p != nil {
			n++
		}
	}
	return n
}

// Page returns the committed page at index, or nil if the slot is empty or
// out of range.
func (v *VMO) Page(index uint64) *pmm.Page {
	v.mu.Lock()
	defer v.mu.Unlock()

	if index >= uint64(len(v.pages)) {
		return nil
	}
	return v.pages[index]
}

// CommitPage binds a physical page to the slot at index. Committing an
// already-committed slot succeeds without touching the arena.
func (v *VMO) CommitPage(index uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if index >= uint64(len(v.pages)) {
		return kernelerr.InvalidArgs
	}
	if v.pages[index] != nil {
		return nil
	}

	p, err := v.arena.AllocPage()
	if err != nil {
		return err
	}
	v.pages[index] = p
	return nil
}

// Destroy returns every committed page to the arena and releases the slot
// array. Destroying an already-destroyed VMO is a no-op.
func (v *VMO) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, p := range v.pages {
		if p == nil {
			continue
		}
		if err := v.arena.FreePage(p); err != nil {
			// A committed page the arena refuses means the page array
			// was corrupted; never ignore it.
			log.Warningf("vm: freeing committed page %d: %v", i, err)
			panic("vm: committed page not allocated in arena")
		}
		v.pages[i] = nil
	}
	v.pages = nil
	v.size = 0
}
