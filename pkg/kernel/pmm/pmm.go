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

// Package pmm implements the physical memory manager.
//
// An Arena owns a contiguous range of physical pages and hands out page
// descriptors under reference counts. Allocation pops the head of a LIFO
// free list; release is a reference drop, and only the last drop returns
// the page to the free list. The arena never scans and never coalesces.
package pmm

import (
	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/hostarch"
	"soliloquy.dev/nucleus/pkg/log"
	"soliloquy.dev/nucleus/pkg/memutil"
	"soliloquy.dev/nucleus/pkg/sync"
)

// Arena manages a contiguous physical page range.
type Arena struct {
	// base and size are immutable after NewArena.
	base hostarch.Paddr
	size uint64

	// mu protects all fields below.
	mu sync.Mutex

	// pages is the dense descriptor array; index i describes the page at
	// base + i*PageSize.
	pages []Page

	// freeList links descriptors in state PageStateFree, most recently
	// freed first.
	freeList *Page

	// freeCount is the exact length of freeList.
	freeCount uint64

	// backing is the anonymous host mapping providing page contents, or
	// nil for a descriptor-only arena.
	backing []byte
}

// NewArena creates an arena managing size bytes of physical memory starting
// at base. The descriptors start out free; no backing memory is mapped.
func NewArena(base hostarch.Paddr, size uint64) (*Arena, error) {
	return newArena(base, size, nil)
}

// NewHostBackedArena creates an arena whose page contents are served from an
// anonymous host mapping, so PageData returns a real byte window for every
// descriptor. The arena base is zero.
func NewHostBackedArena(size uint64) (*Arena, error) {
	if !hostarch.IsPageMultiple(size) {
		return nil, kernelerr.InvalidArgs
	}
	backing, err := memutil.MapAnon(int(size))
	if err != nil {
		log.Warningf("pmm: mapping %d bytes of arena backing: %v", size, err)
		return nil, kernelerr.NoMemory
	}
	return newArena(0, size, backing)
}

func newArena(base hostarch.Paddr, size uint64, backing []byte) (*Arena, error) {
	if !base.PageAligned() || !hostarch.IsPageMultiple(size) {
		return nil, kernelerr.InvalidArgs
	}

	a := &Arena{
		base:    base,
		size:    size,
		pages:   make([]Page, size>>hostarch.PageShift),
		backing: backing,
	}
	for i := range a.pages {
		p := &a.pages[i]
		p.paddr = base + hostarch.Paddr(uint64(i)<<hostarch.PageShift)
		p.state = PageStateFree
		p.next = a.freeList
		a.freeList = p
		a.freeCount++
	}

	log.Debugf("pmm: arena [%#x, %#x) with %d pages", uint64(base), uint64(base)+size, a.freeCount)
	return a, nil
}

// Destroy releases the arena's host backing, if any. Descriptors handed out
// earlier must not be used afterwards.
func (a *Arena) Destroy() {
	a.mu.Lock()
	backing := a.backing
	a.backing = nil
	a.mu.Unlock()
	if backing != nil {
		if err := memutil.Unmap(backing); err != nil {
			log.Warningf("pmm: unmapping arena backing: %v", err)
		}
	}
}

// Base returns the physical base address of the arena.
func (a *Arena) Base() hostarch.Paddr {
	return a.base
}

// Size returns the arena size in bytes.
func (a *Arena) Size() uint64 {
	return a.size
}

// TotalPages returns the number of pages managed by the arena.
func (a *Arena) TotalPages() uint64 {
	return a.size >> hostarch.PageShift
}

// AllocPage allocates a single page. The returned descriptor is in state
// PageStateAllocated with a reference count of one.
func (a *Arena) AllocPage() (*Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.freeList
	if p == nil {
		return nil, kernelerr.NoMemory
	}
	a.freeList = p.next
	a.freeCount--

	p.state = PageStateAllocated
	p.refCount = 1
	p.next = nil
	return p, nil
}

// FreePage drops a reference on p. The page stays allocated while other
// references remain; the last drop returns it to the free list.
//
// Passing a descriptor not drawn from this arena is undefined behavior.
func (a *Arena) FreePage(p *Page) error {
	if p == nil {
		return kernelerr.InvalidArgs
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if p.state == PageStateFree || p.refCount == 0 {
		return kernelerr.InvalidArgs
	}

	p.refCount--
	if p.refCount > 0 {
		return nil
	}

	p.state = PageStateFree
	p.next = a.freeList
	a.freeList = p
	a.freeCount++
	return nil
}

// IncRef adds a reference to an allocated page on behalf of an aliasing
// owner. Each reference must be released with FreePage.
func (a *Arena) IncRef(p *Page) error {
	if p == nil {
		return kernelerr.InvalidArgs
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if p.state == PageStateFree || p.refCount == 0 {
		return kernelerr.InvalidArgs
	}
	p.refCount++
	return nil
}

// FreeCount returns the number of free pages in the arena.
func (a *Arena) FreeCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeCount
}

// PageForPaddr returns the descriptor for the page containing paddr, or nil
// if the address falls outside the arena.
func (a *Arena) PageForPaddr(paddr hostarch.Paddr) *Page {
	if paddr < a.base {
		return nil
	}
	index := uint64(paddr-a.base) >> hostarch.PageShift
	if index >= uint64(len(a.pages)) {
		return nil
	}
	return &a.pages[index]
}

// PageData returns the byte window backing p, or nil for a descriptor-only
// arena.
func (a *Arena) PageData(p *Page) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.backing == nil || p == nil {
		return nil
	}
	off := uint64(p.paddr - a.base)
	return a.backing[off : off+hostarch.PageSize : off+hostarch.PageSize]
}
