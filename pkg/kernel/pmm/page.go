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

package pmm

import (
	"fmt"

	"soliloquy.dev/nucleus/pkg/hostarch"
)

// PageState is the lifecycle state of a physical page.
type PageState uint8

// Page states. A page is Free iff its reference count is zero.
const (
	PageStateFree PageState = iota
	PageStateAllocated
	PageStateWired
	PageStateObject
)

// String implements fmt.Stringer.String.
func (s PageState) String() string {
	switch s {
	case PageStateFree:
		return "free"
	case PageStateAllocated:
		return "allocated"
	case PageStateWired:
		return "wired"
	case PageStateObject:
		return "object"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Page describes one physical page in an arena.
//
// All fields are protected by the owning arena's mutex. The next link is
// meaningful only while the page sits on the free list.
type Page struct {
	paddr    hostarch.Paddr
	state    PageState
	refCount uint32
	next     *Page
}

// Paddr returns the physical address of the page.
func (p *Page) Paddr() hostarch.Paddr {
	return p.paddr
}

// State returns the current page state.
func (p *Page) State() PageState {
	return p.state
}

// RefCount returns the current reference count.
func (p *Page) RefCount() uint32 {
	return p.refCount
}
