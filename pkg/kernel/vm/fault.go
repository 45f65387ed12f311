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

package vm

import (
	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/hostarch"
	"soliloquy.dev/nucleus/pkg/kernel/pmm"
	"soliloquy.dev/nucleus/pkg/log"
)

// FaultFlags describe the access that caused a page fault.
type FaultFlags uint32

// Fault flag bits.
const (
	FaultRead FaultFlags = 1 << iota
	FaultWrite
	FaultExec
	FaultUser
)

// FaultHandler resolves page faults against a single VMO.
//
// The handler is stateless: it converts a virtual memory event into a VMO
// commit, so that the VMO alone owns commitment bookkeeping. Access policy
// lives here, not in the VMO. The bound VMO and arena must outlive the
// handler.
type FaultHandler struct {
	vmo   *VMO
	arena *pmm.Arena
}

// NewFaultHandler binds a handler to vmo and arena.
func NewFaultHandler(vmo *VMO, arena *pmm.Arena) (*FaultHandler, error) {
	if vmo == nil || arena == nil {
		return nil, kernelerr.InvalidArgs
	}
	return &FaultHandler{vmo: vmo, arena: arena}, nil
}

// Handle resolves a fault at faultAddr. Faults on committed pages succeed
// with no arena activity; faults beyond the VMO never commit anything.
//
// Kernel-originated writes must not lazily fault user VMOs, so Write
// without User is rejected.
func (h *FaultHandler) Handle(faultAddr hostarch.Vaddr, flags FaultFlags) error {
	if flags&FaultWrite != 0 && flags&FaultUser == 0 {
		return kernelerr.InvalidArgs
	}

	index := faultAddr.PageIndex()
	if index >= h.vmo.PageCount() {
		return kernelerr.NotFound
	}

	if log.IsLogging(log.Debug) {
		log.Debugf("vm: fault at %#x (page %d, flags %#x)", uint64(faultAddr), index, uint32(flags))
	}
	return h.vmo.CommitPage(index)
}
