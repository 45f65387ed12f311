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

// Package kernel provides the Kernel aggregate tying the nucleus together.
//
// The handle table is an explicit, injectable dependency of every IPC
// operation; Kernel is the thin convenience layer that owns one table for
// the lifetime of the process and forwards to the object packages.
package kernel

import (
	"context"

	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/kernel/ipc"
	"soliloquy.dev/nucleus/pkg/kernel/pmm"
	"soliloquy.dev/nucleus/pkg/kernel/vm"
	"soliloquy.dev/nucleus/pkg/log"
)

// Kernel owns the process-wide kernel object state: a single handle table,
// created at process start and destroyed at process end.
type Kernel struct {
	handles *ipc.HandleTable
}

// New creates a Kernel with a handle table of the given bucket count (zero
// selects the default).
func New(buckets uint32) *Kernel {
	k := &Kernel{
		handles: ipc.NewHandleTable(buckets),
	}
	log.Infof("kernel: object nucleus ready")
	return k
}

// Destroy tears down the handle table. Objects still referenced by live
// handles are not destroyed.
func (k *Kernel) Destroy() {
	k.handles.Destroy()
}

// Handles returns the kernel's handle table for callers that drive the
// object packages directly.
func (k *Kernel) Handles() *ipc.HandleTable {
	return k.handles
}

// ChannelCreate creates a channel and returns its two endpoint handles.
func (k *Kernel) ChannelCreate() (ipc.Handle, ipc.Handle, error) {
	return ipc.Create(k.handles)
}

// ChannelWrite writes data and handles to the peer of h.
func (k *Kernel) ChannelWrite(h ipc.Handle, data []byte, handles []ipc.Handle) error {
	return ipc.Write(k.handles, h, data, handles)
}

// ChannelRead reads the oldest packet queued on h.
func (k *Kernel) ChannelRead(h ipc.Handle, dataBuf []byte, handleBuf []ipc.Handle) (int, int, error) {
	return ipc.Read(k.handles, h, dataBuf, handleBuf)
}

// ChannelReadBlocking reads the oldest packet queued on h, waiting for one
// to arrive if the queue is empty.
func (k *Kernel) ChannelReadBlocking(ctx context.Context, h ipc.Handle, dataBuf []byte, handleBuf []ipc.Handle) (int, int, error) {
	return ipc.ReadBlocking(ctx, k.handles, h, dataBuf, handleBuf)
}

// ChannelClose closes the endpoint named by h.
func (k *Kernel) ChannelClose(h ipc.Handle) error {
	return ipc.Close(k.handles, h)
}

// CreateVMO creates a VMO of size bytes backed by arena and installs it in
// the handle table with rights {Read, Write, Duplicate}.
func (k *Kernel) CreateVMO(arena *pmm.Arena, size uint64) (ipc.Handle, error) {
	v, err := vm.NewVMO(arena, size)
	if err != nil {
		return ipc.InvalidHandle, err
	}
	return k.handles.Alloc(v, ipc.RightRead|ipc.RightWrite|ipc.RightDuplicate)
}

// GetVMO resolves h to a VMO, verifying rights and object kind.
func (k *Kernel) GetVMO(h ipc.Handle, required ipc.Rights) (*vm.VMO, error) {
	obj, err := k.handles.Get(h, required)
	if err != nil {
		return nil, err
	}
	v, ok := obj.(*vm.VMO)
	if !ok {
		return nil, kernelerr.WrongType
	}
	return v, nil
}

// Close closes an arbitrary handle. Channel endpoints should be closed with
// ChannelClose so their peer is orphaned and pending messages reclaimed.
func (k *Kernel) Close(h ipc.Handle) error {
	return k.handles.Close(h)
}
