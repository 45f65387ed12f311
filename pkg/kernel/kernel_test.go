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

package kernel

import (
	"testing"

	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/hostarch"
	"soliloquy.dev/nucleus/pkg/kernel/ipc"
	"soliloquy.dev/nucleus/pkg/kernel/pmm"
)

func newTestKernel(t *testing.T) (*Kernel, *pmm.Arena) {
	t.Helper()
	a, err := pmm.NewArena(0x1000000, 32*hostarch.PageSize)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	return New(0), a
}

func TestVMOHandleLifecycle(t *testing.T) {
	k, a := newTestKernel(t)

	h, err := k.CreateVMO(a, 4*hostarch.PageSize)
	if err != nil {
		t.Fatalf("CreateVMO: %v", err)
	}
	v, err := k.GetVMO(h, ipc.RightRead|ipc.RightWrite)
	if err != nil {
		t.Fatalf("GetVMO: %v", err)
	}
	if got := v.PageCount(); got != 4 {
		t.Errorf("PageCount: got %d, wanted 4", got)
	}

	// A duplicate narrowed to read-only cannot be resolved for write.
	dup, err := k.Handles().Duplicate(h, ipc.RightRead)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if _, err := k.GetVMO(dup, ipc.RightWrite); err != kernelerr.InvalidArgs {
		t.Errorf("GetVMO(dup, Write): got %v, wanted InvalidArgs", err)
	}
	if _, err := k.GetVMO(dup, ipc.RightRead); err != nil {
		t.Errorf("GetVMO(dup, Read): %v", err)
	}

	if err := k.Close(dup); err != nil {
		t.Fatalf("Close(dup): %v", err)
	}
	if err := k.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := k.GetVMO(h, ipc.RightRead); err != kernelerr.BadHandle {
		t.Errorf("GetVMO after close: got %v, wanted BadHandle", err)
	}
}

func TestGetVMOWrongType(t *testing.T) {
	k, _ := newTestKernel(t)

	h0, h1, err := k.ChannelCreate()
	if err != nil {
		t.Fatalf("ChannelCreate: %v", err)
	}
	if _, err := k.GetVMO(h0, ipc.RightRead); err != kernelerr.WrongType {
		t.Errorf("GetVMO on endpoint: got %v, wanted WrongType", err)
	}
	if err := k.ChannelClose(h0); err != nil {
		t.Fatalf("ChannelClose: %v", err)
	}
	if err := k.ChannelClose(h1); err != nil {
		t.Fatalf("ChannelClose: %v", err)
	}
}

func TestKernelChannelRoundTrip(t *testing.T) {
	k, _ := newTestKernel(t)

	h0, h1, err := k.ChannelCreate()
	if err != nil {
		t.Fatalf("ChannelCreate: %v", err)
	}
	if err := k.ChannelWrite(h0, []byte("nucleus"), nil); err != nil {
		t.Fatalf("ChannelWrite: %v", err)
	}
	buf := make([]byte, 16)
	n, _, err := k.ChannelRead(h1, buf, nil)
	if err != nil {
		t.Fatalf("ChannelRead: %v", err)
	}
	if string(buf[:n]) != "nucleus" {
		t.Errorf("payload: got %q", buf[:n])
	}
}
