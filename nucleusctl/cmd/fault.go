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

package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"soliloquy.dev/nucleus/pkg/hostarch"
	"soliloquy.dev/nucleus/pkg/kernel/pmm"
	"soliloquy.dev/nucleus/pkg/kernel/vm"
)

// Fault implements subcommands.Command for the "fault" command.
type Fault struct {
	arenaPages uint64
	vmoKiB     uint64
}

// Name implements subcommands.Command.Name.
func (*Fault) Name() string {
	return "fault"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Fault) Synopsis() string {
	return "lazily commit VMO pages through the page fault resolver"
}

// Usage implements subcommands.Command.Usage.
func (*Fault) Usage() string {
	return `fault [flags]`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Fault) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&c.arenaPages, "arena-pages", 100, "number of pages in the backing arena")
	f.Uint64Var(&c.vmoKiB, "vmo-kib", 40, "VMO size in KiB")
}

// Execute implements subcommands.Command.Execute.
func (c *Fault) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	arena, err := pmm.NewHostBackedArena(c.arenaPages * hostarch.PageSize)
	if err != nil {
		Fatalf("creating arena: %v", err)
	}
	defer arena.Destroy()

	vmo, err := vm.NewVMO(arena, c.vmoKiB*1024)
	if err != nil {
		Fatalf("creating VMO: %v", err)
	}
	defer vmo.Destroy()

	handler, err := vm.NewFaultHandler(vmo, arena)
	if err != nil {
		Fatalf("creating fault handler: %v", err)
	}
	fmt.Printf("VMO of %d pages over an arena with %d pages free\n", vmo.PageCount(), arena.FreeCount())

	for _, addr := range []hostarch.Vaddr{
		3 * hostarch.PageSize,
		3*hostarch.PageSize + 17, // same page, no new commit
		hostarch.Vaddr(vmo.PageCount()*hostarch.PageSize - 1),
	} {
		if err := handler.Handle(addr, vm.FaultWrite|vm.FaultUser); err != nil {
			Fatalf("fault at %#x: %v", uint64(addr), err)
		}
		page := vmo.Page(addr.PageIndex())
		data := arena.PageData(page)
		data[addr%hostarch.PageSize] = 0xff
		fmt.Printf("fault %#x -> page %d at %#x committed (%d free)\n",
			uint64(addr), addr.PageIndex(), uint64(page.Paddr()), arena.FreeCount())
	}

	past := hostarch.Vaddr(vmo.PageCount() * hostarch.PageSize)
	err = handler.Handle(past, vm.FaultRead|vm.FaultUser)
	fmt.Printf("fault %#x past the VMO: %v\n", uint64(past), err)
	fmt.Printf("committed %d of %d pages\n", vmo.CommittedPages(), vmo.PageCount())
	return subcommands.ExitSuccess
}
