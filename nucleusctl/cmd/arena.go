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
	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/hostarch"
	"soliloquy.dev/nucleus/pkg/kernel/pmm"
)

// Arena implements subcommands.Command for the "arena" command.
type Arena struct {
	base  uint64
	pages uint64
}

// Name implements subcommands.Command.Name.
func (*Arena) Name() string {
	return "arena"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Arena) Synopsis() string {
	return "drive a physical memory arena to exhaustion and back"
}

// Usage implements subcommands.Command.Usage.
func (*Arena) Usage() string {
	return `arena [flags]`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Arena) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&a.base, "base", 0x1000000, "physical base address of the arena")
	f.Uint64Var(&a.pages, "pages", 10, "number of pages in the arena")
}

// Execute implements subcommands.Command.Execute.
func (a *Arena) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	arena, err := pmm.NewArena(hostarch.Paddr(a.base), a.pages*hostarch.PageSize)
	if err != nil {
		Fatalf("creating arena: %v", err)
	}
	fmt.Printf("arena [%#x, %#x): %d pages free\n", a.base, a.base+a.pages*hostarch.PageSize, arena.FreeCount())

	var held []*pmm.Page
	for {
		p, err := arena.AllocPage()
		if err == kernelerr.NoMemory {
			break
		}
		if err != nil {
			Fatalf("allocating: %v", err)
		}
		held = append(held, p)
	}
	fmt.Printf("allocated %d pages, next allocation reports NO_MEMORY\n", len(held))

	victim := held[len(held)/2]
	if err := arena.FreePage(victim); err != nil {
		Fatalf("freeing %#x: %v", uint64(victim.Paddr()), err)
	}
	p, err := arena.AllocPage()
	if err != nil {
		Fatalf("reallocating: %v", err)
	}
	fmt.Printf("freed %#x, realloc returned %#x (LIFO reuse: %t)\n",
		uint64(victim.Paddr()), uint64(p.Paddr()), p == victim)

	for _, q := range held {
		if err := arena.FreePage(q); err != nil {
			Fatalf("releasing %#x: %v", uint64(q.Paddr()), err)
		}
	}
	fmt.Printf("released everything: %d pages free\n", arena.FreeCount())
	return subcommands.ExitSuccess
}
