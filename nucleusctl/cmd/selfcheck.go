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
	"bytes"
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/hostarch"
	"soliloquy.dev/nucleus/pkg/kernel/ipc"
	"soliloquy.dev/nucleus/pkg/kernel/pmm"
	"soliloquy.dev/nucleus/pkg/kernel/vm"
)

// Selfcheck implements subcommands.Command for the "selfcheck" command. It
// runs the nucleus end-to-end scenarios and reports pass/fail.
type Selfcheck struct{}

// Name implements subcommands.Command.Name.
func (*Selfcheck) Name() string {
	return "selfcheck"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Selfcheck) Synopsis() string {
	return "run the end-to-end nucleus scenarios"
}

// Usage implements subcommands.Command.Usage.
func (*Selfcheck) Usage() string {
	return `selfcheck`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Selfcheck) SetFlags(*flag.FlagSet) {}

type scenario struct {
	name string
	run  func() error
}

var scenarios = []scenario{
	{"pmm exhaustion and recovery", checkExhaustion},
	{"lazy fault commit", checkLazyCommit},
	{"fault out of range", checkFaultRange},
	{"channel round-trip", checkRoundTrip},
	{"peer close", checkPeerClose},
	{"duplication loses rights", checkDuplication},
}

// Execute implements subcommands.Command.Execute.
func (*Selfcheck) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	var g errgroup.Group
	results := make([]error, len(scenarios))
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = sc.run()
			return nil
		})
	}
	g.Wait()

	status := subcommands.ExitSuccess
	for i, sc := range scenarios {
		if err := results[i]; err != nil {
			fmt.Printf("FAIL %s: %v\n", sc.name, err)
			status = subcommands.ExitFailure
		} else {
			fmt.Printf("PASS %s\n", sc.name)
		}
	}
	return status
}

func checkExhaustion() error {
	a, err := pmm.NewArena(0x1000000, 10*hostarch.PageSize)
	if err != nil {
		return err
	}
	var pages []*pmm.Page
	for i := 0; i < 10; i++ {
		p, err := a.AllocPage()
		if err != nil {
			return fmt.Errorf("alloc %d: %w", i, err)
		}
		pages = append(pages, p)
	}
	if _, err := a.AllocPage(); err != kernelerr.NoMemory {
		return fmt.Errorf("11th alloc: got %v, wanted NoMemory", err)
	}
	if err := a.FreePage(pages[4]); err != nil {
		return err
	}
	p, err := a.AllocPage()
	if err != nil {
		return err
	}
	if p != pages[4] {
		return fmt.Errorf("realloc did not return the freed descriptor")
	}
	return nil
}

func checkLazyCommit() error {
	a, err := pmm.NewArena(0x1000000, 100*hostarch.PageSize)
	if err != nil {
		return err
	}
	v, err := vm.NewVMO(a, 40*1024)
	if err != nil {
		return err
	}
	h, err := vm.NewFaultHandler(v, a)
	if err != nil {
		return err
	}
	if err := h.Handle(3*hostarch.PageSize, vm.FaultRead|vm.FaultUser); err != nil {
		return err
	}
	if v.Page(3) == nil || a.FreeCount() != 99 {
		return fmt.Errorf("commit bookkeeping wrong: free %d", a.FreeCount())
	}
	if err := h.Handle(3*hostarch.PageSize, vm.FaultRead|vm.FaultUser); err != nil {
		return err
	}
	if a.FreeCount() != 99 {
		return fmt.Errorf("repeated fault consumed a page")
	}
	return nil
}

func checkFaultRange() error {
	a, err := pmm.NewArena(0x1000000, 100*hostarch.PageSize)
	if err != nil {
		return err
	}
	v, err := vm.NewVMO(a, 40*1024)
	if err != nil {
		return err
	}
	h, err := vm.NewFaultHandler(v, a)
	if err != nil {
		return err
	}
	if err := h.Handle(20*hostarch.PageSize, vm.FaultRead|vm.FaultUser); err != kernelerr.NotFound {
		return fmt.Errorf("got %v, wanted NotFound", err)
	}
	if a.FreeCount() != 100 {
		return fmt.Errorf("failed fault consumed a page")
	}
	return nil
}

func checkRoundTrip() error {
	tbl := ipc.NewHandleTable(0)
	h0, h1, err := ipc.Create(tbl)
	if err != nil {
		return err
	}
	if err := ipc.Write(tbl, h0, []byte("hello"), nil); err != nil {
		return err
	}
	buf := make([]byte, 16)
	n, _, err := ipc.Read(tbl, h1, buf, nil)
	if err != nil {
		return err
	}
	if !bytes.Equal(buf[:n], []byte("hello")) {
		return fmt.Errorf("payload %q", buf[:n])
	}
	if _, _, err := ipc.Read(tbl, h1, buf, nil); err != kernelerr.ShouldWait {
		return fmt.Errorf("queue not empty after read: %v", err)
	}
	return nil
}

func checkPeerClose() error {
	tbl := ipc.NewHandleTable(0)
	h0, h1, err := ipc.Create(tbl)
	if err != nil {
		return err
	}
	if err := ipc.Close(tbl, h1); err != nil {
		return err
	}
	if err := ipc.Write(tbl, h0, []byte("x"), nil); err != kernelerr.BadHandle {
		return fmt.Errorf("write to closed peer: got %v, wanted BadHandle", err)
	}
	return ipc.Close(tbl, h0)
}

func checkDuplication() error {
	tbl := ipc.NewHandleTable(0)
	h0, _, err := ipc.Create(tbl)
	if err != nil {
		return err
	}
	obj, err := tbl.Get(h0, ipc.RightNone)
	if err != nil {
		return err
	}
	id1, err := tbl.Alloc(obj, ipc.RightRead|ipc.RightWrite|ipc.RightDuplicate)
	if err != nil {
		return err
	}
	id2, err := tbl.Duplicate(id1, ipc.RightRead|ipc.RightTransfer)
	if err != nil {
		return err
	}
	if _, err := tbl.Get(id2, ipc.RightWrite); err != kernelerr.InvalidArgs {
		return fmt.Errorf("write on narrowed dup: got %v, wanted InvalidArgs", err)
	}
	if _, err := tbl.Get(id2, ipc.RightRead); err != nil {
		return fmt.Errorf("read on dup: %v", err)
	}
	return nil
}
