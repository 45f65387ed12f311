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

package ipc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
)

func newPair(t *testing.T) (*HandleTable, Handle, Handle) {
	t.Helper()
	tbl := NewHandleTable(0)
	h0, h1, err := Create(tbl)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tbl, h0, h1
}

func TestChannelRoundTrip(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	if err := Write(tbl, h0, []byte("hello"), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 64)
	n, m, err := Read(tbl, h1, buf, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 || m != 0 {
		t.Fatalf("Read: got (%d, %d), wanted (5, 0)", n, m)
	}
	if diff := cmp.Diff("hello", string(buf[:n])); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	// The queue is drained.
	if _, _, err := Read(tbl, h1, buf, nil); err != kernelerr.ShouldWait {
		t.Errorf("Read on drained queue: got %v, wanted ShouldWait", err)
	}
}

func TestEmptyMessageRoundTrip(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	if err := Write(tbl, h0, nil, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, m, err := Read(tbl, h1, nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 0 || m != 0 {
		t.Errorf("Read: got (%d, %d), wanted (0, 0)", n, m)
	}
}

func TestPeerClose(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	if err := Close(tbl, h1); err != nil {
		t.Fatalf("Close(h1): %v", err)
	}
	if err := Write(tbl, h0, []byte("x"), nil); err != kernelerr.BadHandle {
		t.Fatalf("Write to orphaned endpoint: got %v, wanted BadHandle", err)
	}
	if err := Close(tbl, h0); err != nil {
		t.Fatalf("Close(h0): %v", err)
	}
	if got := tbl.Size(); got != 0 {
		t.Errorf("table size after closing both ends: got %d, wanted 0", got)
	}
}

// TestReadDrainsOrphanedQueue verifies that already-sent messages survive
// the sender's close and that the drained, orphaned endpoint then reports
// BadHandle rather than ShouldWait.
func TestReadDrainsOrphanedQueue(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	for i := 0; i < 3; i++ {
		if err := Write(tbl, h0, []byte{byte(i)}, nil); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if err := Close(tbl, h0); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf := make([]byte, 8)
	for i := 0; i < 3; i++ {
		n, _, err := Read(tbl, h1, buf, nil)
		if err != nil {
			t.Fatalf("Read %d after peer close: %v", i, err)
		}
		if n != 1 || buf[0] != byte(i) {
			t.Fatalf("Read %d: got %d bytes %v", i, n, buf[0])
		}
	}
	if _, _, err := Read(tbl, h1, buf, nil); err != kernelerr.BadHandle {
		t.Errorf("Read on drained orphan: got %v, wanted BadHandle", err)
	}
}

func TestDoubleClose(t *testing.T) {
	tbl, h0, h1 := newPair(t)
	if err := Close(tbl, h0); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := Close(tbl, h0); err != kernelerr.BadHandle {
		t.Errorf("double Close: got %v, wanted BadHandle", err)
	}
	if err := Close(tbl, h1); err != nil {
		t.Errorf("Close(h1): %v", err)
	}
}

func TestBufferTooSmall(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	if err := Write(tbl, h0, []byte("hello"), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	small := make([]byte, 3)
	n, m, err := Read(tbl, h1, small, nil)
	if err != kernelerr.BufferTooSmall {
		t.Fatalf("Read with short buffer: got %v, wanted BufferTooSmall", err)
	}
	if n != 5 || m != 0 {
		t.Fatalf("short Read sizes: got (%d, %d), wanted (5, 0)", n, m)
	}

	// The packet was not dequeued; a properly sized read still sees it.
	buf := make([]byte, 5)
	n, _, err = Read(tbl, h1, buf, nil)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read after short read: got (%d, %v) %q", n, err, buf[:n])
	}
}

func TestRightsEnforced(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	obj, err := tbl.Get(h0, RightNone)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	writeOnly, err := tbl.Alloc(obj, RightWrite)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if _, _, err := Read(tbl, writeOnly, nil, nil); err != kernelerr.InvalidArgs {
		t.Errorf("Read without RightRead: got %v, wanted InvalidArgs", err)
	}
	if err := Write(tbl, writeOnly, []byte("ok"), nil); err != nil {
		t.Errorf("Write with RightWrite: %v", err)
	}
	buf := make([]byte, 8)
	if _, _, err := Read(tbl, h1, buf, nil); err != nil {
		t.Errorf("Read: %v", err)
	}
}

func TestWrongObjectType(t *testing.T) {
	tbl := NewHandleTable(0)
	id, _ := tbl.Alloc(&testObject{}, RightRead|RightWrite)

	if err := Write(tbl, id, []byte("x"), nil); err != kernelerr.WrongType {
		t.Errorf("Write on non-endpoint: got %v, wanted WrongType", err)
	}
	if _, _, err := Read(tbl, id, nil, nil); err != kernelerr.WrongType {
		t.Errorf("Read on non-endpoint: got %v, wanted WrongType", err)
	}
	if err := Close(tbl, id); err != kernelerr.WrongType {
		t.Errorf("Close on non-endpoint: got %v, wanted WrongType", err)
	}
}

func TestUnknownHandles(t *testing.T) {
	tbl := NewHandleTable(0)
	if err := Write(tbl, 42, nil, nil); err != kernelerr.BadHandle {
		t.Errorf("Write(unknown): got %v, wanted BadHandle", err)
	}
	if _, _, err := Read(tbl, 42, nil, nil); err != kernelerr.BadHandle {
		t.Errorf("Read(unknown): got %v, wanted BadHandle", err)
	}
	if err := Close(tbl, InvalidHandle); err != kernelerr.BadHandle {
		t.Errorf("Close(invalid): got %v, wanted BadHandle", err)
	}
}

// TestHandleTransfer moves one channel's endpoint over another channel:
// the sent ID is consumed from the sender's view and the receiver gets a
// fresh, working ID.
func TestHandleTransfer(t *testing.T) {
	tbl := NewHandleTable(0)
	a0, a1, err := Create(tbl)
	if err != nil {
		t.Fatalf("Create A: %v", err)
	}
	b0, b1, err := Create(tbl)
	if err != nil {
		t.Fatalf("Create B: %v", err)
	}

	if err := Write(tbl, a0, []byte("take b1"), []Handle{b1}); err != nil {
		t.Fatalf("Write with handle: %v", err)
	}
	// The sent ID no longer resolves in the sender's table.
	if _, err := tbl.Get(b1, RightNone); err != kernelerr.BadHandle {
		t.Fatalf("Get(sent handle): got %v, wanted BadHandle", err)
	}

	buf := make([]byte, 16)
	handles := make([]Handle, 4)
	n, m, err := Read(tbl, a1, buf, handles)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len("take b1") || m != 1 {
		t.Fatalf("Read: got (%d, %d), wanted (%d, 1)", n, m, len("take b1"))
	}
	nb1 := handles[0]
	if nb1 == b1 || nb1 == InvalidHandle {
		t.Fatalf("reinstalled handle: got %d (original %d)", nb1, b1)
	}
	if r, _ := tbl.Rights(nb1); r != DefaultChannelRights {
		t.Errorf("reinstalled rights: got %v, wanted %v", r, DefaultChannelRights)
	}

	// The transferred endpoint still works.
	if err := Write(tbl, b0, []byte("ping"), nil); err != nil {
		t.Fatalf("Write(b0): %v", err)
	}
	n, _, err = Read(tbl, nb1, buf, nil)
	if err != nil || string(buf[:n]) != "ping" {
		t.Fatalf("Read on transferred endpoint: got (%q, %v)", buf[:n], err)
	}
}

func TestTransferRestrictions(t *testing.T) {
	tbl := NewHandleTable(0)
	a0, a1, _ := Create(tbl)
	_, b1, _ := Create(tbl)

	// A handle without RightTransfer may not be sent.
	obj, _ := tbl.Get(b1, RightNone)
	noTransfer, _ := tbl.Alloc(obj, RightRead)
	if err := Write(tbl, a0, nil, []Handle{noTransfer}); err != kernelerr.InvalidArgs {
		t.Errorf("Write(no-transfer handle): got %v, wanted InvalidArgs", err)
	}

	// Neither endpoint of the channel may ride the channel itself.
	if err := Write(tbl, a0, nil, []Handle{a0}); err != kernelerr.InvalidArgs {
		t.Errorf("Write(own handle): got %v, wanted InvalidArgs", err)
	}
	if err := Write(tbl, a0, nil, []Handle{a1}); err != kernelerr.InvalidArgs {
		t.Errorf("Write(peer handle): got %v, wanted InvalidArgs", err)
	}

	// An unknown sent ID fails and nothing is consumed.
	if err := Write(tbl, a0, nil, []Handle{9999}); err != kernelerr.BadHandle {
		t.Errorf("Write(unknown sent handle): got %v, wanted BadHandle", err)
	}
	if _, err := tbl.Get(noTransfer, RightRead); err != nil {
		t.Errorf("failed write consumed a handle: %v", err)
	}
}

// TestPendingHandlesClosedOnClose closes an endpoint with an undelivered
// handle in its queue; the carried endpoint must be closed rather than
// leaked, orphaning its own peer.
func TestPendingHandlesClosedOnClose(t *testing.T) {
	tbl := NewHandleTable(0)
	a0, a1, _ := Create(tbl)
	b0, b1, _ := Create(tbl)

	if err := Write(tbl, a0, nil, []Handle{b1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Close(tbl, a1); err != nil {
		t.Fatalf("Close(a1): %v", err)
	}

	// b1's endpoint died inside a1's queue, so b0 is now orphaned.
	if err := Write(tbl, b0, []byte("x"), nil); err != kernelerr.BadHandle {
		t.Errorf("Write(b0) after in-flight peer died: got %v, wanted BadHandle", err)
	}
}

// TestFIFO checks delivery order per direction.
func TestFIFO(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	const count = 100
	for i := 0; i < count; i++ {
		if err := Write(tbl, h0, []byte(fmt.Sprintf("msg-%03d", i)), nil); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	buf := make([]byte, 16)
	for i := 0; i < count; i++ {
		n, _, err := Read(tbl, h1, buf, nil)
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if want := fmt.Sprintf("msg-%03d", i); string(buf[:n]) != want {
			t.Fatalf("Read %d: got %q, wanted %q", i, buf[:n], want)
		}
	}
}

// TestConcurrentFIFO hammers one direction from a writer goroutine while a
// reader drains, verifying order end to end.
func TestConcurrentFIFO(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	const count = 1000
	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < count; i++ {
			if err := Write(tbl, h0, []byte(fmt.Sprintf("%06d", i)), nil); err != nil {
				return fmt.Errorf("write %d: %w", i, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		buf := make([]byte, 16)
		for i := 0; i < count; {
			n, _, err := Read(tbl, h1, buf, nil)
			if err == kernelerr.ShouldWait {
				time.Sleep(time.Microsecond)
				continue
			}
			if err != nil {
				return fmt.Errorf("read %d: %w", i, err)
			}
			if want := fmt.Sprintf("%06d", i); string(buf[:n]) != want {
				return fmt.Errorf("read %d: got %q, wanted %q", i, buf[:n], want)
			}
			i++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestReadBlocking(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	var g errgroup.Group
	g.Go(func() error {
		time.Sleep(10 * time.Millisecond)
		return Write(tbl, h0, []byte("wake"), nil)
	})

	buf := make([]byte, 8)
	n, _, err := ReadBlocking(context.Background(), tbl, h1, buf, nil)
	if err != nil {
		t.Fatalf("ReadBlocking: %v", err)
	}
	if string(buf[:n]) != "wake" {
		t.Errorf("ReadBlocking payload: got %q", buf[:n])
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestReadBlockingCancel(t *testing.T) {
	tbl, _, h1 := newPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := ReadBlocking(ctx, tbl, h1, nil, nil); err != context.DeadlineExceeded {
		t.Fatalf("ReadBlocking: got %v, wanted DeadlineExceeded", err)
	}
}

func TestReadBlockingWakeOnPeerClose(t *testing.T) {
	tbl, h0, h1 := newPair(t)

	var g errgroup.Group
	g.Go(func() error {
		time.Sleep(10 * time.Millisecond)
		return Close(tbl, h0)
	})

	if _, _, err := ReadBlocking(context.Background(), tbl, h1, nil, nil); err != kernelerr.BadHandle {
		t.Fatalf("ReadBlocking after peer close: got %v, wanted BadHandle", err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
