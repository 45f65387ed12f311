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

	"soliloquy.dev/nucleus/pkg/errors/kernelerr"
	"soliloquy.dev/nucleus/pkg/kernel/kobject"
	"soliloquy.dev/nucleus/pkg/log"
	"soliloquy.dev/nucleus/pkg/sync"
	"soliloquy.dev/nucleus/pkg/waiter"
)

// Endpoint is one half of a channel. Messages written on the peer land on
// this endpoint's inbound queue.
//
// An endpoint is Paired while its peer link is set, Orphaned after the peer
// closes, and Closed after a local close. Writes require Paired; reads
// drain the queue in Paired or Orphaned.
type Endpoint struct {
	// channel owns both endpoints; its mutex protects all mutable state
	// of the pair. Immutable.
	channel *Channel

	// The fields below are protected by channel.mu.
	queue  msgQueue
	peer   *Endpoint
	closed bool
	refs   uint32

	// waiters is notified with EventIn when a message arrives and
	// EventHUp when either side closes. It has its own lock.
	waiters waiter.Queue
}

// Kind implements kobject.Object.Kind.
func (e *Endpoint) Kind() kobject.Kind {
	return kobject.KindChannelEndpoint
}

// Channel is the owning aggregate for a pair of endpoints. Endpoints hold
// only non-owning back-references, so there is no ownership cycle; the
// aggregate is collected once both endpoints are closed and unreferenced.
//
// A single mutex covers the pair, which makes close-vs-write race free.
type Channel struct {
	mu   sync.Mutex
	ends [2]Endpoint
}

// Create allocates a channel and installs both endpoints in table with
// rights {Read, Write, Transfer}, returning the two fresh handle IDs.
func Create(table *HandleTable) (Handle, Handle, error) {
	if table == nil {
		return InvalidHandle, InvalidHandle, kernelerr.InvalidArgs
	}

	ch := &Channel{}
	e0 := &ch.ends[0]
	e1 := &ch.ends[1]
	e0.channel = ch
	e1.channel = ch
	e0.peer = e1
	e1.peer = e0
	e0.refs = 1
	e1.refs = 1

	table.mu.Lock()
	h0 := table.allocLocked(e0, DefaultChannelRights)
	h1 := table.allocLocked(e1, DefaultChannelRights)
	table.mu.Unlock()

	if log.IsLogging(log.Debug) {
		log.Debugf("ipc: channel created, handles %d/%d", h0, h1)
	}
	return h0, h1, nil
}

// Write sends data and the handles named by handleIDs to the peer of the
// endpoint named by h.
//
// Every sent handle must carry RightTransfer and is consumed from the
// sender's table; the receiver obtains fresh IDs on read. A failed write
// consumes nothing and enqueues nothing.
func Write(table *HandleTable, h Handle, data []byte, handleIDs []Handle) error {
	if table == nil {
		return kernelerr.InvalidArgs
	}

	table.mu.Lock()
	e := table.lookupLocked(h)
	if e == nil {
		table.mu.Unlock()
		return kernelerr.BadHandle
	}
	if !e.rights.Has(RightWrite) {
		table.mu.Unlock()
		return kernelerr.InvalidArgs
	}
	ep, ok := e.obj.(*Endpoint)
	if !ok {
		table.mu.Unlock()
		return kernelerr.WrongType
	}

	// Validate the transferred handles before mutating anything.
	sent := make([]*entry, 0, len(handleIDs))
	for i, id := range handleIDs {
		se := table.lookupLocked(id)
		if se == nil {
			table.mu.Unlock()
			return kernelerr.BadHandle
		}
		if id == h || !se.rights.Has(RightTransfer) {
			table.mu.Unlock()
			return kernelerr.InvalidArgs
		}
		for _, prev := range handleIDs[:i] {
			// The same ID may not be consumed twice in one write.
			if prev == id {
				table.mu.Unlock()
				return kernelerr.InvalidArgs
			}
		}
		// Neither endpoint of this channel may ride its own channel.
		if o, ok := se.obj.(*Endpoint); ok && o.channel == ep.channel {
			table.mu.Unlock()
			return kernelerr.InvalidArgs
		}
		sent = append(sent, se)
	}

	ch := ep.channel
	ch.mu.Lock()
	if ep.closed || ep.peer == nil || ep.peer.closed {
		ch.mu.Unlock()
		table.mu.Unlock()
		return kernelerr.BadHandle
	}
	peer := ep.peer

	moved := make([]movedHandle, 0, len(sent))
	for _, se := range sent {
		moved = append(moved, movedHandle{obj: se.obj, rights: se.rights})
		table.closeEntryLocked(se)
	}
	peer.queue.enqueue(newPacket(data, moved))
	ch.mu.Unlock()
	table.mu.Unlock()

	peer.waiters.Notify(waiter.EventIn)
	return nil
}

// Read dequeues the oldest packet on the endpoint named by h, copying its
// payload into dataBuf and installing its handles in table, filling
// handleBuf with the fresh IDs. It returns the packet's actual byte size
// and handle count.
//
// An empty queue reports ShouldWait while the peer can still write, and
// BadHandle once the peer is gone and the queue has drained. If either
// buffer is too small the packet is left queued and BufferTooSmall is
// returned along with the required sizes.
func Read(table *HandleTable, h Handle, dataBuf []byte, handleBuf []Handle) (int, int, error) {
	if table == nil {
		return 0, 0, kernelerr.InvalidArgs
	}

	table.mu.Lock()
	e := table.lookupLocked(h)
	if e == nil {
		table.mu.Unlock()
		return 0, 0, kernelerr.BadHandle
	}
	if !e.rights.Has(RightRead) {
		table.mu.Unlock()
		return 0, 0, kernelerr.InvalidArgs
	}
	ep, ok := e.obj.(*Endpoint)
	if !ok {
		table.mu.Unlock()
		return 0, 0, kernelerr.WrongType
	}

	ch := ep.channel
	ch.mu.Lock()
	if ep.closed {
		ch.mu.Unlock()
		table.mu.Unlock()
		return 0, 0, kernelerr.BadHandle
	}

	pkt := ep.queue.head
	if pkt == nil {
		orphaned := ep.peer == nil || ep.peer.closed
		ch.mu.Unlock()
		table.mu.Unlock()
		if orphaned {
			// Nothing queued and nothing can arrive.
			return 0, 0, kernelerr.BadHandle
		}
		return 0, 0, kernelerr.ShouldWait
	}

	dataSize := len(pkt.data)
	numHandles := len(pkt.moved)
	if len(dataBuf) < dataSize || len(handleBuf) < numHandles {
		ch.mu.Unlock()
		table.mu.Unlock()
		return dataSize, numHandles, kernelerr.BufferTooSmall
	}

	ep.queue.dequeue()
	copy(dataBuf, pkt.data)
	for i, m := range pkt.moved {
		handleBuf[i] = table.allocLocked(m.obj, m.rights)
	}
	ch.mu.Unlock()
	table.mu.Unlock()
	return dataSize, numHandles, nil
}

// ReadBlocking is the blocking variant of Read: on an empty queue it waits
// until a message arrives, the peer closes, or ctx is done.
func ReadBlocking(ctx context.Context, table *HandleTable, h Handle, dataBuf []byte, handleBuf []Handle) (int, int, error) {
	if table == nil {
		return 0, 0, kernelerr.InvalidArgs
	}

	obj, err := table.Get(h, RightRead)
	if err != nil {
		return 0, 0, err
	}
	ep, ok := obj.(*Endpoint)
	if !ok {
		return 0, 0, kernelerr.WrongType
	}

	we, ready := waiter.NewChannelEntry()
	ep.waiters.EventRegister(&we, waiter.EventIn|waiter.EventHUp)
	defer ep.waiters.EventUnregister(&we)

	// Read only after registering, so a message that lands before the
	// wait is either seen by this Read or wakes the wait below.
	for {
		n, m, err := Read(table, h, dataBuf, handleBuf)
		if err != kernelerr.ShouldWait {
			return n, m, err
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
	}
}

// Close closes the endpoint named by h: pending messages are discarded and
// the handles they carry are closed, the peer is orphaned, and the handle
// entry is released.
func Close(table *HandleTable, h Handle) error {
	if table == nil {
		return kernelerr.InvalidArgs
	}

	table.mu.Lock()
	e := table.lookupLocked(h)
	if e == nil {
		table.mu.Unlock()
		return kernelerr.BadHandle
	}
	ep, ok := e.obj.(*Endpoint)
	if !ok {
		table.mu.Unlock()
		return kernelerr.WrongType
	}

	ch := ep.channel
	ch.mu.Lock()
	ep.closed = true
	pending := ep.queue.drain()
	peer := ep.peer
	if peer != nil {
		peer.peer = nil
	}
	ep.peer = nil
	if ep.refs > 0 {
		ep.refs--
	}
	ch.mu.Unlock()

	table.closeEntryLocked(e)
	table.mu.Unlock()

	// Pending packets would have transferred these; close them so they
	// do not leak.
	for _, m := range pending {
		disposeMoved(m)
	}

	ep.waiters.Notify(waiter.EventHUp)
	if peer != nil {
		peer.waiters.Notify(waiter.EventHUp)
	}
	if log.IsLogging(log.Debug) {
		log.Debugf("ipc: endpoint %d closed, %d pending handles reclaimed", h, len(pending))
	}
	return nil
}

// disposeMoved closes a handle that was in flight when its destination
// endpoint closed.
func disposeMoved(m movedHandle) {
	switch o := m.obj.(type) {
	case *Endpoint:
		closeOrphanEndpoint(o)
	case destroyer:
		o.Destroy()
	default:
		log.Warningf("ipc: leaking in-flight %v on close", m.obj.Kind())
	}
}

// destroyer is implemented by kernel objects that can release their
// resources directly (VMOs).
type destroyer interface {
	Destroy()
}

// closeOrphanEndpoint closes an endpoint that is not installed in any
// table (it was consumed by a write and never delivered).
func closeOrphanEndpoint(ep *Endpoint) {
	ch := ep.channel
	ch.mu.Lock()
	if ep.closed {
		ch.mu.Unlock()
		return
	}
	ep.closed = true
	pending := ep.queue.drain()
	peer := ep.peer
	if peer != nil {
		peer.peer = nil
	}
	ep.peer = nil
	ch.mu.Unlock()

	for _, m := range pending {
		disposeMoved(m)
	}
	if peer != nil {
		peer.waiters.Notify(waiter.EventHUp)
	}
}
