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
	"soliloquy.dev/nucleus/pkg/kernel/kobject"
)

// movedHandle is a handle in flight between tables: its entry has been
// consumed from the sender's table and not yet installed in a receiver's.
type movedHandle struct {
	obj    kobject.Object
	rights Rights
}

// packet is an immutable-after-creation message: a copied byte payload plus
// the handles moved with it. A packet is owned by exactly one queue at a
// time.
type packet struct {
	next *packet
	prev *packet

	data  []byte
	moved []movedHandle
}

// newPacket copies data into owned storage and takes ownership of moved.
func newPacket(data []byte, moved []movedHandle) *packet {
	p := &packet{moved: moved}
	if len(data) > 0 {
		p.data = make([]byte, len(data))
		copy(p.data, data)
	}
	return p
}

// msgQueue is a FIFO of packets. It is protected by the owning channel's
// pair lock.
type msgQueue struct {
	head  *packet
	tail  *packet
	count uint32
}

func (q *msgQueue) enqueue(p *packet) {
	p.next = nil
	p.prev = q.tail
	if q.tail != nil {
		q.tail.next = p
	} else {
		q.head = p
	}
	q.tail = p
	q.count++
}

func (q *msgQueue) dequeue() *packet {
	p := q.head
	if p == nil {
		return nil
	}
	q.head = p.next
	if q.head != nil {
		q.head.prev = nil
	} else {
		q.tail = nil
	}
	p.next = nil
	p.prev = nil
	q.count--
	return p
}

// drain empties the queue and returns every moved handle the pending
// packets carried, oldest first.
func (q *msgQueue) drain() []movedHandle {
	var moved []movedHandle
	for p := q.dequeue(); p != nil; p = q.dequeue() {
		moved = append(moved, p.moved...)
	}
	return moved
}
