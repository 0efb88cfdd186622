// Copyright 2018 The gVisor Authors.
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

package sched

// ringNode is one link in an intrusive circular doubly-linked list. It
// mirrors the original's sched_procnode, translated to safe Go pointers
// instead of raw struct pointers: rather than indexing task records by
// a stable handle, we rely on Go's
// garbage collector to keep a *Task reachable through any ring that still
// links to it, and use *ringNode purely to express order.
//
// A ring always has exactly one sentinel node, distinguishable by a nil
// task field; iteration stops when the sentinel is seen again.
type ringNode struct {
	prev, next *ringNode
	task       *Task
}

// ring is a circular list anchored at a sentinel node.
type ring struct {
	sentinel ringNode
}

func newRing() *ring {
	r := &ring{}
	r.sentinel.prev = &r.sentinel
	r.sentinel.next = &r.sentinel
	return r
}

// empty reports whether the ring holds no non-sentinel nodes.
func (r *ring) empty() bool {
	return r.sentinel.next == &r.sentinel
}

// insertAfter links n immediately after anchor (anchor may be the
// sentinel itself, which inserts n at the front of the ring).
func insertAfter(anchor, n *ringNode) {
	n.prev = anchor
	n.next = anchor.next
	anchor.next.prev = n
	anchor.next = n
}

// pushFront inserts n as the first element of the ring.
func (r *ring) pushFront(n *ringNode) {
	insertAfter(&r.sentinel, n)
}

// remove unlinks n from whatever ring it is currently a member of. It is
// the caller's responsibility to know n is linked somewhere.
func remove(n *ringNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// forEach walks the ring from front to back, calling fn on every linked
// task. fn must not mutate the ring being walked.
func (r *ring) forEach(fn func(*Task)) {
	for n := r.sentinel.next; n.task != nil; n = n.next {
		fn(n.task)
	}
}

// spliceFront moves every node of src to the front of dst, preserving
// src's internal order, and leaves src empty. Used by Exit to move a
// re-parented children ring onto the grandparent's children ring
// during reparenting on exit.
func spliceFront(dst, src *ring) {
	if src.empty() {
		return
	}
	first, last := src.sentinel.next, src.sentinel.prev
	// Detach src's chain from its own sentinel.
	src.sentinel.next = &src.sentinel
	src.sentinel.prev = &src.sentinel

	dstFirst := dst.sentinel.next
	dst.sentinel.next = first
	first.prev = &dst.sentinel
	last.next = dstFirst
	dstFirst.prev = last
}
