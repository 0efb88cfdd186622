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

import "testing"

func pids(r *ring) []int {
	var out []int
	r.forEach(func(t *Task) { out = append(out, t.Pid) })
	return out
}

func nodeFor(pid int) *ringNode {
	return &ringNode{task: &Task{Pid: pid}}
}

func TestRingEmpty(t *testing.T) {
	r := newRing()
	if !r.empty() {
		t.Fatal("new ring should be empty")
	}
	n := nodeFor(1)
	r.pushFront(n)
	if r.empty() {
		t.Fatal("ring with one node should not be empty")
	}
	remove(n)
	if !r.empty() {
		t.Fatal("ring should be empty again after removing its only node")
	}
}

func TestRingPushFrontOrder(t *testing.T) {
	r := newRing()
	r.pushFront(nodeFor(1))
	r.pushFront(nodeFor(2))
	r.pushFront(nodeFor(3))

	got := pids(r)
	want := []int{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRingRemoveMiddle(t *testing.T) {
	r := newRing()
	a, b, c := nodeFor(1), nodeFor(2), nodeFor(3)
	r.pushFront(a)
	r.pushFront(b)
	r.pushFront(c)

	remove(b)
	got := pids(r)
	want := []int{3, 1}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSpliceFrontPreservesOrderAndEmptiesSrc(t *testing.T) {
	dst := newRing()
	dst.pushFront(nodeFor(10))

	src := newRing()
	src.pushFront(nodeFor(2))
	src.pushFront(nodeFor(1))

	spliceFront(dst, src)

	if !src.empty() {
		t.Fatal("src should be empty after splice")
	}
	got := pids(dst)
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSpliceFrontEmptySrcIsNoop(t *testing.T) {
	dst := newRing()
	dst.pushFront(nodeFor(1))
	src := newRing()

	spliceFront(dst, src)

	got := pids(dst)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}
