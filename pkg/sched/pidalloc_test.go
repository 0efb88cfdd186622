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

func TestPidAllocatorAcquireSequential(t *testing.T) {
	a := newPidAllocator(0)
	for want := 1; want <= 5; want++ {
		if got := a.acquire(); got != want {
			t.Fatalf("acquire() = %d, want %d", got, want)
		}
	}
}

func TestPidAllocatorReleaseAndReuse(t *testing.T) {
	a := newPidAllocator(0)
	p1 := a.acquire()
	p2 := a.acquire()
	p3 := a.acquire()

	a.release(p2)
	got := a.acquire()
	if got != p2 {
		t.Fatalf("acquire() after releasing %d = %d, want %d (lowest free)", p2, got, p2)
	}

	a.release(p1)
	a.release(p3)
	a.release(p2)
	if got := a.acquire(); got != p1 {
		t.Fatalf("acquire() after releasing everything = %d, want %d", got, p1)
	}
}

func TestPidAllocatorReleaseIdempotent(t *testing.T) {
	a := newPidAllocator(0)
	p := a.acquire()
	a.release(p)
	a.release(p)
	a.release(p)
	if got := a.acquire(); got != p {
		t.Fatalf("acquire() = %d, want %d", got, p)
	}
}

func TestPidAllocatorSaturation(t *testing.T) {
	a := newPidAllocator(0)
	for i := 1; i <= NPROC; i++ {
		if got := a.acquire(); got == 0 {
			t.Fatalf("acquire() returned 0 before the table was full (at i=%d)", i)
		}
	}
	if got := a.acquire(); got != 0 {
		t.Fatalf("acquire() on a saturated table = %d, want 0", got)
	}
}

func TestPidAllocatorOutOfRangeReleaseIsNoop(t *testing.T) {
	a := newPidAllocator(0)
	a.release(0)
	a.release(-1)
	a.release(NPROC + 1)
	if got := a.acquire(); got != 1 {
		t.Fatalf("acquire() = %d, want 1", got)
	}
}

// TestPidAllocatorCustomNPROC checks that a caller-supplied table size
// is honored instead of the package default.
func TestPidAllocatorCustomNPROC(t *testing.T) {
	const small = 3
	a := newPidAllocator(small)
	for i := 1; i <= small; i++ {
		if got := a.acquire(); got == 0 {
			t.Fatalf("acquire() returned 0 before the table was full (at i=%d)", i)
		}
	}
	if got := a.acquire(); got != 0 {
		t.Fatalf("acquire() on a saturated custom-size table = %d, want 0", got)
	}
	a.release(small + 1) // out of range for this table, must be a no-op
	if got := a.acquire(); got != 0 {
		t.Fatalf("acquire() after releasing an out-of-range pid = %d, want 0", got)
	}
}
