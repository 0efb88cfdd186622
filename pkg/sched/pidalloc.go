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

// pidAllocator hands out the lowest unused pid in [1, nproc], mirroring
// the original's pid_table/sched_getunusedpid. Decoupled entirely from
// task-record storage (see Task's doc comment): it tracks identifier
// reservation only, so a Zombie's pid can be reused by a later Fork
// while the Zombie's own *Task record is still reachable through its
// parent's children ring: identifiers are reused, but only after
// explicit release in exit, not at reap.
type pidAllocator struct {
	nproc int
	used  []bool // len nproc+1; used[0] is always false and never consulted
	next  int    // lowest pid that might be free; an optimization, not load-bearing
}

// newPidAllocator builds an allocator for pids in [1, nproc]. A
// nproc <= 0 falls back to the package default, NPROC.
func newPidAllocator(nproc int) *pidAllocator {
	if nproc <= 0 {
		nproc = NPROC
	}
	return &pidAllocator{nproc: nproc, used: make([]bool, nproc+1), next: 1}
}

// acquire returns the lowest unused pid, or 0 if the table is saturated.
func (a *pidAllocator) acquire() int {
	for pid := a.next; pid <= a.nproc; pid++ {
		if !a.used[pid] {
			a.used[pid] = true
			a.next = pid + 1
			return pid
		}
	}
	// Slow path: a.next raced ahead of a pid freed below it.
	for pid := 1; pid <= a.nproc; pid++ {
		if !a.used[pid] {
			a.used[pid] = true
			a.next = pid + 1
			return pid
		}
	}
	return 0
}

// release marks pid as unused. Idempotent.
func (a *pidAllocator) release(pid int) {
	if pid < 1 || pid > a.nproc {
		return
	}
	a.used[pid] = false
	if pid < a.next {
		a.next = pid
	}
}
