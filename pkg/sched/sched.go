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

// Package sched simulates a preemptive, priority-based process scheduler
// on top of a single logical host thread. It multiplexes simulated tasks
// over that thread using goroutine parking in place of saved/restored
// register contexts, and a periodic virtual-time tick in place of a real
// SIGVTALRM-driven round-robin.
package sched

import "time"

// State is a task's scheduling state.
type State int

const (
	// Ready means the task is runnable but not currently dispatched.
	Ready State = iota
	// Running means the task currently owns the logical host thread.
	Running
	// Sleeping means the task is blocked inside Wait, pending a child exit.
	Sleeping
	// Zombie means the task has exited but has not yet been reaped by
	// its parent's Wait.
	Zombie
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Sleeping:
		return "SLEEPING"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// Fixed configuration.
const (
	// NPROC is the maximum number of simultaneously live (non-reaped)
	// pids: 1 <= pid <= NPROC.
	NPROC = 4096

	// StackSize is the nominal private-stack size attributed to every
	// task for accounting/listing purposes. Go goroutine stacks are
	// GC-managed and grow on demand, so this constant does not back a
	// real allocation; it exists so Task.StackBase/listing output stay
	// faithful to the original's per-task stack bookkeeping.
	StackSize = 64 * 1024

	// InitialSlice is the slice_max a freshly forked task starts with,
	// before it has ever been through a full round in Switch.
	InitialSlice = 21

	// DefaultNice is the niceness assigned to task 1 by Init.
	DefaultNice = 0

	// DefaultPriority is the priority assigned to a freshly created
	// task, before the first priority refresh in Switch.
	DefaultPriority = 20

	// MinNice and MaxNice bound the niceness range accepted by Nice.
	MinNice = -20
	MaxNice = 19

	// TickPeriod is the nominal virtual-timer interval.
	TickPeriod = 100 * time.Millisecond
)

// sentinel is the value carried across a parked goroutine's resume
// channel — the Go-native analogue of the return value a longjmp'd
// save-context call yields.
type sentinel int

const (
	// switchRet is delivered to a task resumed by the ordinary dispatch
	// path in Switch. It is the only sentinel that is ever sent.
	switchRet sentinel = iota + 1
	// exitRet names the wake-from-Wait case. It is not sent: a parent
	// Sleeping in Wait is woken through its waitReply channel instead.
	exitRet
	// initRet names the return-to-driver case. It is not sent: task 1's
	// exit code reaches Init's caller through the Kernel's rootDone
	// channel instead.
	initRet
)
