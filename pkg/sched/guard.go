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

// criticalSection stands in for the original's signal-masking guard.
// In the original, every public operation blocks the tick and listing
// (SIGABRT) signals for the duration of a state mutation, then restores
// the prior mask on every exit path, including exits via context
// switch.
//
// Here, every request that would have needed that guard is instead
// handled exclusively by the scheduler event loop goroutine (see
// kernel.go): the loop processes one request to completion before
// reading the next, so there is never a second goroutine in a position
// to observe or mutate task state mid-update. That serialization is
// the guard. criticalSection exists so that invariant has a visible
// home and so tests can assert the single-writer invariant
// (loopGoroutine) rather than because it does any masking.
type criticalSection struct {
	loopGoroutine bool
}

// enter checks the loopGoroutine flag, which Init sets just before it
// starts the scheduler loop. It is called at the top of every loop
// request handler. It does not identify the calling goroutine: it
// catches a handler run on a kernel whose loop was never started, not
// a call from some goroutine other than the loop.
func (g *criticalSection) enter() {
	if !g.loopGoroutine {
		panic("sched: critical section entered off the scheduler loop goroutine")
	}
}
