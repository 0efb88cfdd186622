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

// TickSource delivers virtual-timer ticks into the scheduler loop. The
// real implementation (RealTickSource, in tick_unix.go) arms an actual
// ITIMER_VIRTUAL and forwards the resulting SIGVTALRM deliveries; tests
// use a ManualTickSource instead, substituting an explicitly-driven
// clock for a real one rather than sleeping in lockstep with a
// wall-clock timer.
type TickSource interface {
	// Ticks returns a channel that receives one value per virtual-time
	// tick. The channel is never closed by a well-behaved source.
	Ticks() <-chan struct{}

	// Stop releases any OS resources (timer, signal registration) held
	// by the source. Safe to call more than once.
	Stop()
}

// ManualTickSource is a TickSource a test drives explicitly, with no
// relationship to wall-clock time.
type ManualTickSource struct {
	ch chan struct{}
}

// NewManualTickSource returns a TickSource with no automatic ticking.
func NewManualTickSource() *ManualTickSource {
	return &ManualTickSource{ch: make(chan struct{}, 1)}
}

// Ticks implements TickSource.
func (m *ManualTickSource) Ticks() <-chan struct{} { return m.ch }

// Tick delivers exactly one tick. It blocks until the scheduler loop has
// room to accept it, which keeps tests deterministic: Tick returns only
// after the tick has been enqueued (not necessarily processed).
func (m *ManualTickSource) Tick() {
	m.ch <- struct{}{}
}

// Stop implements TickSource.
func (m *ManualTickSource) Stop() {}
