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

import "errors"

// Sentinel errors returned by the public operations. These are
// declared with stdlib errors rather than a third-party wrapping
// package: gvisor's own sentinel-error package (pkg/errors/linuxerr)
// is itself hand-rolled on top of stdlib errors, not a reusable
// third-party dependency, so there is nothing in the pack to wire
// here (see DESIGN.md).
var (
	// ErrNoChildren is returned by Wait when the caller has no children
	// at all.
	ErrNoChildren = errors.New("sched: task has no children")

	// ErrSaturated is returned by Fork when no pid remains.
	ErrSaturated = errors.New("sched: pid table saturated")

	// ErrSetupFailed is returned by Init when one-time setup (timer
	// arming) could not complete.
	ErrSetupFailed = errors.New("sched: setup failed")

	// ErrNotRunning is returned by operations invoked on a kernel that
	// has not been started, or that has already shut down.
	ErrNotRunning = errors.New("sched: kernel not running")
)

// deadlockError is raised internally when Switch finds no dispatchable
// task: the round has nothing left to run. Aborting a whole host
// process from inside a library is not acceptable Go practice, so it
// is surfaced as a typed panic instead. The panic is raised on the
// scheduler loop goroutine, which does not recover it, so it still
// terminates the process; a caller of Init cannot recover it from its
// own goroutine.
type deadlockError struct{}

func (deadlockError) Error() string {
	return "sched: no READY task available for dispatch (scheduler deadlock)"
}
