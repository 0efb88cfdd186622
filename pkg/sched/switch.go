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

// clampPriority derives a task's dynamic priority from its niceness:
// higher priority runs first, and a lower (more negative) nice value
// yields a higher priority. clamp(MaxNice-nice, 0, MaxNice-MinNice).
func clampPriority(nice int) int {
	p := MaxNice - nice
	if p < 0 {
		p = 0
	}
	if p > MaxNice-MinNice {
		p = MaxNice - MinNice
	}
	return p
}

// doSwitch is the scheduler's dispatch routine, called on the loop
// goroutine only. caller is the task that is yielding the logical host
// thread, whose state has already been set by the caller of doSwitch
// (Ready for a tick exhaustion, Sleeping for a Wait with no exited
// child yet, Zombie for a non-root Exit).
//
// doSwitch never itself blocks to "save" caller's context: by the time
// any of the three call sites above reaches here, caller's own
// goroutine is already either about to park (Wait, via its reply
// channel) or about to terminate (Exit), or will park on its own next
// CheckPoint call (a tick exhaustion, unless doSwitch re-selects it
// right away): a Go goroutine cannot be
// suspended from the outside, which is why CheckPoint exists as a
// necessary cooperative yield point.
func (k *Kernel) doSwitch(caller *Task) {
	k.guard.enter()

	// Step 1: zombie wakeup shortcut. A child that just exited into a
	// Sleeping parent hands the host thread directly back to that
	// parent, bypassing the round-robin scan entirely.
	if caller.state == Zombie && caller.parent != nil && caller.parent.state == Sleeping {
		parent := caller.parent
		result := k.reapChildren(parent)
		parent.state = Running
		k.current = parent
		if parent.waitReply != nil {
			reply := parent.waitReply
			parent.waitReply = nil
			reply <- result
		}
		k.log.WithFields(map[string]interface{}{
			"woke": parent.Pid,
			"from": "zombie_wakeup",
		}).Debug("sched: dispatch")
		return
	}

	caller.SliceMax = 0
	caller.SliceAcc = 0

	// Steps 2-3: refresh every living task's priority from its current
	// niceness, and notice whether any Ready task still has slice left
	// in the current round.
	roundExhausted := true
	k.living.forEach(func(t *Task) {
		t.Priority = clampPriority(t.Nice)
		if t.state == Ready && t.SliceMax != 0 {
			roundExhausted = false
		}
	})

	// Steps 4-5: if the round is exhausted, every task gets a fresh
	// slice; otherwise only tasks that haven't run this round do.
	k.living.forEach(func(t *Task) {
		if roundExhausted || t.SliceMax != 0 {
			t.SliceMax = uint64(t.Priority + 1)
		}
	})

	// Step 7: pick the Ready task with the highest priority that still
	// has slice left this round; ties broken by ring order (earliest
	// wins, since forEach walks front to back and we only replace best
	// on a strict improvement).
	var best *Task
	bestPriority := -1
	k.living.forEach(func(t *Task) {
		if t.state == Ready && t.SliceMax != 0 && t.Priority > bestPriority {
			bestPriority = t.Priority
			best = t
		}
	})

	// Step 8: nothing to dispatch. The original treats this as fatal.
	if best == nil {
		panic(deadlockError{})
	}

	k.log.WithFields(map[string]interface{}{
		"from": caller.Pid,
		"to":   best.Pid,
	}).Debug("sched: dispatch")

	k.current = best
	best.state = Running
	// A task re-selected before its goroutine parked again (e.g. the
	// only runnable task, re-picked on its own tick exhaustion) may
	// already hold an unconsumed resume; that one suffices, and a
	// second send would block the loop on the full buffer.
	select {
	case best.resumeCh <- switchRet:
	default:
	}
}

// reapChildren walks parent's children once, reaping every Zombie
// found and returning the last one encountered — see DESIGN.md for why
// "last" was chosen when several zombies are pending at once.
func (k *Kernel) reapChildren(parent *Task) waitResult {
	var zombies []*Task
	parent.children.forEach(func(c *Task) {
		if c.state == Zombie {
			zombies = append(zombies, c)
		}
	})
	if len(zombies) == 0 {
		return waitResult{pid: -1, err: ErrNoChildren}
	}
	var result waitResult
	for _, c := range zombies {
		result = waitResult{pid: c.Pid, code: c.ExitCode}
		remove(c.globalNode)
		remove(c.siblingNode)
		c.globalNode, c.siblingNode = nil, nil
	}
	return result
}
