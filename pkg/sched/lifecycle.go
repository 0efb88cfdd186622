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

import "github.com/mohae/deepcopy"

// reqKind identifies which handler dispatch should run for a request.
type reqKind int

const (
	reqInit reqKind = iota
	reqFork
	reqExit
	reqWait
	reqNice
	reqCheckPoint
	reqListing
	reqTick
)

// request is the single message type every task goroutine (and the
// tick forwarder) sends into the scheduler loop's reqCh. Only the
// fields relevant to kind are populated.
type request struct {
	kind reqKind
	task *Task

	initEntry func(*Task) int

	forkChild func(*Task) int
	forkReply chan forkResult

	exitCode int

	waitReply chan waitResult

	niceVal int

	checkReply chan bool

	listingReply chan []TaskInfo
}

type forkResult struct {
	pid int
	err error
}

type waitResult struct {
	pid  int
	code int
	err  error
}

// Fork creates a new task as a child of t, running child in its own
// goroutine once dispatched. It returns the child's pid immediately;
// unlike the original fork(), it never returns twice, since a Go
// goroutine has exactly one continuation.
func (t *Task) Fork(child func(*Task) int) (int, error) {
	reply := make(chan forkResult, 1)
	t.k.reqCh <- request{kind: reqFork, task: t, forkChild: child, forkReply: reply}
	r := <-reply
	return r.pid, r.err
}

// Exit marks t a zombie, reparents its children to t's parent, and
// hands the logical host thread to whoever Switch picks next. It never
// returns: the goroutine that calls it is done, mirroring how a
// process's exit() never returns to its caller. Calling Exit is always safe to
// do as the last statement of an entry/child function; the goroutine
// launched by Init/Fork also calls it automatically if that function
// returns without calling it first, so application code only needs to
// call it explicitly to exit early or with a specific code.
func (t *Task) Exit(code int) {
	t.k.reqCh <- request{kind: reqExit, task: t, exitCode: code}
	select {} // never return: see doc comment above
}

// Wait blocks until at least one child has exited, then reaps every
// exited child, returning the pid and exit code of the last one found
// in t's children ring. If t has no children at all, it returns
// ErrNoChildren immediately.
func (t *Task) Wait() (pid int, code int, err error) {
	reply := make(chan waitResult, 1)
	t.k.reqCh <- request{kind: reqWait, task: t, waitReply: reply}
	r := <-reply
	return r.pid, r.code, r.err
}

// Nice sets t's niceness, effective from the next priority refresh.
// Values outside [MinNice, MaxNice] are ignored.
func (t *Task) Nice(v int) {
	t.k.reqCh <- request{kind: reqNice, task: t, niceVal: v}
}

// CheckPoint is the cooperative yield point the simulation relies on
// for preemption: it lets any tick already charged against t take
// effect, and blocks t's goroutine if doing so preempted it, until
// Switch dispatches it again. It returns t's current cpu_time, the
// same value GetTick reports. Long-running task bodies (anything that
// would spin waiting on its own cpu_time, as in the classic nice-order
// demonstration) must call this periodically to be preemptible at all.
func (t *Task) CheckPoint() uint64 {
	for {
		reply := make(chan bool, 1)
		t.k.reqCh <- request{kind: reqCheckPoint, task: t, checkReply: reply}
		if <-reply {
			return t.CPUTime.Load()
		}
		<-t.resumeCh
	}
}

// GetPid returns t's own pid. A plain field read is safe here: Pid
// never changes after creation.
func (t *Task) GetPid() int { return t.Pid }

// GetPpid returns t's parent's pid. A plain field read is safe here:
// Ppid is only mutated by the loop goroutine while t is not the
// dispatched task (re-parenting targets a task that cannot itself be
// the one calling GetPpid at that moment).
func (t *Task) GetPpid() int { return t.Ppid }

// GetTick returns t's total charged cpu_time without checkpointing.
func (t *Task) GetTick() uint64 { return t.CPUTime.Load() }

// handleInit builds task 1 on top of entry and kicks off its
// goroutine, mirroring sched_init's final restorectx into proc_init.
// Priority starts at the fixed DefaultPriority regardless of nice, the
// same way the original hardcodes proc_init.priority = 20; the dynamic
// clampPriority formula only applies from the first doSwitch refresh
// onward.
func (k *Kernel) handleInit(entry func(*Task) int) {
	k.guard.enter()

	t := newTask()
	t.Pid = k.pids.acquire() // always 1 on a fresh kernel
	t.Ppid = 1
	t.Nice = k.cfg.DefaultNice
	t.Priority = DefaultPriority
	t.SliceMax = k.cfg.InitialSlice
	t.StackBase = stackBaseFor(t.Pid)
	t.parent = t
	t.state = Running
	t.k = k

	t.globalNode = &ringNode{task: t}
	k.living.pushFront(t.globalNode)
	k.current = t

	go func() {
		<-t.resumeCh
		close(t.started)
		code := entry(t)
		t.Exit(code)
	}()
	t.resumeCh <- switchRet
}

// handleFork builds the new task and launches it: child runs as the
// new task's goroutine body instead of being a second return from
// this call, the way a second return from fork() would in the
// original. Priority starts at the fixed DefaultPriority, same as
// handleInit, regardless of the parent's current nice or priority.
func (k *Kernel) handleFork(parent *Task, child func(*Task) int, reply chan forkResult) {
	k.guard.enter()

	pid := k.pids.acquire()
	if pid == 0 {
		reply <- forkResult{pid: -1, err: ErrSaturated}
		return
	}

	c := newTask()
	c.Pid = pid
	c.Ppid = parent.Pid
	c.Nice = parent.Nice
	c.Priority = DefaultPriority
	c.state = Ready
	c.SliceMax = k.cfg.InitialSlice
	c.StackBase = stackBaseFor(pid)
	c.parent = parent
	c.k = k
	if parent.Inherited != nil {
		c.Inherited = deepcopy.Copy(parent.Inherited).(map[string]string)
	}

	c.globalNode = &ringNode{task: c}
	insertAfter(parent.globalNode, c.globalNode)

	c.siblingNode = &ringNode{task: c}
	parent.children.pushFront(c.siblingNode)

	go func() {
		<-c.resumeCh
		close(c.started)
		code := child(c)
		c.Exit(code)
	}()

	reply <- forkResult{pid: pid}
}

// handleExit zombifies t, reparents its children, and hands off to
// doSwitch. Task 1 exiting ends the whole simulation immediately,
// bypassing reparenting and doSwitch entirely, matching the original's
// special-cased restore into the global context.
func (k *Kernel) handleExit(t *Task, code int) {
	k.guard.enter()

	if t.Pid == 1 {
		k.rootDone <- code
		return
	}

	if !t.children.empty() {
		t.children.forEach(func(c *Task) {
			c.parent = t.parent
			c.Ppid = t.Ppid
		})
		spliceFront(t.parent.children, t.children)
	}

	t.state = Zombie
	t.ExitCode = code
	k.pids.release(t.Pid)
	k.doSwitch(t)
}

// handleWait reaps an already-exited child immediately, or parks the
// caller until one exits.
func (k *Kernel) handleWait(t *Task, reply chan waitResult) {
	k.guard.enter()

	if t.children.empty() {
		reply <- waitResult{pid: -1, err: ErrNoChildren}
		return
	}

	hasZombie := false
	t.children.forEach(func(c *Task) {
		if c.state == Zombie {
			hasZombie = true
		}
	})
	if hasZombie {
		reply <- k.reapChildren(t)
		return
	}

	t.state = Sleeping
	t.SliceAcc = 0
	t.waitReply = reply
	k.doSwitch(t)
}

// handleNice sets t's niceness; the new value only takes effect at the
// next priority refresh inside doSwitch.
func (k *Kernel) handleNice(t *Task, v int) {
	k.guard.enter()
	if v >= MinNice && v <= MaxNice {
		t.Nice = v
	}
}

// handleCheckPoint reports whether t is still the dispatched task.
func (k *Kernel) handleCheckPoint(t *Task) bool {
	k.guard.enter()
	return k.current == t && t.state == Running
}

// handleTick charges one tick to the running task, or hands it off to
// doSwitch once its slice is spent.
func (k *Kernel) handleTick() {
	k.guard.enter()

	t := k.current
	if t == nil || t.state != Running {
		return
	}
	if t.SliceAcc < t.SliceMax {
		t.CPUTime.Add(1)
		t.SliceAcc++
		return
	}
	t.state = Ready
	k.doSwitch(t)
}
