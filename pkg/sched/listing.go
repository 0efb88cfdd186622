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

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"
)

// TaskInfo is one row of a Listing snapshot: pid, ppid, state name,
// synthetic stack base, nice, dynamic priority, cpu_time. The exact
// textual rendering of a listing is deliberately out of scope here;
// TaskInfo is the machine-inspectable part.
type TaskInfo struct {
	Pid       int
	Ppid      int
	State     string
	StackBase uintptr
	Nice      int
	Priority  int
	CPUTime   uint64
}

// Listing enumerates every task in the living ring, in ring order.
func (k *Kernel) Listing() ([]TaskInfo, error) {
	reply := make(chan []TaskInfo, 1)
	select {
	case k.reqCh <- request{kind: reqListing, listingReply: reply}:
	case <-k.done:
		return nil, ErrNotRunning
	}
	select {
	case infos := <-reply:
		return infos, nil
	case <-k.done:
		return nil, ErrNotRunning
	}
}

func (k *Kernel) handleListing() []TaskInfo {
	k.guard.enter()
	var infos []TaskInfo
	k.living.forEach(func(t *Task) {
		infos = append(infos, TaskInfo{
			Pid:       t.Pid,
			Ppid:      t.Ppid,
			State:     t.state.String(),
			StackBase: t.StackBase,
			Nice:      t.Nice,
			Priority:  t.Priority,
			CPUTime:   t.CPUTime.Load(),
		})
	})
	return infos
}

// abortListingSource installs Listing as the SIGABRT handler,
// mirroring the original's signal(SIGABRT, sched_ps). A
// rate.Limiter debounces repeated deliveries (e.g. an operator holding
// down a "send abort" key, or a scripted stress test) into at most one
// listing pass per window, so a signal flood cannot starve the
// scheduler loop of real work.
type abortListingSource struct {
	sigCh   chan os.Signal
	stopCh  chan struct{}
	limiter *rate.Limiter
}

// installAbortListing registers SIGABRT and drives k.Listing() at most
// burstWindow times per second, logging one Info entry per listed task.
// It returns a stop function.
func installAbortListing(k *Kernel, burstWindow float64) func() {
	s := &abortListingSource{
		sigCh:   make(chan os.Signal, 4),
		stopCh:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(burstWindow), 1),
	}
	signal.Notify(s.sigCh, syscall.SIGABRT)
	go func() {
		for {
			select {
			case <-s.sigCh:
				if !s.limiter.Allow() {
					continue
				}
				infos, err := k.Listing()
				if err != nil {
					return
				}
				for _, in := range infos {
					k.log.WithFields(map[string]interface{}{
						"pid":        in.Pid,
						"ppid":       in.Ppid,
						"state":      in.State,
						"stack_base": in.StackBase,
						"nice":       in.Nice,
						"priority":   in.Priority,
						"cpu_time":   in.CPUTime,
					}).Info("sched: listing")
				}
			case <-s.stopCh:
				return
			}
		}
	}()
	return func() {
		signal.Stop(s.sigCh)
		close(s.stopCh)
	}
}
