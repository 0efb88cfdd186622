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

//go:build linux

package sched

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RealTickSource arms a real ITIMER_VIRTUAL and translates every
// resulting SIGVTALRM into a tick: the direct Go analogue of the
// original's setitimer(ITIMER_VIRTUAL, ...) plus
// signal(SIGVTALRM, sched_tick) (sched.c's sched_init). Virtual time
// only advances while this process is actually burning CPU, which
// matches "ticks charged to" a simulated task better than a
// wall-clock ticker would.
type RealTickSource struct {
	ch     chan struct{}
	sigCh  chan os.Signal
	stopCh chan struct{}
}

// NewRealTickSource arms ITIMER_VIRTUAL at period and begins forwarding
// SIGVTALRM as ticks. period is truncated to microsecond resolution,
// matching setitimer's granularity.
func NewRealTickSource(period time.Duration) (*RealTickSource, error) {
	r := &RealTickSource{
		ch:     make(chan struct{}, 1),
		sigCh:  make(chan os.Signal, 4),
		stopCh: make(chan struct{}),
	}

	signal.Notify(r.sigCh, syscall.SIGVTALRM)
	go r.forward()

	usec := period.Microseconds()
	it := unix.Itimerval{
		Interval: unix.Timeval{Sec: usec / 1e6, Usec: usec % 1e6},
		Value:    unix.Timeval{Sec: usec / 1e6, Usec: usec % 1e6},
	}
	if err := unix.Setitimer(unix.ITIMER_VIRTUAL, &it, nil); err != nil {
		signal.Stop(r.sigCh)
		close(r.stopCh)
		return nil, err
	}
	return r, nil
}

func (r *RealTickSource) forward() {
	for {
		select {
		case <-r.sigCh:
			select {
			case r.ch <- struct{}{}:
			default:
				// The loop hasn't drained the previous tick yet (it was
				// inside a critical section); coalescing here is equivalent
				// to the original
				// masking SIGVTALRM and taking one pending tick once
				// unmasked.
				logrus.Debug("sched: coalesced a virtual tick behind a busy scheduler loop")
			}
		case <-r.stopCh:
			return
		}
	}
}

// Ticks implements TickSource.
func (r *RealTickSource) Ticks() <-chan struct{} { return r.ch }

// Stop implements TickSource.
func (r *RealTickSource) Stop() {
	select {
	case <-r.stopCh:
		return
	default:
	}
	var zero unix.Itimerval
	unix.Setitimer(unix.ITIMER_VIRTUAL, &zero, nil)
	signal.Stop(r.sigCh)
	close(r.stopCh)
}
