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
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Config carries the tunables otherwise fixed as package constants. The
// constants remain the defaults; Config lets cmd/vsched override them
// from a TOML file without touching library code.
type Config struct {
	// NPROC bounds the number of simultaneously live (non-reaped) pids.
	// A value <= 0 falls back to the package default, NPROC.
	NPROC int

	// InitialSlice is the slice_max a freshly forked task starts with,
	// before it has ever been through a full round in doSwitch. A value
	// <= 0 falls back to the package default, InitialSlice.
	InitialSlice uint64

	// TickPeriod is only consulted by callers that construct a
	// RealTickSource; it has no effect on an injected ManualTickSource.
	TickPeriod time.Duration

	// DefaultNice is task 1's starting niceness.
	DefaultNice int

	// ListingBurstRate bounds how many SIGABRT-triggered listings are
	// serviced per second (see installAbortListing).
	ListingBurstRate float64

	// Log receives structured scheduler events. A nil Log uses
	// logrus.StandardLogger().
	Log *logrus.Logger
}

// DefaultConfig returns the package's fixed-configuration defaults.
func DefaultConfig() Config {
	return Config{
		NPROC:            NPROC,
		InitialSlice:     InitialSlice,
		TickPeriod:       TickPeriod,
		DefaultNice:      DefaultNice,
		ListingBurstRate: 5,
		Log:              logrus.StandardLogger(),
	}
}

// Kernel is one scheduler instance: the living ring, the pid allocator,
// and the single event-loop goroutine that owns both, encapsulating
// what would otherwise be global state in a single owning object so
// tests can instantiate multiple independent schedulers. Every
// exported method is safe to call concurrently from whichever task
// goroutine currently holds the logical host thread.
type Kernel struct {
	cfg Config
	log *logrus.Entry

	guard criticalSection

	reqCh chan request

	living *ring
	pids   *pidAllocator
	current *Task

	tick TickSource

	rootDone chan int
	done     chan struct{}

	stopAbort func()
}

// NewKernel constructs a Kernel. Call Init exactly once to start it.
func NewKernel(cfg Config) *Kernel {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.ListingBurstRate <= 0 {
		cfg.ListingBurstRate = 5
	}
	if cfg.InitialSlice <= 0 {
		cfg.InitialSlice = InitialSlice
	}
	return &Kernel{
		cfg:    cfg,
		log:    cfg.Log.WithField("component", "sched"),
		living: newRing(),
		pids:   newPidAllocator(cfg.NPROC),
		done:   make(chan struct{}),
	}
}

// Init installs the tick source (retrying transient setup failures with
// bounded backoff) and the SIGABRT listing handler, builds task 1 on
// top of entry, and blocks until task 1 exits — the Go-native
// analogue of a save-context/restore-context handoff into the first
// process. It returns the code task 1 exited with, or a wrapped
// ErrSetupFailed.
func (k *Kernel) Init(entry func(*Task) int, newTick func() (TickSource, error)) (int, error) {
	if k.reqCh != nil {
		return 0, fmt.Errorf("sched: Init called more than once")
	}

	tick, err := k.armTickSource(newTick)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	k.tick = tick

	k.reqCh = make(chan request)
	k.rootDone = make(chan int, 1)
	k.guard.loopGoroutine = true

	go k.loop()
	go k.forwardTicks()
	k.stopAbort = installAbortListing(k, k.cfg.ListingBurstRate)

	k.reqCh <- request{kind: reqInit, initEntry: entry}
	code := <-k.rootDone

	k.tick.Stop()
	k.stopAbort()
	close(k.done)

	k.log.WithField("exit_code", code).Info("task 1 exited; simulation complete")
	return code, nil
}

// armTickSource retries newTick with bounded exponential backoff. A
// fresh ITIMER_VIRTUAL arm (RealTickSource) can fail transiently if
// another itimer user raced us; a ManualTickSource constructor never
// fails, so this is a no-op retry loop in tests.
func (k *Kernel) armTickSource(newTick func() (TickSource, error)) (TickSource, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Second
	var tick TickSource
	err := backoff.Retry(func() error {
		t, err := newTick()
		if err != nil {
			k.log.WithError(err).Warn("sched: tick source setup failed, retrying")
			return err
		}
		tick = t
		return nil
	}, b)
	return tick, err
}

func (k *Kernel) forwardTicks() {
	ticks := k.tick.Ticks()
	for {
		select {
		case _, ok := <-ticks:
			if !ok {
				return
			}
			select {
			case k.reqCh <- request{kind: reqTick}:
			case <-k.done:
				return
			}
		case <-k.done:
			return
		}
	}
}

// loop is the scheduler's single writer: the Go-native replacement for
// a signal-masking critical section (see guard.go).
func (k *Kernel) loop() {
	for {
		select {
		case req := <-k.reqCh:
			k.dispatch(req)
		case <-k.done:
			return
		}
	}
}

func (k *Kernel) dispatch(req request) {
	switch req.kind {
	case reqInit:
		k.handleInit(req.initEntry)
	case reqFork:
		k.handleFork(req.task, req.forkChild, req.forkReply)
	case reqExit:
		k.handleExit(req.task, req.exitCode)
	case reqWait:
		k.handleWait(req.task, req.waitReply)
	case reqNice:
		k.handleNice(req.task, req.niceVal)
	case reqCheckPoint:
		req.checkReply <- k.handleCheckPoint(req.task)
	case reqListing:
		req.listingReply <- k.handleListing()
	case reqTick:
		k.handleTick()
	}
}

// stackBaseFor returns a synthetic, listing-only stand-in for a stack's
// base address (see Task.StackBase's doc comment).
func stackBaseFor(pid int) uintptr {
	const base = 0x0000_c000_0000_0000
	return uintptr(base + pid*StackSize)
}
