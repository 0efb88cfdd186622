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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/archwa/vsched/pkg/sched"
)

// demoChildren and demoTarget reproduce the original scheduler's own
// testbed(): task 1 lowers its own niceness to 19 (lowest priority),
// forks five children with nice = 5*i-20 for i in [0,5), and each
// child spins on CheckPoint until its own cpu_time reaches
// demoTarget before exiting with its final tick count as its status.
const (
	demoChildren = 5
	demoTarget   = 100
)

// Demo implements subcommands.Command for "demo": it runs the
// five-child nice-ordering scenario to completion in-process and
// prints each child's pid, niceness and final tick count in the order
// task 1 reaped them.
type Demo struct {
	configPath string
}

// Name implements subcommands.Command.
func (*Demo) Name() string { return "demo" }

// Synopsis implements subcommands.Command.
func (*Demo) Synopsis() string {
	return "run the five-child nice-ordering demonstration to completion"
}

// Usage implements subcommands.Command.
func (*Demo) Usage() string {
	return "demo [flags]\n"
}

// SetFlags implements subcommands.Command.
func (d *Demo) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.configPath, "config", "", "optional TOML config file")
}

// Execute implements subcommands.Command.
func (d *Demo) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := loadConfig(d.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	k := sched.NewKernel(cfg)
	tick := sched.NewManualTickSource()
	go driveDemoTicks(tick)

	code, err := k.Init(demoEntry, func() (sched.TickSource, error) { return tick, nil })
	if err != nil {
		fmt.Fprintln(os.Stderr, "vsched: demo:", err)
		return subcommands.ExitFailure
	}
	fmt.Println("task 1 exited with code", code)
	return subcommands.ExitSuccess
}

// driveDemoTicks fires ticks as fast as the scheduler can consume
// them: the demo cares about dispatch order, not wall-clock fidelity,
// so it does not wait on a real timer the way "vsched run" does.
func driveDemoTicks(tick *sched.ManualTickSource) {
	for {
		tick.Tick()
	}
}

// demoEntry is task 1's body for the demo scenario.
func demoEntry(self *sched.Task) int {
	self.Nice(sched.MaxNice)

	nices := make(map[int]int, demoChildren)

	for i := 0; i < demoChildren; i++ {
		nice := 5*i - 20
		pid, err := self.Fork(func(c *sched.Task) int {
			c.Nice(nice)
			var last uint64
			for last < demoTarget {
				last = c.CheckPoint()
			}
			return int(last)
		})
		if err != nil {
			fmt.Println("vsched: demo: fork failed:", err)
			return 1
		}
		nices[pid] = nice
	}

	for i := 0; i < demoChildren; i++ {
		pid, code, err := self.Wait()
		if err != nil {
			fmt.Println("vsched: demo: wait failed:", err)
			return 1
		}
		fmt.Printf("reaped pid=%d nice=%d exit_code=%d\n", pid, nices[pid], code)
	}
	return 0
}
