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

// Ps implements subcommands.Command for "ps": the CLI-level hook for
// Kernel.Listing, the same snapshot a live instance logs when its
// operator sends it SIGABRT (see pkg/sched/listing.go's
// installAbortListing). Since this simulation has no out-of-process
// control surface to attach to, Ps runs the five-child nice-ordering
// scenario in-process and takes one Listing snapshot partway through,
// once every child has been forked but before any have been reaped.
type Ps struct {
	configPath string
}

// Name implements subcommands.Command.
func (*Ps) Name() string { return "ps" }

// Synopsis implements subcommands.Command.
func (*Ps) Synopsis() string {
	return "list the living task table partway through the demo scenario"
}

// Usage implements subcommands.Command.
func (*Ps) Usage() string { return "ps [flags]\n" }

// SetFlags implements subcommands.Command.
func (p *Ps) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.configPath, "config", "", "optional TOML config file")
}

// Execute implements subcommands.Command.
func (p *Ps) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := loadConfig(p.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	k := sched.NewKernel(cfg)
	tick := sched.NewManualTickSource()
	go driveDemoTicks(tick)

	snapshot := make(chan []sched.TaskInfo, 1)
	code, err := k.Init(psEntry(snapshot), func() (sched.TickSource, error) { return tick, nil })
	if err != nil {
		fmt.Fprintln(os.Stderr, "vsched: ps:", err)
		return subcommands.ExitFailure
	}

	printListing(<-snapshot)
	fmt.Println("task 1 exited with code", code)
	return subcommands.ExitSuccess
}

// psEntry runs the demo scenario, taking one Listing snapshot right
// after the last child is forked and handing it to out before waiting
// for any of them to exit.
func psEntry(out chan<- []sched.TaskInfo) func(*sched.Task) int {
	return func(self *sched.Task) int {
		self.Nice(sched.MaxNice)

		pids := make([]int, 0, demoChildren)
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
				fmt.Println("vsched: ps: fork failed:", err)
				out <- nil
				return 1
			}
			pids = append(pids, pid)
			nices[pid] = nice
		}

		infos, err := self.Kernel().Listing()
		if err != nil {
			fmt.Println("vsched: ps: listing failed:", err)
		}
		out <- infos

		for range pids {
			if _, _, err := self.Wait(); err != nil {
				fmt.Println("vsched: ps: wait failed:", err)
				return 1
			}
		}
		return 0
	}
}

// printListing renders a Listing snapshot as a fixed-width table with
// columns pid, ppid, state, nice, priority and cpu_time; TaskInfo's
// StackBase is not printed.
func printListing(infos []sched.TaskInfo) {
	fmt.Printf("%-6s %-6s %-10s %-6s %-6s %-8s\n", "PID", "PPID", "STATE", "NICE", "PRI", "TIME")
	for _, in := range infos {
		fmt.Printf("%-6d %-6d %-10s %-6d %-6d %-8d\n", in.Pid, in.Ppid, in.State, in.Nice, in.Priority, in.CPUTime)
	}
}
