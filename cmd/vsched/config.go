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

// Package main is the vsched command line entry point: a small
// subcommands-based CLI for running and demonstrating the scheduler
// simulation in pkg/sched, modeled on runsc's own cli/main.go and
// runsc/config flag-and-file layering.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/archwa/vsched/pkg/sched"
)

// fileConfig is the on-disk shape of an optional TOML config file,
// overriding sched.DefaultConfig's tunables. Fields left at their zero
// value in the file do not override the default.
type fileConfig struct {
	NPROC            int     `toml:"nproc"`
	InitialSlice     uint64  `toml:"initial_slice"`
	TickPeriodMS     int64   `toml:"tick_period_ms"`
	DefaultNice      int     `toml:"default_nice"`
	ListingBurstRate float64 `toml:"listing_burst_rate"`
	LogLevel         string  `toml:"log_level"`
}

// loadConfig reads path (if non-empty) and layers it over
// sched.DefaultConfig(). A missing path is not an error: callers run
// with pure defaults.
func loadConfig(path string) (sched.Config, error) {
	cfg := sched.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return cfg, fmt.Errorf("vsched: reading config %q: %w", path, err)
	}

	if fc.NPROC > 0 {
		cfg.NPROC = fc.NPROC
	}
	if fc.InitialSlice > 0 {
		cfg.InitialSlice = fc.InitialSlice
	}
	if fc.TickPeriodMS > 0 {
		cfg.TickPeriod = time.Duration(fc.TickPeriodMS) * time.Millisecond
	}
	if fc.DefaultNice != 0 {
		cfg.DefaultNice = fc.DefaultNice
	}
	if fc.ListingBurstRate > 0 {
		cfg.ListingBurstRate = fc.ListingBurstRate
	}
	if fc.LogLevel != "" {
		lvl, err := logrus.ParseLevel(fc.LogLevel)
		if err != nil {
			return cfg, fmt.Errorf("vsched: parsing log_level %q: %w", fc.LogLevel, err)
		}
		log := logrus.New()
		log.SetLevel(lvl)
		log.SetOutput(os.Stderr)
		cfg.Log = log
	}
	return cfg, nil
}
