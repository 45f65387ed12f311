// Copyright 2026 The Soliloquy Authors.
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

// Package cli is the main entrypoint for nucleusctl.
package cli

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"soliloquy.dev/nucleus/nucleusctl/cmd"
	"soliloquy.dev/nucleus/pkg/log"
)

var (
	// Debugging flags.
	debug   = flag.Bool("debug", false, "enable debug logging.")
	logJSON = flag.Bool("log-json", false, "emit logs in JSON format.")
)

// Main is the main entrypoint.
func Main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Arena), "")
	subcommands.Register(new(cmd.Fault), "")
	subcommands.Register(new(cmd.Channel), "")
	subcommands.Register(new(cmd.Selfcheck), "")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if *logJSON {
		log.SetTarget(log.JSONEmitter{Writer: &log.Writer{Next: os.Stderr}})
	}
	if *debug {
		log.SetLevel(log.Debug)
	}

	os.Exit(int(subcommands.Execute(context.Background())))
}
