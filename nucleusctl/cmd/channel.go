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

package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"soliloquy.dev/nucleus/pkg/kernel"
)

// Channel implements subcommands.Command for the "channel" command.
type Channel struct {
	messages int
}

// Name implements subcommands.Command.Name.
func (*Channel) Name() string {
	return "channel"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Channel) Synopsis() string {
	return "round-trip messages over a channel pair"
}

// Usage implements subcommands.Command.Usage.
func (*Channel) Usage() string {
	return `channel [flags]`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Channel) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.messages, "messages", 3, "number of messages to round-trip")
}

// Execute implements subcommands.Command.Execute.
func (c *Channel) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	k := kernel.New(0)
	defer k.Destroy()

	h0, h1, err := k.ChannelCreate()
	if err != nil {
		Fatalf("creating channel: %v", err)
	}
	fmt.Printf("channel handles %d/%d\n", h0, h1)

	buf := make([]byte, 64)
	for i := 0; i < c.messages; i++ {
		msg := fmt.Sprintf("message %d", i)
		if err := k.ChannelWrite(h0, []byte(msg), nil); err != nil {
			Fatalf("writing %q: %v", msg, err)
		}
		n, _, err := k.ChannelRead(h1, buf, nil)
		if err != nil {
			Fatalf("reading: %v", err)
		}
		fmt.Printf("h%d -> h%d: %q\n", h0, h1, buf[:n])
	}

	if err := k.ChannelClose(h1); err != nil {
		Fatalf("closing %d: %v", h1, err)
	}
	err = k.ChannelWrite(h0, []byte("into the void"), nil)
	fmt.Printf("write after peer close: %v\n", err)
	if err := k.ChannelClose(h0); err != nil {
		Fatalf("closing %d: %v", h0, err)
	}
	return subcommands.ExitSuccess
}
