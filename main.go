// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dobotlink - Dobot Magician Serial Protocol Client
//
// A CLI tool for driving a Dobot Magician over its binary serial protocol,
// sniffing the line, and bridging the command set to HTTP.

package main

import (
	"os"

	"github.com/Thermoquad/dobotlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
