// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Joystat - GameCube/N64 controller bus tool
//
// A CLI tool for sending joybus commands through a pulse bridge and
// decoding controller reports in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/joystat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
