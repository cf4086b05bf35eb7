// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab
//
// Circlet - Plugwise Circle mesh control
//
// A CLI tool for switching, metering and diagnosing Plugwise Circle
// devices through a serial-attached Circle+ stick.

package main

import (
	"os"

	"github.com/stroomlab/circlet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
