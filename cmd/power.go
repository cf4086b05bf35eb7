// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var powerCmd = &cobra.Command{
	Use:   "power <device>",
	Short: "Read live power draw",
	Long: `Fetch one Circle's live pulse counters and convert them to calibrated
units: instantaneous watts over the last one and eight seconds, and the
energy metered in the current hour so far.

The eight-second reading is the steadier of the two; the one-second
reading reacts faster to load changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runPower,
}

func init() {
	rootCmd.AddCommand(powerCmd)
}

func runPower(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, circle, cleanup, err := openCircle(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	usage, err := circle.Power(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Device:    %s\n", circle.MAC())
	fmt.Printf("Power 1s:  %.1f W\n", usage.Watts1s)
	fmt.Printf("Power 8s:  %.1f W\n", usage.Watts8s)
	fmt.Printf("This hour: %.4f kWh\n", usage.KWhHour)
	if usage.Saturated {
		fmt.Printf("WARNING: pulse counter saturated, load exceeds metering range\n")
	}
	return nil
}
