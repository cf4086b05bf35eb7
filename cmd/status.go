// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stroomlab/circlet/pkg/plugwise"
)

var statusCmd = &cobra.Command{
	Use:   "status <device>",
	Short: "Show device status and calibration",
	Long: `Fetch one Circle's status snapshot: clock stamp, relay state, line
frequency, hardware and firmware identification, and the calibration
constants the engine converts readings with.

Anomalous values (a clock that was never set, blank calibration flash) are
flagged after the listing.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, circle, cleanup, err := openCircle(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := circle.Info(ctx)
	if err != nil {
		return err
	}

	relay := "off"
	if info.RelayOn {
		relay = "on"
	}

	fmt.Printf("Device:       %s\n", circle.MAC())
	fmt.Printf("Relay:        %s\n", relay)
	if stamp, ok := info.Stamp.Time(); ok {
		fmt.Printf("Device clock: %s\n", stamp.Format("2006-01-02 15:04 MST"))
	} else {
		fmt.Printf("Device clock: not set\n")
	}
	fmt.Printf("Log slot:     %d\n", info.LastLogSlot)
	fmt.Printf("Line freq:    %d Hz\n", info.LineFreqHz)
	fmt.Printf("Hardware:     %s\n", info.HardwareVersion)
	fmt.Printf("Firmware:     %s\n", info.FirmwareTime.Format("2006-01-02"))

	cal := circle.Calibration()
	fmt.Printf("Calibration:  gainA=%g gainB=%g offTotal=%g offNoise=%g\n",
		cal.GainA, cal.GainB, cal.OffTotal, cal.OffNoise)

	anomalies := plugwise.ValidateResponse(info)
	anomalies = append(anomalies, plugwise.ValidateResponse(plugwise.ResCalibration{Calibration: cal})...)
	for _, a := range anomalies {
		fmt.Printf("WARNING: %s\n", a.Message)
	}
	return nil
}
