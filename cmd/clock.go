// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var clockSync bool

var clockCmd = &cobra.Command{
	Use:   "clock <device>",
	Short: "Read or synchronize a device clock",
	Long: `Read one Circle's time of day and compare it against the host clock.
Circles timestamp their hourly consumption log with this clock, so drift
shows up as history samples attributed to the wrong hour.

With --sync the device clock is set to the host's current UTC time first.`,
	Args: cobra.ExactArgs(1),
	RunE: runClock,
}

func init() {
	rootCmd.AddCommand(clockCmd)
	clockCmd.Flags().BoolVar(&clockSync, "sync", false, "Set the device clock to host UTC time")
}

func runClock(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, circle, cleanup, err := openCircle(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	if clockSync {
		if err := circle.SetClock(ctx, time.Now()); err != nil {
			return err
		}
		fmt.Printf("%s: clock synchronized\n", circle.MAC())
	}

	clock, err := circle.Clock(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	deviceSec := int(clock.Hour)*3600 + int(clock.Minute)*60 + int(clock.Second)
	hostSec := now.Hour()*3600 + now.Minute()*60 + now.Second()
	drift := deviceSec - hostSec

	fmt.Printf("Device:  %s\n", circle.MAC())
	fmt.Printf("Clock:   %02d:%02d:%02d UTC (%s)\n", clock.Hour, clock.Minute, clock.Second, clock.Weekday())
	fmt.Printf("Host:    %s UTC\n", now.Format("15:04:05"))
	fmt.Printf("Drift:   %+d s\n", drift)
	return nil
}
