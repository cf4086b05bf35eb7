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

var onCmd = &cobra.Command{
	Use:   "on <device>",
	Short: "Close a device's relay",
	Long: `Close the relay of one Circle, powering its load.

The command blocks until the device acknowledges the switch, so a zero
exit status means the relay actually moved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwitch(args[0], true)
	},
}

var offCmd = &cobra.Command{
	Use:   "off <device>",
	Short: "Open a device's relay",
	Long:  `Open the relay of one Circle, cutting power to its load.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwitch(args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
}

func runSwitch(device string, on bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, circle, cleanup, err := openCircle(ctx, device)
	if err != nil {
		return err
	}
	defer cleanup()

	if on {
		err = circle.SwitchOn(ctx)
	} else {
		err = circle.SwitchOff(ctx)
	}
	if err != nil {
		return err
	}

	state := "off"
	if on {
		state = "on"
	}
	fmt.Printf("%s: relay %s\n", circle.MAC(), state)
	return nil
}
