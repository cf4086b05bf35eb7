// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stroomlab/circlet/pkg/plugwise"
)

var (
	pollInterval  time.Duration
	statsInterval time.Duration
)

var statsCmd = &cobra.Command{
	Use:   "stats <device>",
	Short: "Poll a device and report link statistics",
	Long: `Continuously poll one Circle's power counters and report transport
statistics: decoded frames, checksum failures, noise, retries and
timeouts.

Run this against a flaky installation to tell radio trouble (timeouts,
retries) apart from serial trouble (checksum failures, noise bytes).
Individual poll timeouts are reported and survived; polling continues
until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().DurationVar(&pollInterval, "interval", time.Second, "Poll interval")
	statsCmd.Flags().DurationVar(&statsInterval, "stats-interval", 10*time.Second, "Statistics summary interval")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stick, circle, cleanup, err := openCircle(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Polling %s every %s, summary every %s. Press Ctrl+C to exit.\n\n",
		circle.MAC(), pollInterval, statsInterval)

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	summary := time.NewTicker(statsInterval)
	defer summary.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n%s\n", stick.Stats())
			return nil

		case <-poll.C:
			usage, err := circle.Power(ctx)
			switch {
			case errors.Is(err, plugwise.ErrTimeout):
				logger.Warn().Msg("poll timed out")
			case errors.Is(err, context.Canceled):
				// Interrupted mid-request; the summary prints on the
				// next ctx.Done pass.
			case err != nil:
				return err
			default:
				logger.Info().
					Float64("watts_8s", usage.Watts8s).
					Float64("kwh_hour", usage.KWhHour).
					Msg("power reading")
			}

		case <-summary.C:
			fmt.Printf("%s\n\n", stick.Stats())
		}
	}
}
