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

var (
	historyFrom  int64
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history <device>",
	Short: "Read hourly consumption history",
	Long: `Walk one Circle's on-board consumption log and print its hourly
samples, oldest first. Slots are fetched lazily, four samples at a time,
so a bounded read does not flood the mesh.

Each line is the hour's start time and the energy metered during it.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int64Var(&historyFrom, "from", 0, "First log slot to read")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Stop after this many samples (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, circle, cleanup, err := openCircle(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	it := circle.History(ctx, historyFrom)
	count := 0
	var total float64
	for it.Next() {
		s := it.Sample()
		fmt.Printf("%s  %8.4f kWh\n", s.Time.Format("2006-01-02 15:04"), s.KWh)
		total += s.KWh
		count++
		if historyLimit > 0 && count >= historyLimit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	if count == 0 {
		fmt.Println("no samples recorded")
		return nil
	}
	fmt.Printf("%d samples, %.4f kWh total\n", count, total)
	return nil
}
