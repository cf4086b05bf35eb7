// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stroomlab/circlet/pkg/plugwise"
)

var tracedumpCmd = &cobra.Command{
	Use:   "tracedump <file>",
	Short: "Display a captured trace file",
	Long: `Decode and display a CBOR trace captured earlier with --trace.

Each record replays byte-exact through the same frame decoder the live
session uses, so a capture reproduces decode errors faithfully.`,
	Args: cobra.ExactArgs(1),
	RunE: runTracedump,
}

func init() {
	rootCmd.AddCommand(tracedumpCmd)
}

func runTracedump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := plugwise.ReadTrace(f)
	if err != nil {
		return fmt.Errorf("trace %s: %w", args[0], err)
	}

	for _, rec := range records {
		decoder := plugwise.NewDecoder()
		decoded := false
		for _, b := range rec.Raw {
			frame, err := decoder.DecodeByte(b)
			if err != nil {
				fmt.Printf("[%s] %s [ERROR] %v\n", rec.Time.Format("15:04:05.000"), rec.Dir, err)
				decoded = true
				break
			}
			if frame != nil {
				fmt.Printf("[%s] %s %s\n", rec.Time.Format("15:04:05.000"), rec.Dir, plugwise.FormatFrame(frame))
				decoded = true
				break
			}
		}
		if !decoded {
			fmt.Printf("[%s] %s [ERROR] truncated record (%d bytes)\n", rec.Time.Format("15:04:05.000"), rec.Dir, len(rec.Raw))
		}
	}

	fmt.Printf("%d records\n", len(records))
	return nil
}
