// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stroomlab/circlet/pkg/plugwise"
)

var framedumpCmd = &cobra.Command{
	Use:   "framedump",
	Short: "Display decoded frames as they arrive",
	Long: `Continuously decode and display protocol frames from the serial stream.

This is a passive listener: it sends nothing, so it can watch the mesh
chatter a stick produces on its own, or shadow another controller on the
same line. Invalid frames (bad checksum, malformed hex) are flagged
inline.

Use --trace to also capture the raw traffic to a CBOR file for later
analysis with tracedump.`,
	RunE: runFramedump,
}

func init() {
	rootCmd.AddCommand(framedumpCmd)
}

func runFramedump(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var trace *plugwise.TraceWriter
	if traceFile != "" {
		capture, err := os.Create(traceFile)
		if err != nil {
			return fmt.Errorf("trace file: %w", err)
		}
		defer capture.Close()
		trace = plugwise.NewTraceWriter(capture)
	}

	fmt.Printf("Circlet - Frame Dump\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := plugwise.NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			logger.Error().Err(err).Msg("read failed")
			return err
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				if trace != nil {
					trace.Record(plugwise.DirRx, frame.Raw())
				}
				fmt.Printf("[%s] %s\n", frame.Timestamp().Format("15:04:05.000"), plugwise.FormatFrame(frame))
			}
		}
	}
}
