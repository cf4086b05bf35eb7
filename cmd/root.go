// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// Session flags
	timeoutFlag time.Duration
	retriesFlag int
	traceFile   string

	cfgFile string
	useSim  bool
	verbose bool

	cfg    Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "circlet",
	Short: "Plugwise Circle mesh control",
	Long: `Circlet - A CLI tool for the Plugwise Circle power-metering mesh.

Switches relays, reads live power draw and hourly consumption history, and
diagnoses the serial protocol between the host and the Circle+ stick.

Devices are addressed by their 16-character hex MAC, or by an alias defined
in the config file:

  port = "/dev/ttyUSB0"

  [devices]
  lamp = "000D6F0000123456"

Pass --sim to run against a built-in mesh simulator instead of hardware.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(verbose)

		loaded, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		// Flags beat the config file, the config file beats defaults.
		if !cmd.Flags().Changed("port") && cfg.Port != "" {
			portName = cfg.Port
		}
		if !cmd.Flags().Changed("baud") && cfg.Baud != 0 {
			baudRate = cfg.Baud
		}
		if !cmd.Flags().Changed("timeout") && cfg.Timeout != 0 {
			timeoutFlag = cfg.Timeout.Duration()
		}
		if !cmd.Flags().Changed("retries") && cfg.Retries != nil {
			retriesFlag = *cfg.Retries
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default ~/.config/circlet/config.toml)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", time.Second, "Per-attempt response timeout")
	rootCmd.PersistentFlags().IntVar(&retriesFlag, "retries", 2, "Resends after a timed-out attempt")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "Capture the raw conversation to a CBOR file")
	rootCmd.PersistentFlags().BoolVar(&useSim, "sim", false, "Talk to a built-in mesh simulator instead of a serial port")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging of frames, retries and dropped traffic")
}

// newLogger builds the console logger. Pretty output on a terminal, plain
// JSON lines when piped.
func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var out zerolog.Logger
	if term.IsTerminal(int(os.Stderr.Fd())) {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(level).With().Timestamp().Logger()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
