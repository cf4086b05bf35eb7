// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"

	"github.com/stroomlab/circlet/pkg/plugwise"
)

// Connection provides a common interface for the byte stream under a
// session, serial or simulated
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// demoMAC is the device preloaded into the simulated mesh.
const demoMAC = plugwise.MAC(0x000D6F0000123456)

// newDemoSimulator builds the mesh behind --sim: one stick and one Circle
// with a day of hourly history.
func newDemoSimulator() *plugwise.Simulator {
	sim := plugwise.NewSimulator()

	dev := &plugwise.SimDevice{
		Calibration: plugwise.Calibration{GainA: 1.0},
		RelayOn:     true,
		Pulse1s:     58,
		Pulse8s:     463,
		PulseHour:   104120,
	}
	start := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Hour)
	for h := 0; h < 24; h++ {
		dev.Log = append(dev.Log, plugwise.LogEntry{
			Stamp:  plugwise.NewLogDate(start.Add(time.Duration(h) * time.Hour)),
			Pulses: uint32(150000 + h*2500),
		})
	}
	sim.AddDevice(demoMAC, dev)
	return sim
}

// OpenConnection opens the configured byte stream: the simulator under
// --sim, the serial port otherwise.
func OpenConnection() (Connection, string, error) {
	if useSim {
		return newDemoSimulator(), fmt.Sprintf("Simulator (device %s)", demoMAC), nil
	}

	if portName == "" {
		return nil, "", fmt.Errorf("either --port or --sim must be specified")
	}

	conn, err := OpenSerialConnection(portName, baudRate)
	if err != nil {
		return nil, "", err
	}
	return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
}

// openStick opens the connection, runs the initialize handshake, and
// returns the coordinator handle. The returned cleanup closes the session
// and any trace capture file.
func openStick(ctx context.Context) (*plugwise.Stick, func(), error) {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, nil, err
	}

	opts := plugwise.Options{
		Timeout:    timeoutFlag,
		MaxRetries: retriesFlag,
		Logger:     &logger,
	}

	var capture *os.File
	if traceFile != "" {
		capture, err = os.Create(traceFile)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("trace file: %w", err)
		}
		opts.Trace = plugwise.NewTraceWriter(capture)
	}

	stick, err := plugwise.Connect(ctx, conn, opts)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, nil, fmt.Errorf("stick handshake failed: %w", err)
	}

	logger.Info().
		Str("connection", connInfo).
		Str("stick", stick.MAC().String()).
		Bool("online", stick.Online()).
		Msg("connected")
	if !stick.Online() {
		logger.Warn().Msg("coordinator reports mesh offline; device requests will time out")
	}

	cleanup := func() {
		stick.Close()
		if capture != nil {
			capture.Close()
		}
	}
	return stick, cleanup, nil
}

// openCircle is openStick plus a device handle for the named argument.
func openCircle(ctx context.Context, arg string) (*plugwise.Stick, *plugwise.Circle, func(), error) {
	mac, err := resolveMAC(arg)
	if err != nil {
		return nil, nil, nil, err
	}

	stick, cleanup, err := openStick(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	circle, err := stick.Circle(ctx, mac)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("device %s: %w", mac, err)
	}
	return stick, circle, cleanup, nil
}
