// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

const testMAC = MAC(0x0123456789ABCDEF)

func newTestSim() *Simulator {
	sim := NewSimulator()
	sim.AddDevice(testMAC, &SimDevice{
		Calibration: Calibration{GainA: 1.0},
		Pulse1s:     58,
		Pulse8s:     463,
		PulseHour:   104120,
	})
	return sim
}

func TestSession_RequestResponse(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: time.Second})
	defer s.Close()

	resp, err := s.Request(context.Background(), ReqCalibration{MAC: testMAC}, CodeResCalibration)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	res, ok := resp.(ResCalibration)
	if !ok {
		t.Fatalf("expected ResCalibration, got %T", resp)
	}
	if res.MAC() != testMAC {
		t.Errorf("mac mismatch: %s", res.MAC())
	}
	if res.Calibration.GainA != 1.0 {
		t.Errorf("gainA: expected 1.0, got %g", res.Calibration.GainA)
	}
	if n := s.pendingCount(); n != 0 {
		t.Errorf("correlation table should be empty, has %d entries", n)
	}
}

func TestSession_ConcurrentCorrelation(t *testing.T) {
	sim := NewSimulator()
	macs := make([]MAC, 5)
	for i := range macs {
		macs[i] = MAC(0x000D6F0000000100 + uint64(i))
		sim.AddDevice(macs[i], &SimDevice{
			Calibration: Calibration{GainA: float32(i + 1)},
		})
	}

	s := NewSession(sim, Options{Timeout: time.Second})
	defer s.Close()

	var wg sync.WaitGroup
	errCh := make(chan error, len(macs))
	for i, mac := range macs {
		wg.Add(1)
		go func(i int, mac MAC) {
			defer wg.Done()
			resp, err := s.Request(context.Background(), ReqCalibration{MAC: mac}, CodeResCalibration)
			if err != nil {
				errCh <- fmt.Errorf("device %s: %w", mac, err)
				return
			}
			res := resp.(ResCalibration)
			if res.MAC() != mac {
				errCh <- fmt.Errorf("device %s: got response for %s", mac, res.MAC())
				return
			}
			if res.Calibration.GainA != float32(i+1) {
				errCh <- fmt.Errorf("device %s: gainA %g, expected %d", mac, res.Calibration.GainA, i+1)
			}
		}(i, mac)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	if n := s.pendingCount(); n != 0 {
		t.Errorf("correlation table should be empty, has %d entries", n)
	}
}

func TestSession_TimeoutNoLeak(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: 20 * time.Millisecond, MaxRetries: 2})
	defer s.Close()

	unknown := MAC(0x00000000DEADBEEF)
	start := time.Now()
	_, err := s.Request(context.Background(), ReqInfo{MAC: unknown}, CodeResInfo)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < 55*time.Millisecond {
		t.Errorf("timed out after %s, expected at least 3 attempts of 20ms", elapsed)
	}
	if n := s.pendingCount(); n != 0 {
		t.Errorf("correlation table leaked %d entries after timeout", n)
	}

	stats := s.Stats()
	if stats.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", stats.Retries)
	}
	if stats.Timeouts != 1 {
		t.Errorf("expected 1 timeout, got %d", stats.Timeouts)
	}
}

func TestSession_RetrySucceeds(t *testing.T) {
	sim := newTestSim()
	sim.DropRequests(1)

	s := NewSession(sim, Options{Timeout: 20 * time.Millisecond, MaxRetries: 2})
	defer s.Close()

	resp, err := s.Request(context.Background(), ReqCalibration{MAC: testMAC}, CodeResCalibration)
	if err != nil {
		t.Fatalf("request should succeed on retry: %v", err)
	}
	if resp.MAC() != testMAC {
		t.Errorf("mac mismatch: %s", resp.MAC())
	}

	stats := s.Stats()
	if stats.Retries == 0 {
		t.Error("expected at least one retry")
	}
	if stats.Timeouts != 0 {
		t.Errorf("retried request must not count as timed out, got %d", stats.Timeouts)
	}
}

func TestSession_ContextCancellation(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: time.Minute})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	unknown := MAC(0x00000000DEADBEEF)
	_, err := s.Request(ctx, ReqInfo{MAC: unknown}, CodeResInfo)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := s.pendingCount(); n != 0 {
		t.Errorf("correlation table leaked %d entries after cancellation", n)
	}
}

func TestSession_RequestAfterClose(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{})
	s.Close()

	_, err := s.Request(context.Background(), ReqInitialize{}, CodeResInitialize)
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_CloseUnblocksPending(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: time.Minute})

	done := make(chan error, 1)
	go func() {
		unknown := MAC(0x00000000DEADBEEF)
		_, err := s.Request(context.Background(), ReqInfo{MAC: unknown}, CodeResInfo)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("expected ErrSessionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending request not unblocked by Close")
	}
}

func TestSession_UnsolicitedDropped(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: time.Second})
	defer s.Close()

	// Mesh chatter nobody asked for.
	var w fieldWriter
	w.uint16(uint16(CodeResPowerUse))
	w.uint16(0x0042)
	w.uint64(uint64(testMAC))
	w.uint16(58)
	w.uint16(463)
	w.uint32(104120)
	w.uint16(0)
	w.uint16(0)
	w.uint16(0)
	sim.Inject(frameBytes(w.buf))

	waitFor(t, func() bool { return s.Stats().Unsolicited == 1 })

	// The session stays usable.
	if _, err := s.Request(context.Background(), ReqCalibration{MAC: testMAC}, CodeResCalibration); err != nil {
		t.Fatalf("request after unsolicited frame: %v", err)
	}
}

func TestSession_MatchedButUnparseable(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: time.Second})
	defer s.Close()

	// A device the simulator will not answer for; the truncated response
	// is injected manually once the request is registered.
	phantom := MAC(0x00000000DEADBEEF)
	go func() {
		time.Sleep(20 * time.Millisecond)
		var w fieldWriter
		w.uint16(uint16(CodeResCalibration))
		w.uint16(0x0001)
		w.uint64(uint64(phantom))
		w.float32(1.0) // three constants missing
		sim.Inject(frameBytes(w.buf))
	}()

	_, err := s.Request(context.Background(), ReqCalibration{MAC: phantom}, CodeResCalibration)
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Code != CodeResCalibration {
		t.Errorf("error code: expected %s, got %s", FormatCode(CodeResCalibration), FormatCode(pe.Code))
	}
	if n := s.pendingCount(); n != 0 {
		t.Errorf("correlation table leaked %d entries", n)
	}
}

func TestSession_AckErrorStatus(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: time.Second})
	defer s.Close()

	phantom := MAC(0x00000000DEADBEEF)
	go func() {
		time.Sleep(20 * time.Millisecond)
		var w fieldWriter
		w.uint16(uint16(CodeAck))
		w.uint16(0x0001)
		w.uint16(AckError)
		w.uint64(uint64(phantom))
		sim.Inject(frameBytes(w.buf))
	}()

	err := s.requestAck(context.Background(), ReqSwitch{MAC: phantom, On: true})
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError for error ack, got %v", err)
	}
}

func TestSession_CorruptedResponseTimesOut(t *testing.T) {
	sim := newTestSim()
	s := NewSession(sim, Options{Timeout: 40 * time.Millisecond, MaxRetries: 1})
	defer s.Close()

	// The device answers, but the frame is damaged in transit: one payload
	// character flipped so the checksum no longer matches. The codec drops
	// it, so the caller sees a plain timeout.
	phantom := MAC(0x00000000DEADBEEF)
	go func() {
		time.Sleep(10 * time.Millisecond)
		var w fieldWriter
		w.uint16(uint16(CodeAck))
		w.uint16(0x0001)
		w.uint16(AckSuccess)
		w.uint64(uint64(phantom))
		wire := frameBytes(w.buf)
		wire[len(frameHeader)+6] ^= 0x01
		sim.Inject(wire)
	}()

	err := s.requestAck(context.Background(), ReqSwitch{MAC: phantom, On: true})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("corrupted response must end in ErrTimeout, got %v", err)
	}
	if n := s.pendingCount(); n != 0 {
		t.Errorf("correlation table leaked %d entries", n)
	}
	stats := s.Stats()
	if stats.CRCErrors != 1 {
		t.Errorf("expected 1 CRC error, got %d", stats.CRCErrors)
	}
	if stats.Timeouts != 1 {
		t.Errorf("expected 1 timeout, got %d", stats.Timeouts)
	}
}

func TestSession_ReadFailurePoisons(t *testing.T) {
	conn := &failingReadConn{err: errors.New("serial gone")}
	s := NewSession(conn, Options{Timeout: 50 * time.Millisecond})
	defer s.Close()

	waitFor(t, func() bool {
		select {
		case <-s.closed:
			return true
		default:
			return false
		}
	})

	_, err := s.Request(context.Background(), ReqInitialize{}, CodeResInitialize)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Op != "read" {
		t.Errorf("op: expected read, got %s", te.Op)
	}
}

func TestSession_WriteFailurePoisons(t *testing.T) {
	conn := newFailingWriteConn()
	s := NewSession(conn, Options{Timeout: 50 * time.Millisecond})
	defer s.Close()

	_, err := s.Request(context.Background(), ReqInitialize{}, CodeResInitialize)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Op != "write" {
		t.Errorf("op: expected write, got %s", te.Op)
	}

	// The session is poisoned for good.
	_, err = s.Request(context.Background(), ReqInitialize{}, CodeResInitialize)
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError on poisoned session, got %v", err)
	}
}

// waitFor polls a condition with a deadline.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached within deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// failingReadConn errors on the first read.
type failingReadConn struct {
	err error
}

func (c *failingReadConn) Read(p []byte) (int, error)  { return 0, c.err }
func (c *failingReadConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *failingReadConn) Close() error                { return nil }

// failingWriteConn errors on every write and blocks reads until closed.
type failingWriteConn struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func newFailingWriteConn() *failingWriteConn {
	return &failingWriteConn{closed: make(chan struct{})}
}

func (c *failingWriteConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, errors.New("closed")
}

func (c *failingWriteConn) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func (c *failingWriteConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
