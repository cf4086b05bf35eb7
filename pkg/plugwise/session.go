// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a transport session.
type Options struct {
	// Timeout bounds one attempt; a request blocks at most
	// Timeout * (MaxRetries + 1). Defaults to one second.
	Timeout time.Duration

	// MaxRetries is the number of identical resends after the first
	// attempt times out. Defaults to 2.
	MaxRetries int

	// Logger receives debug records for dropped frames and retries.
	// Nil disables logging.
	Logger *zerolog.Logger

	// Trace, when set, records the raw conversation for offline
	// analysis.
	Trace *TraceWriter
}

const (
	defaultTimeout    = time.Second
	defaultMaxRetries = 2
)

// pendingKey correlates a response to its waiting request: the expected
// response code plus the addressed device. A zero MAC registers for
// stick-local traffic that carries no predictable address.
type pendingKey struct {
	code Code
	mac  MAC
}

type reqResult struct {
	resp Response
	err  error
}

type pendingRequest struct {
	ch chan reqResult
}

// Session owns a serial byte stream and multiplexes request/response
// traffic over it. A background goroutine decodes inbound frames and wakes
// the caller whose correlation key matches; writes are serialized so
// concurrent device handles cannot interleave outbound frames.
//
// The session stays usable after any individual request failure. Only a
// transport-level failure poisons it, after which every call returns the
// original TransportError until the session is reopened on a fresh stream.
type Session struct {
	conn  io.ReadWriteCloser
	opts  Options
	log   zerolog.Logger
	trace *TraceWriter
	stats *Statistics

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[pendingKey][]*pendingRequest
	closeErr error

	closed    chan struct{}
	closeOnce sync.Once
}

// NewSession takes ownership of an already-open byte stream and starts the
// read/dispatch goroutine. Close releases the stream.
func NewSession(conn io.ReadWriteCloser, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	s := &Session{
		conn:    conn,
		opts:    opts,
		log:     log,
		trace:   opts.Trace,
		stats:   NewStatistics(),
		pending: make(map[pendingKey][]*pendingRequest),
		closed:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Stats returns a snapshot of the session's protocol statistics.
func (s *Session) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Close shuts the session down and closes the underlying stream. Pending
// requests fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.shutdown(ErrSessionClosed)
	return s.conn.Close()
}

// shutdown marks the session dead and fails every pending request.
func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeErr = cause
		for key, queue := range s.pending {
			for _, p := range queue {
				p.ch <- reqResult{err: cause}
			}
			delete(s.pending, key)
		}
		s.mu.Unlock()
		close(s.closed)
	})
}

func (s *Session) closeError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	return ErrSessionClosed
}

// Request writes a frame and blocks until the matching response arrives or
// the timeout budget is spent. On timeout the identical frame is resent up
// to MaxRetries times under the same correlation key. Abandoning the call
// through ctx removes the pending entry; a late response is then treated
// as unsolicited and discarded.
func (s *Session) Request(ctx context.Context, req Request, want Code) (Response, error) {
	select {
	case <-s.closed:
		return nil, s.closeError()
	default:
	}

	wire, err := Marshal(req)
	if err != nil {
		return nil, err
	}

	key := pendingKey{code: want, mac: requestTarget(req)}
	p := &pendingRequest{ch: make(chan reqResult, 1)}
	s.register(key, p)
	s.stats.observeRequest()

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			s.stats.observeRetry()
			s.log.Debug().
				Str("code", FormatCode(req.Code())).
				Str("mac", key.mac.String()).
				Int("attempt", attempt+1).
				Msg("resending request")
		}

		if err := s.write(wire); err != nil {
			s.unregister(key, p)
			terr := &TransportError{Op: "write", Err: err}
			s.shutdown(terr)
			s.conn.Close()
			return nil, terr
		}

		timer := time.NewTimer(s.opts.Timeout)
		select {
		case res := <-p.ch:
			timer.Stop()
			return res.resp, res.err
		case <-timer.C:
			// Retry with the same correlation key.
		case <-ctx.Done():
			timer.Stop()
			if !s.unregister(key, p) {
				res := <-p.ch
				return res.resp, res.err
			}
			return nil, ctx.Err()
		case <-s.closed:
			timer.Stop()
			s.unregister(key, p)
			return nil, s.closeError()
		}
	}

	if !s.unregister(key, p) {
		// The response raced the final timeout; take it.
		res := <-p.ch
		return res.resp, res.err
	}
	s.stats.observeTimeout()
	return nil, ErrTimeout
}

// requestAck issues a command that is confirmed by a MAC-bearing ack.
func (s *Session) requestAck(ctx context.Context, req Request) error {
	resp, err := s.Request(ctx, req, CodeAck)
	if err != nil {
		return err
	}
	ack, ok := resp.(Ack)
	if !ok {
		return &ProtocolError{Code: resp.Code(), Reason: "expected ack"}
	}
	if !ack.OK() {
		return &ProtocolError{Code: CodeAck, Reason: fmt.Sprintf("device reported status 0x%04X", ack.Status)}
	}
	return nil
}

func (s *Session) register(key pendingKey, p *pendingRequest) {
	s.mu.Lock()
	s.pending[key] = append(s.pending[key], p)
	s.mu.Unlock()
}

// unregister removes a pending entry, reporting false when dispatch
// already resolved it (the result is then sitting in p.ch).
func (s *Session) unregister(key pendingKey, p *pendingRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.pending[key]
	for i, q := range queue {
		if q == p {
			queue = append(queue[:i], queue[i+1:]...)
			if len(queue) == 0 {
				delete(s.pending, key)
			} else {
				s.pending[key] = queue
			}
			return true
		}
	}
	return false
}

// pendingCount reports the number of outstanding correlation entries.
func (s *Session) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, queue := range s.pending {
		n += len(queue)
	}
	return n
}

// write puts one frame on the line under the single-writer lock.
func (s *Session) write(wire []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.trace != nil {
		s.trace.Record(DirTx, wire)
	}
	_, err := s.conn.Write(wire)
	return err
}

// readLoop continuously decodes inbound bytes and dispatches completed
// frames. It exits when the stream fails or the session closes.
func (s *Session) readLoop() {
	dec := NewDecoder()
	buf := make([]byte, 256)
	var lastNoise uint64

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.shutdown(&TransportError{Op: "read", Err: err})
			}
			return
		}

		for i := 0; i < n; i++ {
			frame, decErr := dec.DecodeByte(buf[i])
			if decErr != nil {
				s.stats.observeDecodeError(decErr)
				s.log.Debug().Err(decErr).Msg("dropped invalid frame")
				continue
			}
			if frame != nil {
				s.dispatch(frame)
			}
		}

		if noise := dec.NoiseBytes(); noise != lastNoise {
			s.stats.observeNoise(noise - lastNoise)
			lastNoise = noise
		}
	}
}

// dispatch routes one checksum-valid frame to the first waiter registered
// for its correlation key, trying the exact (code, MAC) key before the
// stick-local wildcard. Frames nobody is waiting for are mesh chatter and
// are counted and dropped, never surfaced as request failures.
func (s *Session) dispatch(frame *Frame) {
	s.stats.observeFrame()
	if s.trace != nil {
		s.trace.Record(DirRx, frame.Raw())
	}

	keys := make([]pendingKey, 0, 2)
	if mac, ok := frame.peekMAC(); ok {
		keys = append(keys, pendingKey{code: frame.code, mac: mac})
	}
	keys = append(keys, pendingKey{code: frame.code, mac: 0})

	s.mu.Lock()
	var waiter *pendingRequest
	for _, key := range keys {
		if queue := s.pending[key]; len(queue) > 0 {
			waiter = queue[0]
			queue = queue[1:]
			if len(queue) == 0 {
				delete(s.pending, key)
			} else {
				s.pending[key] = queue
			}
			break
		}
	}
	if waiter != nil {
		resp, err := ParseResponse(frame)
		if err != nil {
			waiter.ch <- reqResult{err: &ProtocolError{Code: frame.code, Reason: err.Error()}}
		} else {
			waiter.ch <- reqResult{resp: resp}
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.stats.observeUnsolicited()
	seq, _ := frame.peekSeq()
	s.log.Debug().
		Str("code", FormatCode(frame.code)).
		Uint16("seq", seq).
		Msg("discarding unsolicited frame")
}

// requestTarget extracts the addressed MAC used in the correlation key.
func requestTarget(req Request) MAC {
	switch r := req.(type) {
	case ReqInfo:
		return r.MAC
	case ReqSwitch:
		return r.MAC
	case ReqCalibration:
		return r.MAC
	case ReqPowerUse:
		return r.MAC
	case ReqPowerBuffer:
		return r.MAC
	case ReqClockInfo:
		return r.MAC
	case ReqClockSet:
		return r.MAC
	}
	return 0
}
