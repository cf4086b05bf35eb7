// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by Session.Request when no matching response
// arrived within the configured timeout across all retries. The operation
// may be retried; the session stays usable.
var ErrTimeout = errors.New("plugwise: request timed out")

// ErrSessionClosed is returned for requests issued after Close, or pending
// when the session shuts down.
var ErrSessionClosed = errors.New("plugwise: session closed")

// TransportError wraps a failure of the underlying byte stream. A
// transport error is fatal to the session; it must be reopened.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("plugwise: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a well-formed frame that is semantically wrong for
// the request it answered: an unparseable matched response, an ack with an
// error status, or an unexpected message shape.
type ProtocolError struct {
	Code   Code
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("plugwise: protocol error on %s: %s", FormatCode(e.Code), e.Reason)
}

// EncodingError reports a request that violates protocol constraints and
// cannot be put on the wire. Fatal to the call only.
type EncodingError struct {
	Code   Code
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("plugwise: cannot encode %s: %s", FormatCode(e.Code), e.Reason)
}

// FrameError reports a structurally invalid inbound frame (bad checksum,
// malformed hex, oversized body). Frame errors are handled inside the
// session read loop and surface only through decoder APIs and statistics.
type FrameError struct {
	Reason   string
	Checksum bool
}

func (e *FrameError) Error() string {
	return "plugwise: invalid frame: " + e.Reason
}
