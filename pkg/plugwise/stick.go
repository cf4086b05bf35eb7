// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"context"
	"io"
)

// Stick is the serial-attached coordinator. Connecting runs the
// initialize handshake, which reports whether the coordinator has joined
// its mesh; device handles are minted from it afterwards.
type Stick struct {
	session *Session

	mac       MAC
	online    bool
	networkID uint64
	shortID   uint16
}

// Connect wraps an open byte stream in a session and performs the
// initialize handshake. On handshake failure the session is closed and
// the stream released.
func Connect(ctx context.Context, conn io.ReadWriteCloser, opts Options) (*Stick, error) {
	session := NewSession(conn, opts)
	stick, err := newStick(ctx, session)
	if err != nil {
		session.Close()
		return nil, err
	}
	return stick, nil
}

func newStick(ctx context.Context, session *Session) (*Stick, error) {
	resp, err := session.Request(ctx, ReqInitialize{}, CodeResInitialize)
	if err != nil {
		return nil, err
	}
	res, ok := resp.(ResInitialize)
	if !ok {
		return nil, &ProtocolError{Code: resp.Code(), Reason: "expected initialize response"}
	}
	return &Stick{
		session:   session,
		mac:       res.MAC(),
		online:    res.Online,
		networkID: res.NetworkID,
		shortID:   res.ShortID,
	}, nil
}

// MAC is the coordinator's own address.
func (s *Stick) MAC() MAC { return s.mac }

// Online reports whether the coordinator had joined its mesh at handshake
// time. Device requests on an offline mesh will time out.
func (s *Stick) Online() bool { return s.online }

// NetworkID identifies the mesh the coordinator belongs to.
func (s *Stick) NetworkID() uint64 { return s.networkID }

// ShortID is the coordinator's short network address.
func (s *Stick) ShortID() uint16 { return s.shortID }

// Circle builds a handle to one device, fetching its calibration.
func (s *Stick) Circle(ctx context.Context, mac MAC) (*Circle, error) {
	return newCircle(ctx, s.session, mac)
}

// Session exposes the underlying transport session for raw requests.
func (s *Stick) Session() *Session { return s.session }

// Stats returns a snapshot of the session's protocol statistics.
func (s *Stick) Stats() StatsSnapshot { return s.session.Stats() }

// Close shuts the session down and closes the stream.
func (s *Stick) Close() error { return s.session.Close() }
