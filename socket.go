// Package noisesocket implements the NoiseSocket encoding and framing
// layer over the Noise Protocol Framework: length-prefixed packet
// framing, a prologue transcript that binds protocol negotiation into the
// handshake, the handshake-message state machine, and the
// Accept/Switch/Retry reinitialization flows, on top of flynn/noise as
// the cryptographic collaborator.
package noisesocket

import (
	"context"

	"github.com/atsika/noisesocket/protocol"
)

// DefaultPaddedLength returns the padded_length this session applies to
// WriteHandshakeDefault/WriteMessageDefault calls, either the library
// default or whatever WithPaddedLength set at construction/reinit time.
func (s *Session) DefaultPaddedLength() int {
	return s.cfg.paddedLength
}

// WriteHandshakeDefault calls WriteHandshake with the session's default
// padded_length.
func (s *Session) WriteHandshakeDefault(ctx context.Context, negotiationData, body []byte) error {
	return s.WriteHandshake(ctx, negotiationData, body, s.cfg.paddedLength)
}

// WriteMessageDefault calls WriteMessage with the session's default
// padded_length.
func (s *Session) WriteMessageDefault(ctx context.Context, body []byte) error {
	return s.WriteMessage(ctx, body, s.cfg.paddedLength)
}

// Role reports the byte-stream-level party this session was constructed
// as (§3: "a role bit... decided at construction and never changes").
func (s *Session) Role() Role {
	return s.role
}

// Protocol reports the protocol identifier currently installed: the one
// given at construction for a client, or the one installed by
// Accept/Switch/Retry once that has happened.
func (s *Session) Protocol() protocol.Protocol {
	return s.proto
}
