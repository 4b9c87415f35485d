package noisesocket

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/flynn/noise"
)

// ringFor returns the slot sequence a party occupies, per §4.3's tables:
// client cycles write_handshake, read_negotiation, read_handshake;
// server cycles read_negotiation, read_handshake, write_handshake. The
// Noise-internal initiator flag may flip at reinit, but this cycle never
// does (§9 "Role hygiene").
func (s *Session) ringFor() [3]ringSlot {
	if s.role == RoleClient {
		return [3]ringSlot{slotWriteHandshake, slotReadNegotiation, slotReadHandshake}
	}
	return [3]ringSlot{slotReadNegotiation, slotReadHandshake, slotWriteHandshake}
}

func (s *Session) expectSlot(want ringSlot, op string) error {
	seq := s.ringFor()
	if seq[s.ring] != want {
		return newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	return nil
}

func (s *Session) advanceRing() {
	s.ring = (s.ring + 1) % 3
}

// WriteHandshake emits one handshake wire unit: negotiation_data
// immediately followed by the Noise handshake message carrying body
// (§4.4). padded is the padded_length to apply when the message is
// currently considered encrypted; 0 disables padding for this call only
// (use WithPaddedLength to set a session-wide default).
func (s *Session) WriteHandshake(ctx context.Context, negotiationData, body []byte, padded int) error {
	const op = "write_handshake"
	if err := s.checkUsable(op); err != nil {
		return err
	}
	if s.state == stateHandshakeComplete {
		return newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	if err := s.expectSlot(slotWriteHandshake, op); err != nil {
		return err
	}
	if len(negotiationData) > maxPacketBody || len(body) > maxPacketBody {
		return newErr(op, KindTooLarge, ErrTooLarge)
	}
	s.cryptoFailurePending = false

	s.prologue.append(negotiationData)

	if err := s.ensureHandshakeState(); err != nil {
		s.markUnusable()
		return err
	}

	plaintext := body
	if s.isNextMsgEncrypted {
		plaintext = padPlaintext(body, padded)
	}

	msg, cs1, cs2, err := s.hsState.WriteMessage(nil, plaintext)
	if err != nil {
		s.markUnusable()
		return newErr(op, KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}
	if len(msg) > maxPacketBody {
		s.markUnusable()
		return newErr(op, KindTooLarge, ErrTooLarge)
	}

	s.prologue.append(msg)

	if err := writePackets(ctx, s.stream, negotiationData, msg); err != nil {
		s.markUnusable()
		return err
	}

	s.cfg.metrics.IncrementHandshakeMessagesSent()
	s.cfg.metrics.IncrementBytesSent(int64(lengthPrefixSize*2 + len(negotiationData) + len(msg)))
	s.cfg.logger.Debugw("noisesocket: wrote handshake message", "role", s.role.String(), "bytes", len(msg))

	if len(msg) > 0 {
		s.isNextMsgEncrypted = true
	}

	if cs1 != nil && cs2 != nil {
		s.completeHandshake(cs1, cs2)
	}

	s.advanceRing()
	return nil
}

// WriteEmptyHandshake emits negotiation_data followed by a zero-length
// noise_message, with no call into the cryptographic collaborator
// (§4.4). Used only by the responder during Switch/Retry.
func (s *Session) WriteEmptyHandshake(ctx context.Context, negotiationData []byte) error {
	const op = "write_empty_handshake"
	if err := s.checkUsable(op); err != nil {
		return err
	}
	if s.state == stateHandshakeComplete {
		return newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	if err := s.expectSlot(slotWriteHandshake, op); err != nil {
		return err
	}
	if len(negotiationData) > maxPacketBody {
		return newErr(op, KindTooLarge, ErrTooLarge)
	}
	s.cryptoFailurePending = false

	s.prologue.append(negotiationData)
	s.prologue.append(nil)

	if err := writePackets(ctx, s.stream, negotiationData, nil); err != nil {
		s.markUnusable()
		return err
	}

	s.cfg.metrics.IncrementHandshakeMessagesSent()
	s.cfg.logger.Debugw("noisesocket: wrote empty handshake message", "role", s.role.String())

	s.advanceRing()
	return nil
}

// ReadNegotiation reads one negotiation_data packet and accumulates it
// into the prologue (§4.4). Returns a (possibly empty, never nil) slice.
func (s *Session) ReadNegotiation(ctx context.Context) ([]byte, error) {
	const op = "read_negotiation"
	if err := s.checkUsable(op); err != nil {
		return nil, err
	}
	if s.state == stateHandshakeComplete {
		return nil, newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	if err := s.expectSlot(slotReadNegotiation, op); err != nil {
		return nil, err
	}
	s.cryptoFailurePending = false

	data, err := readPacket(ctx, s.stream)
	if err != nil {
		s.markUnusable()
		return nil, err
	}
	s.prologue.append(data)

	s.cfg.metrics.IncrementBytesReceived(int64(lengthPrefixSize + len(data)))

	s.advanceRing()
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// ReadHandshake reads one noise_message packet and processes it through
// the cryptographic collaborator (§4.4), logging the packet into the
// prologue ledger for any later reinitialization's benefit only after the
// handshake state this message is consumed by has already been built, so
// it is never part of its own prologue. A zero-length packet is returned
// as an empty body with no crypto call, mirroring write_empty_handshake.
func (s *Session) ReadHandshake(ctx context.Context) ([]byte, error) {
	const op = "read_handshake"
	if err := s.checkUsable(op); err != nil {
		return nil, err
	}
	if s.state == stateHandshakeComplete {
		return nil, newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	if err := s.expectSlot(slotReadHandshake, op); err != nil {
		return nil, err
	}
	s.cryptoFailurePending = false

	msg, err := readPacket(ctx, s.stream)
	if err != nil {
		s.markUnusable()
		return nil, err
	}

	s.cfg.metrics.IncrementHandshakeMessagesReceived()
	s.cfg.metrics.IncrementBytesReceived(int64(lengthPrefixSize + len(msg)))

	if len(msg) == 0 {
		s.prologue.append(msg)
		s.advanceRing()
		return []byte{}, nil
	}

	// The handshake state must be built (freezing the prologue) before
	// this message is logged: this message is what that state is about
	// to consume, so it must be excluded from its own prologue, the same
	// way write_handshake's own produced ciphertext can never precede the
	// freeze that authorizes it (§4.3/§9).
	if err := s.ensureHandshakeState(); err != nil {
		s.markUnusable()
		return nil, err
	}

	plaintext, cs1, cs2, err := s.hsState.ReadMessage(nil, msg)
	// Logged whether or not the read succeeded: a failed attempt still
	// needs its raw bytes available to a subsequent Switch's prologue,
	// exactly as if the caller had called IgnoreHandshake on it instead.
	s.prologue.append(msg)
	if err != nil {
		// Deliberately does not mark the session unusable and still advances
		// the ring: this is the one documented exception in §7 — a Crypto
		// failure here is what the application is expected to catch with
		// IsCrypto and respond to by calling Switch, and the packet was
		// already fully consumed off the wire regardless of whether it
		// decrypted, exactly as if IgnoreHandshake had read it instead.
		s.advanceRing()
		s.cryptoFailurePending = true
		return nil, newErr(op, KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}

	body := plaintext
	if s.isNextMsgEncrypted {
		body, err = unpadPlaintext(plaintext)
		if err != nil {
			s.markUnusable()
			return nil, err
		}
	}

	s.isNextMsgEncrypted = true

	if cs1 != nil && cs2 != nil {
		s.completeHandshake(cs1, cs2)
	}

	s.advanceRing()
	if body == nil {
		body = []byte{}
	}
	return body, nil
}

// IgnoreHandshake reads one noise_message packet, accumulates its raw
// bytes into the prologue, and discards it with no crypto call. Used by
// the receiver in Switch/Retry to drop a message encrypted under a
// protocol that is being abandoned, while still binding its bytes into
// the new prologue (§4.4).
func (s *Session) IgnoreHandshake(ctx context.Context) error {
	const op = "ignore_handshake"
	if err := s.checkUsable(op); err != nil {
		return err
	}
	if s.state == stateHandshakeComplete {
		return newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	if err := s.expectSlot(slotReadHandshake, op); err != nil {
		return err
	}
	s.cryptoFailurePending = false

	msg, err := readPacket(ctx, s.stream)
	if err != nil {
		s.markUnusable()
		return err
	}
	s.prologue.append(msg)

	s.cfg.metrics.IncrementHandshakeMessagesReceived()
	s.cfg.metrics.IncrementBytesReceived(int64(lengthPrefixSize + len(msg)))
	s.cfg.logger.Debugw("noisesocket: ignored handshake message", "role", s.role.String(), "bytes", len(msg))

	s.advanceRing()
	return nil
}

// completeHandshake captures the handshake hash, assigns the send/recv
// cipher states per flynn/noise's convention (cs1 is the initiator's
// sending cipher and the responder's receiving cipher; cs2 is the
// reverse — the same split aznet's EncryptData/DecryptData branch on),
// discards the handshake state, and transitions the session to
// HandshakeComplete (§3 "transport handle... replaces the handshake-state
// handle").
func (s *Session) completeHandshake(cs1, cs2 *noise.CipherState) {
	s.handshakeHash = s.hsState.ChannelBinding()
	if s.currentInitiator() {
		s.send, s.recv = cs1, cs2
	} else {
		s.send, s.recv = cs2, cs1
	}
	s.hsState = nil
	s.state = stateHandshakeComplete
}

// padPlaintext builds be16(len(body)) || body || zeros(pad), per §4.4.
func padPlaintext(body []byte, paddedLength int) []byte {
	pad := paddedLength - 2 - len(body)
	if pad < 0 {
		pad = 0
	}
	out := make([]byte, 2+len(body)+pad)
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	return out
}

// unpadPlaintext strips the inner 2-byte length and trailing padding from
// a decrypted handshake payload. Fails Malformed if the declared inner
// length exceeds what remains.
func unpadPlaintext(plaintext []byte) ([]byte, error) {
	if len(plaintext) < 2 {
		return nil, newErr("unpad", KindMalformed, fmt.Errorf("%w: handshake payload shorter than length prefix", ErrMalformed))
	}
	n := binary.BigEndian.Uint16(plaintext[:2])
	if int(n) > len(plaintext)-2 {
		return nil, newErr("unpad", KindMalformed, fmt.Errorf("%w: inner body length exceeds payload", ErrMalformed))
	}
	return plaintext[2 : 2+int(n)], nil
}
