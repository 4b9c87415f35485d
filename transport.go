package noisesocket

import (
	"context"
	"encoding/binary"
	"fmt"
)

// transportOverhead is the AEAD tag size plus the inner 2-byte body
// length prefix every transport ciphertext carries (§4.2).
const transportOverhead = 16 + 2

// WriteMessage encrypts and frames one application payload as a
// transport message (§4.2). padded is the padded_length to apply; 0
// disables padding for this call.
func (s *Session) WriteMessage(ctx context.Context, body []byte, padded int) error {
	const op = "write_message"
	if err := s.checkUsable(op); err != nil {
		return err
	}
	if s.state != stateHandshakeComplete {
		return newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	if len(body) > maxPacketBody {
		return newErr(op, KindTooLarge, ErrTooLarge)
	}
	s.cryptoFailurePending = false

	plaintextTotal := len(body) + 2
	if padded > plaintextTotal {
		plaintextTotal = padded
	}
	ciphertextLen := plaintextTotal + 16
	if lengthPrefixSize+ciphertextLen > maxPacketBody {
		return newErr(op, KindTooLarge, ErrTooLarge)
	}

	plaintext := make([]byte, plaintextTotal)
	binary.BigEndian.PutUint16(plaintext, uint16(len(body)))
	copy(plaintext[2:], body)

	ciphertext, err := s.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		s.markUnusable()
		return newErr(op, KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}

	if err := writePacket(ctx, s.stream, ciphertext); err != nil {
		s.markUnusable()
		return err
	}

	s.cfg.metrics.IncrementTransportMessagesSent()
	s.cfg.metrics.IncrementBytesSent(int64(lengthPrefixSize + len(ciphertext)))
	return nil
}

// ReadMessage decrypts and unframes one transport message (§4.2).
func (s *Session) ReadMessage(ctx context.Context) ([]byte, error) {
	const op = "read_message"
	if err := s.checkUsable(op); err != nil {
		return nil, err
	}
	if s.state != stateHandshakeComplete {
		return nil, newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	s.cryptoFailurePending = false

	ciphertext, err := readPacket(ctx, s.stream)
	if err != nil {
		s.markUnusable()
		return nil, err
	}
	if len(ciphertext) < transportOverhead {
		return nil, newErr(op, KindMalformed, fmt.Errorf("%w: transport packet below minimum size", ErrMalformed))
	}

	plaintext, err := s.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		s.markUnusable()
		return nil, newErr(op, KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}

	s.cfg.metrics.IncrementTransportMessagesReceived()
	s.cfg.metrics.IncrementBytesReceived(int64(lengthPrefixSize + len(ciphertext)))

	if len(plaintext) < 2 {
		return nil, newErr(op, KindMalformed, fmt.Errorf("%w: transport plaintext shorter than length prefix", ErrMalformed))
	}
	bodyLen := binary.BigEndian.Uint16(plaintext[:2])
	if int(bodyLen) > len(plaintext)-2 {
		return nil, newErr(op, KindMalformed, fmt.Errorf("%w: inner body length exceeds plaintext", ErrMalformed))
	}
	body := plaintext[2 : 2+int(bodyLen)]
	if body == nil {
		body = []byte{}
	}
	return body, nil
}
