package noisesocket

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// maxPacketBody is the largest payload the 16-bit big-endian length prefix
// can address (§4.1).
const maxPacketBody = 65535

// lengthPrefixSize is the size in bytes of the big-endian length prefix
// that precedes every packet on the wire.
const lengthPrefixSize = 2

// encodePacket prepends a big-endian 16-bit length to data, per §4.1.
// data must be 65535 bytes or shorter.
func encodePacket(data []byte) ([]byte, error) {
	if len(data) > maxPacketBody {
		return nil, newErr("encodePacket", KindTooLarge, ErrTooLarge)
	}
	out := make([]byte, lengthPrefixSize+len(data))
	binary.BigEndian.PutUint16(out, uint16(len(data)))
	copy(out[lengthPrefixSize:], data)
	return out, nil
}

// writePacket writes one length-prefixed packet, contiguously, in a single
// Write call where the io.Writer permits it (§5 "Ordering guarantees").
func writePacket(ctx context.Context, w io.Writer, data []byte) error {
	buf, err := encodePacket(data)
	if err != nil {
		return err
	}
	cancelled, ioErr := runIO(ctx, func() error {
		_, err := w.Write(buf)
		return err
	})
	if cancelled {
		return cancelledErr("writePacket", ioErr)
	}
	if ioErr != nil {
		return streamErr("writePacket", ioErr)
	}
	return nil
}

// writePackets writes two or more length-prefixed units back to back in a
// single underlying Write, satisfying the "atomic from the caller's
// viewpoint" guarantee in §5 for handshake wire units (negotiation_data
// packet immediately followed by the noise_message packet).
func writePackets(ctx context.Context, w io.Writer, parts ...[]byte) error {
	total := 0
	for _, p := range parts {
		if len(p) > maxPacketBody {
			return newErr("writePackets", KindTooLarge, ErrTooLarge)
		}
		total += lengthPrefixSize + len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		var hdr [2]byte
		binary.BigEndian.PutUint16(hdr[:], uint16(len(p)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, p...)
	}
	cancelled, ioErr := runIO(ctx, func() error {
		_, err := w.Write(buf)
		return err
	})
	if cancelled {
		return cancelledErr("writePackets", ioErr)
	}
	if ioErr != nil {
		return streamErr("writePackets", ioErr)
	}
	return nil
}

// readPacket reads one length-prefixed unit: 2 bytes of big-endian length
// followed by exactly that many bytes. It never issues a zero-length Read
// unless the declared length is itself zero. Returns ErrMalformed wrapped
// as KindMalformed if the stream ends early (truncated per §4.1), and
// KindStreamError for any other I/O failure.
func readPacket(ctx context.Context, r io.Reader) ([]byte, error) {
	var hdr [2]byte
	cancelled, err := runIO(ctx, func() error {
		_, e := io.ReadFull(r, hdr[:])
		return e
	})
	if cancelled {
		return nil, cancelledErr("readPacket", err)
	}
	if err != nil {
		return nil, truncatedErr("readPacket", err)
	}

	n := binary.BigEndian.Uint16(hdr[:])
	if n == 0 {
		return []byte{}, nil
	}

	body := make([]byte, n)
	cancelled, err = runIO(ctx, func() error {
		_, e := io.ReadFull(r, body)
		return e
	})
	if cancelled {
		return nil, cancelledErr("readPacket", err)
	}
	if err != nil {
		return nil, truncatedErr("readPacket", err)
	}
	return body, nil
}

func truncatedErr(op string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return newErr(op, KindMalformed, fmt.Errorf("%w: truncated stream: %v", ErrMalformed, err))
	}
	return streamErr(op, err)
}

func streamErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return newErr(op, KindStreamError, fmt.Errorf("%w: %v", ErrStreamError, err))
}

// runIO races fn (a blocking Read/Write against the underlying stream)
// against ctx's cancellation, the suspension behavior §5 requires: "If the
// caller cancels during an I/O suspension, the call returns with
// Cancelled." fn runs in its own goroutine so a context cancelled while
// the stream call is already blocked interrupts the wait rather than
// merely gating entry to it; if ctx wins the race, fn's goroutine is left
// running against the (now considered unusable) stream and its result is
// discarded when it eventually completes.
func runIO(ctx context.Context, fn func() error) (cancelled bool, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case err := <-done:
		return false, err
	}
}

func cancelledErr(op string, err error) error {
	return newErr(op, KindCancelled, fmt.Errorf("%w: %v", ErrCancelled, err))
}
