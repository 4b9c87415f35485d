package noisesocket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadPlaintextLayout(t *testing.T) {
	out := padPlaintext([]byte("hi"), 0)
	assert.Equal(t, []byte{0x00, 0x02, 'h', 'i'}, out)
}

func TestPadPlaintextPadsToLength(t *testing.T) {
	out := padPlaintext([]byte("hi"), 10)
	require.Len(t, out, 10)
	assert.Equal(t, []byte{0x00, 0x02, 'h', 'i'}, out[:4])
	assert.Equal(t, make([]byte, 6), out[4:])
}

func TestPadPlaintextPaddedLengthSmallerThanBodyIsNoop(t *testing.T) {
	out := padPlaintext([]byte("hello world"), 4)
	assert.Equal(t, []byte{0x00, 0x0b}, out[:2])
	assert.Equal(t, "hello world", string(out[2:]))
}

func TestUnpadPlaintextRoundTrip(t *testing.T) {
	padded := padPlaintext([]byte("payload"), 32)
	body, err := unpadPlaintext(padded)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestUnpadPlaintextTooShort(t *testing.T) {
	_, err := unpadPlaintext([]byte{0x00})
	require.Error(t, err)
	assert.Equal(t, KindMalformed, errorKind(err))
}

func TestUnpadPlaintextLengthExceedsPayload(t *testing.T) {
	_, err := unpadPlaintext([]byte{0x00, 0xff, 'a'})
	require.Error(t, err)
	assert.Equal(t, KindMalformed, errorKind(err))
}

func TestRingForClientAndServerAreMirrored(t *testing.T) {
	clientStream, serverStream := newWire(nil)
	client, err := NewClient(clientStream, protoXX())
	require.NoError(t, err)
	server, err := NewServer(serverStream)
	require.NoError(t, err)

	assert.Equal(t, [3]ringSlot{slotWriteHandshake, slotReadNegotiation, slotReadHandshake}, client.ringFor())
	assert.Equal(t, [3]ringSlot{slotReadNegotiation, slotReadHandshake, slotWriteHandshake}, server.ringFor())
}

// A client, whose first ring slot is write_handshake, must reject a
// read_negotiation call out of order.
func TestClientReadNegotiationBeforeWriteIsOutOfOrder(t *testing.T) {
	clientStream, _ := newWire(nil)
	client, err := NewClient(clientStream, protoXX())
	require.NoError(t, err)

	_, err = client.ReadNegotiation(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindOutOfOrder, errorKind(err))
}

// A server, whose first ring slot is read_negotiation, must reject a
// write_handshake call out of order.
func TestServerWriteHandshakeBeforeReadIsOutOfOrder(t *testing.T) {
	_, serverStream := newWire(nil)
	server, err := NewServer(serverStream)
	require.NoError(t, err)

	err = server.WriteHandshake(context.Background(), nil, nil, 0)
	require.Error(t, err)
	assert.Equal(t, KindOutOfOrder, errorKind(err))
}

func TestWriteHandshakeNegotiationTooLarge(t *testing.T) {
	clientStream, _ := newWire(nil)
	client, err := NewClient(clientStream, protoXX())
	require.NoError(t, err)

	err = client.WriteHandshake(context.Background(), make([]byte, maxPacketBody+1), nil, 0)
	require.Error(t, err)
	assert.Equal(t, KindTooLarge, errorKind(err))
}

func TestDisposedSessionRejectsWriteHandshake(t *testing.T) {
	clientStream, _ := newWire(nil)
	client, err := NewClient(clientStream, protoXX())
	require.NoError(t, err)

	client.Dispose()

	err = client.WriteHandshake(context.Background(), nil, nil, 0)
	require.Error(t, err)
	assert.Equal(t, KindDisposed, errorKind(err))
}
