package noisesocket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePacketRoundTrip(t *testing.T) {
	buf, err := encodePacket([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x05}, buf[:2])
	assert.Equal(t, "hello", string(buf[2:]))
}

func TestEncodePacketTooLarge(t *testing.T) {
	_, err := encodePacket(make([]byte, maxPacketBody+1))
	require.Error(t, err)
	assert.True(t, errorKind(err) == KindTooLarge)
}

func TestWriteReadPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	require.NoError(t, writePacket(ctx, &buf, []byte("payload")))

	got, err := readPacket(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestReadPacketZeroLength(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	require.NoError(t, writePacket(ctx, &buf, nil))

	got, err := readPacket(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got)
}

func TestReadPacketTruncated(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x05, 'h', 'i'})
	_, err := readPacket(context.Background(), buf)
	require.Error(t, err)
	assert.Equal(t, KindMalformed, errorKind(err))
}

func TestWritePacketsAtomic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePackets(context.Background(), &buf, []byte("a"), []byte("bb")))

	r := bytes.NewReader(buf.Bytes())
	first, err := readPacket(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "a", string(first))

	second, err := readPacket(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "bb", string(second))
}

func TestReadPacketCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := readPacket(ctx, bytes.NewReader(nil))
	require.Error(t, err)
	assert.Equal(t, KindCancelled, errorKind(err))
}

type erroringWriter struct{}

func (erroringWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWritePacketStreamError(t *testing.T) {
	err := writePacket(context.Background(), erroringWriter{}, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, KindStreamError, errorKind(err))
}

func errorKind(err error) Kind {
	var se *SocketError
	if errors.As(err, &se) {
		return se.Kind
	}
	return -1
}
