package noisesocket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransportRoundTripVariousPaddedLengths drives a full XX handshake at
// several padded_length settings and confirms every payload round-trips
// intact, including the zero-length one.
func TestTransportRoundTripVariousPaddedLengths(t *testing.T) {
	for _, padded := range []int{0, 16, 64} {
		padded := padded
		t.Run("", func(t *testing.T) {
			v := loadVectors(t)
			client, server := runXXAccept(t, v, padded, nil)
			defer client.Dispose()
			defer server.Dispose()

			ctx := context.Background()
			msgs := []string{"", "short", "a slightly longer application payload"}

			runPair(t,
				func() error {
					for _, m := range msgs {
						if err := client.WriteMessage(ctx, []byte(m), padded); err != nil {
							return err
						}
					}
					return nil
				},
				func() error {
					for _, want := range msgs {
						got, err := server.ReadMessage(ctx)
						if err != nil {
							return err
						}
						assert.Equal(t, want, string(got))
					}
					return nil
				},
			)
		})
	}
}

func TestWriteMessageBeforeHandshakeCompleteIsOutOfOrder(t *testing.T) {
	clientStream, _ := newWire(nil)
	client, err := NewClient(clientStream, protoXX())
	require.NoError(t, err)

	err = client.WriteMessage(context.Background(), []byte("too soon"), 0)
	require.Error(t, err)
	assert.Equal(t, KindOutOfOrder, errorKind(err))
}

func TestWriteMessageBodyTooLarge(t *testing.T) {
	v := loadVectors(t)
	client, server := runXXAccept(t, v, 0, nil)
	defer client.Dispose()
	defer server.Dispose()

	err := client.WriteMessage(context.Background(), make([]byte, maxPacketBody+1), 0)
	require.Error(t, err)
	assert.Equal(t, KindTooLarge, errorKind(err))
}

func TestReadMessageBelowMinimumSizeIsMalformed(t *testing.T) {
	v := loadVectors(t)
	client, server := runXXAccept(t, v, 0, nil)
	defer client.Dispose()
	defer server.Dispose()

	// The in-memory pipe blocks a write until the peer reads it, so the
	// write runs alongside the read.
	writeErr := make(chan error, 1)
	go func() { writeErr <- writePacket(context.Background(), client.stream, []byte("short")) }()

	_, err := server.ReadMessage(context.Background())
	require.NoError(t, <-writeErr)
	require.Error(t, err)
	assert.Equal(t, KindMalformed, errorKind(err))
}
