package wsstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDialAcceptRoundTrip drives a real loopback websocket connection
// through Accept/Dial and confirms the net.Conn adapters carry an ordered
// byte stream in both directions, the property NoiseSocket's packet codec
// depends on.
func TestDialAcceptRoundTrip(t *testing.T) {
	serverDone := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, nil)
		if err != nil {
			serverDone <- err
			return
		}
		defer conn.Close()

		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			serverDone <- err
			return
		}
		if _, err := conn.Write([]byte("pong!")); err != nil {
			serverDone <- err
			return
		}
		serverDone <- nil
	}))
	defer srv.Close()

	url := "ws" + srv.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("ping!"))
	require.NoError(t, err)

	got := make([]byte, 5)
	_, err = io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, "pong!", string(got))

	require.NoError(t, <-serverDone)
}
