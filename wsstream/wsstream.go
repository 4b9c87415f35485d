// Package wsstream adapts a nhooyr.io/websocket connection into the
// plain io.ReadWriteCloser byte stream NoiseSocket sessions are
// constructed over. The rest of the corpus's websocket usage
// (vertexhub's Connection) talks to the wire in discrete Write/Read
// frames instead; NoiseSocket's packet codec wants an ordered byte
// stream, so this package leans on websocket.NetConn to present the
// connection as one instead of hand-rolling buffering here.
package wsstream

import (
	"context"
	"net"
	"net/http"

	"nhooyr.io/websocket"
)

// Dial connects to url and returns the connection as a net.Conn carrying
// binary websocket frames, suitable for noisesocket.NewClient.
func Dial(ctx context.Context, url string, opts *websocket.DialOptions) (net.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return Wrap(conn), nil
}

// Wrap adapts an already-established *websocket.Conn (from
// websocket.Dial or websocket.Accept) into a net.Conn. The returned
// connection closes the underlying websocket with StatusNormalClosure
// when Close is called.
func Wrap(conn *websocket.Conn) net.Conn {
	return websocket.NetConn(context.Background(), conn, websocket.MessageBinary)
}

// Accept upgrades an incoming HTTP request to a websocket connection and
// returns it wrapped as a net.Conn, for servers built with
// noisesocket.NewServer. Callers typically pass opts to restrict
// accepted origins in production.
func Accept(w http.ResponseWriter, r *http.Request, opts *websocket.AcceptOptions) (net.Conn, error) {
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, err
	}
	return Wrap(conn), nil
}
