// Command noisesocket-echo is a minimal client/server demonstrating a
// NoiseSocket session over a plain TCP stream: Accept on the listener
// side, a fixed Noise_XX_25519_AESGCM_BLAKE2b handshake, then stdin lines
// echoed back prefixed by the peer that handled them.
package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/flynn/noise"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atsika/noisesocket"
	"github.com/atsika/noisesocket/protocol"
)

func main() {
	listenFlag := flag.String("listen", "", "run as server, listening on this address (e.g. :4433)")
	connectFlag := flag.String("connect", "", "run as client, dialing this address")
	staticFlag := flag.String("static", "", "hex-encoded X25519 private key; a fresh one is generated and logged if omitted")
	paddedFlag := flag.Int("padded", 256, "padded_length applied to handshake and transport messages")
	prologueFlag := flag.String("prologue", "", "application-level prologue string shared out of band by both peers")

	flag.Parse()

	if (*listenFlag == "") == (*connectFlag == "") {
		log.Fatal("exactly one of -listen or -connect is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	kp, err := loadOrGenerateStatic(*staticFlag)
	if err != nil {
		sugar.Fatalw("failed to prepare static keypair", "error", err)
	}
	sugar.Infow("static public key", "hex", hex.EncodeToString(kp.Public))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		sugar.Info("shutting down")
		cancel()
	}()

	opts := []noisesocket.Option{
		noisesocket.WithStaticKeypair(kp),
		noisesocket.WithPaddedLength(*paddedFlag),
		noisesocket.WithLogger(sugar),
		noisesocket.WithMetrics(noisesocket.NewDefaultMetrics()),
	}
	if *prologueFlag != "" {
		opts = append(opts, noisesocket.WithApplicationPrologue([]byte(*prologueFlag)))
	}

	if *listenFlag != "" {
		runServer(ctx, sugar, *listenFlag, opts)
		return
	}
	runClient(ctx, sugar, *connectFlag, opts)
}

func loadOrGenerateStatic(hexPriv string) (noisesocket.KeyPair, error) {
	reader := rand.Reader
	if hexPriv != "" {
		priv, err := hex.DecodeString(hexPriv)
		if err != nil {
			return noisesocket.KeyPair{}, fmt.Errorf("decoding -static: %w", err)
		}
		reader = bytes.NewReader(priv)
	}
	// GenerateKeypair reads exactly 32 bytes from reader and uses them
	// directly as the clamped private scalar, so feeding it a fixed
	// private key deterministically recovers the matching public key.
	kp, err := noise.DH25519.GenerateKeypair(reader)
	if err != nil {
		return noisesocket.KeyPair{}, err
	}
	return noisesocket.KeyPair{Private: kp.Private, Public: kp.Public}, nil
}

func runServer(ctx context.Context, sugar *zap.SugaredLogger, addr string, opts []noisesocket.Option) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		sugar.Fatalw("listen failed", "error", err)
	}
	defer ln.Close()
	sugar.Infow("listening", "addr", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sugar.Warnw("accept failed", "error", err)
			continue
		}
		go serveConn(ctx, sugar, conn, opts)
	}
}

func serveConn(ctx context.Context, sugar *zap.SugaredLogger, conn net.Conn, opts []noisesocket.Option) {
	defer conn.Close()
	id := uuid.NewString()
	log := sugar.With("conn", id, "remote", conn.RemoteAddr().String())

	sess, err := noisesocket.NewServer(conn, opts...)
	if err != nil {
		log.Errorw("failed to construct session", "error", err)
		return
	}
	defer sess.Dispose()

	if _, err := sess.ReadNegotiation(ctx); err != nil {
		log.Errorw("read_negotiation failed", "error", err)
		return
	}
	if err := sess.Accept(echoProtocol()); err != nil {
		log.Errorw("accept failed", "error", err)
		return
	}
	if _, err := sess.ReadHandshake(ctx); err != nil {
		log.Errorw("read_handshake failed", "error", err)
		return
	}
	if err := sess.WriteHandshakeDefault(ctx, nil, nil); err != nil {
		log.Errorw("write_handshake failed", "error", err)
		return
	}
	if _, err := sess.ReadNegotiation(ctx); err != nil {
		log.Errorw("read_negotiation failed", "error", err)
		return
	}
	if _, err := sess.ReadHandshake(ctx); err != nil {
		log.Errorw("read_handshake failed", "error", err)
		return
	}
	if hash, err := sess.HandshakeHash(); err == nil {
		log.Infow("handshake complete", "hash", hex.EncodeToString(hash))
	}

	for {
		body, err := sess.ReadMessage(ctx)
		if err != nil {
			log.Infow("connection closed", "error", err)
			return
		}
		reply := append([]byte("echo: "), body...)
		if err := sess.WriteMessageDefault(ctx, reply); err != nil {
			log.Errorw("write_message failed", "error", err)
			return
		}
	}
}

func runClient(ctx context.Context, sugar *zap.SugaredLogger, addr string, opts []noisesocket.Option) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		sugar.Fatalw("dial failed", "error", err)
	}
	defer conn.Close()

	sess, err := noisesocket.NewClient(conn, echoProtocol(), opts...)
	if err != nil {
		sugar.Fatalw("failed to construct session", "error", err)
	}
	defer sess.Dispose()

	negotiation := []byte(echoProtocol().Name())
	if err := sess.WriteHandshake(ctx, negotiation, nil, sess.DefaultPaddedLength()); err != nil {
		sugar.Fatalw("write_handshake failed", "error", err)
	}
	if _, err := sess.ReadNegotiation(ctx); err != nil {
		sugar.Fatalw("read_negotiation failed", "error", err)
	}
	if _, err := sess.ReadHandshake(ctx); err != nil {
		sugar.Fatalw("read_handshake failed", "error", err)
	}
	if err := sess.WriteHandshakeDefault(ctx, nil, nil); err != nil {
		sugar.Fatalw("write_handshake failed", "error", err)
	}
	if hash, err := sess.HandshakeHash(); err == nil {
		sugar.Infow("handshake complete", "hash", hex.EncodeToString(hash))
	}

	go func() {
		for {
			body, err := sess.ReadMessage(ctx)
			if err != nil {
				sugar.Infow("connection closed", "error", err)
				os.Exit(0)
			}
			fmt.Println(string(body))
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := sess.WriteMessageDefault(ctx, scanner.Bytes()); err != nil {
			sugar.Fatalw("write_message failed", "error", err)
		}
	}
}

func echoProtocol() protocol.Protocol {
	return protocol.Protocol{
		Base:   "XX",
		DH:     protocol.DH25519,
		Cipher: protocol.CipherAESGCM,
		Hash:   protocol.HashBLAKE2b,
	}
}
