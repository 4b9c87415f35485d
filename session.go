package noisesocket

import (
	"fmt"
	"io"

	"github.com/flynn/noise"

	"github.com/atsika/noisesocket/protocol"
)

// Role is the byte-stream-level party a session was constructed as. It is
// fixed for the session's entire life; only the Noise-internal initiator
// flag of the handshake state may flip, via Switch (§9 "Role hygiene").
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// lifecycleState is the session's coarse phase, per §3's finite lifecycle.
type lifecycleState int

const (
	stateInitial lifecycleState = iota
	stateReinitialized
	stateHandshakeComplete
	stateClosed
)

// reinitKind records which of Accept/Switch/Retry produced the
// stateReinitialized phase. It picks the NOISE_SOCKET_INIT tag and,
// through initiatorForReinit, the role-matrix check and the Noise-level
// initiator flag.
type reinitKind int

const (
	reinitNone reinitKind = iota
	reinitAccept
	reinitSwitch
	reinitRetry
)

func (k reinitKind) tag() string {
	switch k {
	case reinitSwitch:
		return tagInit2
	case reinitRetry:
		return tagInit3
	default:
		return tagInit1
	}
}

// ringSlot is a position in a party's fixed 3-step handshake call-order
// ring (§4.3). write_handshake/write_empty_handshake occupy the same
// slot; read_handshake/ignore_handshake occupy the same slot. Reinit
// (Accept/Switch/Retry) never rotates the ring — only the Noise-level
// initiator flag of the handshake state it builds changes.
type ringSlot int

const (
	slotWriteHandshake ringSlot = iota
	slotReadNegotiation
	slotReadHandshake
)

// Session is a single NoiseSocket instance over a byte stream. It is not
// safe for concurrent use (§5 "Thread/task safety").
type Session struct {
	role   Role
	stream io.ReadWriter
	closer io.Closer

	cfg *Config

	proto         protocol.Protocol
	suite         *cryptoSuite
	reinit        reinitKind
	reinited      bool
	initiatorFlag bool

	state lifecycleState
	ring  ringSlot

	hsState *noise.HandshakeState
	send    *noise.CipherState
	recv    *noise.CipherState

	prologue           *prologueAccumulator
	isNextMsgEncrypted bool
	handshakeHash      []byte
	unusable           bool

	// cryptoFailurePending is set by ReadHandshake's Crypto-failure branch
	// and consulted by reinitialize to allow the one documented exception
	// in §7: a second Accept/Switch/Retry on the same session, letting the
	// application recover from a failed first read_handshake by calling
	// Switch. Any handshake or transport call that runs afterward without
	// that happening clears it, closing the window.
	cryptoFailurePending bool
}

// NewClient constructs a session as the handshake initiator at the
// byte-stream level, bound to proto from the outset (clients commit to a
// protocol at construction; they never call Accept/Switch/Retry against
// their own initial choice, though the matrix in §4.5 permits a client to
// reinitialize too, e.g. after a Crypto failure on a fallback read).
func NewClient(stream io.ReadWriter, proto protocol.Protocol, opts ...Option) (*Session, error) {
	return newSession(RoleClient, stream, proto, opts)
}

// NewServer constructs a session as the byte-stream-level responder. No
// protocol is known yet; the server reads negotiation data and calls
// Accept, Switch, or Retry before any handshake message can be processed.
func NewServer(stream io.ReadWriter, opts ...Option) (*Session, error) {
	return newSession(RoleServer, stream, protocol.Protocol{}, opts)
}

func newSession(role Role, stream io.ReadWriter, proto protocol.Protocol, opts []Option) (*Session, error) {
	if stream == nil {
		return nil, newErr("new", KindInvalidArgument, ErrInvalidArgument)
	}
	cfg := applyConfig(opts)
	s := &Session{
		role:     role,
		stream:   stream,
		cfg:      cfg,
		proto:    proto,
		reinit:   reinitNone,
		state:    stateInitial,
		prologue: newPrologueAccumulator(),
	}
	if c, ok := stream.(io.Closer); ok {
		s.closer = c
	}
	if role == RoleClient {
		if proto.IsOneWay() {
			return nil, newErr("new_client", KindInvalidArgument, ErrInvalidArgument)
		}
		if err := s.prepareSuite(); err != nil {
			return nil, err
		}
		s.recomputeNextEncrypted()
	}
	return s, nil
}

// prepareSuite resolves the cryptographic collaborator bundle (pattern +
// cipher suite) for the session's current protocol. It does not build the
// handshake state itself — that stays lazy per §9.
func (s *Session) prepareSuite() error {
	suite, err := newCryptoSuite(s.proto)
	if err != nil {
		return newErr("prepare", KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}
	s.suite = suite
	return nil
}

func (s *Session) recomputeNextEncrypted() {
	resolved, err := s.proto.Resolve()
	if err != nil {
		s.isNextMsgEncrypted = false
		return
	}
	s.isNextMsgEncrypted = s.proto.HasPSK() || resolved.FirstStepHasDH()
}

// initiatorForReinit derives the Noise-level initiator flag a reinit must
// install, per §4.5's role matrix. Every (kind,role) combination the
// matrix allows maps to exactly one flag with ok=true; combinations it
// forbids return ok=false, which reinitialize rejects.
func initiatorForReinit(kind reinitKind, role Role) (bool, bool) {
	switch kind {
	case reinitAccept:
		if role == RoleServer {
			return false, true
		}
	case reinitSwitch:
		if role == RoleClient {
			return false, true
		}
		if role == RoleServer {
			return true, true
		}
	case reinitRetry:
		if role == RoleClient {
			return true, true
		}
		if role == RoleServer {
			return false, true
		}
	}
	return false, false
}

func (s *Session) reinitialize(kind reinitKind, proto protocol.Protocol, opts []Option) error {
	if s.state == stateClosed {
		return newErr("reinit", KindDisposed, ErrDisposed)
	}
	if s.unusable {
		return newErr("reinit", KindOutOfOrder, ErrOutOfOrder)
	}
	switch {
	case s.state == stateInitial && !s.reinited:
		// The ordinary case: this session has never reinitialized before.
	case s.state == stateReinitialized && s.reinited && s.cryptoFailurePending:
		// The one documented exception (§7): the prior reinit's handshake
		// state was built and its first read_handshake failed Crypto, and
		// nothing has succeeded since. The application is expected to
		// call Switch here to recover.
	default:
		return newErr("reinit", KindOutOfOrder, ErrOutOfOrder)
	}
	initiator, ok := initiatorForReinit(kind, s.role)
	if !ok {
		return newErr("reinit", KindInvalidArgument, ErrInvalidArgument)
	}
	if len(opts) > 0 {
		cloned := s.cfg.clone()
		for _, o := range opts {
			if o != nil {
				o(cloned)
			}
		}
		s.cfg = cloned
	}
	s.cryptoFailurePending = false
	s.discardHandshakeState()
	s.prologue.reopen()
	s.proto = proto
	s.reinit = kind
	s.reinited = true
	s.state = stateReinitialized
	s.initiatorFlag = initiator
	if err := s.prepareSuite(); err != nil {
		return err
	}
	s.recomputeNextEncrypted()
	return nil
}

// Accept installs proto as the agreed protocol without changing the
// session's Noise-level role (§4.5 matrix: server, responder).
func (s *Session) Accept(proto protocol.Protocol, opts ...Option) error {
	return s.reinitialize(reinitAccept, proto, opts)
}

// Switch installs a different protocol than the one initially proposed,
// potentially flipping the Noise-level initiator role (§4.5 matrix).
func (s *Session) Switch(proto protocol.Protocol, opts ...Option) error {
	return s.reinitialize(reinitSwitch, proto, opts)
}

// Retry asks the peer to reattempt the handshake with a different
// protocol, without flipping the Noise-level role (§4.5 matrix).
func (s *Session) Retry(proto protocol.Protocol, opts ...Option) error {
	return s.reinitialize(reinitRetry, proto, opts)
}

func (s *Session) discardHandshakeState() {
	s.hsState = nil
}

// ensureHandshakeState lazily constructs the handshake state the first
// time a handshake operation actually needs the cryptographic
// collaborator, freezing the prologue accumulator in the process (§9).
func (s *Session) ensureHandshakeState() error {
	if s.hsState != nil {
		return nil
	}
	if s.suite == nil {
		if err := s.prepareSuite(); err != nil {
			return err
		}
	}
	prologueBytes := s.prologue.freeze(s.reinit.tag(), s.cfg.applicationPrologue)
	nc := s.cfg.noiseConfigFor(s.suite, s.proto, s.currentInitiator())
	nc.Prologue = prologueBytes
	hs, err := noise.NewHandshakeState(nc)
	if err != nil {
		return newErr("handshake", KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}
	s.hsState = hs
	return nil
}

// currentInitiator reports the Noise-level initiator flag in effect: the
// session's original role-derived default until a reinit installs an
// explicit override.
func (s *Session) currentInitiator() bool {
	if s.reinited {
		return s.initiatorFlag
	}
	return s.role == RoleClient
}

// HandshakeHash returns the completed handshake's channel-binding value.
// Valid only once the transport handle exists (§3 invariant).
func (s *Session) HandshakeHash() ([]byte, error) {
	if s.state != stateHandshakeComplete {
		return nil, newErr("handshake_hash", KindOutOfOrder, ErrOutOfOrder)
	}
	return s.handshakeHash, nil
}

// IsHandshakeComplete reports whether the transport handle exists.
func (s *Session) IsHandshakeComplete() bool {
	return s.state == stateHandshakeComplete
}

// Dispose drops the session's handshake and cipher states and, unless the
// session was built with WithLeaveOpen, closes the underlying stream.
// Key bytes held inside the dropped states are not overwritten.
// Idempotent (§8).
func (s *Session) Dispose() error {
	if s.state == stateClosed {
		return nil
	}
	s.zeroize()
	s.state = stateClosed
	s.cfg.cancel()
	if !s.cfg.leaveOpen && s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Session) zeroize() {
	s.hsState = nil
	s.send = nil
	s.recv = nil
}

// markUnusable flags the session as unsafe to continue after a cancelled
// or failed I/O call left the underlying stream at an unknown position
// (§5 "Cancellation").
func (s *Session) markUnusable() {
	s.unusable = true
}

func (s *Session) checkUsable(op string) error {
	if s.state == stateClosed {
		return newErr(op, KindDisposed, ErrDisposed)
	}
	if s.unusable {
		return newErr(op, KindOutOfOrder, ErrOutOfOrder)
	}
	return nil
}
