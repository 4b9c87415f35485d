package noisesocket

import (
	"context"
	"io"

	"github.com/flynn/noise"

	"github.com/atsika/noisesocket/protocol"
)

const (
	// defaultPaddedLength is the padded_length applied to outgoing
	// handshake and transport messages when no WithPaddedLength option is
	// given. Zero padding is always legal; this default pads any shorter
	// plaintext up to 256 bytes to blunt length-based traffic analysis,
	// the same motivation behind §4.2/§4.4's padding field. Plaintexts
	// already longer than 256 bytes are sent without padding.
	defaultPaddedLength = 256
)

// KeyPair is a single Noise static or ephemeral Diffie-Hellman keypair.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// Option configures a Config, following aznet's functional-options
// pattern (options.go) generalized from connection bootstrap settings to
// NoiseSocket's protocol/key/logging surface.
type Option func(*Config)

// Config holds the settings a session is constructed with. Its zero value
// is never used directly; NewClient/NewServer apply defaultConfig() first
// and then any Options given, mirroring aznet's applyConfig.
type Config struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger  Logger
	metrics Metrics

	paddedLength int
	leaveOpen    bool

	applicationPrologue []byte

	staticKeypair    *KeyPair
	ephemeralKeypair *KeyPair
	peerStatic       []byte

	psks map[int][]byte

	random io.Reader
}

func defaultConfig() *Config {
	ctx, cancel := context.WithCancel(context.Background())
	return &Config{
		ctx:          ctx,
		cancel:       cancel,
		logger:       defaultLogger,
		metrics:      NewDefaultMetrics(),
		paddedLength: defaultPaddedLength,
		psks:         make(map[int][]byte),
	}
}

func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	return cfg
}

// WithContext derives the session's stored base context from ctx; Dispose
// cancels it. Blocking I/O calls select only against the context passed
// to each call, not against this stored one.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		if ctx != nil {
			c.ctx, c.cancel = context.WithCancel(ctx)
		}
	}
}

// WithLogger injects a structured logger. Anything satisfying the Logger
// interface works, including a *zap.SugaredLogger directly.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics injects a custom Metrics collector in place of
// DefaultMetrics's atomic counters.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithPaddedLength sets the padded_length used when none is given
// explicitly to a Write call, per §4.2/§4.4. A value of 0 disables
// padding by default.
func WithPaddedLength(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.paddedLength = n
		}
	}
}

// WithLeaveOpen marks the underlying stream as owned by the caller: Dispose
// will not close it.
func WithLeaveOpen() Option {
	return func(c *Config) { c.leaveOpen = true }
}

// WithApplicationPrologue appends application-defined context to the
// prologue transcript, per §4.3's "application_prologue" term.
func WithApplicationPrologue(p []byte) Option {
	return func(c *Config) {
		c.applicationPrologue = append([]byte(nil), p...)
	}
}

// WithStaticKeypair supplies the long-term static keypair the local party
// proves possession of, required by any pattern whose initiator or
// responder pre-message/message tokens include S.
func WithStaticKeypair(kp KeyPair) Option {
	return func(c *Config) {
		c.staticKeypair = &KeyPair{
			Private: append([]byte(nil), kp.Private...),
			Public:  append([]byte(nil), kp.Public...),
		}
	}
}

// WithEphemeralKeypair overrides the ephemeral keypair a handshake step
// generates, primarily for deterministic test vectors (§8). Most callers
// should use WithRandom instead and let the collaborator generate it.
func WithEphemeralKeypair(kp KeyPair) Option {
	return func(c *Config) {
		c.ephemeralKeypair = &KeyPair{
			Private: append([]byte(nil), kp.Private...),
			Public:  append([]byte(nil), kp.Public...),
		}
	}
}

// WithPeerStatic supplies the remote party's known static public key, for
// patterns whose initiator calls from one-way or XK/IK/KK-style knowledge.
func WithPeerStatic(pub []byte) Option {
	return func(c *Config) {
		c.peerStatic = append([]byte(nil), pub...)
	}
}

// WithPSK supplies the pre-shared symmetric key for the given psk modifier
// index (0-3), used when the protocol identifier names a pskN modifier.
func WithPSK(index int, key []byte) Option {
	return func(c *Config) {
		if c.psks == nil {
			c.psks = make(map[int][]byte)
		}
		c.psks[index] = append([]byte(nil), key...)
	}
}

// WithRandom overrides the source of randomness used for ephemeral
// keypair generation. Supplying a deterministic
// reader makes handshake output bit-exact reproducible, the property
// §8's fixed test vectors rely on.
func WithRandom(r io.Reader) Option {
	return func(c *Config) {
		if r != nil {
			c.random = r
		}
	}
}

// noiseConfigFor builds the flynn/noise Config this package's Config
// implies for the given protocol and role, filling in the DHKey structs
// noise.NewHandshakeState expects.
func (c *Config) noiseConfigFor(suite *cryptoSuite, p protocol.Protocol, initiator bool) noise.Config {
	nc := noise.Config{
		CipherSuite: suite.suite,
		Pattern:     suite.pattern,
		Initiator:   initiator,
	}
	if c.random != nil {
		nc.Random = c.random
	}
	if c.staticKeypair != nil {
		nc.StaticKeypair = noise.DHKey{
			Private: c.staticKeypair.Private,
			Public:  c.staticKeypair.Public,
		}
	}
	if c.ephemeralKeypair != nil {
		nc.EphemeralKeypair = noise.DHKey{
			Private: c.ephemeralKeypair.Private,
			Public:  c.ephemeralKeypair.Public,
		}
	}
	if c.peerStatic != nil {
		nc.PeerStatic = c.peerStatic
	}
	for _, idx := range p.PSK {
		if secret, ok := c.psks[idx]; ok {
			nc.PSKs = append(nc.PSKs, noise.PSK{Index: idx, Secret: secret})
		}
	}
	return nc
}

// clone returns a shallow copy of c suitable for building a reinitialized
// session's Config without mutating the one the caller passed in, used by
// Accept/Switch/Retry when the new protocol needs different key material
// layered on top of the rest of the existing settings.
func (c *Config) clone() *Config {
	cp := *c
	cp.psks = make(map[int][]byte, len(c.psks))
	for k, v := range c.psks {
		cp.psks[k] = v
	}
	return &cp
}
