// Package protocol models a Noise protocol identifier (§3 of the
// NoiseSocket spec): the handshake pattern, its modifiers, and the
// DH/cipher/hash triple, plus the canonical ASCII name that identifies it.
//
// This package owns no cryptography and has no dependency on the noise
// collaborator package — it is pure data modelling, exactly the "Protocol
// identifier" data the session engine needs to decide which pattern tokens
// drive the handshake and whether the first message already carries a
// shared secret. The bridge that turns a Protocol into a concrete
// *noise.HandshakeState lives in the root package's crypto.go, which is
// where the actual cryptographic collaborator (flynn/noise) is consumed.
package protocol

import (
	"fmt"
	"strings"
)

// Token is a single symbol in a Noise handshake pattern.
type Token int

const (
	TokenE Token = iota
	TokenS
	TokenEE
	TokenES
	TokenSE
	TokenSS
	TokenPSK
)

// Pattern is a fully-resolved handshake pattern: pre-message knowledge plus
// the per-message token lists, after any modifiers (psk0..psk3) have been
// applied. Messages[i] is sent by the initiator when i is even, by the
// responder when i is odd.
type Pattern struct {
	Name                 string
	InitiatorPreMessages []Token
	ResponderPreMessages []Token
	Messages             [][]Token
}

// basePatterns holds the twelve interactive patterns named in the Noise
// spec plus the three fundamental one-way patterns (N, K, X). Two-way
// composites not listed here (e.g. XXfallback) are derived from these at
// Parse/Pattern time.
var basePatterns = map[string]Pattern{
	"N": {
		Name:                 "N",
		ResponderPreMessages: []Token{TokenS},
		Messages:             [][]Token{{TokenE, TokenES}},
	},
	"K": {
		Name:                 "K",
		InitiatorPreMessages: []Token{TokenS},
		ResponderPreMessages: []Token{TokenS},
		Messages:             [][]Token{{TokenE, TokenES, TokenSS}},
	},
	"X": {
		Name:                 "X",
		ResponderPreMessages: []Token{TokenS},
		Messages:             [][]Token{{TokenE, TokenES, TokenS, TokenSS}},
	},
	"NN": {
		Name: "NN",
		Messages: [][]Token{
			{TokenE},
			{TokenE, TokenEE},
		},
	},
	"NK": {
		Name:                 "NK",
		ResponderPreMessages: []Token{TokenS},
		Messages: [][]Token{
			{TokenE, TokenES},
			{TokenE, TokenEE},
		},
	},
	"NX": {
		Name: "NX",
		Messages: [][]Token{
			{TokenE},
			{TokenE, TokenEE, TokenS, TokenES},
		},
	},
	"XN": {
		Name: "XN",
		Messages: [][]Token{
			{TokenE},
			{TokenE, TokenEE},
			{TokenS, TokenSE},
		},
	},
	"XK": {
		Name:                 "XK",
		ResponderPreMessages: []Token{TokenS},
		Messages: [][]Token{
			{TokenE, TokenES},
			{TokenE, TokenEE},
			{TokenS, TokenSE},
		},
	},
	"XX": {
		Name: "XX",
		Messages: [][]Token{
			{TokenE},
			{TokenE, TokenEE, TokenS, TokenES},
			{TokenS, TokenSE},
		},
	},
	"KN": {
		Name:                 "KN",
		InitiatorPreMessages: []Token{TokenS},
		Messages: [][]Token{
			{TokenE},
			{TokenE, TokenEE, TokenSE},
		},
	},
	"KK": {
		Name:                 "KK",
		InitiatorPreMessages: []Token{TokenS},
		ResponderPreMessages: []Token{TokenS},
		Messages: [][]Token{
			{TokenE, TokenES, TokenSS},
			{TokenE, TokenEE, TokenSE},
		},
	},
	"KX": {
		Name:                 "KX",
		InitiatorPreMessages: []Token{TokenS},
		Messages: [][]Token{
			{TokenE},
			{TokenE, TokenEE, TokenSE, TokenS, TokenES},
		},
	},
	"IN": {
		Name: "IN",
		Messages: [][]Token{
			{TokenE, TokenS},
			{TokenE, TokenEE, TokenSE},
		},
	},
	"IK": {
		Name:                 "IK",
		ResponderPreMessages: []Token{TokenS},
		Messages: [][]Token{
			{TokenE, TokenES, TokenS, TokenSS},
			{TokenE, TokenEE, TokenSE},
		},
	},
	"IX": {
		Name: "IX",
		Messages: [][]Token{
			{TokenE, TokenS},
			{TokenE, TokenEE, TokenSE, TokenS, TokenES},
		},
	},
}

// lookupBase returns a deep copy of the named base pattern.
func lookupBase(name string) (Pattern, bool) {
	p, ok := basePatterns[name]
	if !ok {
		return Pattern{}, false
	}
	cp := Pattern{Name: p.Name}
	cp.InitiatorPreMessages = append([]Token(nil), p.InitiatorPreMessages...)
	cp.ResponderPreMessages = append([]Token(nil), p.ResponderPreMessages...)
	cp.Messages = make([][]Token, len(p.Messages))
	for i, m := range p.Messages {
		cp.Messages[i] = append([]Token(nil), m...)
	}
	return cp, true
}

// DH, Cipher and Hash identify the primitives named in a protocol's ASCII
// name. Their meaning is entirely owned by the cryptographic collaborator;
// this package only needs to carry the name through.
type DH string
type Cipher string
type Hash string

const (
	DH25519 DH = "25519"
	DH448   DH = "448"
)

const (
	CipherAESGCM     Cipher = "AESGCM"
	CipherChaChaPoly Cipher = "ChaChaPoly"
)

const (
	HashSHA256  Hash = "SHA256"
	HashSHA512  Hash = "SHA512"
	HashBLAKE2s Hash = "BLAKE2s"
	HashBLAKE2b Hash = "BLAKE2b"
)

// Protocol is an immutable Noise protocol identifier: a base handshake
// pattern name, its modifiers (fallback, psk0..psk3), and the DH/cipher/
// hash triple (§3 "Protocol identifier").
type Protocol struct {
	Base     string
	Fallback bool
	PSK      []int // psk modifier indices, e.g. []int{0} for "psk0"
	DH       DH
	Cipher   Cipher
	Hash     Hash
}

// Name formats the canonical ASCII name, e.g. "Noise_XX_25519_AESGCM_BLAKE2b"
// or "Noise_IKpsk2_25519_ChaChaPoly_SHA256". This name is used in test
// vectors and may appear in application-defined negotiation data, but per
// §3 is never itself placed on the wire by the NoiseSocket core.
func (p Protocol) Name() string {
	var b strings.Builder
	b.WriteString("Noise_")
	b.WriteString(p.Base)
	for _, idx := range p.PSK {
		fmt.Fprintf(&b, "psk%d", idx)
	}
	if p.Fallback {
		b.WriteString("fallback")
	}
	b.WriteByte('_')
	b.WriteString(string(p.DH))
	b.WriteByte('_')
	b.WriteString(string(p.Cipher))
	b.WriteByte('_')
	b.WriteString(string(p.Hash))
	return b.String()
}

// ParseName parses a canonical ASCII protocol name into a Protocol.
func ParseName(ascii string) (Protocol, error) {
	parts := strings.Split(ascii, "_")
	if len(parts) != 5 || parts[0] != "Noise" {
		return Protocol{}, fmt.Errorf("protocol: malformed name %q", ascii)
	}
	patternToken := parts[1]
	base, mods, fallback, err := splitModifiers(patternToken)
	if err != nil {
		return Protocol{}, fmt.Errorf("protocol: %q: %w", ascii, err)
	}
	if _, ok := lookupBase(base); !ok {
		return Protocol{}, fmt.Errorf("protocol: unknown base pattern %q", base)
	}
	return Protocol{
		Base:     base,
		Fallback: fallback,
		PSK:      mods,
		DH:       DH(parts[2]),
		Cipher:   Cipher(parts[3]),
		Hash:     Hash(parts[4]),
	}, nil
}

// splitModifiers separates a pattern token such as "IKpsk0" or
// "XXfallback" into its base name, any psk indices (in the order given),
// and whether the fallback modifier is present.
func splitModifiers(token string) (base string, psks []int, fallback bool, err error) {
	rest := token
	for {
		switch {
		case strings.HasSuffix(rest, "fallback"):
			fallback = true
			rest = strings.TrimSuffix(rest, "fallback")
		case len(rest) >= 4 && rest[len(rest)-4:len(rest)-1] == "psk":
			var idx int
			if _, e := fmt.Sscanf(rest[len(rest)-4:], "psk%d", &idx); e != nil {
				return "", nil, false, fmt.Errorf("bad psk modifier in %q", token)
			}
			psks = append([]int{idx}, psks...)
			rest = rest[:len(rest)-4]
		default:
			return rest, psks, fallback, nil
		}
	}
}

// IsOneWay reports whether the base pattern is one of the three one-way
// patterns (N, K, X). Per §9, implementations may reject these at
// construction.
func (p Protocol) IsOneWay() bool {
	switch p.Base {
	case "N", "K", "X":
		return true
	default:
		return false
	}
}

// HasPSK reports whether the protocol carries any psk modifier.
func (p Protocol) HasPSK() bool { return len(p.PSK) > 0 }

// Resolve returns the fully-resolved Pattern for this protocol: the base
// pattern's tokens with psk tokens inserted per modifier (psk0 prepends a
// psk token to message 0; pskN for N>=1 appends a psk token to message
// N-1). The fallback modifier does not alter the token structure — see
// DESIGN.md for why this package treats "fallback" as purely nominal for
// NoiseSocket's purposes.
func (p Protocol) Resolve() (Pattern, error) {
	base, ok := lookupBase(p.Base)
	if !ok {
		return Pattern{}, fmt.Errorf("protocol: unknown base pattern %q", p.Base)
	}
	base.Name = p.Name()
	for _, idx := range p.PSK {
		if idx == 0 {
			base.Messages[0] = append([]Token{TokenPSK}, base.Messages[0]...)
			continue
		}
		if idx-1 < 0 || idx-1 >= len(base.Messages) {
			return Pattern{}, fmt.Errorf("protocol: psk%d has no matching message in pattern %q", idx, p.Base)
		}
		base.Messages[idx-1] = append(base.Messages[idx-1], TokenPSK)
	}
	return base, nil
}

// FirstStepHasDH reports whether the pattern's first message (after psk0
// insertion) contains any of the four DH tokens. Combined with HasPSK,
// this decides is_next_message_encrypted's initial value per §4.4.
func (pat Pattern) FirstStepHasDH() bool {
	if len(pat.Messages) == 0 {
		return false
	}
	for _, t := range pat.Messages[0] {
		switch t {
		case TokenEE, TokenES, TokenSE, TokenSS:
			return true
		}
	}
	return false
}
