package noisesocket

import (
	"fmt"

	"github.com/flynn/noise"

	"github.com/atsika/noisesocket/protocol"
)

// cryptoSuite bridges a protocol.Protocol identifier to the concrete
// noise.HandshakeState the flynn/noise collaborator builds handshake
// messages from. Atsika-aznet's crypto.go wraps a single fixed NN
// cipher suite; this bridge generalizes the same wrapping idea to the
// full pattern/DH/cipher/hash space §3 requires, while keeping the
// aznet split between "build the handshake state" and "seal/unseal
// transport data" as two separate concerns (handshake.go / transport.go
// here, in place of aznet's single Noise type).
type cryptoSuite struct {
	suite   noise.CipherSuite
	pattern noise.HandshakePattern
}

func tokenToMessagePattern(t protocol.Token) (noise.MessagePattern, error) {
	switch t {
	case protocol.TokenE:
		return noise.MessagePatternE, nil
	case protocol.TokenS:
		return noise.MessagePatternS, nil
	case protocol.TokenEE:
		return noise.MessagePatternDHEE, nil
	case protocol.TokenES:
		return noise.MessagePatternDHES, nil
	case protocol.TokenSE:
		return noise.MessagePatternDHSE, nil
	case protocol.TokenSS:
		return noise.MessagePatternDHSS, nil
	case protocol.TokenPSK:
		return noise.MessagePatternPSK, nil
	default:
		return 0, fmt.Errorf("crypto: unrecognized pattern token %d", t)
	}
}

func convertTokens(ts []protocol.Token) ([]noise.MessagePattern, error) {
	out := make([]noise.MessagePattern, len(ts))
	for i, t := range ts {
		mp, err := tokenToMessagePattern(t)
		if err != nil {
			return nil, err
		}
		out[i] = mp
	}
	return out, nil
}

// buildHandshakePattern resolves a protocol.Protocol to the
// noise.HandshakePattern the collaborator's NewHandshakeState needs.
func buildHandshakePattern(p protocol.Protocol) (noise.HandshakePattern, error) {
	resolved, err := p.Resolve()
	if err != nil {
		return noise.HandshakePattern{}, err
	}
	initPre, err := convertTokens(resolved.InitiatorPreMessages)
	if err != nil {
		return noise.HandshakePattern{}, err
	}
	respPre, err := convertTokens(resolved.ResponderPreMessages)
	if err != nil {
		return noise.HandshakePattern{}, err
	}
	messages := make([][]noise.MessagePattern, len(resolved.Messages))
	for i, m := range resolved.Messages {
		converted, err := convertTokens(m)
		if err != nil {
			return noise.HandshakePattern{}, err
		}
		messages[i] = converted
	}
	return noise.HandshakePattern{
		Name:                 resolved.Name,
		InitiatorPreMessages: initPre,
		ResponderPreMessages: respPre,
		Messages:             messages,
	}, nil
}

// buildCipherSuite selects the DH/cipher/hash triple named in p, mirroring
// aznet's package-level defaultCipherSuite but resolved per-protocol
// instead of hardcoded to DH25519/AESGCM/SHA256.
func buildCipherSuite(p protocol.Protocol) (noise.CipherSuite, error) {
	var dh noise.DHFunc
	switch p.DH {
	case protocol.DH25519:
		dh = noise.DH25519
	case protocol.DH448:
		return nil, fmt.Errorf("crypto: DH448 is not supported by the linked cryptographic collaborator")
	default:
		return nil, fmt.Errorf("crypto: unknown DH function %q", p.DH)
	}

	var cipher noise.CipherFunc
	switch p.Cipher {
	case protocol.CipherAESGCM:
		cipher = noise.CipherAESGCM
	case protocol.CipherChaChaPoly:
		cipher = noise.CipherChaChaPoly
	default:
		return nil, fmt.Errorf("crypto: unknown cipher function %q", p.Cipher)
	}

	var hash noise.HashFunc
	switch p.Hash {
	case protocol.HashSHA256:
		hash = noise.HashSHA256
	case protocol.HashSHA512:
		hash = noise.HashSHA512
	case protocol.HashBLAKE2b:
		hash = noise.HashBLAKE2b
	case protocol.HashBLAKE2s:
		hash = noise.HashBLAKE2s
	default:
		return nil, fmt.Errorf("crypto: unknown hash function %q", p.Hash)
	}

	return noise.NewCipherSuite(dh, cipher, hash), nil
}

// newCryptoSuite combines buildHandshakePattern and buildCipherSuite into
// a single resolved bundle for handshakeState construction.
func newCryptoSuite(p protocol.Protocol) (*cryptoSuite, error) {
	pattern, err := buildHandshakePattern(p)
	if err != nil {
		return nil, err
	}
	suite, err := buildCipherSuite(p)
	if err != nil {
		return nil, err
	}
	return &cryptoSuite{suite: suite, pattern: pattern}, nil
}
