package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameRoundTrip(t *testing.T) {
	p, err := ParseName("Noise_XX_25519_AESGCM_BLAKE2b")
	require.NoError(t, err)
	assert.Equal(t, "XX", p.Base)
	assert.Equal(t, DH25519, p.DH)
	assert.Equal(t, CipherAESGCM, p.Cipher)
	assert.Equal(t, HashBLAKE2b, p.Hash)
	assert.Equal(t, "Noise_XX_25519_AESGCM_BLAKE2b", p.Name())
}

func TestParseNamePSKModifier(t *testing.T) {
	p, err := ParseName("Noise_IKpsk2_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)
	assert.Equal(t, "IK", p.Base)
	assert.Equal(t, []int{2}, p.PSK)
	assert.True(t, p.HasPSK())
	assert.Equal(t, "Noise_IKpsk2_25519_ChaChaPoly_SHA256", p.Name())
}

func TestParseNameFallbackModifier(t *testing.T) {
	p, err := ParseName("Noise_XXfallback_25519_AESGCM_SHA256")
	require.NoError(t, err)
	assert.Equal(t, "XX", p.Base)
	assert.True(t, p.Fallback)
	assert.Equal(t, "Noise_XXfallback_25519_AESGCM_SHA256", p.Name())
}

func TestParseNameUnknownPattern(t *testing.T) {
	_, err := ParseName("Noise_ZZ_25519_AESGCM_SHA256")
	require.Error(t, err)
}

func TestParseNameMalformed(t *testing.T) {
	_, err := ParseName("Noise_XX_25519_AESGCM")
	require.Error(t, err)
}

func TestResolveNN(t *testing.T) {
	p := Protocol{Base: "NN", DH: DH25519, Cipher: CipherAESGCM, Hash: HashSHA256}
	pat, err := p.Resolve()
	require.NoError(t, err)
	require.Len(t, pat.Messages, 2)
	assert.Equal(t, []Token{TokenE}, pat.Messages[0])
	assert.Equal(t, []Token{TokenE, TokenEE}, pat.Messages[1])
	assert.False(t, pat.FirstStepHasDH())
}

func TestResolveIKFirstStepHasDH(t *testing.T) {
	p := Protocol{Base: "IK", DH: DH25519, Cipher: CipherAESGCM, Hash: HashSHA256}
	pat, err := p.Resolve()
	require.NoError(t, err)
	assert.True(t, pat.FirstStepHasDH())
}

func TestResolvePSK0PrependsToFirstMessage(t *testing.T) {
	p := Protocol{Base: "NN", PSK: []int{0}, DH: DH25519, Cipher: CipherAESGCM, Hash: HashSHA256}
	pat, err := p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []Token{TokenPSK, TokenE}, pat.Messages[0])
}

func TestResolvePSK2AppendsToSecondMessage(t *testing.T) {
	p := Protocol{Base: "NN", PSK: []int{2}, DH: DH25519, Cipher: CipherAESGCM, Hash: HashSHA256}
	pat, err := p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []Token{TokenE, TokenEE, TokenPSK}, pat.Messages[1])
}

func TestResolvePSKOutOfRange(t *testing.T) {
	p := Protocol{Base: "NN", PSK: []int{5}, DH: DH25519, Cipher: CipherAESGCM, Hash: HashSHA256}
	_, err := p.Resolve()
	require.Error(t, err)
}

func TestIsOneWay(t *testing.T) {
	assert.True(t, Protocol{Base: "N"}.IsOneWay())
	assert.True(t, Protocol{Base: "K"}.IsOneWay())
	assert.True(t, Protocol{Base: "X"}.IsOneWay())
	assert.False(t, Protocol{Base: "XX"}.IsOneWay())
}

func TestAllBasePatternsResolve(t *testing.T) {
	for _, name := range []string{"N", "K", "X", "NN", "NK", "NX", "XN", "XK", "XX", "KN", "KK", "KX", "IN", "IK", "IX"} {
		p := Protocol{Base: name, DH: DH25519, Cipher: CipherAESGCM, Hash: HashSHA256}
		_, err := p.Resolve()
		assert.NoErrorf(t, err, "pattern %s should resolve", name)
	}
}
