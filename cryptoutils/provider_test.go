package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/ruteri/dice-device-identity/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash2MatchesConcatenation(t *testing.T) {
	p := NewProvider()

	got, err := p.Hash2([]byte("abc"), []byte("def"))
	require.NoError(t, err)

	assert.Equal(t, interfaces.Digest(sha256.Sum256([]byte("abcdef"))), got)
}

func TestDeriveEccKeyPairDeterministic(t *testing.T) {
	p := NewProvider()
	seed, err := p.Hash([]byte("seed"))
	require.NoError(t, err)

	a, err := p.DeriveEccKeyPair(seed, IdentityLabel)
	require.NoError(t, err)
	b, err := p.DeriveEccKeyPair(seed, IdentityLabel)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.True(t, a.Public().Equal(b.Public()))
	assert.True(t, a.Private.Curve.IsOnCurve(a.Public().X, a.Public().Y))
}

func TestDeriveEccKeyPairLabelsAreIndependent(t *testing.T) {
	p := NewProvider()
	seed, err := p.Hash([]byte("seed"))
	require.NoError(t, err)

	identity, err := p.DeriveEccKeyPair(seed, IdentityLabel)
	require.NoError(t, err)
	alias, err := p.DeriveEccKeyPair(seed, AliasLabel)
	require.NoError(t, err)

	assert.False(t, identity.Equal(alias))

	otherSeed, err := p.Hash([]byte("other seed"))
	require.NoError(t, err)
	other, err := p.DeriveEccKeyPair(otherSeed, IdentityLabel)
	require.NoError(t, err)
	assert.False(t, identity.Equal(other))
}

func TestDeriveEccKeyPairRejectsEmptyLabel(t *testing.T) {
	_, err := NewProvider().DeriveEccKeyPair(interfaces.Digest{}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))
}

func TestSignVerifies(t *testing.T) {
	p := NewProvider()
	kp, err := p.GenerateKeyPair()
	require.NoError(t, err)

	tbs := []byte("to be signed")
	sig, err := p.Sign(tbs, kp.Private)
	require.NoError(t, err)

	digest := sha256.Sum256(tbs)
	assert.True(t, ecdsa.VerifyASN1(kp.Public(), digest[:], sig))
	assert.False(t, ecdsa.VerifyASN1(kp.Public(), digest[:1], sig))
}

func TestSignRejectsMissingKey(t *testing.T) {
	_, err := NewProvider().Sign([]byte("x"), nil)
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerateKeyPairReportsEntropyFailure(t *testing.T) {
	_, err := NewProvider().WithEntropy(failingReader{}).GenerateKeyPair()
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrCryptoOperation))
}

func TestKeyPairFromScalar(t *testing.T) {
	_, err := KeyPairFromScalar(make([]byte, 32))
	assert.True(t, errors.Is(err, interfaces.ErrCryptoOperation))

	kp, err := KeyPairFromScalar([]byte{1})
	require.NoError(t, err)
	params := kp.Private.Curve.Params()
	assert.Equal(t, 0, kp.Public().X.Cmp(params.Gx))
	assert.Equal(t, 0, kp.Public().Y.Cmp(params.Gy))
}
