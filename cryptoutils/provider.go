package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"github.com/ruteri/dice-device-identity/interfaces"
	"golang.org/x/crypto/hkdf"
)

// Derivation labels used by the DICE layers.
const (
	IdentityLabel = "IDENTITY"
	AliasLabel    = "ALIAS"
)

// Provider implements interfaces.CryptoProvider on NIST P-256, SHA-256 and HKDF-SHA256.
type Provider struct {
	curve   elliptic.Curve
	entropy io.Reader
}

// NewProvider returns a P-256 provider reading ephemeral entropy from crypto/rand.
func NewProvider() *Provider {
	return &Provider{
		curve:   elliptic.P256(),
		entropy: rand.Reader,
	}
}

// WithEntropy returns a copy of the provider that uses r for ephemeral keys and signatures.
func (p *Provider) WithEntropy(r io.Reader) *Provider {
	return &Provider{
		curve:   p.curve,
		entropy: r,
	}
}

// Hash returns SHA-256(data).
func (p *Provider) Hash(data []byte) (interfaces.Digest, error) {
	return interfaces.Digest(sha256.Sum256(data)), nil
}

// Hash2 returns SHA-256(a || b).
func (p *Provider) Hash2(a, b []byte) (interfaces.Digest, error) {
	h := sha256.New()
	h.Write(a)
	h.Write(b)

	var d interfaces.Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// DeriveEccKeyPair expands seed with HKDF-SHA256 using label as the info string and
// maps the output onto a scalar in [1, n-1]. The same (seed, label) always yields the same key.
func (p *Provider) DeriveEccKeyPair(seed interfaces.Digest, label string) (*interfaces.KeyPair, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: empty derivation label", interfaces.ErrInvalidArgument)
	}

	params := p.curve.Params()
	// Extra 64 bits keep the modular reduction bias negligible.
	okm := make([]byte, (params.BitSize+7)/8+8)
	defer interfaces.Wipe(okm)

	kdf := hkdf.New(sha256.New, seed[:], nil, []byte(label))
	if _, err := io.ReadFull(kdf, okm); err != nil {
		return nil, fmt.Errorf("%w: hkdf expand: %v", interfaces.ErrCryptoOperation, err)
	}

	nMinusOne := new(big.Int).Sub(params.N, big.NewInt(1))
	d := new(big.Int).SetBytes(okm)
	d.Mod(d, nMinusOne)
	d.Add(d, big.NewInt(1))

	return p.keyPairFromScalar(d)
}

// Sign returns an ASN.1 ECDSA signature over SHA-256(tbs).
func (p *Provider) Sign(tbs []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil || key.D == nil {
		return nil, fmt.Errorf("%w: nil signing key", interfaces.ErrInvalidArgument)
	}
	if len(tbs) == 0 {
		return nil, fmt.Errorf("%w: empty to-be-signed region", interfaces.ErrInvalidArgument)
	}

	digest := sha256.Sum256(tbs)
	sig, err := ecdsa.SignASN1(p.entropy, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: ecdsa sign: %v", interfaces.ErrCryptoOperation, err)
	}
	return sig, nil
}

// GenerateKeyPair creates an ephemeral key pair from the provider's entropy source.
func (p *Provider) GenerateKeyPair() (*interfaces.KeyPair, error) {
	key, err := ecdsa.GenerateKey(p.curve, p.entropy)
	if err != nil {
		return nil, fmt.Errorf("%w: key generation: %v", interfaces.ErrCryptoOperation, err)
	}
	return interfaces.NewKeyPair(key)
}

// KeyPairFromScalar builds a P-256 key pair from a big-endian private scalar.
func KeyPairFromScalar(scalar []byte) (*interfaces.KeyPair, error) {
	return NewProvider().keyPairFromScalar(new(big.Int).SetBytes(scalar))
}

func (p *Provider) keyPairFromScalar(d *big.Int) (*interfaces.KeyPair, error) {
	params := p.curve.Params()
	if d.Sign() <= 0 || d.Cmp(params.N) >= 0 {
		return nil, fmt.Errorf("%w: private scalar out of range", interfaces.ErrCryptoOperation)
	}

	scalar := make([]byte, (params.BitSize+7)/8)
	d.FillBytes(scalar)
	defer interfaces.Wipe(scalar)

	privateKey := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: p.curve,
		},
		D: d,
	}
	privateKey.PublicKey.X, privateKey.PublicKey.Y = p.curve.ScalarBaseMult(scalar)

	return interfaces.NewKeyPair(privateKey)
}

var _ interfaces.CryptoProvider = (*Provider)(nil)
