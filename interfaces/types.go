// Package interfaces defines the core interfaces and types for the DICE device identity engine.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"crypto/ecdsa"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DigestLength is the length of every DICE digest (SHA-256).
const DigestLength = 32

// RootSecretLength is the length of the unique device secret.
const RootSecretLength = 32

// Digest is a 32-byte SHA-256 digest.
type Digest [DigestLength]byte

// Measurement identifies the code measured before the identity layer runs.
type Measurement = Digest

// FirmwareID identifies the firmware the alias identity is bound to.
type FirmwareID = Digest

// CompositeIdentifier is the CDI: the digest combining the root secret and a measurement.
type CompositeIdentifier = Digest

// NewDigestFromBytes creates a digest from exactly 32 bytes.
func NewDigestFromBytes(source []byte) (Digest, error) {
	if len(source) != DigestLength {
		return Digest{}, fmt.Errorf("%w: digest must be %d bytes, got %d", ErrInvalidArgument, DigestLength, len(source))
	}

	var d Digest
	copy(d[:], source)
	return d, nil
}

// NewDigestFromHex creates a digest from a 64-character hex string.
func NewDigestFromHex(source string) (Digest, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 2*DigestLength {
		return Digest{}, fmt.Errorf("%w: digest hex string must be %d characters", ErrInvalidArgument, 2*DigestLength)
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: invalid hex format: %v", ErrInvalidArgument, err)
	}
	return NewDigestFromBytes(raw)
}

// String returns hex representation.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns a copy of the raw 32-byte digest.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestLength)
	copy(out, d[:])
	return out
}

// IsZero reports whether the digest is all zeroes.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// RootSecret is the unique device secret (UDS). It is the sole root of trust and
// never leaves the identity engine: it has no exported byte accessor and redacts
// itself when formatted.
type RootSecret struct {
	value [RootSecretLength]byte
}

// NewRootSecret creates a root secret from exactly 32 bytes.
func NewRootSecret(source []byte) (RootSecret, error) {
	if len(source) != RootSecretLength {
		return RootSecret{}, fmt.Errorf("%w: root secret must be %d bytes, got %d", ErrInvalidArgument, RootSecretLength, len(source))
	}

	var s RootSecret
	copy(s.value[:], source)
	return s, nil
}

// NewRootSecretFromHex creates a root secret from a 64-character hex string.
func NewRootSecretFromHex(source string) (RootSecret, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(source, "0x"))
	if err != nil {
		return RootSecret{}, fmt.Errorf("%w: invalid hex format: %v", ErrInvalidArgument, err)
	}
	defer Wipe(raw)
	return NewRootSecret(raw)
}

// Use hands the secret bytes to fn. The slice is only valid for the duration of the call.
func (s *RootSecret) Use(fn func(secret []byte) error) error {
	buf := s.value
	defer Wipe(buf[:])
	return fn(buf[:])
}

// IsZero reports whether the secret was never set.
func (s RootSecret) IsZero() bool {
	var zero [RootSecretLength]byte
	return subtle.ConstantTimeCompare(s.value[:], zero[:]) == 1
}

// Wipe zeroes the secret in place.
func (s *RootSecret) Wipe() {
	Wipe(s.value[:])
}

func (s RootSecret) String() string {
	return "RootSecret(redacted)"
}

func (s RootSecret) GoString() string {
	return s.String()
}

// KeyPair is a P-256 key pair. The public half is always derived from the private key.
type KeyPair struct {
	Private *ecdsa.PrivateKey
}

// NewKeyPair wraps an ECDSA private key.
func NewKeyPair(key *ecdsa.PrivateKey) (*KeyPair, error) {
	if key == nil || key.D == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrInvalidArgument)
	}
	return &KeyPair{Private: key}, nil
}

// Public returns the public key.
func (kp *KeyPair) Public() *ecdsa.PublicKey {
	if kp == nil || kp.Private == nil {
		return nil
	}
	return &kp.Private.PublicKey
}

// Equal reports whether both key pairs hold the same private key.
func (kp *KeyPair) Equal(other *KeyPair) bool {
	if kp == nil || other == nil || kp.Private == nil || other.Private == nil {
		return kp == other
	}
	return kp.Private.Equal(other.Private)
}

// Wipe clears the private scalar. The key pair is unusable afterwards.
func (kp *KeyPair) Wipe() {
	if kp == nil || kp.Private == nil {
		return
	}
	if kp.Private.D != nil {
		kp.Private.D.SetInt64(0)
	}
	kp.Private = nil
}

// CertificateDescriptor holds the static fields of a certificate "to be signed" region.
type CertificateDescriptor struct {
	SerialNumber []byte

	IssuerCommon  string
	IssuerOrg     string
	IssuerCountry string

	NotBefore time.Time
	NotAfter  time.Time

	SubjectCommon  string
	SubjectOrg     string
	SubjectCountry string
}

// WithSubjectCommon returns a copy of the descriptor with a different subject common name.
func (d CertificateDescriptor) WithSubjectCommon(cn string) CertificateDescriptor {
	out := d
	out.SerialNumber = append([]byte(nil), d.SerialNumber...)
	out.SubjectCommon = cn
	return out
}

// Validate checks that the descriptor can be encoded.
func (d CertificateDescriptor) Validate() error {
	if len(d.SerialNumber) == 0 {
		return fmt.Errorf("%w: empty serial number", ErrInvalidArgument)
	}
	if d.SubjectCommon == "" {
		return fmt.Errorf("%w: empty subject common name", ErrInvalidArgument)
	}
	if !d.NotAfter.After(d.NotBefore) {
		return fmt.Errorf("%w: validity window ends before it starts", ErrInvalidArgument)
	}
	return nil
}

// ArtifactKind identifies the kind of an encoded artifact. It selects the PEM
// block type and the storage namespace.
type ArtifactKind int

const (
	CertificateKind ArtifactKind = iota
	CSRKind
	PublicKeyKind
	PrivateKeyKind
	ManifestKind
)

// String returns the storage namespace of the kind.
func (k ArtifactKind) String() string {
	switch k {
	case CertificateKind:
		return "certificate"
	case CSRKind:
		return "csr"
	case PublicKeyKind:
		return "pubkey"
	case PrivateKeyKind:
		return "privkey"
	case ManifestKind:
		return "manifest"
	default:
		return "unknown"
	}
}

// PEMType returns the PEM block type used for the kind.
func (k ArtifactKind) PEMType() (string, error) {
	switch k {
	case CertificateKind:
		return "CERTIFICATE", nil
	case CSRKind:
		return "CERTIFICATE REQUEST", nil
	case PublicKeyKind:
		return "PUBLIC KEY", nil
	case PrivateKeyKind:
		return "EC PRIVATE KEY", nil
	default:
		return "", fmt.Errorf("%w: no PEM type for artifact kind %s", ErrEncoding, k)
	}
}

// IsSecret reports whether artifacts of this kind must never be published.
func (k ArtifactKind) IsSecret() bool {
	return k == PrivateKeyKind
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

var errEmptyCommonName = errors.New("empty common name")

// ValidateCommonName rejects empty subject common names.
func ValidateCommonName(cn string) error {
	if strings.TrimSpace(cn) == "" {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, errEmptyCommonName)
	}
	return nil
}
