package interfaces

import (
	"crypto/ecdsa"
)

// CryptoProvider supplies the hash, derivation and signing primitives.
// All operations are pure functions of their inputs except GenerateKeyPair.
type CryptoProvider interface {
	// Hash returns SHA-256(data).
	Hash(data []byte) (Digest, error)

	// Hash2 combines two inputs into one digest.
	Hash2(a, b []byte) (Digest, error)

	// DeriveEccKeyPair deterministically derives a P-256 key pair from a seed and a label.
	DeriveEccKeyPair(seed Digest, label string) (*KeyPair, error)

	// Sign signs tbs with the private key and returns an ASN.1 ECDSA signature.
	Sign(tbs []byte, key *ecdsa.PrivateKey) ([]byte, error)

	// GenerateKeyPair creates an ephemeral key pair from the entropy source.
	GenerateKeyPair() (*KeyPair, error)
}

// EncodingProvider builds DER structures and converts them to PEM.
// Every call has a declared maximum output size; exceeding it is reported as ErrEncoding.
type EncodingProvider interface {
	// CertificateTBS builds a TBSCertificate binding subject under issuer.
	CertificateTBS(desc CertificateDescriptor, subject, issuer *ecdsa.PublicKey, isCA bool) ([]byte, error)

	// AliasCertificateTBS builds the alias TBSCertificate carrying the firmware identity.
	AliasCertificateTBS(desc CertificateDescriptor, alias, issuer *ecdsa.PublicKey, fwid FirmwareID) ([]byte, error)

	// CSRTBS builds a CertificationRequestInfo for the subject key.
	CSRTBS(desc CertificateDescriptor, subject *ecdsa.PublicKey) ([]byte, error)

	// FinalizeSelfSignedCertificate attaches a signature to a TBS whose issuer key is the subject key.
	FinalizeSelfSignedCertificate(tbs, signature []byte) ([]byte, error)

	// FinalizeCertificate attaches a signature to a TBS.
	FinalizeCertificate(tbs, signature []byte) ([]byte, error)

	// FinalizeCSR attaches a signature to a CertificationRequestInfo.
	FinalizeCSR(tbs, signature []byte) ([]byte, error)

	// MarshalPublicKey returns the DER SubjectPublicKeyInfo.
	MarshalPublicKey(key *ecdsa.PublicKey) ([]byte, error)

	// MarshalPrivateKey returns the DER SEC 1 private key.
	MarshalPrivateKey(key *ecdsa.PrivateKey) ([]byte, error)

	// EncodePEM wraps der in a PEM block of the kind's type.
	EncodePEM(der []byte, kind ArtifactKind) ([]byte, error)
}

// TrustAnchor supplies the root authority key pair the device certificate is issued under.
type TrustAnchor interface {
	// KeyPair returns the authority key pair.
	KeyPair() *KeyPair

	// Name identifies the anchor for logging.
	Name() string

	// Exportable reports whether the authority private key may be exported from the device handle.
	Exportable() bool
}
