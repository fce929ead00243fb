package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"
)

// CSRPEM represents a Certificate Signing Request in PEM format.
type CSRPEM []byte

// NewCSRPEM creates a new CSR object from PEM-encoded data with validation.
func NewCSRPEM(data []byte) (CSRPEM, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		return CSRPEM{}, errors.New("invalid CSR: not in PEM format or not a certificate request")
	}

	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return CSRPEM{}, fmt.Errorf("invalid CSR structure: %w", err)
	}

	if err := csr.CheckSignature(); err != nil {
		return CSRPEM{}, fmt.Errorf("invalid CSR signature: %w", err)
	}

	return CSRPEM(data), nil
}

// Validate checks if the CSR is properly formed and self-consistent.
func (csr CSRPEM) Validate() error {
	_, err := NewCSRPEM(csr)
	return err
}

// GetX509CSR returns the parsed X.509 certificate request.
func (csr CSRPEM) GetX509CSR() (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(csr)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	return x509.ParseCertificateRequest(block.Bytes)
}

// CertificatePEM represents an X.509 certificate in PEM format.
type CertificatePEM []byte

// NewCertificatePEM creates a new certificate object from PEM-encoded data with validation.
func NewCertificatePEM(data []byte) (CertificatePEM, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return CertificatePEM{}, errors.New("invalid certificate: not in PEM format or not a certificate")
	}

	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return CertificatePEM{}, fmt.Errorf("invalid certificate structure: %w", err)
	}

	return CertificatePEM(data), nil
}

// Validate checks if the certificate is properly formed.
func (cert CertificatePEM) Validate() error {
	_, err := NewCertificatePEM(cert)
	return err
}

// GetX509Cert returns the parsed X.509 certificate.
func (cert CertificatePEM) GetX509Cert() (*x509.Certificate, error) {
	block, _ := pem.Decode(cert)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	return x509.ParseCertificate(block.Bytes)
}

// IsExpired checks if the certificate has expired.
func (cert CertificatePEM) IsExpired() (bool, error) {
	x509Cert, err := cert.GetX509Cert()
	if err != nil {
		return false, err
	}
	return x509Cert.NotAfter.Before(time.Now()), nil
}

// IsCA reports whether the certificate carries the CA basic constraint.
func (cert CertificatePEM) IsCA() (bool, error) {
	x509Cert, err := cert.GetX509Cert()
	if err != nil {
		return false, err
	}
	return x509Cert.IsCA, nil
}

// CheckSignatureFrom checks that cert was signed by parent's key.
func (cert CertificatePEM) CheckSignatureFrom(parent CertificatePEM) error {
	parentCert, err := parent.GetX509Cert()
	if err != nil {
		return err
	}

	childCert, err := cert.GetX509Cert()
	if err != nil {
		return err
	}

	return childCert.CheckSignatureFrom(parentCert)
}

// PublicKeyPEM represents an ECDSA public key in PEM format.
type PublicKeyPEM []byte

// NewPublicKeyPEM creates a new public key object from PEM-encoded data with validation.
func NewPublicKeyPEM(data []byte) (PublicKeyPEM, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return PublicKeyPEM{}, errors.New("invalid public key: not in PEM format or not a public key")
	}

	if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
		return PublicKeyPEM{}, fmt.Errorf("invalid public key structure: %w", err)
	}

	return PublicKeyPEM(data), nil
}

// Validate checks if the public key is properly formed.
func (pub PublicKeyPEM) Validate() error {
	_, err := NewPublicKeyPEM(pub)
	return err
}

// GetPublicKey returns the parsed ECDSA public key.
func (pub PublicKeyPEM) GetPublicKey() (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type: %T", parsed)
	}
	return key, nil
}

// DER returns the SubjectPublicKeyInfo bytes.
func (pub PublicKeyPEM) DER() ([]byte, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	return block.Bytes, nil
}

// PrivateKeyPEM represents an ECDSA private key in PEM format.
type PrivateKeyPEM []byte

// NewPrivateKeyPEM creates a new private key object from PEM-encoded data with validation.
func NewPrivateKeyPEM(data []byte) (PrivateKeyPEM, error) {
	if _, err := PrivateKeyPEM(data).GetPrivateKey(); err != nil {
		return PrivateKeyPEM{}, fmt.Errorf("invalid private key: %w", err)
	}
	return PrivateKeyPEM(data), nil
}

// Validate checks if the private key is properly formed.
func (priv PrivateKeyPEM) Validate() error {
	_, err := NewPrivateKeyPEM(priv)
	return err
}

// GetPrivateKey returns the parsed ECDSA private key. Both SEC 1 and PKCS #8 encodings are accepted.
func (priv PrivateKeyPEM) GetPrivateKey() (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type: %T", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
}

// GetPublicKey returns the public half of the private key.
func (priv PrivateKeyPEM) GetPublicKey() (*ecdsa.PublicKey, error) {
	key, err := priv.GetPrivateKey()
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// Wipe zeroes the PEM buffer in place.
func (priv PrivateKeyPEM) Wipe() {
	for i := range priv {
		priv[i] = 0
	}
}

// CloneBytes returns an exact-length copy of b, or nil when b is empty.
func CloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
