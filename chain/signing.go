package chain

import (
	"crypto/ecdsa"

	"github.com/ruteri/dice-device-identity/interfaces"
)

// Signing selects which key signs a to-be-signed region and how the result is finalized.
// It is one of SelfSigned, CertificateSigningRequest or AuthoritySigned.
type Signing interface {
	mode() string
}

// SelfSigned produces the authority's own certificate: subject and signer are both Authority.
type SelfSigned struct {
	Authority *interfaces.KeyPair
}

// CertificateSigningRequest produces a CSR for Subject, signed by Subject.
type CertificateSigningRequest struct {
	Subject *interfaces.KeyPair
}

// AuthoritySigned produces a certificate binding Subject, signed by Signer.
// Signer may be the subject's own key pair (self-assertion) or an authority.
// When FirmwareID is set the certificate is an alias certificate carrying it.
type AuthoritySigned struct {
	Subject    *ecdsa.PublicKey
	Signer     *interfaces.KeyPair
	IsCA       bool
	FirmwareID *interfaces.FirmwareID
}

func (SelfSigned) mode() string                { return "self-signed" }
func (CertificateSigningRequest) mode() string { return "csr" }
func (AuthoritySigned) mode() string           { return "authority-signed" }
