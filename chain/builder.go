// Package chain assembles and signs the DICE certificate chain:
//
//	RootAuthority (self-signed) -> DeviceIdentity (authority-signed) -> AliasIdentity (device-signed)
//
// plus ad-hoc leaf CSRs. All signing goes through Builder.Build, which dispatches on
// the Signing variant.
package chain

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// Artifact is a finalized DER structure and its PEM encoding.
type Artifact struct {
	Kind interfaces.ArtifactKind
	DER  []byte
	PEM  []byte
}

// Builder signs descriptors through a crypto and an encoding provider.
type Builder struct {
	crypto   interfaces.CryptoProvider
	encoding interfaces.EncodingProvider
	log      *slog.Logger
}

// NewBuilder creates a chain builder.
func NewBuilder(crypto interfaces.CryptoProvider, encoding interfaces.EncodingProvider, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		crypto:   crypto,
		encoding: encoding,
		log:      log,
	}
}

// Build builds the to-be-signed region for desc, signs it as selected by signing,
// and finalizes and PEM-encodes the result.
func (b *Builder) Build(desc interfaces.CertificateDescriptor, signing Signing) (*Artifact, error) {
	var (
		tbs      []byte
		signer   *interfaces.KeyPair
		finalize func(tbs, sig []byte) ([]byte, error)
		kind     = interfaces.CertificateKind
		err      error
	)

	switch s := signing.(type) {
	case SelfSigned:
		if s.Authority.Public() == nil {
			return nil, fmt.Errorf("%w: self-signed certificate without authority key", interfaces.ErrInvalidArgument)
		}
		signer = s.Authority
		tbs, err = b.encoding.CertificateTBS(desc, s.Authority.Public(), s.Authority.Public(), true)
		finalize = b.encoding.FinalizeSelfSignedCertificate

	case CertificateSigningRequest:
		if s.Subject.Public() == nil {
			return nil, fmt.Errorf("%w: csr without subject key", interfaces.ErrInvalidArgument)
		}
		signer = s.Subject
		kind = interfaces.CSRKind
		tbs, err = b.encoding.CSRTBS(desc, s.Subject.Public())
		finalize = b.encoding.FinalizeCSR

	case AuthoritySigned:
		if s.Subject == nil || s.Signer.Public() == nil {
			return nil, fmt.Errorf("%w: authority-signed certificate needs subject and signer keys", interfaces.ErrInvalidArgument)
		}
		signer = s.Signer
		if s.FirmwareID != nil {
			tbs, err = b.encoding.AliasCertificateTBS(desc, s.Subject, s.Signer.Public(), *s.FirmwareID)
		} else {
			tbs, err = b.encoding.CertificateTBS(desc, s.Subject, s.Signer.Public(), s.IsCA)
		}
		finalize = b.encoding.FinalizeCertificate

	default:
		return nil, fmt.Errorf("%w: unknown signing mode %T", interfaces.ErrInvalidArgument, signing)
	}
	if err != nil {
		return nil, encodingError("build tbs", err)
	}

	sig, err := b.crypto.Sign(tbs, signer.Private)
	if err != nil {
		return nil, signingError(err)
	}

	der, err := finalize(tbs, sig)
	if err != nil {
		return nil, encodingError("finalize "+signing.mode(), err)
	}

	pemBytes, err := b.encoding.EncodePEM(der, kind)
	if err != nil {
		return nil, encodingError("pem", err)
	}

	b.log.Debug("Built artifact",
		slog.String("mode", signing.mode()),
		slog.String("subject", desc.SubjectCommon),
		slog.Int("der_size", len(der)),
		slog.Int("pem_size", len(pemBytes)))

	return &Artifact{Kind: kind, DER: der, PEM: pemBytes}, nil
}

// BuildLeafCSR builds a CSR for key bound to commonName. The common name is checked
// before any crypto operation runs.
func (b *Builder) BuildLeafCSR(desc interfaces.CertificateDescriptor, key *interfaces.KeyPair, commonName string) (cryptoutils.CSRPEM, error) {
	if err := interfaces.ValidateCommonName(commonName); err != nil {
		return nil, err
	}

	artifact, err := b.Build(desc.WithSubjectCommon(commonName), CertificateSigningRequest{Subject: key})
	if err != nil {
		return nil, err
	}
	return cryptoutils.CSRPEM(artifact.PEM), nil
}

// EncodePublicKey returns the PEM SubjectPublicKeyInfo of kp.
func (b *Builder) EncodePublicKey(kp *interfaces.KeyPair) (cryptoutils.PublicKeyPEM, error) {
	der, err := b.encoding.MarshalPublicKey(kp.Public())
	if err != nil {
		return nil, encodingError("public key", err)
	}
	out, err := b.encoding.EncodePEM(der, interfaces.PublicKeyKind)
	if err != nil {
		return nil, encodingError("public key pem", err)
	}
	return cryptoutils.PublicKeyPEM(out), nil
}

// EncodePrivateKey returns the PEM SEC 1 encoding of kp's private key.
func (b *Builder) EncodePrivateKey(kp *interfaces.KeyPair) (cryptoutils.PrivateKeyPEM, error) {
	if kp == nil || kp.Private == nil {
		return nil, fmt.Errorf("%w: nil private key", interfaces.ErrInvalidArgument)
	}
	der, err := b.encoding.MarshalPrivateKey(kp.Private)
	if err != nil {
		return nil, encodingError("private key", err)
	}
	defer interfaces.Wipe(der)

	out, err := b.encoding.EncodePEM(der, interfaces.PrivateKeyKind)
	if err != nil {
		return nil, encodingError("private key pem", err)
	}
	return cryptoutils.PrivateKeyPEM(out), nil
}

func encodingError(op string, err error) error {
	if errors.Is(err, interfaces.ErrEncoding) || errors.Is(err, interfaces.ErrInvalidArgument) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", interfaces.ErrEncoding, op, err)
}

func signingError(err error) error {
	if errors.Is(err, interfaces.ErrCryptoOperation) || errors.Is(err, interfaces.ErrInvalidArgument) {
		return fmt.Errorf("sign: %w", err)
	}
	return fmt.Errorf("%w: sign: %v", interfaces.ErrCryptoOperation, err)
}
