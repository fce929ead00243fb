package der

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/ruteri/dice-device-identity/interfaces"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Encoder implements interfaces.EncodingProvider.
type Encoder struct {
	limits Limits
}

// NewEncoder returns an encoder enforcing the declared maximum sizes.
func NewEncoder() *Encoder {
	return &Encoder{limits: DefaultLimits()}
}

// WithLimits returns a copy of the encoder enforcing different maximum sizes.
func (e *Encoder) WithLimits(limits Limits) *Encoder {
	return &Encoder{limits: limits}
}

// CertificateTBS builds a TBSCertificate binding subject under issuer.
func (e *Encoder) CertificateTBS(desc interfaces.CertificateDescriptor, subject, issuer *ecdsa.PublicKey, isCA bool) ([]byte, error) {
	keyUsage, err := keyUsageExtension(isCA)
	if err != nil {
		return nil, err
	}
	keyIDs, err := keyIDExtensions(subject, issuer)
	if err != nil {
		return nil, err
	}

	exts := append([]extension{basicConstraintsExtension(isCA), keyUsage}, keyIDs...)
	return e.tbsCertificate(desc, subject, exts)
}

// AliasCertificateTBS builds the alias TBSCertificate. The alias is an end entity
// and records fwid in a TCG DICE TcbInfo extension.
func (e *Encoder) AliasCertificateTBS(desc interfaces.CertificateDescriptor, alias, issuer *ecdsa.PublicKey, fwid interfaces.FirmwareID) ([]byte, error) {
	keyUsage, err := keyUsageExtension(false)
	if err != nil {
		return nil, err
	}
	keyIDs, err := keyIDExtensions(alias, issuer)
	if err != nil {
		return nil, err
	}
	tcbInfo, err := tcbInfoExtension(fwid)
	if err != nil {
		return nil, err
	}

	exts := append([]extension{basicConstraintsExtension(false), keyUsage}, keyIDs...)
	exts = append(exts, tcbInfo)
	return e.tbsCertificate(desc, alias, exts)
}

// CSRTBS builds a CertificationRequestInfo with an empty attribute set.
func (e *Encoder) CSRTBS(desc interfaces.CertificateDescriptor, subject *ecdsa.PublicKey) ([]byte, error) {
	if err := interfaces.ValidateCommonName(desc.SubjectCommon); err != nil {
		return nil, err
	}

	name, err := marshalName(desc.SubjectCommon, desc.SubjectOrg, desc.SubjectCountry)
	if err != nil {
		return nil, err
	}
	spki, err := e.MarshalPublicKey(subject)
	if err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(info *cryptobyte.Builder) {
		info.AddASN1Int64(0)
		info.AddBytes(name)
		info.AddBytes(spki)
		info.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(*cryptobyte.Builder) {})
	})

	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: csr info: %v", interfaces.ErrEncoding, err)
	}
	return checkSize("csr info", out, e.limits.TBS)
}

// FinalizeSelfSignedCertificate attaches signature and checks that it verifies
// under the certificate's own subject key with issuer equal to subject.
func (e *Encoder) FinalizeSelfSignedCertificate(tbs, signature []byte) ([]byte, error) {
	out, err := e.FinalizeCertificate(tbs, signature)
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(out)
	if err != nil {
		return nil, fmt.Errorf("%w: parse self-signed certificate: %v", interfaces.ErrEncoding, err)
	}
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return nil, fmt.Errorf("%w: self-signed certificate issuer %q differs from subject %q", interfaces.ErrEncoding, cert.Issuer, cert.Subject)
	}
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return nil, fmt.Errorf("%w: self-signed certificate signature: %v", interfaces.ErrEncoding, err)
	}
	return out, nil
}

// FinalizeCertificate wraps tbs and signature into a Certificate.
func (e *Encoder) FinalizeCertificate(tbs, signature []byte) ([]byte, error) {
	return e.finalize("certificate", tbs, signature)
}

// FinalizeCSR wraps the request info and signature into a CertificationRequest
// and checks the request's self-signature.
func (e *Encoder) FinalizeCSR(tbs, signature []byte) ([]byte, error) {
	out, err := e.finalize("csr", tbs, signature)
	if err != nil {
		return nil, err
	}

	csr, err := x509.ParseCertificateRequest(out)
	if err != nil {
		return nil, fmt.Errorf("%w: parse csr: %v", interfaces.ErrEncoding, err)
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, fmt.Errorf("%w: csr signature: %v", interfaces.ErrEncoding, err)
	}
	return out, nil
}

// MarshalPublicKey returns the DER SubjectPublicKeyInfo.
func (e *Encoder) MarshalPublicKey(key *ecdsa.PublicKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil public key", interfaces.ErrInvalidArgument)
	}
	out, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", interfaces.ErrEncoding, err)
	}
	return checkSize("public key", out, e.limits.Structure)
}

// MarshalPrivateKey returns the DER SEC 1 ECPrivateKey.
func (e *Encoder) MarshalPrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil private key", interfaces.ErrInvalidArgument)
	}
	out, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", interfaces.ErrEncoding, err)
	}
	return checkSize("private key", out, e.limits.Structure)
}

// EncodePEM wraps der in a PEM block of the kind's type.
func (e *Encoder) EncodePEM(der []byte, kind interfaces.ArtifactKind) ([]byte, error) {
	if len(der) == 0 {
		return nil, fmt.Errorf("%w: empty %s", interfaces.ErrEncoding, kind)
	}
	blockType, err := kind.PEMType()
	if err != nil {
		return nil, err
	}

	out := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if out == nil {
		return nil, fmt.Errorf("%w: pem encode %s", interfaces.ErrEncoding, kind)
	}
	return checkSize(kind.String()+" pem", out, e.limits.PEM)
}

// DecodePEM returns the DER payload of a single PEM block of the kind's type.
func DecodePEM(data []byte, kind interfaces.ArtifactKind) ([]byte, error) {
	blockType, err := kind.PEMType()
	if err != nil {
		return nil, err
	}

	block, rest := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", interfaces.ErrEncoding)
	}
	if block.Type != blockType {
		return nil, fmt.Errorf("%w: PEM block is %q, expected %q", interfaces.ErrEncoding, block.Type, blockType)
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return nil, fmt.Errorf("%w: trailing data after PEM block", interfaces.ErrEncoding)
	}
	return block.Bytes, nil
}

func (e *Encoder) tbsCertificate(desc interfaces.CertificateDescriptor, subject *ecdsa.PublicKey, exts []extension) ([]byte, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	issuerName, err := marshalName(desc.IssuerCommon, desc.IssuerOrg, desc.IssuerCountry)
	if err != nil {
		return nil, err
	}
	subjectName, err := marshalName(desc.SubjectCommon, desc.SubjectOrg, desc.SubjectCountry)
	if err != nil {
		return nil, err
	}
	spki, err := e.MarshalPublicKey(subject)
	if err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(tbs *cryptobyte.Builder) {
		tbs.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(version *cryptobyte.Builder) {
			version.AddASN1Int64(2)
		})
		tbs.AddASN1BigInt(new(big.Int).SetBytes(desc.SerialNumber))
		addSignatureAlgorithm(tbs)
		tbs.AddBytes(issuerName)
		tbs.AddASN1(cbasn1.SEQUENCE, func(validity *cryptobyte.Builder) {
			addTime(validity, desc.NotBefore)
			addTime(validity, desc.NotAfter)
		})
		tbs.AddBytes(subjectName)
		tbs.AddBytes(spki)
		addExtensions(tbs, exts)
	})

	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: tbs certificate: %v", interfaces.ErrEncoding, err)
	}
	return checkSize("tbs certificate", out, e.limits.TBS)
}

func (e *Encoder) finalize(stage string, tbs, signature []byte) ([]byte, error) {
	if len(tbs) == 0 || len(signature) == 0 {
		return nil, fmt.Errorf("%w: %s needs a to-be-signed region and a signature", interfaces.ErrEncoding, stage)
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(outer *cryptobyte.Builder) {
		outer.AddBytes(tbs)
		addSignatureAlgorithm(outer)
		outer.AddASN1BitString(signature)
	})

	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrEncoding, stage, err)
	}
	return checkSize(stage, out, e.limits.Structure)
}

func addSignatureAlgorithm(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(alg *cryptobyte.Builder) {
		alg.AddASN1ObjectIdentifier(oidSignatureECDSAWithSHA256)
	})
}

// addTime encodes t as UTCTime through 2049 and GeneralizedTime after, per RFC 5280.
func addTime(b *cryptobyte.Builder, t time.Time) {
	t = t.UTC()
	if t.Year() >= 1950 && t.Year() < 2050 {
		b.AddASN1UTCTime(t)
		return
	}
	b.AddASN1GeneralizedTime(t)
}

func marshalName(common, org, country string) ([]byte, error) {
	name := pkix.Name{CommonName: common}
	if org != "" {
		name.Organization = []string{org}
	}
	if country != "" {
		name.Country = []string{country}
	}

	out, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		return nil, fmt.Errorf("%w: name %q: %v", interfaces.ErrEncoding, common, err)
	}
	return out, nil
}

var _ interfaces.EncodingProvider = (*Encoder)(nil)
