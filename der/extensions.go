package der

import (
	"crypto/ecdsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/ruteri/dice-device-identity/interfaces"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// AliasLayer is the DICE layer number recorded in the alias TcbInfo.
const AliasLayer = 1

// Fwid is a TCG DICE FWID.
//
//	FWID ::== SEQUENCE {
//			hashAlg 	OBJECT IDENTIFIER,
//			digest 		OCTET STRING
//	}
type Fwid struct {
	HashAlg asn1.ObjectIdentifier
	Digest  []byte
}

// TcbInfo is the subset of the TCG DiceTcbInfo this engine emits.
type TcbInfo struct {
	Layer int    `asn1:"optional,tag:4"`
	Fwids []Fwid `asn1:"optional,tag:6"`
}

type extension struct {
	id       asn1.ObjectIdentifier
	critical bool
	value    []byte
}

type authorityKeyID struct {
	ID []byte `asn1:"optional,tag:0"`
}

// subjectKeyID returns SHA-1 over the subjectPublicKey bit string, per RFC 5280 method 1.
func subjectKeyID(pub *ecdsa.PublicKey) ([]byte, error) {
	ecdhKey, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", interfaces.ErrEncoding, err)
	}
	sum := sha1.Sum(ecdhKey.Bytes())
	return sum[:], nil
}

func basicConstraintsExtension(isCA bool) extension {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		if isCA {
			seq.AddASN1Boolean(true)
		}
	})
	return extension{id: oidExtensionBasicConstraints, critical: true, value: b.BytesOrPanic()}
}

func keyUsageExtension(isCA bool) (extension, error) {
	// digitalSignature (0), plus keyCertSign (5) and cRLSign (6) for authorities
	usage := asn1.BitString{Bytes: []byte{0x80}, BitLength: 1}
	if isCA {
		usage = asn1.BitString{Bytes: []byte{0x86}, BitLength: 7}
	}

	value, err := asn1.Marshal(usage)
	if err != nil {
		return extension{}, fmt.Errorf("%w: key usage: %v", interfaces.ErrEncoding, err)
	}
	return extension{id: oidExtensionKeyUsage, critical: true, value: value}, nil
}

func keyIDExtensions(subject, issuer *ecdsa.PublicKey) ([]extension, error) {
	skid, err := subjectKeyID(subject)
	if err != nil {
		return nil, err
	}
	akid, err := subjectKeyID(issuer)
	if err != nil {
		return nil, err
	}

	skidValue, err := asn1.Marshal(skid)
	if err != nil {
		return nil, fmt.Errorf("%w: subject key id: %v", interfaces.ErrEncoding, err)
	}
	akidValue, err := asn1.Marshal(authorityKeyID{ID: akid})
	if err != nil {
		return nil, fmt.Errorf("%w: authority key id: %v", interfaces.ErrEncoding, err)
	}

	return []extension{
		{id: oidExtensionSubjectKeyID, value: skidValue},
		{id: oidExtensionAuthorityKeyID, value: akidValue},
	}, nil
}

func tcbInfoExtension(fwid interfaces.FirmwareID) (extension, error) {
	value, err := asn1.Marshal(TcbInfo{
		Layer: AliasLayer,
		Fwids: []Fwid{{HashAlg: OidHashSHA256, Digest: fwid.Bytes()}},
	})
	if err != nil {
		return extension{}, fmt.Errorf("%w: tcb info: %v", interfaces.ErrEncoding, err)
	}
	return extension{id: OidExtensionTcgDiceTcbInfo, value: value}, nil
}

func addExtensions(b *cryptobyte.Builder, exts []extension) {
	b.AddASN1(cbasn1.Tag(3).Constructed().ContextSpecific(), func(explicit *cryptobyte.Builder) {
		explicit.AddASN1(cbasn1.SEQUENCE, func(list *cryptobyte.Builder) {
			for _, ext := range exts {
				list.AddASN1(cbasn1.SEQUENCE, func(e *cryptobyte.Builder) {
					e.AddASN1ObjectIdentifier(ext.id)
					if ext.critical {
						e.AddASN1Boolean(true)
					}
					e.AddASN1OctetString(ext.value)
				})
			}
		})
	})
}

var errNoTcbInfo = errors.New("certificate has no TcbInfo extension")

// FirmwareIDFromCertificate extracts the SHA-256 FWID recorded in an alias certificate.
func FirmwareIDFromCertificate(cert *x509.Certificate) (interfaces.FirmwareID, error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(OidExtensionTcgDiceTcbInfo) {
			continue
		}

		var info TcbInfo
		rest, err := asn1.Unmarshal(ext.Value, &info)
		if err != nil {
			return interfaces.FirmwareID{}, fmt.Errorf("%w: tcb info: %v", interfaces.ErrEncoding, err)
		}
		if len(rest) != 0 {
			return interfaces.FirmwareID{}, fmt.Errorf("%w: trailing data after tcb info", interfaces.ErrEncoding)
		}

		for _, fwid := range info.Fwids {
			if fwid.HashAlg.Equal(OidHashSHA256) {
				return interfaces.NewDigestFromBytes(fwid.Digest)
			}
		}
		return interfaces.FirmwareID{}, fmt.Errorf("%w: tcb info has no sha256 fwid", interfaces.ErrEncoding)
	}
	return interfaces.FirmwareID{}, fmt.Errorf("%w: %v", interfaces.ErrEncoding, errNoTcbInfo)
}
