package chain

import (
	"time"

	"github.com/ruteri/dice-device-identity/interfaces"
)

// Names used by the development chain.
const (
	RootCommonName         = "riot-root"
	SignerCommonName       = "riot-signer-core"
	DefaultAliasCommonName = "riot-device-cert"

	DefaultOrganization = "MSR_TEST"
	DefaultCountry      = "US"
)

var (
	defaultNotBefore = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultNotAfter  = time.Date(2037, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Descriptors holds one certificate descriptor per certificate type.
type Descriptors struct {
	Root   interfaces.CertificateDescriptor
	Device interfaces.CertificateDescriptor
	Alias  interfaces.CertificateDescriptor
	Leaf   interfaces.CertificateDescriptor
}

// DefaultDescriptors returns the development chain descriptors with the given alias common name.
func DefaultDescriptors(aliasCommonName string) Descriptors {
	if aliasCommonName == "" {
		aliasCommonName = DefaultAliasCommonName
	}

	return Descriptors{
		Root:   descriptor([]byte{0x1A, 0x2B, 0x3C, 0x4D, 0x5E}, RootCommonName, RootCommonName),
		Device: descriptor([]byte{0x0E, 0x0D, 0x0C, 0x0B, 0x0A}, RootCommonName, SignerCommonName),
		Alias:  descriptor([]byte{0x0A, 0x0B, 0x0C, 0x0D, 0x0E}, SignerCommonName, aliasCommonName),
		Leaf:   descriptor([]byte{0x0E, 0x0D, 0x0C, 0x0B, 0x0A}, SignerCommonName, ""),
	}
}

func descriptor(serial []byte, issuer, subject string) interfaces.CertificateDescriptor {
	return interfaces.CertificateDescriptor{
		SerialNumber:   serial,
		IssuerCommon:   issuer,
		IssuerOrg:      DefaultOrganization,
		IssuerCountry:  DefaultCountry,
		NotBefore:      defaultNotBefore,
		NotAfter:       defaultNotAfter,
		SubjectCommon:  subject,
		SubjectOrg:     DefaultOrganization,
		SubjectCountry: DefaultCountry,
	}
}
