package der

import "encoding/asn1"

var (
	oidSignatureECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}

	oidExtensionSubjectKeyID     = asn1.ObjectIdentifier{2, 5, 29, 14}
	oidExtensionKeyUsage         = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidExtensionBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}
	oidExtensionAuthorityKeyID   = asn1.ObjectIdentifier{2, 5, 29, 35}

	// OidExtensionTcgDiceTcbInfo is tcg-dice-TcbInfo {2 23 133 5 4 1}.
	OidExtensionTcgDiceTcbInfo = asn1.ObjectIdentifier{2, 23, 133, 5, 4, 1}

	// OidHashSHA256 is id-sha256 from NIST.
	OidHashSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
)
