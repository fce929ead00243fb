package cryptoutils

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// VerifyCertificate validates that a certificate matches a given private key and has the expected common name.
// It performs the following checks:
//   - The certificate can be parsed correctly
//   - The common name matches the expected value
//   - The public key in the certificate corresponds to the provided private key
func VerifyCertificate(keyPEM PrivateKeyPEM, certPEM CertificatePEM, expectedCN string) error {
	privateKey, err := keyPEM.GetPrivateKey()
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	cert, err := certPEM.GetX509Cert()
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	if cert.Subject.CommonName != expectedCN {
		return fmt.Errorf("CommonName is %s, expected %s", cert.Subject.CommonName, expectedCN)
	}

	certKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("unsupported key type")
	}
	if !certKey.Equal(&privateKey.PublicKey) {
		return errors.New("private key doesn't match certificate")
	}
	return nil
}

// VerifyChain verifies leaf against root through the given intermediates at time at.
// Any extended key usage is accepted since DICE certificates do not carry one.
func VerifyChain(leaf CertificatePEM, intermediates []CertificatePEM, root CertificatePEM, at time.Time) ([][]*x509.Certificate, error) {
	rootCert, err := root.GetX509Cert()
	if err != nil {
		return nil, fmt.Errorf("failed to parse root certificate: %w", err)
	}

	leafCert, err := leaf.GetX509Cert()
	if err != nil {
		return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(rootCert)

	inter := x509.NewCertPool()
	for _, pemCert := range intermediates {
		c, err := pemCert.GetX509Cert()
		if err != nil {
			return nil, fmt.Errorf("failed to parse intermediate certificate: %w", err)
		}
		inter.AddCert(c)
	}

	return leafCert.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: inter,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
}

// TLSCertificate assembles a tls.Certificate from a private key and a certificate chain, leaf first.
func TLSCertificate(keyPEM PrivateKeyPEM, chain ...CertificatePEM) (tls.Certificate, error) {
	if len(chain) == 0 {
		return tls.Certificate{}, errors.New("empty certificate chain")
	}

	var certs bytes.Buffer
	for _, c := range chain {
		certs.Write(c)
	}

	return tls.X509KeyPair(certs.Bytes(), keyPEM)
}

// DERPubkeyHash returns SHA-256 over the DER SubjectPublicKeyInfo.
func DERPubkeyHash(pubkeyDER []byte) []byte {
	shaHash := sha256.Sum256(pubkeyDER)
	return shaHash[:]
}

// Fingerprint returns the hex SHA-256 of the public key's SubjectPublicKeyInfo.
// It serves as the device registration id.
func Fingerprint(pub *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(DERPubkeyHash(der)), nil
}

// KeyToHexString renders the uncompressed public point as colon-separated hex, for logs.
func KeyToHexString(pub *ecdsa.PublicKey) string {
	if pub == nil {
		return ""
	}
	ecdhKey, err := pub.ECDH()
	if err != nil {
		return ""
	}
	raw := ecdhKey.Bytes()

	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
