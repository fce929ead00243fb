// Package cryptoutils provides the cryptographic primitives of the device identity
// engine and the PEM-typed artifacts it produces.
//
// Provider implements interfaces.CryptoProvider:
//
//   - Hash and Hash2: SHA-256 over one or two concatenated inputs
//   - DeriveEccKeyPair: HKDF-SHA256(seed, info=label) reduced onto a NIST P-256 scalar
//   - Sign: ECDSA over SHA-256, ASN.1 encoded
//   - GenerateKeyPair: ephemeral P-256 keys for leaf CSRs
//
// Derivation is deterministic: the same seed and label always produce the same key.
// Signatures are randomized.
//
// # Artifact Types
//
//   - CertificatePEM: an X.509 certificate
//   - CSRPEM: a PKCS #10 certificate request
//   - PublicKeyPEM: a PKIX public key
//   - PrivateKeyPEM: a SEC 1 or PKCS #8 private key
//
// Each type has a validating constructor, Validate, and accessors returning parsed values.
package cryptoutils
