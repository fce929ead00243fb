// Package interfaces defines the core interfaces and types for the DICE device
// identity engine, separating interface definitions from implementations.
//
// # Identity Types
//
//   - RootSecret: the unique device secret, never exported
//   - Digest, Measurement, FirmwareID, CompositeIdentifier: 32-byte SHA-256 values
//   - KeyPair: a P-256 key pair
//   - CertificateDescriptor: static fields of a to-be-signed certificate
//   - ArtifactKind: kind of an encoded artifact (certificate, CSR, public key, private key, manifest)
//
// # Provider Interfaces
//
// CryptoProvider: hash, labelled key derivation and signing primitives.
//
// EncodingProvider: DER building and PEM conversion with declared maximum sizes.
//
// TrustAnchor: the root authority the device certificate is issued under.
//
// # Storage Interfaces
//
// StorageBackend: content-addressed storage for published public artifacts
// across multiple backend types (file, S3, IPFS, Vault).
//
// StorageBackendFactory: creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Error Types
//
// ErrAllocation, ErrUninitialized, ErrCryptoOperation, ErrEncoding, ErrInvalidArgument,
// ErrConstructionFailed and ErrNotPopulated classify engine failures.
// ErrContentNotFound, ErrContentIntegrity, ErrBackendUnavailable, ErrInvalidLocationURI and
// ErrSecretArtifact classify storage failures.
package interfaces
