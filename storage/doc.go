// Package storage publishes the public artifacts of a device identity to
// content-addressed storage backends.
//
// Artifacts are identified by the SHA-256 hash of their PEM encoding and kept
// in one namespace per artifact kind (certificate, csr, pubkey, manifest).
// Private keys are refused by every backend.
//
// # Storage URI Format
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/dice/artifacts/
//   - s3://bucket-name/prefix/?region=us-west-2&endpoint=http://minio:9000&path_style=true
//   - ipfs://localhost:5001/?timeout=30s&pin=true
//   - vault://vault.example.com:8200/secret/devices?tls=false
//
// S3 credentials are taken from the URI user info or, with ?credentials=env,
// from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY. IPFS artifacts are added as
// CIDv1 raw leaves so their CID wraps the content ID. Vault reads VAULT_TOKEN and,
// through WithTLSAuth, can present the device alias identity as client certificate.
//
// # Publishing
//
//	factory := storage.NewStorageBackendFactory(logger).WithTLSAuth(handle.TLSCertificate)
//	backend, err := factory.CreateMultiBackend(locations)
//	if err != nil {
//	    return err
//	}
//	result, err := storage.NewPublisher(backend, logger).Publish(ctx, handle)
//
// The publisher stores the alias, signer and root certificates and the device
// public key, then a JSON manifest listing their content IDs.
package storage
