// Package der implements interfaces.EncodingProvider: it builds the DER
// "to be signed" regions of the DICE certificates and certificate requests,
// attaches signatures, and converts the results to PEM.
//
// Certificates are X.509 v3 with ecdsa-with-SHA256 signatures. Authority
// certificates carry a critical basicConstraints CA flag and keyCertSign usage so
// the resulting chain verifies with crypto/x509. The alias certificate carries the
// firmware identity in a TCG DICE TcbInfo extension (OID 2.23.133.5.4.1).
//
// Every builder checks its output against a declared maximum size and reports
// overflow as interfaces.ErrEncoding.
package der
