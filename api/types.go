package api

// Routes served by the identity API.
const (
	IdentityPath = "/api/device/identity"
	ChainPath    = "/api/device/chain"
	LeafCSRPath  = "/api/device/leaf-csr"
)

// RequestIDHeader carries the request id assigned by the server.
const RequestIDHeader = "X-Request-Id"

// MaxRequestBodySize bounds request bodies accepted by the identity API.
const MaxRequestBodySize = 4 * 1024

// IdentityResponse holds the public artifacts of the device identity.
// All certificate and key fields are PEM encoded.
type IdentityResponse struct {
	// RegistrationID is the hex SHA-256 of the device identity public key.
	RegistrationID string `json:"registration_id"`

	// CommonName is the subject common name of the alias certificate.
	CommonName string `json:"common_name"`

	// FirmwareID is the hex firmware identity the alias key is bound to.
	FirmwareID string `json:"firmware_id"`

	AliasCert    string `json:"alias_cert"`
	SignerCert   string `json:"signer_cert"`
	RootCert     string `json:"root_cert"`
	DevicePubkey string `json:"device_pubkey"`
}

// LeafCSRRequest asks the device for a leaf certificate signing request.
type LeafCSRRequest struct {
	CommonName string `json:"common_name"`
}
