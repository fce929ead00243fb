package identityhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/dice-device-identity/api"
	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// Device is the subset of a device handle the identity API serves.
type Device interface {
	Certificate() (cryptoutils.CertificatePEM, error)
	SignerCertificate() (cryptoutils.CertificatePEM, error)
	RootCertificate() (cryptoutils.CertificatePEM, error)
	DeviceCertificate() (cryptoutils.PublicKeyPEM, error)
	CommonName() (string, error)
	FirmwareID() (interfaces.FirmwareID, error)
	DeviceFingerprint() (string, error)
	CertificateChain() ([]byte, error)
	CreateLeafCertificate(commonName string) (cryptoutils.CSRPEM, error)
}

// Handler serves the public artifacts of one device identity.
type Handler struct {
	device      Device
	log         *slog.Logger
	observeLeaf func(error)
}

// NewHandler creates a handler for device.
func NewHandler(device Device, log *slog.Logger) *Handler {
	return &Handler{
		device:      device,
		log:         log,
		observeLeaf: func(error) {},
	}
}

// SetLeafCSRObserver registers fn to be called with the outcome of every leaf CSR request.
func (h *Handler) SetLeafCSRObserver(fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	h.observeLeaf = fn
}

// RegisterRoutes configures the router with the identity endpoints:
//   - GET /api/device/identity
//   - GET /api/device/chain
//   - POST /api/device/leaf-csr
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get(api.IdentityPath, h.HandleIdentity)
	r.Get(api.ChainPath, h.HandleChain)
	r.Post(api.LeafCSRPath, h.HandleLeafCSR)
}

// HandleIdentity returns the registration id, common name and public artifacts as JSON.
//
// Status codes:
//   - 200 OK
//   - 500 Internal Server Error: the identity could not be read
func (h *Handler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	resp, err := h.identity()
	if err != nil {
		h.log.Error("Failed to read device identity", "err", err)
		http.Error(w, "device identity unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) identity() (*api.IdentityResponse, error) {
	var (
		resp api.IdentityResponse
		err  error
	)

	if resp.RegistrationID, err = h.device.DeviceFingerprint(); err != nil {
		return nil, err
	}
	if resp.CommonName, err = h.device.CommonName(); err != nil {
		return nil, err
	}
	fwid, err := h.device.FirmwareID()
	if err != nil {
		return nil, err
	}
	resp.FirmwareID = fwid.String()

	alias, err := h.device.Certificate()
	if err != nil {
		return nil, err
	}
	signer, err := h.device.SignerCertificate()
	if err != nil {
		return nil, err
	}
	root, err := h.device.RootCertificate()
	if err != nil {
		return nil, err
	}
	pub, err := h.device.DeviceCertificate()
	if err != nil {
		return nil, err
	}

	resp.AliasCert = string(alias)
	resp.SignerCert = string(signer)
	resp.RootCert = string(root)
	resp.DevicePubkey = string(pub)
	return &resp, nil
}

// HandleChain returns the alias, signer and root certificates as one PEM bundle.
func (h *Handler) HandleChain(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.device.CertificateChain()
	if err != nil {
		h.log.Error("Failed to read certificate chain", "err", err)
		http.Error(w, "certificate chain unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-pem-file")
	_, _ = w.Write(bundle)
}

// HandleLeafCSR creates a fresh leaf key on the device and returns a CSR for it.
// The leaf private key never leaves the device.
//
// Request body: JSON api.LeafCSRRequest
//
// Status codes:
//   - 200 OK: PEM CSR in the body
//   - 400 Bad Request: malformed body or empty common name
//   - 500 Internal Server Error: the CSR could not be built
func (h *Handler) HandleLeafCSR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.MaxRequestBodySize)

	var req api.LeafCSRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("Invalid leaf CSR request", "err", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	commonName := strings.TrimSpace(req.CommonName)
	if err := interfaces.ValidateCommonName(commonName); err != nil {
		h.observeLeaf(err)
		http.Error(w, "common_name must not be empty", http.StatusBadRequest)
		return
	}

	csr, err := h.device.CreateLeafCertificate(commonName)
	h.observeLeaf(err)
	if err != nil {
		h.log.Error("Failed to create leaf CSR", "err", err, slog.String("common_name", commonName))
		if errors.Is(err, interfaces.ErrInvalidArgument) {
			http.Error(w, "invalid leaf request", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to create leaf CSR", http.StatusInternalServerError)
		return
	}

	h.log.Info("Issued leaf CSR", slog.String("common_name", commonName))

	w.Header().Set("Content-Type", "application/pkcs10")
	_, _ = w.Write(csr)
}
