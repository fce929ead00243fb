// Package device provides the secure device handle: the owned, immutable record of
// a device's derived identities and certificate chain, exposed through accessors
// that return copies.
package device

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/dice-device-identity/chain"
	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/der"
	"github.com/ruteri/dice-device-identity/identity"
	"github.com/ruteri/dice-device-identity/interfaces"
	"github.com/ruteri/dice-device-identity/trustanchor"
)

// SecureDevice is the accessor surface of a device handle.
type SecureDevice interface {
	Certificate() (cryptoutils.CertificatePEM, error)
	AliasPrivateKey() (cryptoutils.PrivateKeyPEM, error)
	DeviceCertificate() (cryptoutils.PublicKeyPEM, error)
	SignerCertificate() (cryptoutils.CertificatePEM, error)
	RootCertificate() (cryptoutils.CertificatePEM, error)
	RootPrivateKey() (cryptoutils.PrivateKeyPEM, error)
	CommonName() (string, error)
	CreateLeafCertificate(commonName string) (cryptoutils.CSRPEM, error)
	CertificateChain() ([]byte, error)
	DeviceFingerprint() (string, error)
	TLSCertificate() (tls.Certificate, error)
	Destroy()
}

// Config selects the inputs of a device. Zero values select the development defaults.
type Config struct {
	RootSecret      *interfaces.RootSecret
	Measurement     *interfaces.Measurement
	FirmwareID      *interfaces.FirmwareID
	AliasCommonName string

	Anchor      interfaces.TrustAnchor
	Crypto      interfaces.CryptoProvider
	Encoding    interfaces.EncodingProvider
	Descriptors *chain.Descriptors

	Log *slog.Logger
}

// Handle owns the derived identities and every encoded artifact of one device.
// Accessors are safe for concurrent use. Destroy must not race with other calls.
type Handle struct {
	mu sync.RWMutex

	engine  *identity.Engine
	builder *chain.Builder
	crypto  interfaces.CryptoProvider
	chain   *chain.Chain

	anchor     interfaces.TrustAnchor
	ownsAnchor bool

	firmwareID interfaces.FirmwareID
	commonName string
	leafDesc   interfaces.CertificateDescriptor

	log *slog.Logger
}

// Create derives the identities and builds the full chain. On any failure no handle
// is returned and the error wraps ErrConstructionFailed along with the failing kind.
func Create(cfg Config) (*Handle, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	h, err := create(cfg, log)
	if err != nil {
		log.Error("Device construction failed", "err", err)
		return nil, errors.Join(interfaces.ErrConstructionFailed, err)
	}
	return h, nil
}

// newDevAnchor creates the anchor used when Config.Anchor is unset.
var newDevAnchor = trustanchor.Dev

func create(cfg Config, log *slog.Logger) (*Handle, error) {
	crypto := cfg.Crypto
	if crypto == nil {
		crypto = cryptoutils.NewProvider()
	}
	encoding := cfg.Encoding
	if encoding == nil {
		encoding = der.NewEncoder()
	}

	descs := chain.DefaultDescriptors(cfg.AliasCommonName)
	if cfg.Descriptors != nil {
		descs = *cfg.Descriptors
		if cfg.AliasCommonName != "" {
			descs.Alias = descs.Alias.WithSubjectCommon(cfg.AliasCommonName)
		}
	}
	if err := interfaces.ValidateCommonName(descs.Alias.SubjectCommon); err != nil {
		return nil, err
	}

	secret := DevRootSecret()
	if cfg.RootSecret != nil {
		secret = *cfg.RootSecret
	}
	defer secret.Wipe()

	measurement := DevMeasurement()
	if cfg.Measurement != nil {
		measurement = *cfg.Measurement
	}
	firmwareID := DevFirmwareID()
	if cfg.FirmwareID != nil {
		firmwareID = *cfg.FirmwareID
	}

	anchor, ownsAnchor := cfg.Anchor, false
	if anchor == nil {
		devAnchor, err := newDevAnchor()
		if err != nil {
			return nil, err
		}
		anchor, ownsAnchor = devAnchor, true
	}

	engine := identity.NewEngine(crypto, log)
	built := false
	defer func() {
		if built {
			return
		}
		engine.Wipe()
		if ownsAnchor {
			anchor.KeyPair().Wipe()
		}
	}()

	if _, err := engine.Initialize(&secret, measurement); err != nil {
		return nil, err
	}

	builder := chain.NewBuilder(crypto, encoding, log)
	c, err := builder.BuildChain(engine, anchor, firmwareID, descs)
	if err != nil {
		return nil, err
	}
	built = true

	h := &Handle{
		engine:     engine,
		builder:    builder,
		crypto:     crypto,
		chain:      c,
		anchor:     anchor,
		ownsAnchor: ownsAnchor,
		firmwareID: firmwareID,
		commonName: c.AliasCommonName,
		leafDesc:   descs.Leaf,
		log:        log,
	}

	if fp, err := cryptoutils.Fingerprint(c.DeviceIdentity.Public()); err == nil {
		log.Debug("Device identity established",
			slog.String("registration_id", fp),
			slog.String("common_name", h.commonName),
			slog.String("anchor", anchor.Name()))
	}
	log.Debug("Device identity public key", slog.String("key", cryptoutils.KeyToHexString(c.DeviceIdentity.Public())))

	return h, nil
}

// Destroy releases every buffer and key owned by the handle. Calling it on a nil
// or already destroyed handle is a no-op.
func (h *Handle) Destroy() {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.chain == nil {
		return
	}

	h.chain.Wipe()
	h.chain = nil
	h.engine.Wipe()
	if h.ownsAnchor {
		h.anchor.KeyPair().Wipe()
	}
	h.anchor = nil
	h.commonName = ""
}

// read runs fn with the populated chain under the read lock.
func (h *Handle) read(fn func(c *chain.Chain) error) error {
	if h == nil {
		return fmt.Errorf("%w: nil device handle", interfaces.ErrInvalidArgument)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.chain == nil {
		return fmt.Errorf("%w: device handle destroyed", interfaces.ErrInvalidArgument)
	}
	return fn(h.chain)
}

func copyArtifact(name string, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotPopulated, name)
	}
	return cryptoutils.CloneBytes(src), nil
}

// Certificate returns the alias certificate.
func (h *Handle) Certificate() (cryptoutils.CertificatePEM, error) {
	var out []byte
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = copyArtifact("alias certificate", c.AliasCertificate)
		return err
	})
	return out, err
}

// AliasPrivateKey returns the alias private key.
func (h *Handle) AliasPrivateKey() (cryptoutils.PrivateKeyPEM, error) {
	var out []byte
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = copyArtifact("alias private key", c.AliasPrivateKey)
		return err
	})
	return out, err
}

// DeviceCertificate returns the device identity public key.
func (h *Handle) DeviceCertificate() (cryptoutils.PublicKeyPEM, error) {
	var out []byte
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = copyArtifact("device public key", c.DevicePublicKey)
		return err
	})
	return out, err
}

// SignerCertificate returns the device certificate issued by the trust anchor.
func (h *Handle) SignerCertificate() (cryptoutils.CertificatePEM, error) {
	var out []byte
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = copyArtifact("signer certificate", c.DeviceCertificate)
		return err
	})
	return out, err
}

// RootCertificate returns the self-signed trust anchor certificate.
func (h *Handle) RootCertificate() (cryptoutils.CertificatePEM, error) {
	var out []byte
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = copyArtifact("root certificate", c.RootCertificate)
		return err
	})
	return out, err
}

// RootPrivateKey returns the trust anchor private key. It is only populated for
// exportable anchors.
func (h *Handle) RootPrivateKey() (cryptoutils.PrivateKeyPEM, error) {
	var out []byte
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = copyArtifact("root private key", c.RootPrivateKey)
		return err
	})
	return out, err
}

// CommonName returns the alias subject common name.
func (h *Handle) CommonName() (string, error) {
	var out string
	err := h.read(func(c *chain.Chain) error {
		if h.commonName == "" {
			return fmt.Errorf("%w: common name", interfaces.ErrNotPopulated)
		}
		out = h.commonName
		return nil
	})
	return out, err
}

// FirmwareID returns the firmware identity the alias is bound to.
func (h *Handle) FirmwareID() (interfaces.FirmwareID, error) {
	var out interfaces.FirmwareID
	err := h.read(func(c *chain.Chain) error {
		out = h.firmwareID
		return nil
	})
	return out, err
}

// CertificateChain returns the alias, signer and root certificates concatenated, leaf first.
func (h *Handle) CertificateChain() ([]byte, error) {
	var out bytes.Buffer
	err := h.read(func(c *chain.Chain) error {
		for _, cert := range []cryptoutils.CertificatePEM{c.AliasCertificate, c.DeviceCertificate, c.RootCertificate} {
			if len(cert) == 0 {
				return fmt.Errorf("%w: certificate chain", interfaces.ErrNotPopulated)
			}
			out.Write(cert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DeviceFingerprint returns the hex SHA-256 of the device identity public key, used
// as the registration id.
func (h *Handle) DeviceFingerprint() (string, error) {
	var out string
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = cryptoutils.Fingerprint(c.DeviceIdentity.Public())
		if err != nil {
			return fmt.Errorf("%w: fingerprint: %v", interfaces.ErrEncoding, err)
		}
		return nil
	})
	return out, err
}

// TLSCertificate returns the alias identity as a TLS client certificate with the
// signer certificate as intermediate.
func (h *Handle) TLSCertificate() (tls.Certificate, error) {
	var out tls.Certificate
	err := h.read(func(c *chain.Chain) (err error) {
		out, err = cryptoutils.TLSCertificate(c.AliasPrivateKey, c.AliasCertificate, c.DeviceCertificate)
		if err != nil {
			return fmt.Errorf("%w: tls certificate: %v", interfaces.ErrEncoding, err)
		}
		return nil
	})
	return out, err
}

// CreateLeafCertificate returns a CSR bound to commonName for a fresh ephemeral key.
// The key is discarded and never stored in the handle.
func (h *Handle) CreateLeafCertificate(commonName string) (cryptoutils.CSRPEM, error) {
	kp, csr, err := h.createLeaf(commonName)
	if err != nil {
		return nil, err
	}
	kp.Wipe()
	return csr, nil
}

// CreateLeafIdentity is CreateLeafCertificate that also returns the ephemeral private key.
func (h *Handle) CreateLeafIdentity(commonName string) (cryptoutils.PrivateKeyPEM, cryptoutils.CSRPEM, error) {
	kp, csr, err := h.createLeaf(commonName)
	if err != nil {
		return nil, nil, err
	}
	defer kp.Wipe()

	key, err := h.builder.EncodePrivateKey(kp)
	if err != nil {
		return nil, nil, err
	}
	return key, csr, nil
}

func (h *Handle) createLeaf(commonName string) (*interfaces.KeyPair, cryptoutils.CSRPEM, error) {
	if err := interfaces.ValidateCommonName(commonName); err != nil {
		return nil, nil, err
	}

	var (
		kp  *interfaces.KeyPair
		csr cryptoutils.CSRPEM
	)
	err := h.read(func(*chain.Chain) (err error) {
		kp, err = h.crypto.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("leaf key: %w", err)
		}

		csr, err = h.builder.BuildLeafCSR(h.leafDesc, kp, commonName)
		if err != nil {
			kp.Wipe()
			return fmt.Errorf("leaf csr: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	h.log.Debug("Created leaf CSR", slog.String("common_name", commonName), slog.Int("size", len(csr)))
	return kp, csr, nil
}

var _ SecureDevice = (*Handle)(nil)
