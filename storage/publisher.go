package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// ArtifactSource exposes the public artifacts of a device identity.
type ArtifactSource interface {
	Certificate() (cryptoutils.CertificatePEM, error)
	SignerCertificate() (cryptoutils.CertificatePEM, error)
	RootCertificate() (cryptoutils.CertificatePEM, error)
	DeviceCertificate() (cryptoutils.PublicKeyPEM, error)
	CommonName() (string, error)
	FirmwareID() (interfaces.FirmwareID, error)
	DeviceFingerprint() (string, error)
}

// Manifest indexes the published artifacts of one device identity by content ID.
type Manifest struct {
	RegistrationID string    `json:"registration_id"`
	CommonName     string    `json:"common_name"`
	FirmwareID     string    `json:"firmware_id"`
	AliasCert      string    `json:"alias_cert"`
	SignerCert     string    `json:"signer_cert"`
	RootCert       string    `json:"root_cert"`
	DevicePubkey   string    `json:"device_pubkey"`
	PublishedAt    time.Time `json:"published_at"`
}

// PublishResult is the outcome of publishing a device identity.
type PublishResult struct {
	Manifest   Manifest
	ManifestID interfaces.ContentID
}

// Publisher stores the public artifacts of a device identity followed by their manifest.
type Publisher struct {
	backend interfaces.StorageBackend
	log     *slog.Logger
	now     func() time.Time
}

// NewPublisher creates a publisher writing to backend.
func NewPublisher(backend interfaces.StorageBackend, log *slog.Logger) *Publisher {
	return &Publisher{
		backend: backend,
		log:     log,
		now:     time.Now,
	}
}

// Publish stores the alias, signer and root certificates and the device public key,
// then a JSON manifest referencing them. Private keys are never read from the source.
func (p *Publisher) Publish(ctx context.Context, src ArtifactSource) (*PublishResult, error) {
	registrationID, err := src.DeviceFingerprint()
	if err != nil {
		return nil, fmt.Errorf("failed to read registration id: %w", err)
	}
	commonName, err := src.CommonName()
	if err != nil {
		return nil, fmt.Errorf("failed to read common name: %w", err)
	}
	fwid, err := src.FirmwareID()
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware id: %w", err)
	}

	manifest := Manifest{
		RegistrationID: registrationID,
		CommonName:     commonName,
		FirmwareID:     fwid.String(),
		PublishedAt:    p.now().UTC(),
	}

	artifacts := []struct {
		name string
		kind interfaces.ArtifactKind
		read func() ([]byte, error)
		dest *string
	}{
		{"alias certificate", interfaces.CertificateKind, func() ([]byte, error) { return src.Certificate() }, &manifest.AliasCert},
		{"signer certificate", interfaces.CertificateKind, func() ([]byte, error) { return src.SignerCertificate() }, &manifest.SignerCert},
		{"root certificate", interfaces.CertificateKind, func() ([]byte, error) { return src.RootCertificate() }, &manifest.RootCert},
		{"device public key", interfaces.PublicKeyKind, func() ([]byte, error) { return src.DeviceCertificate() }, &manifest.DevicePubkey},
	}

	for _, a := range artifacts {
		data, err := a.read()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", a.name, err)
		}

		id, err := p.backend.Store(ctx, data, a.kind)
		if err != nil {
			return nil, fmt.Errorf("failed to publish %s: %w", a.name, err)
		}
		*a.dest = id.String()

		p.log.Debug("Published artifact",
			slog.String("artifact", a.name),
			slog.String("content_id", id.String()))
	}

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", interfaces.ErrEncoding, err)
	}

	manifestID, err := p.backend.Store(ctx, encoded, interfaces.ManifestKind)
	if err != nil {
		return nil, fmt.Errorf("failed to publish manifest: %w", err)
	}

	p.log.Info("Published device identity",
		slog.String("registration_id", registrationID),
		slog.String("manifest_id", manifestID.String()),
		slog.String("backend", p.backend.Name()))

	return &PublishResult{Manifest: manifest, ManifestID: manifestID}, nil
}

// FetchManifest retrieves and decodes a manifest.
func FetchManifest(ctx context.Context, backend interfaces.StorageBackend, id interfaces.ContentID) (*Manifest, error) {
	data, err := backend.Fetch(ctx, id, interfaces.ManifestKind)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", interfaces.ErrEncoding, err)
	}
	return &m, nil
}
