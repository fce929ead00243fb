package chain

import (
	"fmt"
	"log/slog"

	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// IdentitySource derives the device and alias key pairs for a firmware identity.
type IdentitySource interface {
	DeriveIdentities(firmwareID interfaces.FirmwareID) (device, alias *interfaces.KeyPair, err error)
}

// Chain is the complete set of keys and encoded artifacts of one device.
type Chain struct {
	DeviceIdentity *interfaces.KeyPair
	AliasIdentity  *interfaces.KeyPair
	Authority      *interfaces.KeyPair

	// AliasCertificate is signed by DeviceIdentity.
	AliasCertificate cryptoutils.CertificatePEM
	// DeviceCertificate is signed by the authority.
	DeviceCertificate cryptoutils.CertificatePEM
	// RootCertificate is the self-signed authority certificate.
	RootCertificate cryptoutils.CertificatePEM

	DevicePublicKey cryptoutils.PublicKeyPEM
	AliasPrivateKey cryptoutils.PrivateKeyPEM
	// RootPrivateKey is only populated when the trust anchor is exportable.
	RootPrivateKey cryptoutils.PrivateKeyPEM

	AliasCommonName string
}

// Wipe zeroes the private key buffers held by the chain.
func (c *Chain) Wipe() {
	if c == nil {
		return
	}
	c.AliasPrivateKey.Wipe()
	c.RootPrivateKey.Wipe()
	c.AliasPrivateKey = nil
	c.RootPrivateKey = nil
}

// BuildChain derives the identities and builds the whole chain in data-dependency order:
// alias certificate, device certificate, root certificate, then key exports.
// Any failure aborts the construction and no partial chain is returned.
func (b *Builder) BuildChain(src IdentitySource, anchor interfaces.TrustAnchor, firmwareID interfaces.FirmwareID, descs Descriptors) (*Chain, error) {
	if src == nil || anchor == nil || anchor.KeyPair().Public() == nil {
		return nil, fmt.Errorf("%w: chain needs an identity source and a trust anchor", interfaces.ErrInvalidArgument)
	}
	if err := interfaces.ValidateCommonName(descs.Alias.SubjectCommon); err != nil {
		return nil, err
	}

	device, alias, err := src.DeriveIdentities(firmwareID)
	if err != nil {
		return nil, fmt.Errorf("derive identities: %w", err)
	}
	authority := anchor.KeyPair()

	out := &Chain{
		DeviceIdentity:  device,
		AliasIdentity:   alias,
		Authority:       authority,
		AliasCommonName: descs.Alias.SubjectCommon,
	}
	ok := false
	defer func() {
		if !ok {
			out.Wipe()
		}
	}()

	aliasCert, err := b.Build(descs.Alias, AuthoritySigned{
		Subject:    alias.Public(),
		Signer:     device,
		FirmwareID: &firmwareID,
	})
	if err != nil {
		return nil, fmt.Errorf("alias certificate: %w", err)
	}
	out.AliasCertificate = cryptoutils.CertificatePEM(aliasCert.PEM)

	deviceCert, err := b.Build(descs.Device, AuthoritySigned{
		Subject: device.Public(),
		Signer:  authority,
		IsCA:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("device certificate: %w", err)
	}
	out.DeviceCertificate = cryptoutils.CertificatePEM(deviceCert.PEM)

	rootCert, err := b.Build(descs.Root, SelfSigned{Authority: authority})
	if err != nil {
		return nil, fmt.Errorf("root certificate: %w", err)
	}
	out.RootCertificate = cryptoutils.CertificatePEM(rootCert.PEM)

	if anchor.Exportable() {
		out.RootPrivateKey, err = b.EncodePrivateKey(authority)
		if err != nil {
			return nil, fmt.Errorf("root private key: %w", err)
		}
	}

	out.DevicePublicKey, err = b.EncodePublicKey(device)
	if err != nil {
		return nil, fmt.Errorf("device public key: %w", err)
	}

	out.AliasPrivateKey, err = b.EncodePrivateKey(alias)
	if err != nil {
		return nil, fmt.Errorf("alias private key: %w", err)
	}

	b.log.Debug("Built device certificate chain",
		slog.String("anchor", anchor.Name()),
		slog.String("alias_cn", out.AliasCommonName),
		slog.String("firmware_id", firmwareID.String()),
		slog.Bool("root_key_exported", out.RootPrivateKey != nil))

	ok = true
	return out, nil
}
