// Package trustanchor provides the root authority the device certificate is issued under.
//
// The development anchor is a fixed, publicly known key and must never be used in
// production. Deployments load a provisioned key from a PEM file or from a
// HashiCorp Vault KV v2 secret instead.
package trustanchor

import (
	"encoding/hex"
	"fmt"
	"os"
	"slices"

	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// DevName identifies the development anchor.
const DevName = "dev"

// devRootScalarLE is the development-only root authority private scalar, stored
// least significant byte first as the RIoT emulator ships it.
const devRootScalarLE = "e3e7c713573fd9c8b8e1eaf453f1561502f071c05349c8dae626a90b1788e570"

// KeyAnchor is a trust anchor backed by an in-memory key pair.
type KeyAnchor struct {
	kp         *interfaces.KeyPair
	name       string
	exportable bool
}

// NewKeyAnchor wraps a key pair as a trust anchor.
func NewKeyAnchor(kp *interfaces.KeyPair, name string, exportable bool) (*KeyAnchor, error) {
	if kp.Public() == nil {
		return nil, fmt.Errorf("%w: trust anchor without key", interfaces.ErrInvalidArgument)
	}
	return &KeyAnchor{kp: kp, name: name, exportable: exportable}, nil
}

// Dev returns the development anchor. Its private key is exportable.
func Dev() (*KeyAnchor, error) {
	scalar, err := hex.DecodeString(devRootScalarLE)
	if err != nil {
		return nil, fmt.Errorf("%w: dev root scalar: %v", interfaces.ErrCryptoOperation, err)
	}
	defer interfaces.Wipe(scalar)
	slices.Reverse(scalar)

	kp, err := cryptoutils.KeyPairFromScalar(scalar)
	if err != nil {
		return nil, err
	}
	return NewKeyAnchor(kp, DevName, true)
}

// FromPEM loads an anchor from a PEM encoded EC private key.
func FromPEM(data cryptoutils.PrivateKeyPEM, name string, exportable bool) (*KeyAnchor, error) {
	key, err := data.GetPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: trust anchor key: %v", interfaces.ErrInvalidArgument, err)
	}

	kp, err := interfaces.NewKeyPair(key)
	if err != nil {
		return nil, err
	}
	return NewKeyAnchor(kp, name, exportable)
}

// FromFile loads an anchor from a PEM file.
func FromFile(path string, exportable bool) (*KeyAnchor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trust anchor file: %w", err)
	}
	defer interfaces.Wipe(data)

	return FromPEM(data, "file:"+path, exportable)
}

// KeyPair returns the authority key pair.
func (a *KeyAnchor) KeyPair() *interfaces.KeyPair {
	return a.kp
}

// Name identifies the anchor for logging.
func (a *KeyAnchor) Name() string {
	return a.name
}

// Exportable reports whether the authority private key may leave the device handle.
func (a *KeyAnchor) Exportable() bool {
	return a.exportable
}

var _ interfaces.TrustAnchor = (*KeyAnchor)(nil)
