// Package identity implements the DICE identity derivation engine: it turns a
// root secret and a measurement into a composite identifier (CDI) and derives
// the device and alias key pairs from it.
//
//	CDI       = H(H(RootSecret) || Measurement)
//	DeviceID  = Derive(H(CDI), "IDENTITY")
//	AliasSeed = H(H(CDI) || FirmwareID)
//	Alias     = Derive(AliasSeed, "ALIAS")
//
// The engine is an explicit context object. Initialization runs at most once per
// engine; later calls return the cached CDI even when given different inputs.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// Engine derives the DICE identities. It is safe for concurrent use.
type Engine struct {
	crypto interfaces.CryptoProvider
	log    *slog.Logger

	mu          sync.RWMutex
	initialized bool
	cdi         interfaces.CompositeIdentifier

	deviceID *interfaces.KeyPair
	aliases  map[interfaces.FirmwareID]*interfaces.KeyPair
}

// NewEngine creates an uninitialized engine.
func NewEngine(crypto interfaces.CryptoProvider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		crypto:  crypto,
		log:     log,
		aliases: make(map[interfaces.FirmwareID]*interfaces.KeyPair),
	}
}

// Initialize computes the CDI from the root secret and measurement. The first
// successful call wins: subsequent calls return the cached CDI without touching
// the crypto provider.
func (e *Engine) Initialize(secret *interfaces.RootSecret, measurement interfaces.Measurement) (interfaces.CompositeIdentifier, error) {
	e.mu.RLock()
	if e.initialized {
		cdi := e.cdi
		e.mu.RUnlock()
		return cdi, nil
	}
	e.mu.RUnlock()

	if secret == nil || secret.IsZero() {
		return interfaces.CompositeIdentifier{}, fmt.Errorf("%w: root secret not set", interfaces.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another caller may have won the race while the write lock was released.
	if e.initialized {
		return e.cdi, nil
	}

	var cdi interfaces.CompositeIdentifier
	err := secret.Use(func(raw []byte) error {
		secretDigest, err := e.crypto.Hash(raw)
		if err != nil {
			return err
		}
		defer interfaces.Wipe(secretDigest[:])

		cdi, err = e.crypto.Hash2(secretDigest[:], measurement[:])
		return err
	})
	if err != nil {
		return interfaces.CompositeIdentifier{}, cryptoError("composite identifier", err)
	}

	e.cdi = cdi
	e.initialized = true
	e.log.Debug("Composite identifier initialized", slog.String("measurement", measurement.String()))

	return cdi, nil
}

// IsInitialized reports whether Initialize has succeeded.
func (e *Engine) IsInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// CompositeIdentifier returns the cached CDI.
func (e *Engine) CompositeIdentifier() (interfaces.CompositeIdentifier, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return interfaces.CompositeIdentifier{}, interfaces.ErrUninitialized
	}
	return e.cdi, nil
}

// DeriveKeyPair derives a key pair from seed and label. It requires an initialized engine.
func (e *Engine) DeriveKeyPair(seed interfaces.Digest, label string) (*interfaces.KeyPair, error) {
	if !e.IsInitialized() {
		return nil, interfaces.ErrUninitialized
	}

	kp, err := e.crypto.DeriveEccKeyPair(seed, label)
	if err != nil {
		return nil, cryptoError("derive "+label, err)
	}
	if kp == nil || kp.Private == nil {
		return nil, fmt.Errorf("%w: derive %s returned no key", interfaces.ErrCryptoOperation, label)
	}
	return kp, nil
}

// DeviceSeed returns H(CDI), the seed of the device identity.
func (e *Engine) DeviceSeed() (interfaces.Digest, error) {
	cdi, err := e.CompositeIdentifier()
	if err != nil {
		return interfaces.Digest{}, err
	}

	seed, err := e.crypto.Hash(cdi[:])
	if err != nil {
		return interfaces.Digest{}, cryptoError("device seed", err)
	}
	return seed, nil
}

// DeriveAliasSeed returns H(H(CDI) || firmwareID). A different firmware identity
// yields an unrelated alias seed.
func (e *Engine) DeriveAliasSeed(firmwareID interfaces.FirmwareID) (interfaces.Digest, error) {
	deviceSeed, err := e.DeviceSeed()
	if err != nil {
		return interfaces.Digest{}, err
	}
	defer interfaces.Wipe(deviceSeed[:])

	seed, err := e.crypto.Hash2(deviceSeed[:], firmwareID[:])
	if err != nil {
		return interfaces.Digest{}, cryptoError("alias seed", err)
	}
	return seed, nil
}

// DeriveIdentities returns the device and alias key pairs for firmwareID. Both are
// computed once per engine and firmware identity and cached afterwards.
func (e *Engine) DeriveIdentities(firmwareID interfaces.FirmwareID) (device, alias *interfaces.KeyPair, err error) {
	e.mu.RLock()
	device, alias = e.deviceID, e.aliases[firmwareID]
	e.mu.RUnlock()
	if device != nil && alias != nil {
		return device, alias, nil
	}

	if device == nil {
		seed, err := e.DeviceSeed()
		if err != nil {
			return nil, nil, err
		}
		device, err = e.DeriveKeyPair(seed, cryptoutils.IdentityLabel)
		interfaces.Wipe(seed[:])
		if err != nil {
			return nil, nil, err
		}
	}

	if alias == nil {
		seed, err := e.DeriveAliasSeed(firmwareID)
		if err != nil {
			return nil, nil, err
		}
		alias, err = e.DeriveKeyPair(seed, cryptoutils.AliasLabel)
		interfaces.Wipe(seed[:])
		if err != nil {
			return nil, nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deviceID == nil {
		e.deviceID = device
	}
	if cached, ok := e.aliases[firmwareID]; ok {
		alias = cached
	} else {
		e.aliases[firmwareID] = alias
	}

	return e.deviceID, alias, nil
}

// Wipe clears the CDI and every cached key. The engine returns to the uninitialized state.
func (e *Engine) Wipe() {
	e.mu.Lock()
	defer e.mu.Unlock()

	interfaces.Wipe(e.cdi[:])
	e.initialized = false

	e.deviceID.Wipe()
	e.deviceID = nil
	for fwid, kp := range e.aliases {
		kp.Wipe()
		delete(e.aliases, fwid)
	}
}

func cryptoError(op string, err error) error {
	if errors.Is(err, interfaces.ErrCryptoOperation) || errors.Is(err, interfaces.ErrInvalidArgument) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", interfaces.ErrCryptoOperation, op, err)
}
