package interfaces

import "errors"

// Error kinds reported by the identity engine, chain builder and device handle.
// Callers classify failures with errors.Is; detail is wrapped with %w.
var (
	// ErrAllocation is returned when an artifact buffer could not be obtained.
	ErrAllocation = errors.New("artifact allocation failed")

	// ErrUninitialized is returned when derivation is requested before the composite
	// identifier has been initialized.
	ErrUninitialized = errors.New("composite identifier not initialized")

	// ErrCryptoOperation is returned when a hash, derivation or signing primitive fails.
	ErrCryptoOperation = errors.New("crypto operation failed")

	// ErrEncoding is returned when a DER build or PEM conversion fails, including
	// when the output would exceed its declared maximum size.
	ErrEncoding = errors.New("encoding failed")

	// ErrInvalidArgument is returned for absent handles and empty names.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConstructionFailed is returned by device creation; it is always joined with
	// the kind of the step that failed.
	ErrConstructionFailed = errors.New("device construction failed")

	// ErrNotPopulated is returned by accessors when the requested artifact is absent.
	ErrNotPopulated = errors.New("artifact not populated")
)
