package der

import (
	"fmt"

	"github.com/ruteri/dice-device-identity/interfaces"
)

// Declared maximum output sizes.
const (
	MaxTBSSize       = 1024
	MaxStructureSize = 1280
	MaxPEMSize       = 2048
)

// Limits caps the size of each encoding stage.
type Limits struct {
	TBS       int
	Structure int
	PEM       int
}

// DefaultLimits returns the declared maximum sizes.
func DefaultLimits() Limits {
	return Limits{
		TBS:       MaxTBSSize,
		Structure: MaxStructureSize,
		PEM:       MaxPEMSize,
	}
}

// checkSize reports ErrEncoding when out does not fit into max bytes.
func checkSize(stage string, out []byte, max int) ([]byte, error) {
	if max > 0 && len(out) > max {
		return nil, fmt.Errorf("%w: %s is %d bytes, exceeds maximum of %d", interfaces.ErrEncoding, stage, len(out), max)
	}
	return out, nil
}
