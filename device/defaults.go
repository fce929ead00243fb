package device

import (
	"fmt"

	"github.com/ruteri/dice-device-identity/interfaces"
)

// Development inputs of the emulated device. They stand in for a fused unique device
// secret and for boot-time measurements.
const (
	DevRootSecretHex  = "54105d2ecd07f90199b395c74261a08cff271a0df66f1fe00034bb11f7989a12"
	DevMeasurementHex = "b5859493661e2eae9677c55d590b9294e094abafd740787e050dfe6d859053a0"
	DevFirmwareIDHex  = "6be9b184c937c28e122eee512b68ea8e00c3dd159ea4e85e84cba966f446cd4e"
)

// DevRootSecret returns the development root secret.
func DevRootSecret() interfaces.RootSecret {
	return mustRootSecret(DevRootSecretHex)
}

// DevMeasurement returns the development measurement.
func DevMeasurement() interfaces.Measurement {
	return mustDigest(DevMeasurementHex)
}

// DevFirmwareID returns the development firmware identity.
func DevFirmwareID() interfaces.FirmwareID {
	return mustDigest(DevFirmwareIDHex)
}

func mustDigest(h string) interfaces.Digest {
	d, err := interfaces.NewDigestFromHex(h)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in digest %q: %v", h, err))
	}
	return d
}

func mustRootSecret(h string) interfaces.RootSecret {
	s, err := interfaces.NewRootSecretFromHex(h)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in root secret: %v", err))
	}
	return s
}
