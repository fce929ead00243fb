package common

// Version is set at build time with -ldflags "-X github.com/ruteri/dice-device-identity/common.Version=...".
var Version = "dev"

// PackageName is used as the metrics namespace and default log service name.
const PackageName = "dice_device_identity"
