package flags

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/dice-device-identity/api"
	"github.com/ruteri/dice-device-identity/common"
	"github.com/ruteri/dice-device-identity/device"
	"github.com/ruteri/dice-device-identity/interfaces"
	"github.com/ruteri/dice-device-identity/trustanchor"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// DeviceConfig builds the device configuration from the device flags. The returned
// anchor must be wiped by the caller once the device handle is destroyed.
func DeviceConfig(cCtx *cli.Context, logger *slog.Logger) (device.Config, interfaces.TrustAnchor, error) {
	cfg := device.Config{
		AliasCommonName: cCtx.String(AliasCommonNameFlag.Name),
		Log:             logger,
	}

	secret, err := interfaces.NewRootSecretFromHex(cCtx.String(RootSecretFlag.Name))
	if err != nil {
		return cfg, nil, fmt.Errorf("invalid --%s: %w", RootSecretFlag.Name, err)
	}
	cfg.RootSecret = &secret

	measurement, err := interfaces.NewDigestFromHex(cCtx.String(MeasurementFlag.Name))
	if err != nil {
		secret.Wipe()
		return cfg, nil, fmt.Errorf("invalid --%s: %w", MeasurementFlag.Name, err)
	}
	cfg.Measurement = &measurement

	fwid, err := interfaces.NewDigestFromHex(cCtx.String(FirmwareIDFlag.Name))
	if err != nil {
		secret.Wipe()
		return cfg, nil, fmt.Errorf("invalid --%s: %w", FirmwareIDFlag.Name, err)
	}
	cfg.FirmwareID = &fwid

	ctx, cancel := context.WithTimeout(cCtx.Context, 30*time.Second)
	defer cancel()

	anchor, err := trustanchor.Load(ctx, cCtx.String(TrustAnchorFlag.Name), nil, logger)
	if err != nil {
		secret.Wipe()
		return cfg, nil, fmt.Errorf("failed to load trust anchor: %w", err)
	}
	cfg.Anchor = anchor

	return cfg, anchor, nil
}

var RootSecretFlag = &cli.StringFlag{
	Name:    "uds",
	Value:   device.DevRootSecretHex,
	EnvVars: []string{"DICE_UDS"},
	Usage:   "hex-encoded 32-byte unique device secret",
}

var MeasurementFlag = &cli.StringFlag{
	Name:    "measurement",
	Value:   device.DevMeasurementHex,
	EnvVars: []string{"DICE_MEASUREMENT"},
	Usage:   "hex-encoded 32-byte measurement of the identity layer",
}

var FirmwareIDFlag = &cli.StringFlag{
	Name:    "fwid",
	Value:   device.DevFirmwareIDHex,
	EnvVars: []string{"DICE_FWID"},
	Usage:   "hex-encoded 32-byte firmware identity the alias key is bound to",
}

var AliasCommonNameFlag = &cli.StringFlag{
	Name:  "alias-cn",
	Usage: "subject common name of the alias certificate (default riot-device-cert)",
}

var TrustAnchorFlag = &cli.StringFlag{
	Name:    "trust-anchor",
	Value:   trustanchor.DevName,
	EnvVars: []string{"DICE_TRUST_ANCHOR"},
	Usage:   "root signing key: 'dev', file:///key.pem or vault://host:port/mount/path",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var StorageFlag = &cli.StringSliceFlag{
	Name:     "storage",
	Required: true,
	Usage:    "storage backend URI (file://, s3://, ipfs://, vault://), may be repeated",
}

var StorageTLSAuthFlag = &cli.BoolFlag{
	Name:  "storage-tls-auth",
	Usage: "present the alias identity as TLS client certificate to Vault storage",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "device-identity",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var DeviceFlags = []cli.Flag{
	RootSecretFlag,
	MeasurementFlag,
	FirmwareIDFlag,
	AliasCommonNameFlag,
	TrustAnchorFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
