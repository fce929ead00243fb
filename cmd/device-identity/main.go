package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ruteri/dice-device-identity/api/identityhandler"
	"github.com/ruteri/dice-device-identity/cmd/flags"
	"github.com/ruteri/dice-device-identity/device"
	"github.com/ruteri/dice-device-identity/httpserver"
	"github.com/ruteri/dice-device-identity/interfaces"
	"github.com/ruteri/dice-device-identity/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "device-identity",
		Usage: "Derive a DICE device identity and serve or export its certificate chain",
		Flags: append(append([]cli.Flag{}, flags.LogFlags...), flags.DeviceFlags...),
		Commands: []*cli.Command{
			showCommand,
			exportCommand,
			leafCSRCommand,
			publishCommand,
			serveCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withDevice creates the device handle from the global flags and destroys it, and the
// trust anchor, once fn returns.
func withDevice(cCtx *cli.Context, fn func(logger *slog.Logger, h *device.Handle) error) error {
	logger := flags.SetupLogger(cCtx)

	cfg, anchor, err := flags.DeviceConfig(cCtx, logger)
	if err != nil {
		logger.Error("Invalid device configuration", "err", err)
		return err
	}
	defer anchor.KeyPair().Wipe()

	h, err := device.Create(cfg)
	cfg.RootSecret.Wipe()
	if err != nil {
		logger.Error("Failed to create device identity", "err", err)
		return err
	}
	defer h.Destroy()

	if registrationID, err := h.DeviceFingerprint(); err == nil {
		logger.Info("Device identity established",
			"registration_id", registrationID,
			"anchor", cCtx.String(flags.TrustAnchorFlag.Name))
	}

	return fn(logger, h)
}

var showCommand = &cli.Command{
	Name:  "show",
	Usage: "print the registration id, common name and certificate chain",
	Action: func(cCtx *cli.Context) error {
		return withDevice(cCtx, func(logger *slog.Logger, h *device.Handle) error {
			registrationID, err := h.DeviceFingerprint()
			if err != nil {
				return err
			}
			cn, err := h.CommonName()
			if err != nil {
				return err
			}
			fwid, err := h.FirmwareID()
			if err != nil {
				return err
			}
			bundle, err := h.CertificateChain()
			if err != nil {
				return err
			}

			out := cCtx.App.Writer
			fmt.Fprintf(out, "registration id: %s\n", registrationID)
			fmt.Fprintf(out, "common name:     %s\n", cn)
			fmt.Fprintf(out, "firmware id:     %s\n\n", fwid)
			_, err = out.Write(bundle)
			return err
		})
	},
}

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "write every artifact of the identity to a directory",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "out-dir",
			Required: true,
			Usage:    "directory to write artifacts to",
		},
	},
	Action: func(cCtx *cli.Context) error {
		return withDevice(cCtx, func(logger *slog.Logger, h *device.Handle) error {
			return exportArtifacts(h, cCtx.String("out-dir"), logger)
		})
	},
}

func exportArtifacts(h *device.Handle, dir string, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	type artifact struct {
		file   string
		secret bool
		read   func() ([]byte, error)
	}
	artifacts := []artifact{
		{"alias-cert.pem", false, func() ([]byte, error) { return h.Certificate() }},
		{"signer-cert.pem", false, func() ([]byte, error) { return h.SignerCertificate() }},
		{"root-cert.pem", false, func() ([]byte, error) { return h.RootCertificate() }},
		{"device-pubkey.pem", false, func() ([]byte, error) { return h.DeviceCertificate() }},
		{"chain.pem", false, h.CertificateChain},
		{"alias-key.pem", true, func() ([]byte, error) { return h.AliasPrivateKey() }},
		{"root-key.pem", true, func() ([]byte, error) { return h.RootPrivateKey() }},
	}

	for _, a := range artifacts {
		data, err := a.read()
		if errors.Is(err, interfaces.ErrNotPopulated) {
			logger.Info("Artifact not available, skipping", "file", a.file)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", a.file, err)
		}

		mode := os.FileMode(0o644)
		if a.secret {
			mode = 0o600
		}
		path := filepath.Join(dir, a.file)
		err = os.WriteFile(path, data, mode)
		if a.secret {
			interfaces.Wipe(data)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Info("Wrote artifact", "path", path)
	}
	return nil
}

var leafCSRCommand = &cli.Command{
	Name:  "leaf-csr",
	Usage: "generate a fresh leaf key and print a certificate signing request for it",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "cn",
			Required: true,
			Usage:    "subject common name of the leaf",
		},
		&cli.StringFlag{
			Name:  "key-out",
			Usage: "write the leaf private key to this file; without it the key is discarded",
		},
	},
	Action: func(cCtx *cli.Context) error {
		return withDevice(cCtx, func(logger *slog.Logger, h *device.Handle) error {
			keyOut := cCtx.String("key-out")
			if keyOut == "" {
				csr, err := h.CreateLeafCertificate(cCtx.String("cn"))
				if err != nil {
					return err
				}
				_, err = cCtx.App.Writer.Write(csr)
				return err
			}

			key, csr, err := h.CreateLeafIdentity(cCtx.String("cn"))
			if err != nil {
				return err
			}
			defer key.Wipe()

			if err := os.WriteFile(keyOut, key, 0o600); err != nil {
				return err
			}
			_, err = cCtx.App.Writer.Write(csr)
			return err
		})
	},
}

var publishCommand = &cli.Command{
	Name:  "publish",
	Usage: "store the public artifacts and a manifest in storage backends",
	Flags: []cli.Flag{flags.StorageFlag, flags.StorageTLSAuthFlag},
	Action: func(cCtx *cli.Context) error {
		return withDevice(cCtx, func(logger *slog.Logger, h *device.Handle) error {
			var locations []interfaces.StorageBackendLocation
			for _, uri := range cCtx.StringSlice(flags.StorageFlag.Name) {
				loc, err := interfaces.NewStorageBackendLocation(uri)
				if err != nil {
					return err
				}
				locations = append(locations, loc)
			}

			var factory interfaces.StorageBackendFactory = storage.NewStorageBackendFactory(logger)
			if cCtx.Bool(flags.StorageTLSAuthFlag.Name) {
				factory = factory.WithTLSAuth(h.TLSCertificate)
			}

			backend, err := factory.CreateMultiBackend(locations)
			if err != nil {
				return err
			}

			result, err := storage.NewPublisher(backend, logger).Publish(cCtx.Context, h)
			if err != nil {
				logger.Error("Failed to publish identity", "err", err)
				return err
			}

			enc := json.NewEncoder(cCtx.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				ManifestID string           `json:"manifest_id"`
				Manifest   storage.Manifest `json:"manifest"`
			}{result.ManifestID.String(), result.Manifest})
		})
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "serve the public identity and leaf CSR issuance over HTTP",
	Flags: flags.ServerFlags,
	Action: func(cCtx *cli.Context) error {
		return withDevice(cCtx, func(logger *slog.Logger, h *device.Handle) error {
			cfg := flags.ConfigureServer(cCtx, logger)

			server, err := httpserver.New(cfg, identityhandler.NewHandler(h, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			return nil
		})
	},
}
