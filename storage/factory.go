package storage

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ruteri/dice-device-identity/interfaces"
)

// StorageBackendFactory creates storage backends from location URIs and
// aggregates them into multi-backend configurations.
type StorageBackendFactory struct {
	log     *slog.Logger
	tlsAuth func() (tls.Certificate, error)
}

// NewStorageBackendFactory creates a new factory instance.
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{
		log: logger,
	}
}

// WithTLSAuth returns a factory that authenticates Vault backends with the certificate returned by getCert.
func (sf *StorageBackendFactory) WithTLSAuth(getCert func() (tls.Certificate, error)) interfaces.StorageBackendFactory {
	return &StorageBackendFactory{
		log:     sf.log,
		tlsAuth: getCert,
	}
}

// StorageBackendFor creates a storage backend from a location URI.
//
// Supported schemes:
//   - file:// - local filesystem
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node API
//   - vault:// - HashiCorp Vault KV v2
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	switch {
	case location.IsFile():
		return sf.createFileBackend(location)
	case location.IsS3():
		return sf.createS3Backend(location)
	case location.IsIPFS():
		return sf.createIPFSBackend(location)
	case location.IsVault():
		return sf.createVaultBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of location URIs.
// Locations that fail to produce a backend are logged and skipped.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations))

	for _, location := range locations {
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("location", location.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no valid storage backends created", interfaces.ErrInvalidLocationURI)
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// createFileBackend handles file:///absolute/path/ and file://./relative/path/.
func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, location)
	}

	return NewFileBackend(path, sf.log)
}

// createS3Backend handles s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=...&path_style=true.
// With ?credentials=env the keys are read from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	cfg := S3Config{
		Bucket:    location.Host,
		Prefix:    strings.TrimPrefix(location.Path, "/"),
		Region:    location.GetParam("region"),
		Endpoint:  location.GetParam("endpoint"),
		PathStyle: location.GetParamBool("path_style"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	switch {
	case location.GetParam("credentials") == "env":
		cfg.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	case location.Auth != "":
		u, err := location.URL()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
		}
		cfg.AccessKey = u.User.Username()
		cfg.SecretKey, _ = u.User.Password()
	}

	return NewS3Backend(cfg, sf.log)
}

// createIPFSBackend handles ipfs://host:port/?timeout=30s&pin=true.
func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	u, err := location.URL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
	}

	pin := location.GetParam("pin") != "false"

	return NewIPFSBackend(host, port, timeout, pin, sf.log)
}

// createVaultBackend handles vault://host:port/mount/path?tls=false.
// The token is taken from VAULT_TOKEN; a configured TLS client certificate is presented when the factory has one.
func (sf *StorageBackendFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	parts := strings.SplitN(strings.Trim(location.Path, "/"), "/", 2)
	if location.Host == "" || parts[0] == "" {
		return nil, fmt.Errorf("%w: expected vault://host:port/mount/path, got %s", interfaces.ErrInvalidLocationURI, location)
	}

	mountPath := parts[0]
	dataPath := ""
	if len(parts) == 2 {
		dataPath = parts[1]
	}

	scheme := "https"
	if location.GetParam("tls") == "false" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, location.Host)

	var clientCert *tls.Certificate
	if sf.tlsAuth != nil {
		cert, err := sf.tlsAuth()
		if err != nil {
			return nil, fmt.Errorf("failed to obtain TLS client certificate: %w", err)
		}
		clientCert = &cert
	}

	backend, err := NewVaultBackend(address, mountPath, dataPath, clientCert, sf.log)
	if err != nil {
		return nil, err
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		backend.SetToken(token)
	}
	return backend, nil
}
