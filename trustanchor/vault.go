package trustanchor

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// DefaultVaultField is the KV field holding the PEM private key.
const DefaultVaultField = "private_key"

// VaultSource locates an anchor key stored in a Vault KV v2 secret.
type VaultSource struct {
	Address   string
	MountPath string
	DataPath  string
	Field     string
	// Token overrides VAULT_TOKEN when set.
	Token string
	// ClientCert enables TLS client certificate authentication when set.
	ClientCert *tls.Certificate
}

func (s VaultSource) secretPath() string {
	mount := strings.Trim(s.MountPath, "/")
	data := strings.Trim(s.DataPath, "/")
	return fmt.Sprintf("%s/data/%s", mount, data)
}

func (s VaultSource) field() string {
	if s.Field == "" {
		return DefaultVaultField
	}
	return s.Field
}

// NewVaultClient creates a Vault API client for the source.
func NewVaultClient(s VaultSource) (*api.Client, error) {
	config := api.DefaultConfig()
	config.Address = s.Address

	if s.ClientCert != nil {
		config.HttpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{*s.ClientCert},
					MinVersion:   tls.VersionTLS12,
				},
			},
			Timeout: 30 * time.Second,
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if s.Token != "" {
		client.SetToken(s.Token)
	}
	return client, nil
}

// FromVault reads the anchor key from a Vault KV v2 secret.
func FromVault(ctx context.Context, client *api.Client, s VaultSource, exportable bool, log *slog.Logger) (*KeyAnchor, error) {
	path := s.secretPath()

	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		log.Error("Failed to read trust anchor from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("trust anchor %s: %w", path, interfaces.ErrContentNotFound)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response at %s", path)
	}
	keyPEM, ok := data[s.field()].(string)
	if !ok || keyPEM == "" {
		return nil, fmt.Errorf("trust anchor field %q at %s: %w", s.field(), path, interfaces.ErrContentNotFound)
	}

	anchor, err := FromPEM(cryptoutils.PrivateKeyPEM(keyPEM), "vault:"+path, exportable)
	if err != nil {
		return nil, err
	}

	log.Info("Loaded trust anchor from Vault", slog.String("path", path))
	return anchor, nil
}

// ProvisionVault writes an anchor key into a Vault KV v2 secret.
func ProvisionVault(ctx context.Context, client *api.Client, s VaultSource, key cryptoutils.PrivateKeyPEM) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidArgument, err)
	}

	_, err := client.Logical().WriteWithContext(ctx, s.secretPath(), map[string]interface{}{
		"data": map[string]interface{}{
			s.field(): string(key),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}
