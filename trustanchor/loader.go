package trustanchor

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ruteri/dice-device-identity/interfaces"
)

// Load resolves an anchor from a source string:
//
//   - "dev" or "": the development anchor
//   - file:///path/to/key.pem[?exportable=true]
//   - vault://host:port/mount/path/to/secret[?field=private_key&tls=false&exportable=true]
//
// Vault tokens are taken from VAULT_TOKEN. When clientCert is non-nil it is presented
// for TLS client authentication to Vault.
func Load(ctx context.Context, source string, clientCert *tls.Certificate, log *slog.Logger) (interfaces.TrustAnchor, error) {
	anchor, err := load(ctx, source, clientCert, log)
	if err != nil {
		return nil, err
	}
	return anchor, nil
}

func load(ctx context.Context, source string, clientCert *tls.Certificate, log *slog.Logger) (*KeyAnchor, error) {
	if source == "" || source == DevName {
		log.Warn("Using the development trust anchor, its private key is public")
		return Dev()
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: trust anchor source: %v", interfaces.ErrInvalidArgument, err)
	}
	exportable := u.Query().Get("exportable") == "true"

	switch strings.ToLower(u.Scheme) {
	case "file":
		path := u.Path
		if u.Host != "" {
			path = u.Host + "/" + strings.TrimPrefix(path, "/")
		}
		return FromFile(path, exportable)

	case "vault":
		parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: vault source must be vault://host/mount/path", interfaces.ErrInvalidArgument)
		}

		scheme := "https"
		if u.Query().Get("tls") == "false" {
			scheme = "http"
		}

		src := VaultSource{
			Address:    fmt.Sprintf("%s://%s", scheme, u.Host),
			MountPath:  parts[0],
			DataPath:   parts[1],
			Field:      u.Query().Get("field"),
			ClientCert: clientCert,
		}
		client, err := NewVaultClient(src)
		if err != nil {
			return nil, err
		}
		return FromVault(ctx, client, src, exportable, log)

	default:
		return nil, fmt.Errorf("%w: unsupported trust anchor scheme %q", interfaces.ErrInvalidArgument, u.Scheme)
	}
}
