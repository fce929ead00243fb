package storage

import (
	"crypto/tls"
	"errors"
	"testing"

	"github.com/ruteri/dice-device-identity/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, uri string) interfaces.StorageBackendLocation {
	t.Helper()
	loc, err := interfaces.NewStorageBackendLocation(uri)
	require.NoError(t, err)
	return loc
}

func TestStorageBackendFor(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageBackendFactory(testLogger)

	tests := []struct {
		uri      string
		expected interface{}
	}{
		{"file://" + dir, &FileBackend{}},
		{"s3://artifacts/devices/?region=eu-west-1&endpoint=http://localhost:9000&path_style=true", &S3Backend{}},
		{"s3://key:secret@artifacts/devices/", &S3Backend{}},
		{"ipfs://localhost:5001/?timeout=5s", &IPFSBackend{}},
		{"vault://vault.example.com:8200/secret/devices?tls=false", &VaultBackend{}},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			backend, err := factory.StorageBackendFor(mustLocation(t, tt.uri))
			require.NoError(t, err)
			assert.IsType(t, tt.expected, backend)
		})
	}
}

func TestStorageBackendFor_Invalid(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger)

	for _, uri := range []string{
		"ipfs://localhost:5001/?timeout=soon",
		"vault://vault.example.com:8200/",
		"s3:///prefix",
	} {
		t.Run(uri, func(t *testing.T) {
			_, err := factory.StorageBackendFor(mustLocation(t, uri))
			assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
		})
	}

	_, err := interfaces.NewStorageBackendLocation("github://owner/repo")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestS3Backend_LocationURIHidesSecret(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger)
	backend, err := factory.StorageBackendFor(mustLocation(t, "s3://AKIA:topsecret@artifacts/devices/?region=us-west-2"))
	require.NoError(t, err)

	assert.Equal(t, "s3://AKIA:***@artifacts/devices?region=us-west-2", backend.LocationURI())
	assert.NotContains(t, backend.LocationURI(), "topsecret")
}

func TestWithTLSAuth(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger)

	called := false
	withAuth := factory.WithTLSAuth(func() (tls.Certificate, error) {
		called = true
		return tls.Certificate{}, nil
	})

	backend, err := withAuth.StorageBackendFor(mustLocation(t, "vault://vault.example.com:8200/secret/devices"))
	require.NoError(t, err)
	assert.IsType(t, &VaultBackend{}, backend)
	assert.True(t, called)

	failing := factory.WithTLSAuth(func() (tls.Certificate, error) {
		return tls.Certificate{}, errors.New("device destroyed")
	})
	_, err = failing.StorageBackendFor(mustLocation(t, "vault://vault.example.com:8200/secret/devices"))
	assert.Error(t, err)

	// Non-vault backends never ask for the certificate.
	_, err = failing.StorageBackendFor(mustLocation(t, "file://"+t.TempDir()))
	assert.NoError(t, err)
}

func TestCreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger)

	backend, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "file://"+t.TempDir()),
		mustLocation(t, "vault://vault.example.com:8200/"),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, backend)

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "vault://vault.example.com:8200/"),
	})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
