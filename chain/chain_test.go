package chain

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/dice-device-identity/cryptoutils"
	"github.com/ruteri/dice-device-identity/der"
	"github.com/ruteri/dice-device-identity/identity"
	"github.com/ruteri/dice-device-identity/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var chainTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type staticAnchor struct {
	kp         *interfaces.KeyPair
	exportable bool
}

func (a staticAnchor) KeyPair() *interfaces.KeyPair { return a.kp }
func (a staticAnchor) Name() string                 { return "static" }
func (a staticAnchor) Exportable() bool             { return a.exportable }

// MockCryptoProvider delegates to a real provider unless Sign is stubbed.
type MockCryptoProvider struct {
	mock.Mock
	*cryptoutils.Provider
}

func (m *MockCryptoProvider) Sign(tbs []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	args := m.Called(tbs, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func testAnchor(t *testing.T, exportable bool) staticAnchor {
	t.Helper()
	kp, err := cryptoutils.NewProvider().GenerateKeyPair()
	require.NoError(t, err)
	return staticAnchor{kp: kp, exportable: exportable}
}

func testEngine(t *testing.T) *identity.Engine {
	t.Helper()
	secret, err := interfaces.NewRootSecret(make32(0x5A))
	require.NoError(t, err)

	engine := identity.NewEngine(cryptoutils.NewProvider(), testLogger)
	_, err = engine.Initialize(&secret, interfaces.Measurement(sha256.Sum256([]byte("measurement"))))
	require.NoError(t, err)
	return engine
}

func make32(fill byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = fill
	}
	return out
}

func testBuilder() *Builder {
	return NewBuilder(cryptoutils.NewProvider(), der.NewEncoder(), testLogger)
}

func TestBuildChainIsValid(t *testing.T) {
	anchor := testAnchor(t, true)
	fwid := interfaces.FirmwareID(sha256.Sum256([]byte("firmware")))

	c, err := testBuilder().BuildChain(testEngine(t), anchor, fwid, DefaultDescriptors(""))
	require.NoError(t, err)

	require.NoError(t, c.AliasCertificate.CheckSignatureFrom(c.DeviceCertificate))
	require.NoError(t, c.DeviceCertificate.CheckSignatureFrom(c.RootCertificate))
	require.NoError(t, c.RootCertificate.CheckSignatureFrom(c.RootCertificate))

	chains, err := cryptoutils.VerifyChain(c.AliasCertificate, []cryptoutils.CertificatePEM{c.DeviceCertificate}, c.RootCertificate, chainTime)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Len(t, chains[0], 3)

	aliasCert, err := c.AliasCertificate.GetX509Cert()
	require.NoError(t, err)
	assert.Equal(t, DefaultAliasCommonName, aliasCert.Subject.CommonName)
	assert.Equal(t, SignerCommonName, aliasCert.Issuer.CommonName)
	assert.True(t, aliasCert.PublicKey.(*ecdsa.PublicKey).Equal(c.AliasIdentity.Public()))

	gotFwid, err := der.FirmwareIDFromCertificate(aliasCert)
	require.NoError(t, err)
	assert.Equal(t, fwid, gotFwid)

	deviceCert, err := c.DeviceCertificate.GetX509Cert()
	require.NoError(t, err)
	assert.Equal(t, SignerCommonName, deviceCert.Subject.CommonName)
	assert.Equal(t, RootCommonName, deviceCert.Issuer.CommonName)
	assert.True(t, deviceCert.PublicKey.(*ecdsa.PublicKey).Equal(c.DeviceIdentity.Public()))

	rootCert, err := c.RootCertificate.GetX509Cert()
	require.NoError(t, err)
	assert.True(t, rootCert.PublicKey.(*ecdsa.PublicKey).Equal(anchor.kp.Public()))

	devicePub, err := c.DevicePublicKey.GetPublicKey()
	require.NoError(t, err)
	assert.True(t, devicePub.Equal(c.DeviceIdentity.Public()))

	require.NoError(t, cryptoutils.VerifyCertificate(c.AliasPrivateKey, c.AliasCertificate, DefaultAliasCommonName))

	rootKey, err := c.RootPrivateKey.GetPrivateKey()
	require.NoError(t, err)
	assert.True(t, rootKey.Equal(anchor.kp.Private))
}

func TestBuildChainDoesNotExportProtectedAnchor(t *testing.T) {
	c, err := testBuilder().BuildChain(testEngine(t), testAnchor(t, false), interfaces.FirmwareID{}, DefaultDescriptors("custom-alias"))
	require.NoError(t, err)

	assert.Nil(t, c.RootPrivateKey)
	assert.Equal(t, "custom-alias", c.AliasCommonName)
}

func TestBuildChainIsDeterministicInKeys(t *testing.T) {
	anchor := testAnchor(t, true)
	fwid := interfaces.FirmwareID{0x01}

	a, err := testBuilder().BuildChain(testEngine(t), anchor, fwid, DefaultDescriptors(""))
	require.NoError(t, err)
	b, err := testBuilder().BuildChain(testEngine(t), anchor, fwid, DefaultDescriptors(""))
	require.NoError(t, err)

	assert.True(t, a.DeviceIdentity.Equal(b.DeviceIdentity))
	assert.True(t, a.AliasIdentity.Equal(b.AliasIdentity))
	assert.Equal(t, a.DevicePublicKey, b.DevicePublicKey)
	assert.Equal(t, a.AliasPrivateKey, b.AliasPrivateKey)
}

func TestBuildChainAbortsOnSigningFailure(t *testing.T) {
	provider := &MockCryptoProvider{Provider: cryptoutils.NewProvider()}
	provider.On("Sign", mock.Anything, mock.Anything).Return(nil, errors.New("signer busy"))

	b := NewBuilder(provider, der.NewEncoder(), testLogger)
	c, err := b.BuildChain(testEngine(t), testAnchor(t, true), interfaces.FirmwareID{}, DefaultDescriptors(""))
	assert.Nil(t, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrCryptoOperation))

	// the first step fails, nothing after it runs
	provider.AssertNumberOfCalls(t, "Sign", 1)
}

func TestBuildChainAbortsOnEncodingFailure(t *testing.T) {
	enc := der.NewEncoder().WithLimits(der.Limits{TBS: der.MaxTBSSize, Structure: der.MaxStructureSize, PEM: 64})
	b := NewBuilder(cryptoutils.NewProvider(), enc, testLogger)

	c, err := b.BuildChain(testEngine(t), testAnchor(t, true), interfaces.FirmwareID{}, DefaultDescriptors(""))
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, interfaces.ErrEncoding))
}

func TestBuildChainRequiresInitializedEngine(t *testing.T) {
	engine := identity.NewEngine(cryptoutils.NewProvider(), testLogger)

	_, err := testBuilder().BuildChain(engine, testAnchor(t, true), interfaces.FirmwareID{}, DefaultDescriptors(""))
	assert.True(t, errors.Is(err, interfaces.ErrUninitialized))
}

func TestBuildChainRejectsMissingAnchor(t *testing.T) {
	_, err := testBuilder().BuildChain(testEngine(t), staticAnchor{}, interfaces.FirmwareID{}, DefaultDescriptors(""))
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))
}

func TestBuildSelfAssertion(t *testing.T) {
	kp, err := cryptoutils.NewProvider().GenerateKeyPair()
	require.NoError(t, err)

	desc := DefaultDescriptors("").Device
	desc.IssuerCommon = desc.SubjectCommon

	artifact, err := testBuilder().Build(desc, AuthoritySigned{Subject: kp.Public(), Signer: kp, IsCA: true})
	require.NoError(t, err)
	assert.Equal(t, interfaces.CertificateKind, artifact.Kind)

	cert, err := x509.ParseCertificate(artifact.DER)
	require.NoError(t, err)
	require.NoError(t, cert.CheckSignatureFrom(cert))
}

func TestBuildRejectsMissingKeys(t *testing.T) {
	desc := DefaultDescriptors("").Device
	b := testBuilder()

	_, err := b.Build(desc, SelfSigned{})
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))

	_, err = b.Build(desc, CertificateSigningRequest{})
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))

	_, err = b.Build(desc, AuthoritySigned{})
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))

	_, err = b.Build(desc, nil)
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))
}

func TestBuildLeafCSR(t *testing.T) {
	kp, err := cryptoutils.NewProvider().GenerateKeyPair()
	require.NoError(t, err)

	csrPEM, err := testBuilder().BuildLeafCSR(DefaultDescriptors("").Leaf, kp, "leaf-1")
	require.NoError(t, err)
	require.NoError(t, csrPEM.Validate())

	csr, err := csrPEM.GetX509CSR()
	require.NoError(t, err)
	assert.Equal(t, "leaf-1", csr.Subject.CommonName)
	assert.True(t, csr.PublicKey.(*ecdsa.PublicKey).Equal(kp.Public()))
}

func TestBuildLeafCSRSignSuccessIsTheSuccessCondition(t *testing.T) {
	kp, err := cryptoutils.NewProvider().GenerateKeyPair()
	require.NoError(t, err)

	provider := &MockCryptoProvider{Provider: cryptoutils.NewProvider()}
	provider.On("Sign", mock.Anything, mock.Anything).Return(nil, errors.New("sign failed")).Once()
	b := NewBuilder(provider, der.NewEncoder(), testLogger)

	csr, err := b.BuildLeafCSR(DefaultDescriptors("").Leaf, kp, "leaf-1")
	assert.Nil(t, csr)
	assert.True(t, errors.Is(err, interfaces.ErrCryptoOperation))
}

func TestBuildLeafCSREmptyNameRunsNoCrypto(t *testing.T) {
	provider := &MockCryptoProvider{Provider: cryptoutils.NewProvider()}
	b := NewBuilder(provider, der.NewEncoder(), testLogger)

	_, err := b.BuildLeafCSR(DefaultDescriptors("").Leaf, nil, "")
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))
	provider.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}
