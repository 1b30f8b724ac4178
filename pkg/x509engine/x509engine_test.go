package x509engine

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("subsystem", "test")
}

func newTestEngine(t *testing.T) *X509Engine {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caCert, err := helpers.GenerateSelfSignedCA(caKey, "Enrollment CA", 24*time.Hour)
	require.NoError(t, err)

	engine, err := NewX509Engine(testLogger(), caCert, caKey)
	require.NoError(t, err)
	return engine
}

func newTestCSR(t *testing.T, cn string) *x509.CertificateRequest {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: cn},
	}, key)
	require.NoError(t, err)

	csr, err := x509.ParseCertificateRequest(csrDER)
	require.NoError(t, err)
	return csr
}

func TestNewX509EngineWithoutMaterial(t *testing.T) {
	_, err := NewX509Engine(testLogger(), nil, nil)
	assert.ErrorIs(t, err, errs.ErrKeyUnavailable)
}

func TestSignCertificateRequest(t *testing.T) {
	engine := newTestEngine(t)
	csr := newTestCSR(t, "device-001")

	profile := IssuanceProfile{
		Validity:    365 * 24 * time.Hour,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	cert, err := engine.Sign(context.Background(), csr, profile)
	require.NoError(t, err)

	assert.Equal(t, "device-001", cert.Subject.CommonName)
	assert.Equal(t, engine.CACertificate().Subject.String(), cert.Issuer.String())
	require.NoError(t, cert.CheckSignatureFrom(engine.CACertificate()))

	assert.NotNil(t, cert.SerialNumber)
	assert.Positive(t, cert.SerialNumber.Sign())
	assert.NotEmpty(t, cert.SubjectKeyId)
	assert.Equal(t, engine.CACertificate().SubjectKeyId, cert.AuthorityKeyId)

	assert.Equal(t, profile.KeyUsage, cert.KeyUsage)
	assert.Equal(t, profile.ExtKeyUsage, cert.ExtKeyUsage)

	wantNotAfter := time.Now().Add(profile.Validity)
	assert.WithinDuration(t, wantNotAfter, cert.NotAfter, time.Minute)
}

func TestSignGeneratesUniqueSerials(t *testing.T) {
	engine := newTestEngine(t)
	csr := newTestCSR(t, "device-001")

	profile := IssuanceProfile{
		Validity: time.Hour,
		KeyUsage: x509.KeyUsageDigitalSignature,
	}

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		cert, err := engine.Sign(context.Background(), csr, profile)
		require.NoError(t, err)

		sn := helpers.SerialNumberToHexString(cert.SerialNumber)
		assert.False(t, seen[sn], "serial %s issued twice", sn)
		seen[sn] = true
	}
}
