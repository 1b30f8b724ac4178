package authn

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
	"github.com/veridia/estca/pkg/models"
)

type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func newTestCA(t *testing.T, cn string) testCA {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	cert, err := helpers.GenerateSelfSignedCA(key, cn, 24*time.Hour)
	require.NoError(t, err)

	return testCA{cert: cert, key: key}
}

func (ca testCA) issueClientCert(t *testing.T, cn string, notBefore, notAfter time.Time) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, ca.cert, key.Public(), ca.key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func newTestGateway(t *testing.T, ca testCA, allowExpired bool) *Gateway {
	t.Helper()

	db, err := NewVerifierDB(testLogger(), filepath.Join(t.TempDir(), "users.txt"))
	require.NoError(t, err)
	require.NoError(t, db.AddUser("bootstrap", "s3cret"))

	return NewGateway(testLogger(), ca.cert, db, allowExpired)
}

func TestAuthenticateWithValidCertificate(t *testing.T) {
	ca := newTestCA(t, "Enrollment CA")
	gw := newTestGateway(t, ca, false)

	now := time.Now()
	cert := ca.issueClientCert(t, "device-001", now.Add(-time.Hour), now.Add(time.Hour))

	principal, err := gw.Authenticate(context.Background(), cert, "", "")
	require.NoError(t, err)
	assert.Equal(t, "device-001", principal.Name)
	assert.Equal(t, models.AuthMethodCertificate, principal.Method)
}

// When both a valid certificate and valid credentials are presented, the
// certificate path always wins.
func TestAuthenticateCertificateTakesPrecedence(t *testing.T) {
	ca := newTestCA(t, "Enrollment CA")
	gw := newTestGateway(t, ca, false)

	now := time.Now()
	cert := ca.issueClientCert(t, "device-001", now.Add(-time.Hour), now.Add(time.Hour))

	principal, err := gw.Authenticate(context.Background(), cert, "bootstrap", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.AuthMethodCertificate, principal.Method)
	assert.Equal(t, "device-001", principal.Name)
}

func TestAuthenticateWithForeignCertificate(t *testing.T) {
	ca := newTestCA(t, "Enrollment CA")
	other := newTestCA(t, "Some Other CA")
	gw := newTestGateway(t, ca, false)

	now := time.Now()
	cert := other.issueClientCert(t, "device-001", now.Add(-time.Hour), now.Add(time.Hour))

	_, err := gw.Authenticate(context.Background(), cert, "", "")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

// An invalid certificate must fail the request even when valid password
// credentials ride along. There is no fallback.
func TestAuthenticateInvalidCertificateNoPasswordFallback(t *testing.T) {
	ca := newTestCA(t, "Enrollment CA")
	other := newTestCA(t, "Some Other CA")
	gw := newTestGateway(t, ca, false)

	now := time.Now()
	cert := other.issueClientCert(t, "device-001", now.Add(-time.Hour), now.Add(time.Hour))

	_, err := gw.Authenticate(context.Background(), cert, "bootstrap", "s3cret")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestAuthenticateWithExpiredCertificate(t *testing.T) {
	ca := newTestCA(t, "Enrollment CA")

	now := time.Now()
	cert := ca.issueClientCert(t, "device-001", now.Add(-2*time.Hour), now.Add(-time.Hour))

	gw := newTestGateway(t, ca, false)
	_, err := gw.Authenticate(context.Background(), cert, "", "")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	permissive := newTestGateway(t, ca, true)
	principal, err := permissive.Authenticate(context.Background(), cert, "", "")
	require.NoError(t, err)
	assert.Equal(t, "device-001", principal.Name)
}

func TestAuthenticateWithPassword(t *testing.T) {
	ca := newTestCA(t, "Enrollment CA")
	gw := newTestGateway(t, ca, false)

	principal, err := gw.Authenticate(context.Background(), nil, "bootstrap", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", principal.Name)
	assert.Equal(t, models.AuthMethodPassword, principal.Method)

	_, err = gw.Authenticate(context.Background(), nil, "bootstrap", "wrong")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestAuthenticateWithNothing(t *testing.T) {
	ca := newTestCA(t, "Enrollment CA")
	gw := newTestGateway(t, ca, false)

	principal, err := gw.Authenticate(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
	assert.False(t, principal.Authenticated())
}
