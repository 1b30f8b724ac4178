package codec

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridia/estca/pkg/config"
	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
)

func newTestCSR(t *testing.T, cn string) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: cn},
	}, key)
	require.NoError(t, err)

	return csrDER
}

func TestParseCSRRawDER(t *testing.T) {
	csrDER := newTestCSR(t, "device-001")

	csr, err := ParseCSR(csrDER, "")
	require.NoError(t, err)
	assert.Equal(t, "device-001", csr.Subject.CommonName)
}

func TestParseCSRBase64(t *testing.T) {
	csrDER := newTestCSR(t, "device-001")

	csr, err := ParseCSR(Base64Encode(csrDER), TransferEncodingBase64)
	require.NoError(t, err)
	assert.Equal(t, "device-001", csr.Subject.CommonName)
}

func TestParseCSRPEM(t *testing.T) {
	csrDER := newTestCSR(t, "device-001")
	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csrDER})

	csr, err := ParseCSR(csrPEM, "")
	require.NoError(t, err)
	assert.Equal(t, "device-001", csr.Subject.CommonName)

	// PEM inside a base64 framed body must also work.
	csr, err = ParseCSR(Base64Encode(csrPEM), TransferEncodingBase64)
	require.NoError(t, err)
	assert.Equal(t, "device-001", csr.Subject.CommonName)
}

func TestParseCSRInvalidBase64(t *testing.T) {
	_, err := ParseCSR([]byte("!!!not-base64!!!"), TransferEncodingBase64)
	assert.ErrorIs(t, err, errs.ErrInvalidBase64)
	assert.ErrorIs(t, err, errs.ErrMalformedRequest)
}

func TestParseCSRInvalidDER(t *testing.T) {
	_, err := ParseCSR([]byte{0x30, 0x03, 0x01, 0x01, 0xFF}, "")
	assert.ErrorIs(t, err, errs.ErrInvalidDER)
	assert.ErrorIs(t, err, errs.ErrMalformedRequest)
}

func TestParseCSRBadSignature(t *testing.T) {
	csrDER := newTestCSR(t, "device-001")

	// Corrupt the trailing signature bytes without breaking the DER
	// structure.
	tampered := make([]byte, len(csrDER))
	copy(tampered, csrDER)
	tampered[len(tampered)-1] ^= 0xFF

	_, err := ParseCSR(tampered, "")
	if !errors.Is(err, errs.ErrInvalidCSRSignature) && !errors.Is(err, errs.ErrInvalidDER) {
		t.Fatalf("expected a malformed request error, got %v", err)
	}
	assert.ErrorIs(t, err, errs.ErrMalformedRequest)
}

func TestPackagePKCS7RoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caCert, err := helpers.GenerateSelfSignedCA(key, "Test CA", time.Hour)
	require.NoError(t, err)

	der, err := PackagePKCS7([]*x509.Certificate{caCert}, config.EncodingDER)
	require.NoError(t, err)

	certs, err := DecodePKCS7CertsOnly(der)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, caCert.Raw, certs[0].Raw)
}

func TestPackagePKCS7Base64(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caCert, err := helpers.GenerateSelfSignedCA(key, "Test CA", time.Hour)
	require.NoError(t, err)

	body, err := PackagePKCS7([]*x509.Certificate{caCert}, config.EncodingBase64)
	require.NoError(t, err)

	for _, line := range bytes.Split(body, []byte("\r\n")) {
		assert.LessOrEqual(t, len(line), 76)
	}

	der, err := Base64Decode(body)
	require.NoError(t, err)

	certs, err := DecodePKCS7CertsOnly(der)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, caCert.Raw, certs[0].Raw)
}

func TestBase64EncodeLineBreaking(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	enc := Base64Encode(payload)
	assert.True(t, bytes.HasSuffix(enc, []byte("\r\n")))

	lines := bytes.Split(bytes.TrimSuffix(enc, []byte("\r\n")), []byte("\r\n"))
	for i, line := range lines {
		if i < len(lines)-1 {
			assert.Len(t, line, 76)
		} else {
			assert.LessOrEqual(t, len(line), 76)
		}
	}

	dec, err := Base64Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, payload, dec)
}
