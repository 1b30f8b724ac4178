package codec

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"

	"go.mozilla.org/pkcs7"

	"github.com/veridia/estca/pkg/config"
	"github.com/veridia/estca/pkg/errs"
)

const (
	// TransferEncodingBase64 is the Content-Transfer-Encoding header value
	// indicating a base64 framed request body (RFC 7030 section 3.4).
	TransferEncodingBase64 = "base64"

	base64LineLength = 76
)

// ParseCSR decodes and validates a PKCS#10 request body. transferEncoding
// is the request's Content-Transfer-Encoding value; "base64" means the body
// is base64 framed and must be decoded first. The CSR's self-signature is
// verified here: a CSR value never leaves this function unverified.
func ParseCSR(body []byte, transferEncoding string) (*x509.CertificateRequest, error) {
	der := bytes.TrimSpace(body)

	if strings.EqualFold(strings.TrimSpace(transferEncoding), TransferEncodingBase64) {
		dec, err := Base64Decode(der)
		if err != nil {
			return nil, errs.ErrInvalidBase64
		}
		der = dec
	}

	// Some clients send PEM armored CSRs regardless of encoding headers.
	if bytes.HasPrefix(der, []byte("-----BEGIN")) {
		block, _ := pem.Decode(der)
		if block == nil {
			return nil, errs.ErrInvalidDER
		}
		der = block.Bytes
	}

	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, errs.ErrInvalidDER
	}

	if err := csr.CheckSignature(); err != nil {
		return nil, errs.ErrInvalidCSRSignature
	}

	return csr, nil
}

// PackagePKCS7 encodes the given certificates as a PKCS#7 degenerate
// "certs-only" SignedData structure, base64 framed when the configured
// response encoding asks for it.
func PackagePKCS7(certs []*x509.Certificate, encoding config.ResponseEncoding) ([]byte, error) {
	der, err := encodePKCS7CertsOnly(certs)
	if err != nil {
		return nil, err
	}

	if encoding == config.EncodingBase64 {
		return Base64Encode(der), nil
	}

	return der, nil
}

// DecodePKCS7CertsOnly decodes a PKCS#7 degenerate "certs-only" response and
// returns the certificate(s) it contains.
func DecodePKCS7CertsOnly(b []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(b)
	if err != nil {
		return nil, err
	}
	return p7.Certificates, nil
}

func encodePKCS7CertsOnly(certs []*x509.Certificate) ([]byte, error) {
	var cb []byte
	for _, cert := range certs {
		cb = append(cb, cert.Raw...)
	}
	return pkcs7.DegenerateCertificate(cb)
}

// Base64Encode base64-encodes a slice of bytes using standard encoding,
// broken into CRLF terminated lines as required for MIME transport.
func Base64Encode(src []byte) []byte {
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(src)))
	base64.StdEncoding.Encode(enc, src)
	return breakLines(enc, base64LineLength)
}

// Base64Decode reverses Base64Encode, tolerating the inserted line breaks.
func Base64Decode(src []byte) ([]byte, error) {
	clean := strings.NewReplacer("\r", "", "\n", "").Replace(string(src))
	return base64.StdEncoding.DecodeString(clean)
}

// breakLines inserts a CRLF line break in the provided slice of bytes every n
// bytes, including a terminating CRLF for the last line.
func breakLines(b []byte, n int) []byte {
	crlf := []byte{'\r', '\n'}
	initialLen := len(b)

	// Just return a terminating CRLF if the input is empty.
	if initialLen == 0 {
		return crlf
	}

	// Allocate a buffer with suitable capacity to minimize allocations.
	buf := bytes.NewBuffer(make([]byte, 0, initialLen+((initialLen/n)+1)*2))

	// Split input into CRLF-terminated lines.
	for {
		lineLen := len(b)
		if lineLen == 0 {
			break
		} else if lineLen > n {
			lineLen = n
		}

		buf.Write(b[0:lineLen])
		b = b[lineLen:]
		buf.Write(crlf)
	}

	return buf.Bytes()
}
