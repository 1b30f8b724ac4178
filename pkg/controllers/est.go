package controllers

import (
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/veridia/estca/pkg/codec"
	"github.com/veridia/estca/pkg/config"
	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
	"github.com/veridia/estca/pkg/routes/middlewares/identityextractors"
	"github.com/veridia/estca/pkg/services"
)

const (
	contentTypePKCS10 = "application/pkcs10"
	contentTypePKCS7  = "application/pkcs7-mime; smime-type=certs-only"
	contentTypePEM    = "application/x-pem-file"
)

type estHttpRoutes struct {
	svc      services.ESTService
	encoding config.ResponseEncoding
}

func NewESTHttpRoutes(svc services.ESTService, encoding config.ResponseEncoding) *estHttpRoutes {
	return &estHttpRoutes{
		svc:      svc,
		encoding: encoding,
	}
}

func (r *estHttpRoutes) GetCACerts(ctx *gin.Context) {
	cacerts, err := r.svc.CACerts(ctx.Request.Context())
	if err != nil {
		writeESTError(ctx, err)
		return
	}

	if ctx.Request.Header.Get("accept") == contentTypePEM {
		casPEM := []string{}
		for _, cert := range cacerts {
			casPEM = append(casPEM, helpers.CertificateToPEM(cert))
		}

		ctx.Writer.Header().Set("Content-Type", contentTypePEM)
		ctx.Writer.Write([]byte(strings.Join(casPEM, "\n")))
		return
	}

	r.writeCertsOnly(ctx, cacerts)
}

// EnrollReenroll serves bootstrap, simpleenroll and simplereenroll; the
// request path decides which service operation runs. Framing is identical
// across the three.
func (r *estHttpRoutes) EnrollReenroll(ctx *gin.Context) {
	csr, err := readEnrollmentCSR(ctx)
	if err != nil {
		writeESTError(ctx, err)
		return
	}

	input := services.EnrollInput{
		CSR:             csr,
		PeerCertificate: identityextractors.PeerCertificateFromContext(ctx),
		SourceAddress:   ctx.ClientIP(),
	}
	if creds, ok := identityextractors.CredentialsFromContext(ctx); ok {
		input.Username = creds.Username
		input.Password = creds.Password
	}

	var signedCrt *x509.Certificate
	switch {
	case strings.Contains(ctx.Request.URL.Path, "simplereenroll"):
		signedCrt, err = r.svc.Reenroll(ctx.Request.Context(), input)
	case strings.Contains(ctx.Request.URL.Path, "bootstrap"):
		signedCrt, err = r.svc.Bootstrap(ctx.Request.Context(), input)
	default:
		signedCrt, err = r.svc.Enroll(ctx.Request.Context(), input)
	}
	if err != nil {
		writeESTError(ctx, err)
		return
	}

	if ctx.Request.Header.Get("accept") == contentTypePEM {
		ctx.Writer.Header().Set("Content-Type", contentTypePEM)
		ctx.Writer.Write([]byte(helpers.CertificateToPEM(signedCrt)))
		return
	}

	// Leaf first, then the issuing chain.
	chain := []*x509.Certificate{signedCrt}
	if cacerts, err := r.svc.CACerts(ctx.Request.Context()); err == nil {
		chain = append(chain, cacerts...)
	}

	r.writeCertsOnly(ctx, chain)
}

// readEnrollmentCSR enforces the request framing contract: pkcs10 content
// type, optional base64 transfer encoding, verified PKCS#10 body.
func readEnrollmentCSR(ctx *gin.Context) (*x509.CertificateRequest, error) {
	contentType := ctx.ContentType()
	if contentType != contentTypePKCS10 {
		return nil, errs.ErrMalformedRequest
	}

	data, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return nil, errs.ErrMalformedRequest
	}

	// RFC 7030 clients send base64 framed bodies, but the header is the
	// contract: absent header means raw DER.
	transferEncoding := ctx.Request.Header.Get("Content-Transfer-Encoding")

	return codec.ParseCSR(data, transferEncoding)
}

func (r *estHttpRoutes) writeCertsOnly(ctx *gin.Context, certs []*x509.Certificate) {
	body, err := codec.PackagePKCS7(certs, r.encoding)
	if err != nil {
		writeESTError(ctx, err)
		return
	}

	ctx.Writer.Header().Set("Content-Type", contentTypePKCS7)
	if r.encoding == config.EncodingBase64 {
		ctx.Writer.Header().Set("Content-Transfer-Encoding", "base64")
	}
	ctx.Writer.Header().Set("Content-Length", strconv.Itoa(len(body)))

	ctx.Writer.WriteHeader(http.StatusOK)
	ctx.Writer.Write(body)
}

// writeESTError is the single translation point from service errors to
// HTTP statuses.
func writeESTError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrMalformedRequest):
		ctx.JSON(400, gin.H{"err": err.Error()})
	case errors.Is(err, errs.ErrUnauthenticated):
		ctx.Header("WWW-Authenticate", `Basic realm="estca"`)
		ctx.JSON(401, gin.H{"err": err.Error()})
	case errors.Is(err, errs.ErrIdentityMismatch):
		ctx.JSON(403, gin.H{"err": err.Error()})
	case errors.Is(err, errs.ErrRecordNotFound):
		ctx.JSON(404, gin.H{"err": err.Error()})
	case errors.Is(err, errs.ErrDuplicateIdentity):
		ctx.JSON(409, gin.H{"err": err.Error()})
	default:
		ctx.JSON(500, gin.H{"err": err.Error()})
	}
}
