package identityextractors

import (
	"context"
	"crypto/x509"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veridia/estca/pkg/helpers"
)

type IdentityExtractor string

const (
	IdentityExtractorClientCertificate IdentityExtractor = "CLIENT_CERTIFICATE"
	IdentityExtractorBasicAuth         IdentityExtractor = "BASIC_AUTH"
)

type HttpAuthReqExtractor interface {
	ExtractAuthentication(ctx *gin.Context, req http.Request)
}

// RequestMetadataToContextMiddleware runs every identity extractor over the
// incoming request and publishes what they found into both the gin context
// and the request context, so services see auth metadata without touching
// HTTP types.
func RequestMetadataToContextMiddleware(logger *logrus.Entry) gin.HandlerFunc {
	authExtractors := []HttpAuthReqExtractor{
		ClientCertificateExtractor{
			logger: logger,
		},
		BasicAuthExtractor{
			logger: logger,
		},
	}

	return func(c *gin.Context) {
		for _, authExtractor := range authExtractors {
			authExtractor.ExtractAuthentication(c, *c.Request)
		}

		UpdateContextWithRequest(c)
		c.Next()
	}
}

func UpdateContextWithRequest(ctx *gin.Context) {
	authMode := ""
	callerID := ""

	reqCtx := ctx.Request.Context()

	basicAuthAny, hasValue := ctx.Get(string(IdentityExtractorBasicAuth))
	if hasValue {
		creds := basicAuthAny.(BasicCredentials)
		authMode = "password"
		callerID = creds.Username
	}

	clientCertAny, hasValue := ctx.Get(string(IdentityExtractorClientCertificate))
	if hasValue {
		clientCert := clientCertAny.(*x509.Certificate)
		reqCtx = context.WithValue(reqCtx, string(IdentityExtractorClientCertificate), clientCert)

		authMode = "crt"
		callerID = clientCert.Subject.CommonName
	}

	if authMode != "" {
		ctx.Set(helpers.CtxAuthMode, authMode)
		reqCtx = context.WithValue(reqCtx, helpers.CtxAuthMode, authMode)
	}

	if callerID != "" {
		ctx.Set(helpers.CtxAuthID, callerID)
		reqCtx = context.WithValue(reqCtx, helpers.CtxAuthID, callerID)
	}

	ctx.Request = ctx.Request.WithContext(reqCtx)
}

// PeerCertificateFromContext returns the client certificate captured by the
// extractor middleware, or nil if none was presented.
func PeerCertificateFromContext(ctx *gin.Context) *x509.Certificate {
	certAny, hasValue := ctx.Get(string(IdentityExtractorClientCertificate))
	if !hasValue {
		return nil
	}

	cert, ok := certAny.(*x509.Certificate)
	if !ok {
		return nil
	}
	return cert
}

// CredentialsFromContext returns the HTTP Basic credentials captured by the
// extractor middleware. The bool reports whether any were presented.
func CredentialsFromContext(ctx *gin.Context) (BasicCredentials, bool) {
	credsAny, hasValue := ctx.Get(string(IdentityExtractorBasicAuth))
	if !hasValue {
		return BasicCredentials{}, false
	}

	creds, ok := credsAny.(BasicCredentials)
	return creds, ok
}
