package authn

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
	"github.com/veridia/estca/pkg/models"
)

// Gateway authorizes enrollment requests over two independent paths tried
// in a fixed order: a peer certificate issued by this authority, then
// bootstrap password credentials. A presented-but-invalid certificate fails
// the request outright; it never falls through to the password path,
// because a bad certificate signals a misconfigured or hostile caller
// rather than a device that simply has no identity yet.
type Gateway struct {
	logger           *logrus.Entry
	caCert           *x509.Certificate
	verifiers        *VerifierDB
	allowExpiredCert bool
}

func NewGateway(logger *logrus.Entry, caCert *x509.Certificate, verifiers *VerifierDB, allowExpiredCert bool) *Gateway {
	return &Gateway{
		logger:           logger,
		caCert:           caCert,
		verifiers:        verifiers,
		allowExpiredCert: allowExpiredCert,
	}
}

func (gw *Gateway) Authenticate(ctx context.Context, peerCert *x509.Certificate, username, password string) (models.AuthorizedPrincipal, error) {
	lFunc := helpers.ConfigureLogger(ctx, gw.logger)

	if peerCert != nil {
		lFunc = lFunc.WithField("auth-method", models.AuthMethodCertificate)

		if err := gw.validatePeerCertificate(peerCert); err != nil {
			lFunc.Errorf("client certificate presented but rejected (CN=%s, Issuer=%s): %s. not falling back to password auth",
				peerCert.Subject.CommonName, peerCert.Issuer.CommonName, err)
			return models.AuthorizedPrincipal{Method: models.AuthMethodNone}, errs.ErrUnauthenticated
		}

		lFunc.Infof("client certificate verified for CN=%s", peerCert.Subject.CommonName)
		return models.AuthorizedPrincipal{
			Name:   peerCert.Subject.CommonName,
			Method: models.AuthMethodCertificate,
		}, nil
	}

	if username != "" {
		lFunc = lFunc.WithField("auth-method", models.AuthMethodPassword)

		if !gw.verifiers.Verify(username, password) {
			lFunc.Errorf("password authentication failed for user '%s'", username)
			return models.AuthorizedPrincipal{Method: models.AuthMethodNone}, errs.ErrUnauthenticated
		}

		lFunc.Infof("password authentication succeeded for user '%s'", username)
		return models.AuthorizedPrincipal{
			Name:   username,
			Method: models.AuthMethodPassword,
		}, nil
	}

	lFunc.Error("no client certificate presented and no credentials supplied")
	return models.AuthorizedPrincipal{Method: models.AuthMethodNone}, errs.ErrUnauthenticated
}

// validatePeerCertificate checks that the certificate was issued by this
// server's own signing authority and is within its validity window. This is
// deliberately not a chain-of-trust engine: issuer equality plus time
// validity is the deployment contract, and revocation checking is a known
// gap documented at the service level.
func (gw *Gateway) validatePeerCertificate(cert *x509.Certificate) error {
	if cert.Issuer.String() != gw.caCert.Subject.String() {
		return errs.ErrUnauthenticated
	}

	if err := cert.CheckSignatureFrom(gw.caCert); err != nil {
		return err
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return errs.ErrUnauthenticated
	}
	if now.After(cert.NotAfter) && !gw.allowExpiredCert {
		return errs.ErrUnauthenticated
	}

	return nil
}
