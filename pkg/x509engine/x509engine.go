package x509engine

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
)

// Signer turns a verified CSR into a signed certificate. The EST service
// depends only on this interface so that alternate CA backends can be
// plugged in without touching the enrollment flow.
type Signer interface {
	Sign(ctx context.Context, csr *x509.CertificateRequest, profile IssuanceProfile) (*x509.Certificate, error)
	CACertificate() *x509.Certificate
}

// IssuanceProfile is the static signing policy applied to every issued
// certificate. The engine never varies policy per request.
type IssuanceProfile struct {
	Validity    time.Duration
	KeyUsage    x509.KeyUsage
	ExtKeyUsage []x509.ExtKeyUsage
}

type X509Engine struct {
	logger *logrus.Entry
	caCert *x509.Certificate
	caKey  crypto.Signer
}

func NewX509Engine(logger *logrus.Entry, caCert *x509.Certificate, caKey crypto.Signer) (*X509Engine, error) {
	if caCert == nil || caKey == nil {
		return nil, errs.ErrKeyUnavailable
	}

	return &X509Engine{
		logger: logger,
		caCert: caCert,
		caKey:  caKey,
	}, nil
}

func (engine *X509Engine) CACertificate() *x509.Certificate {
	return engine.caCert
}

func (engine *X509Engine) Sign(ctx context.Context, csr *x509.CertificateRequest, profile IssuanceProfile) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, engine.logger)

	if engine.caCert == nil || engine.caKey == nil {
		lFunc.Error("refusing to sign: CA key or certificate not loaded")
		return nil, errs.ErrKeyUnavailable
	}

	now := time.Now()
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	sn, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, err
	}

	lFunc.Debugf("generated serial number for certificate: %s", helpers.SerialNumberToHexString(sn))

	skid, err := publicKeyDigest(csr)
	if err != nil {
		lFunc.Errorf("could not encode public key digest: %s", err)
		return nil, err
	}

	template := x509.Certificate{
		PublicKeyAlgorithm: csr.PublicKeyAlgorithm,
		PublicKey:          csr.PublicKey,
		SerialNumber:       sn,
		Subject:            csr.Subject,
		Issuer:             engine.caCert.Subject,
		SubjectKeyId:       skid,
		AuthorityKeyId:     engine.caCert.SubjectKeyId,
		NotBefore:          now,
		NotAfter:           now.Add(profile.Validity),
		KeyUsage:           profile.KeyUsage,
		ExtKeyUsage:        profile.ExtKeyUsage,
	}

	certificateBytes, err := x509.CreateCertificate(rand.Reader, &template, engine.caCert, csr.PublicKey, engine.caKey)
	if err != nil {
		lFunc.Errorf("could not sign certificate: %s", err)
		return nil, err
	}

	certificate, err := x509.ParseCertificate(certificateBytes)
	if err != nil {
		lFunc.Errorf("could not parse signed certificate %s", err)
		return nil, err
	}

	return certificate, nil
}

func publicKeyDigest(csr *x509.CertificateRequest) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(csr.PublicKey)
	if err != nil {
		return nil, err
	}

	digest := sha1.Sum(spki)
	return digest[:], nil
}
