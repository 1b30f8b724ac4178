package services

import (
	"context"
	"crypto/x509"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/veridia/estca/pkg/authn"
	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
	"github.com/veridia/estca/pkg/ledger"
	"github.com/veridia/estca/pkg/models"
	"github.com/veridia/estca/pkg/x509engine"
)

// ESTService is the enrollment orchestration surface. The wire controllers
// depend only on this interface; framing (base64, PKCS#7, content types)
// stays out of it on purpose.
type ESTService interface {
	CACerts(ctx context.Context) ([]*x509.Certificate, error)
	Bootstrap(ctx context.Context, input EnrollInput) (*x509.Certificate, error)
	Enroll(ctx context.Context, input EnrollInput) (*x509.Certificate, error)
	Reenroll(ctx context.Context, input EnrollInput) (*x509.Certificate, error)

	GetDevice(ctx context.Context, deviceID string) (*models.EnrollmentRecord, error)
	ListDevices(ctx context.Context) ([]models.EnrollmentRecord, error)
	DeleteDevice(ctx context.Context, deviceID string) error
	Stats(ctx context.Context) (*models.LedgerStats, error)
}

type EnrollInput struct {
	CSR *x509.CertificateRequest `validate:"required"`

	// Peer identity material as presented on the wire. At most one path
	// succeeds; the gateway decides which.
	PeerCertificate *x509.Certificate
	Username        string
	Password        string

	SourceAddress string
}

type ESTServiceBuilder struct {
	Logger           *logrus.Entry
	Gateway          *authn.Gateway
	Engine           x509engine.Signer
	Ledger           *ledger.Ledger
	EnrollProfile    x509engine.IssuanceProfile
	BootstrapProfile x509engine.IssuanceProfile
}

type estServiceBackend struct {
	logger           *logrus.Entry
	gateway          *authn.Gateway
	engine           x509engine.Signer
	ledger           *ledger.Ledger
	enrollProfile    x509engine.IssuanceProfile
	bootstrapProfile x509engine.IssuanceProfile
}

func NewESTService(builder ESTServiceBuilder) ESTService {
	return &estServiceBackend{
		logger:           builder.Logger,
		gateway:          builder.Gateway,
		engine:           builder.Engine,
		ledger:           builder.Ledger,
		enrollProfile:    builder.EnrollProfile,
		bootstrapProfile: builder.BootstrapProfile,
	}
}

func (svc *estServiceBackend) CACerts(ctx context.Context) ([]*x509.Certificate, error) {
	return []*x509.Certificate{svc.engine.CACertificate()}, nil
}

// Bootstrap issues a short lived certificate against password credentials
// so a device with no identity yet can reach the certificate path of
// Enroll. The resulting ledger record is bootstrap-only until a full
// enrollment replaces it.
func (svc *estServiceBackend) Bootstrap(ctx context.Context, input EnrollInput) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	lFunc = lFunc.WithField("step", "Bootstrap")

	principal, deviceID, err := svc.authorize(ctx, lFunc, input)
	if err != nil {
		return nil, err
	}

	cert, err := svc.engine.Sign(ctx, input.CSR, svc.bootstrapProfile)
	if err != nil {
		return nil, err
	}

	lFunc = lFunc.WithField("step", "DeviceReg")
	record := &models.EnrollmentRecord{
		DeviceID:          deviceID,
		EnrolledBy:        principal.Name,
		SourceAddress:     input.SourceAddress,
		CertificateSerial: helpers.SerialNumberToHexString(cert.SerialNumber),
		Method:            models.MethodBootstrap,
		Status:            models.StatusBootstrapOnly,
	}
	if err := svc.ledger.Register(ctx, record); err != nil {
		lFunc.Errorf("could not register bootstrap device '%s': %s", deviceID, err)
		return nil, err
	}

	lFunc.Infof("bootstrap certificate issued for device '%s' (serial %s)", deviceID, record.CertificateSerial)
	return cert, nil
}

// Enroll performs first-time enrollment: the identity must not already hold
// an active record, and the ledger write happens only after signing
// succeeds so no record ever points at a certificate that was never issued.
func (svc *estServiceBackend) Enroll(ctx context.Context, input EnrollInput) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	lFunc = lFunc.WithField("step", "Enroll")

	principal, deviceID, err := svc.authorize(ctx, lFunc, input)
	if err != nil {
		return nil, err
	}

	exists, err := svc.ledger.Exists(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	method := models.MethodPassword
	if principal.Method == models.AuthMethodCertificate {
		method = models.MethodCertificate
	}

	// A bootstrap-only record is the expected prior state of a device
	// completing its first real enrollment; it gets upgraded in place.
	// An already-enrolled identity is a duplicate.
	var prior *models.EnrollmentRecord
	if exists {
		prior, err = svc.ledger.Get(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		if prior.Status == models.StatusEnrolled {
			lFunc.Warnf("device '%s' is already enrolled", deviceID)
			return nil, errs.ErrDuplicateIdentity
		}
	}

	cert, err := svc.engine.Sign(ctx, input.CSR, svc.enrollProfile)
	if err != nil {
		return nil, err
	}

	lFunc = lFunc.WithField("step", "DeviceReg")
	record := &models.EnrollmentRecord{
		DeviceID:          deviceID,
		EnrolledBy:        principal.Name,
		SourceAddress:     input.SourceAddress,
		CertificateSerial: helpers.SerialNumberToHexString(cert.SerialNumber),
		Method:            method,
		Status:            models.StatusEnrolled,
	}
	if exists {
		err = svc.ledger.Update(ctx, record)
	} else {
		err = svc.ledger.Register(ctx, record)
	}
	if err != nil {
		lFunc.Errorf("could not register device '%s': %s", deviceID, err)
		return nil, err
	}

	lFunc.Infof("certificate issued for device '%s' (serial %s)", deviceID, record.CertificateSerial)
	return cert, nil
}

// Reenroll renews an existing identity. Only the certificate path is
// accepted and the proven identity must match the CSR subject, so a device
// can renew its own certificate but never someone else's.
func (svc *estServiceBackend) Reenroll(ctx context.Context, input EnrollInput) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	lFunc = lFunc.WithField("step", "ReEnroll")

	principal, deviceID, err := svc.authorize(ctx, lFunc, input)
	if err != nil {
		return nil, err
	}

	if principal.Method != models.AuthMethodCertificate {
		lFunc.WithField("auth-status", "failed").Errorf("re-enrollment requires certificate authentication, got %s", principal.Method)
		return nil, errs.ErrUnauthenticated
	}

	if principal.Name != deviceID {
		lFunc.Errorf("certificate identity '%s' does not match CSR subject '%s'", principal.Name, deviceID)
		return nil, errs.ErrIdentityMismatch
	}

	cert, err := svc.engine.Sign(ctx, input.CSR, svc.enrollProfile)
	if err != nil {
		return nil, err
	}

	lFunc = lFunc.WithField("step", "DeviceReg")
	record := &models.EnrollmentRecord{
		DeviceID:          deviceID,
		EnrolledBy:        principal.Name,
		SourceAddress:     input.SourceAddress,
		CertificateSerial: helpers.SerialNumberToHexString(cert.SerialNumber),
		Method:            models.MethodReenroll,
		Status:            models.StatusEnrolled,
	}
	err = svc.ledger.Update(ctx, record)
	if errors.Is(err, errs.ErrRecordNotFound) {
		// Devices certified before the ledger existed can still renew.
		err = svc.ledger.Register(ctx, record)
	}
	if err != nil {
		lFunc.Errorf("could not update ledger for device '%s': %s", deviceID, err)
		return nil, err
	}

	lFunc.Infof("certificate renewed for device '%s' (serial %s)", deviceID, record.CertificateSerial)
	return cert, nil
}

// authorize runs the authentication gateway and derives the device identity
// from the CSR subject.
func (svc *estServiceBackend) authorize(ctx context.Context, lFunc *logrus.Entry, input EnrollInput) (models.AuthorizedPrincipal, string, error) {
	lFunc = lFunc.WithField("step", "Authenticating")
	lFunc.WithField("auth-status", "verifying").Debug("authenticating enrollment request")

	principal, err := svc.gateway.Authenticate(ctx, input.PeerCertificate, input.Username, input.Password)
	if err != nil {
		lFunc.WithField("auth-status", "failed").Error("authentication rejected")
		return principal, "", err
	}

	deviceID := input.CSR.Subject.CommonName
	if deviceID == "" {
		lFunc.Error("CSR subject has no Common Name")
		return principal, "", errs.ErrMissingCommonName
	}

	lFunc.WithField("auth-status", "verified").
		WithField("auth-method", principal.Method).
		Debugf("request authorized as '%s' for device '%s'", principal.Name, deviceID)
	return principal, deviceID, nil
}

func (svc *estServiceBackend) GetDevice(ctx context.Context, deviceID string) (*models.EnrollmentRecord, error) {
	return svc.ledger.Get(ctx, deviceID)
}

func (svc *estServiceBackend) ListDevices(ctx context.Context) ([]models.EnrollmentRecord, error) {
	return svc.ledger.List(ctx)
}

func (svc *estServiceBackend) DeleteDevice(ctx context.Context, deviceID string) error {
	return svc.ledger.Delete(ctx, deviceID)
}

func (svc *estServiceBackend) Stats(ctx context.Context) (*models.LedgerStats, error) {
	return svc.ledger.Stats(ctx)
}
