package assemblers

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/veridia/estca/pkg/authn"
	"github.com/veridia/estca/pkg/config"
	"github.com/veridia/estca/pkg/helpers"
	"github.com/veridia/estca/pkg/ledger"
	"github.com/veridia/estca/pkg/models"
	"github.com/veridia/estca/pkg/routes"
	"github.com/veridia/estca/pkg/services"
	"github.com/veridia/estca/pkg/x509engine"
)

const (
	defaultCertValidityDays      = 365
	defaultBootstrapValidityDays = 30
)

// AssembleESTCAServiceWithHTTPServer wires the whole enrollment authority:
// CA material, signing engine, auth gateway, ledger, EST service and the
// HTTP layer on top. It returns the assembled service and the bound port.
func AssembleESTCAServiceWithHTTPServer(conf config.ESTCAConfig, serviceInfo models.APIServiceInfo) (services.ESTService, int, error) {
	svc, caCert, err := AssembleESTCAService(conf)
	if err != nil {
		return nil, -1, err
	}

	lHttp := helpers.SetupLogger(conf.Server.LogLevel, "EST CA", "HTTP Server")

	httpEngine := routes.NewGinEngine(lHttp)
	httpGrp := httpEngine.Group("/")
	routes.NewESTHttpRoutes(httpGrp, svc, conf.ResponseEncoding)
	routes.NewDevicesHttpRoutes(httpGrp, svc)

	port, err := routes.RunHttpRouter(lHttp, httpEngine, conf.Server, caCert, serviceInfo)
	if err != nil {
		return nil, -1, fmt.Errorf("could not run EST CA http server: %w", err)
	}

	return svc, port, nil
}

func AssembleESTCAService(conf config.ESTCAConfig) (services.ESTService, *x509.Certificate, error) {
	lSvc := helpers.SetupLogger(conf.Logs.Level, "EST CA", "Service")
	lAuth := helpers.SetupLogger(conf.Auth.LogLevel, "EST CA", "Auth Gateway")
	lLedger := helpers.SetupLogger(conf.Storage.LogLevel, "EST CA", "Ledger")

	caCert, err := helpers.ReadCertificateFromFile(conf.CA.CertFile)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load CA certificate: %w", err)
	}

	caKey, err := helpers.ReadPrivateKeyFromFileWithPassword(conf.CA.KeyFile, string(conf.CA.KeyPassword))
	if err != nil {
		return nil, nil, fmt.Errorf("could not load CA private key: %w", err)
	}

	engine, err := x509engine.NewX509Engine(lSvc, caCert, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("could not initialize signing engine: %w", err)
	}

	verifiers, err := authn.NewVerifierDB(lAuth, conf.Auth.VerifierFile)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load verifier database: %w", err)
	}

	gateway := authn.NewGateway(lAuth, caCert, verifiers, conf.Auth.AllowExpiredCert)

	enrollmentLedger, err := ledger.NewLedger(lLedger, conf.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open enrollment ledger: %w", err)
	}

	certValidityDays := conf.CA.CertValidityDays
	if certValidityDays <= 0 {
		certValidityDays = defaultCertValidityDays
	}

	bootstrapValidityDays := conf.CA.BootstrapValidityDays
	if bootstrapValidityDays <= 0 {
		bootstrapValidityDays = defaultBootstrapValidityDays
	}

	enrollEKUs := []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	if conf.CA.IncludeServerAuthEKU {
		enrollEKUs = append(enrollEKUs, x509.ExtKeyUsageServerAuth)
	}

	svc := services.NewESTService(services.ESTServiceBuilder{
		Logger:  lSvc,
		Gateway: gateway,
		Engine:  engine,
		Ledger:  enrollmentLedger,
		EnrollProfile: x509engine.IssuanceProfile{
			Validity:    time.Duration(certValidityDays) * 24 * time.Hour,
			KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			ExtKeyUsage: enrollEKUs,
		},
		BootstrapProfile: x509engine.IssuanceProfile{
			Validity:    time.Duration(bootstrapValidityDays) * 24 * time.Hour,
			KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		},
	})

	return svc, caCert, nil
}
