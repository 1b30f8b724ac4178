package config

// ESTCAConfig is the top level configuration for the EST enrollment
// authority process.
type ESTCAConfig struct {
	Logs    Logging    `mapstructure:"logs"`
	Server  HttpServer `mapstructure:"server"`
	CA      CAConfig   `mapstructure:"ca"`
	Auth    AuthConfig `mapstructure:"auth"`
	Storage Storage    `mapstructure:"storage"`

	// ResponseEncoding selects the wire framing of every PKCS#7 response:
	// base64 with a Content-Transfer-Encoding header, or raw DER. It is a
	// server wide deployment setting, not negotiated per request.
	ResponseEncoding ResponseEncoding `mapstructure:"response_encoding"`
}

type ResponseEncoding string

const (
	EncodingBase64 ResponseEncoding = "base64"
	EncodingDER    ResponseEncoding = "der"
)

type HTTPProtocol string

const (
	HTTPS HTTPProtocol = "https"
	HTTP  HTTPProtocol = "http"
)

type HttpServer struct {
	LogLevel           LogLevel     `mapstructure:"log_level"`
	HealthCheckLogging bool         `mapstructure:"health_check"`
	ListenAddress      string       `mapstructure:"listen_address"`
	Port               int          `mapstructure:"port"`
	Protocol           HTTPProtocol `mapstructure:"protocol"`
	CertFile           string       `mapstructure:"cert_file"`
	KeyFile            string       `mapstructure:"key_file"`
}

type CAConfig struct {
	CertFile    string   `mapstructure:"cert_file" validate:"required"`
	KeyFile     string   `mapstructure:"key_file" validate:"required"`
	KeyPassword Password `mapstructure:"key_password"`

	// Validity of certificates issued through simpleenroll/simplereenroll.
	CertValidityDays int `mapstructure:"cert_validity_days"`
	// Validity of short lived bootstrap certificates.
	BootstrapValidityDays int `mapstructure:"bootstrap_validity_days"`

	// IncludeServerAuthEKU adds the serverAuth extended key usage to
	// enrollment certificates in addition to clientAuth.
	IncludeServerAuthEKU bool `mapstructure:"include_server_auth_eku"`
}

type AuthConfig struct {
	LogLevel LogLevel `mapstructure:"log_level"`

	// VerifierFile holds bootstrap credentials, one "user:salt:verifier"
	// line per user.
	VerifierFile string `mapstructure:"verifier_file" validate:"required"`

	// AllowExpiredCert permits re-enrollment with an expired client
	// certificate. Disabled unless a deployment explicitly needs it.
	AllowExpiredCert bool `mapstructure:"allow_expired_cert"`
}

type Storage struct {
	LogLevel LogLevel `mapstructure:"log_level"`

	// DatabasePath is the sqlite file backing the enrollment ledger.
	DatabasePath string `mapstructure:"database_path" validate:"required"`
	InMemory     bool   `mapstructure:"in_memory"`
}
