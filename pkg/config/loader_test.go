package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	content := `
logs:
  level: debug
server:
  listen_address: 0.0.0.0
  port: 8443
  protocol: https
  cert_file: /tmp/server.crt
  key_file: /tmp/server.key
ca:
  cert_file: /tmp/ca.crt
  key_file: /tmp/ca.key
  cert_validity_days: 180
auth:
  verifier_file: /tmp/users.txt
storage:
  database_path: /tmp/ledger.db
response_encoding: base64
`
	configPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	t.Setenv("ESTCA_CONFIG_FILE", configPath)

	conf, err := LoadConfig[ESTCAConfig](nil)
	require.NoError(t, err)

	assert.Equal(t, Debug, conf.Logs.Level)
	assert.Equal(t, 8443, conf.Server.Port)
	assert.Equal(t, HTTPS, conf.Server.Protocol)
	assert.Equal(t, "/tmp/ca.crt", conf.CA.CertFile)
	assert.Equal(t, 180, conf.CA.CertValidityDays)
	assert.Equal(t, "/tmp/users.txt", conf.Auth.VerifierFile)
	assert.Equal(t, "/tmp/ledger.db", conf.Storage.DatabasePath)
	assert.Equal(t, EncodingBase64, conf.ResponseEncoding)

	require.NoError(t, ValidateConfig(conf))
}

func TestValidateConfigMissingRequired(t *testing.T) {
	conf := &ESTCAConfig{}
	assert.Error(t, ValidateConfig(conf))
}

func TestPasswordMarshalMasked(t *testing.T) {
	type wrapper struct {
		Secret Password `yaml:"secret"`
	}

	out, err := yaml.Marshal(wrapper{Secret: Password("hunter2")})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
}

func TestPasswordUnmarshalKeepsValue(t *testing.T) {
	var p Password
	require.NoError(t, p.UnmarshalText([]byte("hunter2")))
	assert.Equal(t, Password("hunter2"), p)
}
