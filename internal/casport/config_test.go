package casport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, FormatJSON, config.Format)
	assert.True(t, config.AppendFormatExtension)
	assert.Equal(t, "dn", config.IdentifierField)
	assert.Equal(t, []string{"full_name"}, config.NameFields)
	assert.Equal(t, "email", config.EmailField)
	assert.Equal(t, "userinfo", config.RecordRoot)
	assert.True(t, config.SnakeCaseKeys)
	assert.Equal(t, EmptyRecordInvalid, config.EmptyRecordPolicy)
	assert.Equal(t, DNOrderCountryFirst, config.DNOrder)
	assert.Equal(t, 30*time.Second, config.RequestTimeout)
	assert.Equal(t, int64(1<<20), config.MaxResponseBytes)

	assert.Equal(t, "1.2", config.TLS.MinVersion)
	assert.Equal(t, 9, config.TLS.VerifyDepth)
	assert.False(t, config.TLS.SkipVerify)

	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, 6379, config.Cache.Port)
	assert.Equal(t, 24*time.Hour, config.Cache.TTL)
	assert.Equal(t, 2*time.Second, config.Cache.DialTimeout)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:    "missing server url",
			modify:  func(c *Config) { c.ServerURL = "" },
			wantErr: "ServerURL is required",
		},
		{
			name:    "unsupported scheme",
			modify:  func(c *Config) { c.ServerURL = "ldap://casport.example.com" },
			wantErr: "http or https",
		},
		{
			name:    "missing host",
			modify:  func(c *Config) { c.ServerURL = "https://" },
			wantErr: "host",
		},
		{
			name:    "empty identifier field",
			modify:  func(c *Config) { c.IdentifierField = " " },
			wantErr: "IdentifierField",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.RequestTimeout = 0 },
			wantErr: "RequestTimeout",
		},
		{
			name:    "unknown empty record policy",
			modify:  func(c *Config) { c.EmptyRecordPolicy = "ignore" },
			wantErr: "EmptyRecordPolicy",
		},
		{
			name:    "unknown dn order",
			modify:  func(c *Config) { c.DNOrder = "random" },
			wantErr: "DNOrder",
		},
		{
			name:    "bad tls version",
			modify:  func(c *Config) { c.TLS.MinVersion = "0.9" },
			wantErr: "unsupported TLS version",
		},
		{
			name: "conflicting ca settings",
			modify: func(c *Config) {
				c.TLS.CACertFile = "/tmp/ca.pem"
				c.TLS.CACert = "-----BEGIN CERTIFICATE-----"
			},
			wantErr: "only one of",
		},
		{
			name:    "key without certificate",
			modify:  func(c *Config) { c.TLS.ClientKeyFile = "/tmp/key.pem" },
			wantErr: "requires ClientCertFile",
		},
		{
			name:    "cache enabled without address",
			modify:  func(c *Config) { c.Cache.Enabled = true },
			wantErr: "cache Address",
		},
		{
			name: "cache port out of range",
			modify: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.Address = "localhost"
				c.Cache.Port = 70000
			},
			wantErr: "cache Port",
		},
		{
			name:    "negative rate",
			modify:  func(c *Config) { c.RequestsPerSecond = -1 },
			wantErr: "RequestsPerSecond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.ServerURL = "https://casport.example.com/users"
			tt.modify(config)

			err := config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseTLSVersion(t *testing.T) {
	for _, input := range []string{"", "1.2", "TLS1.2", "tlsv1.2", " 1.2 "} {
		v, err := parseTLSVersion(input)
		require.NoError(t, err, input)
		assert.Equal(t, uint16(0x0303), v, input)
	}

	v, err := parseTLSVersion("1.3")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0304), v)

	_, err = parseTLSVersion("2.0")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat(""))
	assert.Equal(t, FormatXML, ParseFormat(" XML "))
	assert.Equal(t, Format("yaml"), ParseFormat("yaml"))

	assert.Equal(t, "application/json", FormatJSON.MediaType(""))
	assert.Equal(t, "application/xml", FormatXML.MediaType(""))
	assert.Equal(t, DefaultRawMediaType, Format("csv").MediaType(""))
	assert.Equal(t, "application/vnd.casport+json", FormatJSON.MediaType("application/vnd.casport+json"))

	assert.True(t, FormatJSON.Structured())
	assert.False(t, Format("csv").Structured())
}
