package casport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// EmptyRecordPolicy decides how an empty directory record is classified.
type EmptyRecordPolicy string

const (
	// EmptyRecordInvalid reports an empty record as InvalidUserData.
	EmptyRecordInvalid EmptyRecordPolicy = "invalid"
	// EmptyRecordNotFound reports an empty record as UserNotFound.
	EmptyRecordNotFound EmptyRecordPolicy = "not_found"
)

// Config holds configuration for the identity resolution pipeline.
type Config struct {
	// Directory settings
	ServerURL             string        // Directory base URL, e.g. https://casport.example.com/users
	LookupPath            string        // Path appended to ServerURL before the identity
	Format                Format        `default:"json"`
	FormatHeader          string        // Overrides the Accept/Content-Type media type
	AppendFormatExtension bool          `default:"true"` // Request {identity}.{format}
	IssuerDN              string        // Optional issuerDn filter sent with every lookup
	RequestTimeout        time.Duration `default:"30s"`
	MaxResponseBytes      int64         `default:"1048576"`
	RequestsPerSecond     float64       // Client-side rate limit, 0 disables
	MaxIdleConns          int           `default:"10"`
	IdleConnTimeout       time.Duration `default:"90s"`
	UserAgent             string        `default:"terraform-provider-casport"`

	// Identity and record settings
	DNOrder           DNOrder           `default:"country_first"`
	IdentifierField   string            `default:"dn"`
	NameFields        []string          `default:"[\"full_name\"]"`
	FirstNameField    string            `default:"first_name"`
	LastNameField     string            `default:"last_name"`
	EmailField        string            `default:"email"`
	SIDField          string            `default:"object_sid"`
	RecordRoot        string            `default:"userinfo"`
	SnakeCaseKeys     bool              `default:"true"`
	EmptyRecordPolicy EmptyRecordPolicy `default:"invalid"`
	BatchConcurrency  int               `default:"4"`

	TLS      TLSConfig
	Kerberos KerberosConfig
	Cache    CacheConfig
}

// TLSConfig holds mutual TLS settings for the directory connection.
type TLSConfig struct {
	CACertFile          string // Path to CA bundle
	CACert              string // Inline CA bundle (PEM)
	ClientCertFile      string // Path to client certificate (may also hold the key)
	ClientKeyFile       string // Path to client private key
	ClientKeyPassphrase string // Passphrase for an encrypted private key
	MinVersion          string `default:"1.2"`
	VerifyDepth         int    `default:"9"` // Maximum intermediate certificates
	SkipVerify          bool
	ServerName          string
}

// KerberosConfig holds SPNEGO settings. Kerberos is used when Realm is set.
type KerberosConfig struct {
	Realm    string
	Username string
	Password string
	Keytab   string
	Config   string // Path to krb5.conf
	CCache   string // Path to credential cache
	SPN      string // Service principal, defaults to HTTP/{host}
}

// Enabled reports whether SPNEGO authentication is configured.
func (k KerberosConfig) Enabled() bool {
	return k.Realm != ""
}

// CacheConfig holds identity cache settings.
type CacheConfig struct {
	Enabled       bool
	Address       string        // Host name, host:port or redis:// URL
	Port          int           `default:"6379"`
	Password      string
	DB            int
	KeyPrefix     string
	TTL           time.Duration `default:"24h"`
	DialTimeout   time.Duration `default:"2s"`
	ReadTimeout   time.Duration `default:"1s"`
	WriteTimeout  time.Duration `default:"1s"`
	RetryInterval time.Duration `default:"30s"` // Time spent in degraded mode before re-probing
	PoolSize      int           `default:"10"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	config := &Config{}
	if err := defaults.Set(config); err != nil {
		// Only reachable with malformed struct tags.
		panic(fmt.Sprintf("casport: invalid config defaults: %v", err))
	}
	return config
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("ServerURL is required")
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid ServerURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("ServerURL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("ServerURL must include a host")
	}

	if strings.TrimSpace(c.IdentifierField) == "" {
		return errors.New("IdentifierField must not be empty")
	}

	if c.RequestTimeout <= 0 {
		return errors.New("RequestTimeout must be positive")
	}

	if c.MaxResponseBytes <= 0 {
		return errors.New("MaxResponseBytes must be positive")
	}

	if c.RequestsPerSecond < 0 {
		return errors.New("RequestsPerSecond must not be negative")
	}

	switch c.EmptyRecordPolicy {
	case EmptyRecordInvalid, EmptyRecordNotFound:
	default:
		return fmt.Errorf("EmptyRecordPolicy must be %q or %q", EmptyRecordInvalid, EmptyRecordNotFound)
	}

	switch c.DNOrder {
	case DNOrderCountryFirst, DNOrderCountryLast:
	default:
		return fmt.Errorf("DNOrder must be %q or %q", DNOrderCountryFirst, DNOrderCountryLast)
	}

	if _, err := parseTLSVersion(c.TLS.MinVersion); err != nil {
		return err
	}

	if c.TLS.VerifyDepth < 0 {
		return errors.New("TLS VerifyDepth must not be negative")
	}

	if c.TLS.CACertFile != "" && c.TLS.CACert != "" {
		return errors.New("only one of TLS CACertFile and CACert may be set")
	}

	if c.TLS.ClientKeyFile != "" && c.TLS.ClientCertFile == "" {
		return errors.New("TLS ClientKeyFile requires ClientCertFile")
	}

	if c.Cache.Enabled {
		if c.Cache.Address == "" {
			return errors.New("cache Address is required when the cache is enabled")
		}
		if c.Cache.Port <= 0 || c.Cache.Port > 65535 {
			return fmt.Errorf("cache Port must be between 1 and 65535, got %d", c.Cache.Port)
		}
		if c.Cache.TTL <= 0 {
			return errors.New("cache TTL must be positive")
		}
	}

	return nil
}
