package casport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	krb5client "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// spnegoAuthenticator adds a Kerberos SPNEGO Authorization header to directory requests.
type spnegoAuthenticator struct {
	client *krb5client.Client
	spn    string
}

// newSPNEGOAuthenticator logs in to the KDC.
// Priority order: credential cache → keytab → password.
func newSPNEGOAuthenticator(ctx context.Context, cfg KerberosConfig) (*spnegoAuthenticator, error) {
	cfg = prepareKerberosConfig(cfg)

	if cfg.Realm == "" {
		return nil, errors.New("kerberos realm is required (set kerberos_realm or include realm in username)")
	}

	if !fileExists(cfg.Config) {
		return nil, fmt.Errorf("Kerberos configuration file not found at %s. "+
			"Either create %s or specify a custom path using 'kerberos_config'", cfg.Config, cfg.Config)
	}

	krbConf, err := krb5config.Load(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load Kerberos configuration %s: %w", cfg.Config, err)
	}

	cl, source, err := createKerberosClient(cfg, krbConf)
	if err != nil {
		LogKerberosEvent(ctx, "ticket_acquisition_failed", map[string]any{"realm": cfg.Realm, "error": err.Error()})
		return nil, err
	}

	LogKerberosEvent(ctx, "ticket_acquired", map[string]any{
		"realm":  cfg.Realm,
		"source": source,
	})

	return &spnegoAuthenticator{client: cl, spn: cfg.SPN}, nil
}

func createKerberosClient(cfg KerberosConfig, krbConf *krb5config.Config) (*krb5client.Client, string, error) {
	// Priority 1: Explicit or default credential cache
	ccachePath := cfg.CCache
	if ccachePath == "" {
		ccachePath = getDefaultCCachePath()
	}
	if fileExists(ccachePath) {
		ccache, err := credentials.LoadCCache(ccachePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load credential cache %s: %w", ccachePath, err)
		}
		cl, err := krb5client.NewFromCCache(ccache, krbConf, krb5client.DisablePAFXFAST(true))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Kerberos client from credential cache: %w", err)
		}
		return cl, "ccache", nil
	}

	if cfg.Username == "" {
		return nil, "", errors.New("username (principal) is required for keytab or password Kerberos authentication")
	}

	var cl *krb5client.Client
	var source string

	// Priority 2: Keytab
	switch {
	case fileExists(cfg.Keytab):
		kt, err := keytab.Load(cfg.Keytab)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load keytab %s: %w", cfg.Keytab, err)
		}
		cl = krb5client.NewWithKeytab(cfg.Username, cfg.Realm, kt, krbConf, krb5client.DisablePAFXFAST(true))
		source = "keytab"
	// Priority 3: Password
	case cfg.Password != "":
		cl = krb5client.NewWithPassword(cfg.Username, cfg.Realm, cfg.Password, krbConf, krb5client.DisablePAFXFAST(true))
		source = "password"
	default:
		return nil, "", errors.New("no suitable Kerberos credentials found: provide kerberos_ccache, kerberos_keytab, or kerberos_password")
	}

	if err := cl.Login(); err != nil {
		return nil, "", fmt.Errorf("kerberos login failed: %w", err)
	}

	return cl, source, nil
}

// prepareKerberosConfig fills defaults and splits user@REALM principals.
func prepareKerberosConfig(cfg KerberosConfig) KerberosConfig {
	if cfg.Config == "" {
		cfg.Config = defaultKrb5Conf
	}

	if user, realm, found := strings.Cut(cfg.Username, "@"); found {
		cfg.Username = user
		if cfg.Realm == "" {
			cfg.Realm = realm
		}
	}

	return cfg
}

// servicePrincipal returns the configured SPN or HTTP/{host}.
func (a *spnegoAuthenticator) servicePrincipal(req *http.Request) string {
	if a.spn != "" {
		return a.spn
	}
	return "HTTP/" + req.URL.Hostname()
}

func (a *spnegoAuthenticator) authorize(req *http.Request) error {
	if err := spnego.SetSPNEGOHeader(a.client, req, a.servicePrincipal(req)); err != nil {
		return fmt.Errorf("failed to set SPNEGO header: %w", err)
	}
	return nil
}

func (a *spnegoAuthenticator) close() {
	a.client.Destroy()
}

// getDefaultCCachePath returns the default credential cache location.
func getDefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
