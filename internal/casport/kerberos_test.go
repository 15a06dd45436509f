package casport

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareKerberosConfig(t *testing.T) {
	tests := []struct {
		name string
		in   KerberosConfig
		want KerberosConfig
	}{
		{
			name: "defaults krb5.conf",
			in:   KerberosConfig{Realm: "EXAMPLE.COM", Username: "svc"},
			want: KerberosConfig{Realm: "EXAMPLE.COM", Username: "svc", Config: defaultKrb5Conf},
		},
		{
			name: "realm from principal",
			in:   KerberosConfig{Username: "svc@EXAMPLE.COM", Config: "/etc/custom.conf"},
			want: KerberosConfig{Realm: "EXAMPLE.COM", Username: "svc", Config: "/etc/custom.conf"},
		},
		{
			name: "explicit realm wins",
			in:   KerberosConfig{Realm: "CORP.EXAMPLE.COM", Username: "svc@EXAMPLE.COM"},
			want: KerberosConfig{Realm: "CORP.EXAMPLE.COM", Username: "svc", Config: defaultKrb5Conf},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prepareKerberosConfig(tt.in))
		})
	}
}

func TestNewSPNEGOAuthenticatorErrors(t *testing.T) {
	_, err := newSPNEGOAuthenticator(context.Background(), KerberosConfig{Username: "svc"})
	assert.ErrorContains(t, err, "realm is required")

	_, err = newSPNEGOAuthenticator(context.Background(), KerberosConfig{
		Realm:  "EXAMPLE.COM",
		Config: "/nonexistent/krb5.conf",
	})
	assert.ErrorContains(t, err, "configuration file not found")
}

func TestCreateKerberosClientRequiresCredentials(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/nonexistent/ccache")

	_, _, err := createKerberosClient(KerberosConfig{Realm: "EXAMPLE.COM"}, nil)
	assert.ErrorContains(t, err, "username")

	_, _, err = createKerberosClient(KerberosConfig{Realm: "EXAMPLE.COM", Username: "svc"}, nil)
	assert.ErrorContains(t, err, "no suitable Kerberos credentials")
}

func TestServicePrincipal(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://casport.example.com:8443/users/d1.json", nil)
	require.NoError(t, err)

	assert.Equal(t, "HTTP/casport.example.com", (&spnegoAuthenticator{}).servicePrincipal(req))
	assert.Equal(t, "HTTP/lb.example.com", (&spnegoAuthenticator{spn: "HTTP/lb.example.com"}).servicePrincipal(req))
}

func TestDefaultCCachePath(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/tmp/krb5cc_test")
	assert.Equal(t, "/tmp/krb5cc_test", getDefaultCCachePath())

	t.Setenv("KRB5CCNAME", "")
	assert.Contains(t, getDefaultCCachePath(), "/tmp/krb5cc_")
}
