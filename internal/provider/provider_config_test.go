package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
)

const testServerURL = "https://casport.example.com/users"

func TestBuildConfigFromEnvironment(t *testing.T) {
	t.Setenv("CASPORT_SERVER_URL", testServerURL)
	t.Setenv("CASPORT_FORMAT", "XML")
	t.Setenv("CASPORT_CACHE_TTL", "600")
	t.Setenv("CASPORT_SNAKE_CASE_KEYS", "false")

	p := &CasportProvider{version: "test"}
	var diags diag.Diagnostics

	config := p.buildConfig(context.Background(), &CasportProviderModel{}, &diags)
	require.False(t, diags.HasError(), "unexpected diagnostics: %v", diags)

	assert.Equal(t, testServerURL, config.ServerURL)
	assert.Equal(t, casport.FormatXML, config.Format)
	assert.Equal(t, 10*time.Minute, config.Cache.TTL)
	assert.False(t, config.SnakeCaseKeys)
	assert.False(t, config.Cache.Enabled, "cache requires an address")
	assert.Equal(t, casport.DNOrderCountryFirst, config.DNOrder)
	assert.Equal(t, "dn", config.IdentifierField)
}

func TestBuildConfigAttributesOverrideEnvironment(t *testing.T) {
	t.Setenv("CASPORT_SERVER_URL", "https://ignored.example.com")
	t.Setenv("CASPORT_CACHE_ADDRESS", "redis.example.com")

	p := &CasportProvider{version: "test"}
	var diags diag.Diagnostics

	data := &CasportProviderModel{
		ServerURL:         types.StringValue(testServerURL),
		IdentifierField:   types.StringValue("uid"),
		NameFields:        types.ListValueMust(types.StringType, nil),
		CachePort:         types.Int64Value(6380),
		CacheDisabled:     types.BoolValue(true),
		EmptyRecordPolicy: types.StringValue(" NOT_FOUND "),
		DNOrder:           types.StringValue("country_last"),
		RequestTimeout:    types.Int64Value(5),
	}

	config := p.buildConfig(context.Background(), data, &diags)
	require.False(t, diags.HasError(), "unexpected diagnostics: %v", diags)

	assert.Equal(t, testServerURL, config.ServerURL)
	assert.Equal(t, "uid", config.IdentifierField)
	assert.Equal(t, []string{"full_name"}, config.NameFields, "empty name_fields keeps the default")
	assert.Equal(t, "redis.example.com", config.Cache.Address)
	assert.Equal(t, 6380, config.Cache.Port)
	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, casport.EmptyRecordNotFound, config.EmptyRecordPolicy)
	assert.Equal(t, casport.DNOrderCountryLast, config.DNOrder)
	assert.Equal(t, 5*time.Second, config.RequestTimeout)
}

func TestBuildConfigCacheEnabledByAddress(t *testing.T) {
	p := &CasportProvider{version: "test"}
	var diags diag.Diagnostics

	data := &CasportProviderModel{
		ServerURL:    types.StringValue(testServerURL),
		CacheAddress: types.StringValue("localhost"),
		NameFields:   types.ListValueMust(types.StringType, []attr.Value{types.StringValue("displayName")}),
	}

	config := p.buildConfig(context.Background(), data, &diags)
	require.False(t, diags.HasError(), "unexpected diagnostics: %v", diags)

	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, config.Cache.TTL)
	assert.Equal(t, 6379, config.Cache.Port)
	assert.Equal(t, []string{"displayName"}, config.NameFields)
}

func TestBuildConfigKerberosRealmFromUsername(t *testing.T) {
	p := &CasportProvider{version: "test"}
	var diags diag.Diagnostics

	data := &CasportProviderModel{
		ServerURL:        types.StringValue(testServerURL),
		KerberosUsername: types.StringValue("svc-casport@EXAMPLE.COM"),
	}

	config := p.buildConfig(context.Background(), data, &diags)
	require.False(t, diags.HasError(), "unexpected diagnostics: %v", diags)

	assert.Equal(t, "EXAMPLE.COM", config.Kerberos.Realm)
	assert.True(t, config.Kerberos.Enabled())
}

func TestBuildConfigErrors(t *testing.T) {
	t.Setenv("CASPORT_SERVER_URL", "")

	tests := []struct {
		name    string
		data    *CasportProviderModel
		summary string
		detail  string
	}{
		{
			name:    "missing server url",
			data:    &CasportProviderModel{},
			summary: "Missing CASPORT Server URL",
		},
		{
			name: "unsupported scheme",
			data: &CasportProviderModel{
				ServerURL: types.StringValue("ldap://casport.example.com"),
			},
			summary: "Invalid CASPORT Provider Configuration",
			detail:  "http or https",
		},
		{
			name: "unknown empty record policy",
			data: &CasportProviderModel{
				ServerURL:         types.StringValue(testServerURL),
				EmptyRecordPolicy: types.StringValue("ignore"),
			},
			summary: "Invalid CASPORT Provider Configuration",
			detail:  "EmptyRecordPolicy",
		},
		{
			name: "unknown dn order",
			data: &CasportProviderModel{
				ServerURL: types.StringValue(testServerURL),
				DNOrder:   types.StringValue("sideways"),
			},
			summary: "Invalid CASPORT Provider Configuration",
			detail:  "DNOrder",
		},
		{
			name: "unsupported tls version",
			data: &CasportProviderModel{
				ServerURL:  types.StringValue(testServerURL),
				TLSVersion: types.StringValue("0.9"),
			},
			summary: "Invalid CASPORT Provider Configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &CasportProvider{version: "test"}
			var diags diag.Diagnostics

			p.buildConfig(context.Background(), tt.data, &diags)

			require.True(t, diags.HasError())
			assert.Equal(t, tt.summary, diags.Errors()[0].Summary())
			if tt.detail != "" {
				assert.Contains(t, diags.Errors()[0].Detail(), tt.detail)
			}
		})
	}
}

func TestGetValueHelpers(t *testing.T) {
	p := &CasportProvider{}

	t.Setenv("CASPORT_TEST_STRING", "from-env")
	t.Setenv("CASPORT_TEST_BOOL", "not-a-bool")
	t.Setenv("CASPORT_TEST_INT", "42")

	assert.Equal(t, "from-env", p.getStringValue(types.StringNull(), "CASPORT_TEST_STRING"))
	assert.Equal(t, "from-env", p.getStringValue(types.StringValue(""), "CASPORT_TEST_STRING"))
	assert.Equal(t, "set", p.getStringValue(types.StringValue("set"), "CASPORT_TEST_STRING"))

	assert.True(t, p.getBoolValue(types.BoolNull(), "CASPORT_TEST_BOOL", true), "unparsable env falls back to the default")
	assert.False(t, p.getBoolValue(types.BoolValue(false), "CASPORT_TEST_BOOL", true))

	assert.Equal(t, int64(42), p.getInt64Value(types.Int64Null(), "CASPORT_TEST_INT", 7))
	assert.Equal(t, int64(7), p.getInt64Value(types.Int64Null(), "CASPORT_TEST_UNSET", 7))
	assert.Equal(t, int64(1), p.getInt64Value(types.Int64Value(1), "CASPORT_TEST_INT", 7))
}

func classified(category casport.ErrorCategory) error {
	return casport.NewResolutionError("resolve", category, "tdurden", string(category), nil)
}

func TestResolutionErrorDiagnostic(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		summary string
	}{
		{"missing identity", classified(casport.ErrorCategoryMissingIdentity), "Missing Identity"},
		{"user not found", fmt.Errorf("lookup: %w", classified(casport.ErrorCategoryUserNotFound)), "User Not Found"},
		{"upstream unavailable", classified(casport.ErrorCategoryUpstreamUnavailable), "Directory Unavailable"},
		{"invalid user data", classified(casport.ErrorCategoryInvalidUserData), "Invalid User Data"},
		{"canceled", context.Canceled, "Resolution Canceled"},
		{"unknown", errors.New("boom"), "Error Resolving Identity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, detail := resolutionErrorDiagnostic("tdurden", tt.err)
			assert.Equal(t, tt.summary, summary)
			assert.NotEmpty(t, detail)
		})
	}
}

func TestProviderDataFromConfigure(t *testing.T) {
	var diags diag.Diagnostics

	assert.Nil(t, providerDataFromConfigure(nil, &diags))
	assert.False(t, diags.HasError())

	assert.Nil(t, providerDataFromConfigure("wrong", &diags))
	require.True(t, diags.HasError())
	assert.Equal(t, "Unexpected Data Source Configure Type", diags.Errors()[0].Summary())

	data := &casport.ProviderData{}
	diags = nil
	assert.Same(t, data, providerDataFromConfigure(data, &diags))
	assert.False(t, diags.HasError())
}

func testResolution(identity, uid string) *casport.Resolution {
	return &casport.Resolution{
		Identity: identity,
		AuthHash: casport.AuthHash{UID: uid, Name: "Tyler Durden"},
		Source:   casport.SourceDirectory,
	}
}

func TestCollectBatchResults(t *testing.T) {
	results := []casport.BatchResult{
		{Input: "a", Resolution: testResolution("a", "a")},
		{Input: "b", Err: classified(casport.ErrorCategoryUserNotFound)},
		{Input: "c", Resolution: testResolution("c", "c")},
	}

	t.Run("ignore missing", func(t *testing.T) {
		var diags diag.Diagnostics
		resolutions, missing := collectBatchResults(results, true, &diags)

		assert.False(t, diags.HasError())
		require.Len(t, resolutions, 2)
		assert.Equal(t, "a", resolutions[0].Identity)
		assert.Equal(t, "c", resolutions[1].Identity)
		assert.Equal(t, []string{"b"}, missing)
	})

	t.Run("missing is an error", func(t *testing.T) {
		var diags diag.Diagnostics
		_, missing := collectBatchResults(results, false, &diags)

		require.True(t, diags.HasError())
		assert.Equal(t, "User Not Found", diags.Errors()[0].Summary())
		assert.Empty(t, missing)
	})

	t.Run("other errors are never ignored", func(t *testing.T) {
		var diags diag.Diagnostics
		collectBatchResults([]casport.BatchResult{
			{Input: "d", Err: classified(casport.ErrorCategoryUpstreamUnavailable)},
		}, true, &diags)

		require.True(t, diags.HasError())
		assert.Equal(t, "Directory Unavailable", diags.Errors()[0].Summary())
	})
}

func TestMapResolutionToModel(t *testing.T) {
	ctx := context.Background()
	resolution := testResolution("c=US,cn=Tyler Durden", "tdurden")
	resolution.AuthHash.Extra = map[string]any{"full_name": "Tyler Durden", "login_count": float64(3)}

	var data UserDataSourceModel
	var diags diag.Diagnostics
	mapResolutionToModel(ctx, resolution, &data, &diags)
	require.False(t, diags.HasError(), "unexpected diagnostics: %v", diags)

	assert.Equal(t, "c=US,cn=Tyler Durden", data.ID.ValueString())
	assert.Equal(t, "tdurden", data.UID.ValueString())
	assert.Equal(t, "Tyler Durden", data.Name.ValueString())
	assert.True(t, data.Email.IsNull())
	assert.True(t, data.SID.IsNull())
	assert.Equal(t, "directory", data.Source.ValueString())
	assert.False(t, data.Extra.IsNull())
}

func TestMapResolutionsToModel(t *testing.T) {
	ctx := context.Background()
	d := &UsersDataSource{}

	var data UsersDataSourceModel
	var diags diag.Diagnostics
	d.mapResolutionsToModel(ctx, []*casport.Resolution{
		testResolution("a", "a"),
		testResolution("b", "b"),
	}, []string{"c"}, &data, &diags)
	require.False(t, diags.HasError(), "unexpected diagnostics: %v", diags)

	assert.Equal(t, int64(2), data.UserCount.ValueInt64())
	assert.Len(t, data.Users.Elements(), 2)
	assert.Len(t, data.Missing.Elements(), 1)
	assert.Equal(t, "casport-users-2-1", data.ID.ValueString())
}
