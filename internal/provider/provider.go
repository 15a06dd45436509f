package provider

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
	"github.com/stevenhaddox/terraform-provider-casport/internal/provider/validators"
)

// Ensure CasportProvider satisfies various provider interfaces.
var _ provider.Provider = &CasportProvider{}
var _ provider.ProviderWithFunctions = &CasportProvider{}
var _ provider.ProviderWithConfigValidators = &CasportProvider{}

// CasportProvider defines the provider implementation.
type CasportProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string
}

// CasportProviderModel describes the provider data model.
type CasportProviderModel struct {
	// Directory settings
	ServerURL             types.String `tfsdk:"server_url"`
	LookupPath            types.String `tfsdk:"lookup_path"`
	Format                types.String `tfsdk:"format"`
	FormatHeader          types.String `tfsdk:"format_header"`
	AppendFormatExtension types.Bool   `tfsdk:"append_format_extension"`
	IssuerDN              types.String `tfsdk:"issuer_dn"`
	RequestTimeout        types.Int64  `tfsdk:"request_timeout"`
	RequestsPerSecond     types.Int64  `tfsdk:"requests_per_second"`

	// Record settings
	IdentifierField   types.String `tfsdk:"identifier_field"`
	NameFields        types.List   `tfsdk:"name_fields"`
	EmailField        types.String `tfsdk:"email_field"`
	RecordRoot        types.String `tfsdk:"record_root"`
	SnakeCaseKeys     types.Bool   `tfsdk:"snake_case_keys"`
	EmptyRecordPolicy types.String `tfsdk:"empty_record_policy"`
	DNOrder           types.String `tfsdk:"dn_order"`

	// Cache settings
	CacheAddress   types.String `tfsdk:"cache_address"`
	CachePort      types.Int64  `tfsdk:"cache_port"`
	CachePassword  types.String `tfsdk:"cache_password"`
	CacheDB        types.Int64  `tfsdk:"cache_db"`
	CacheDisabled  types.Bool   `tfsdk:"cache_disabled"`
	CacheTTL       types.Int64  `tfsdk:"cache_ttl"`
	CacheKeyPrefix types.String `tfsdk:"cache_key_prefix"`

	// TLS settings
	TLSCACertFile          types.String `tfsdk:"tls_ca_cert_file"`
	TLSCACert              types.String `tfsdk:"tls_ca_cert"`
	TLSClientCertFile      types.String `tfsdk:"tls_client_cert_file"`
	TLSClientKeyFile       types.String `tfsdk:"tls_client_key_file"`
	TLSClientKeyPassphrase types.String `tfsdk:"tls_client_key_passphrase"`
	TLSVersion             types.String `tfsdk:"tls_version"`
	TLSVerifyDepth         types.Int64  `tfsdk:"tls_verify_depth"`
	SkipTLSVerify          types.Bool   `tfsdk:"skip_tls_verify"`

	// Kerberos settings (optional)
	KerberosRealm    types.String `tfsdk:"kerberos_realm"`
	KerberosUsername types.String `tfsdk:"kerberos_username"`
	KerberosPassword types.String `tfsdk:"kerberos_password"`
	KerberosKeytab   types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig   types.String `tfsdk:"kerberos_config"`
	KerberosCCache   types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN      types.String `tfsdk:"kerberos_spn"`
}

func (p *CasportProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "casport"
	resp.Version = p.version
}

func (p *CasportProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The CASPORT provider resolves certificate-derived identities (Distinguished Names) " +
			"and opaque user ids into user profiles by querying a CASPORT directory service over mutual TLS. " +
			"Lookups are cached in Redis for 24 hours by default.",
		Attributes: map[string]schema.Attribute{
			// Directory settings
			"server_url": schema.StringAttribute{
				MarkdownDescription: "Base URL of the CASPORT directory (e.g., `https://casport.example.com/users`). " +
					"Required. Can be set via the `CASPORT_SERVER_URL` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"lookup_path": schema.StringAttribute{
				MarkdownDescription: "Path appended to `server_url` before the identity. " +
					"Can be set via the `CASPORT_LOOKUP_PATH` environment variable.",
				Optional: true,
			},
			"format": schema.StringAttribute{
				MarkdownDescription: "Response format requested from the directory. `json` and `xml` are parsed; " +
					"any other value is returned as `raw_body`. Defaults to `json`. " +
					"Can be set via the `CASPORT_FORMAT` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"format_header": schema.StringAttribute{
				MarkdownDescription: "Media type sent as `Accept` and `Content-Type`, overriding the format default. " +
					"Can be set via the `CASPORT_FORMAT_HEADER` environment variable.",
				Optional: true,
			},
			"append_format_extension": schema.BoolAttribute{
				MarkdownDescription: "Request `{identity}.{format}` rather than `{identity}`. Defaults to `true`. " +
					"Can be set via the `CASPORT_APPEND_FORMAT_EXTENSION` environment variable.",
				Optional: true,
			},
			"issuer_dn": schema.StringAttribute{
				MarkdownDescription: "Issuer DN sent as the `issuerDn` query parameter on every lookup. " +
					"Can be set via the `CASPORT_ISSUER_DN` environment variable.",
				Optional: true,
			},
			"request_timeout": schema.Int64Attribute{
				MarkdownDescription: "Directory request timeout in seconds. Defaults to `30`. " +
					"Can be set via the `CASPORT_REQUEST_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"requests_per_second": schema.Int64Attribute{
				MarkdownDescription: "Client-side limit on directory requests per second. `0` disables limiting. " +
					"Can be set via the `CASPORT_REQUESTS_PER_SECOND` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(0),
				},
			},

			// Record settings
			"identifier_field": schema.StringAttribute{
				MarkdownDescription: "Record field holding the user's unique identifier. Defaults to `dn`. " +
					"Can be set via the `CASPORT_IDENTIFIER_FIELD` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"name_fields": schema.ListAttribute{
				MarkdownDescription: "Record fields tried in order for the display name. Defaults to `[\"full_name\"]`, " +
					"falling back to `first_name` and `last_name`.",
				ElementType: types.StringType,
				Optional:    true,
			},
			"email_field": schema.StringAttribute{
				MarkdownDescription: "Record field holding the email address. Defaults to `email`. " +
					"Can be set via the `CASPORT_EMAIL_FIELD` environment variable.",
				Optional: true,
			},
			"record_root": schema.StringAttribute{
				MarkdownDescription: "Envelope element unwrapped from directory responses. Defaults to `userinfo`. " +
					"Can be set via the `CASPORT_RECORD_ROOT` environment variable.",
				Optional: true,
			},
			"snake_case_keys": schema.BoolAttribute{
				MarkdownDescription: "Convert camelCase record keys to snake_case. Defaults to `true`. " +
					"Can be set via the `CASPORT_SNAKE_CASE_KEYS` environment variable.",
				Optional: true,
			},
			"empty_record_policy": schema.StringAttribute{
				MarkdownDescription: "How an empty directory record is reported: `invalid` (default) or `not_found`. " +
					"Can be set via the `CASPORT_EMPTY_RECORD_POLICY` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(string(casport.EmptyRecordInvalid), string(casport.EmptyRecordNotFound)),
				},
			},
			"dn_order": schema.StringAttribute{
				MarkdownDescription: "Component order of normalized DNs: `country_first` (default) or `country_last`. " +
					"Can be set via the `CASPORT_DN_ORDER` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(string(casport.DNOrderCountryFirst), string(casport.DNOrderCountryLast)),
				},
			},

			// Cache settings
			"cache_address": schema.StringAttribute{
				MarkdownDescription: "Redis host, `host:port` or `redis://` URL. Caching is disabled when unset. " +
					"Can be set via the `CASPORT_CACHE_ADDRESS` environment variable.",
				Optional: true,
			},
			"cache_port": schema.Int64Attribute{
				MarkdownDescription: "Redis port used when `cache_address` has none. Defaults to `6379`. " +
					"Can be set via the `CASPORT_CACHE_PORT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(1, 65535),
				},
			},
			"cache_password": schema.StringAttribute{
				MarkdownDescription: "Redis password. Can be set via the `CASPORT_CACHE_PASSWORD` environment variable.",
				Optional:            true,
				Sensitive:           true,
			},
			"cache_db": schema.Int64Attribute{
				MarkdownDescription: "Redis database number. Defaults to `0`. " +
					"Can be set via the `CASPORT_CACHE_DB` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(0),
				},
			},
			"cache_disabled": schema.BoolAttribute{
				MarkdownDescription: "Disable the identity cache even when `cache_address` is set. " +
					"Can be set via the `CASPORT_CACHE_DISABLED` environment variable.",
				Optional: true,
			},
			"cache_ttl": schema.Int64Attribute{
				MarkdownDescription: "Lifetime of cached identities in seconds. Defaults to `86400` (24 hours). " +
					"Can be set via the `CASPORT_CACHE_TTL` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"cache_key_prefix": schema.StringAttribute{
				MarkdownDescription: "Prefix for Redis keys. " +
					"Can be set via the `CASPORT_CACHE_KEY_PREFIX` environment variable.",
				Optional: true,
			},

			// TLS settings
			"tls_ca_cert_file": schema.StringAttribute{
				MarkdownDescription: "Path to the CA bundle used to verify the directory. " +
					"Can be set via the `CASPORT_TLS_CA_CERT_FILE` environment variable.",
				Optional: true,
			},
			"tls_ca_cert": schema.StringAttribute{
				MarkdownDescription: "PEM CA bundle used to verify the directory. " +
					"Can be set via the `CASPORT_TLS_CA_CERT` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"tls_client_cert_file": schema.StringAttribute{
				MarkdownDescription: "Path to the client certificate presented to the directory. The file may also hold the key. " +
					"Can be set via the `CASPORT_TLS_CLIENT_CERT_FILE` environment variable.",
				Optional: true,
			},
			"tls_client_key_file": schema.StringAttribute{
				MarkdownDescription: "Path to the client private key. " +
					"Can be set via the `CASPORT_TLS_CLIENT_KEY_FILE` environment variable.",
				Optional:  true,
				Sensitive: true,
				Validators: []validator.String{
					stringvalidator.AlsoRequires(path.MatchRoot("tls_client_cert_file")),
				},
			},
			"tls_client_key_passphrase": schema.StringAttribute{
				MarkdownDescription: "Passphrase for an encrypted client private key (traditional PEM or PKCS#8 `ENCRYPTED PRIVATE KEY`). " +
					"Can be set via the `CASPORT_TLS_CLIENT_KEY_PASSPHRASE` environment variable.",
				Optional:  true,
				Sensitive: true,
				Validators: []validator.String{
					stringvalidator.AlsoRequires(path.MatchRoot("tls_client_cert_file")),
				},
			},
			"tls_version": schema.StringAttribute{
				MarkdownDescription: "Minimum TLS version: `1.0`, `1.1`, `1.2` (default) or `1.3`. " +
					"Can be set via the `CASPORT_TLS_VERSION` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf("1.0", "1.1", "1.2", "1.3"),
				},
			},
			"tls_verify_depth": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of intermediate certificates in the directory's chain. Defaults to `9`. " +
					"Can be set via the `CASPORT_TLS_VERIFY_DEPTH` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(0),
				},
			},
			"skip_tls_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip TLS certificate verification. Not recommended for production. Defaults to `false`. " +
					"Can be set via the `CASPORT_SKIP_TLS_VERIFY` environment variable.",
				Optional: true,
			},

			// Kerberos settings
			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for SPNEGO authentication (e.g., `EXAMPLE.COM`). " +
					"Can be set via the `CASPORT_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_username": schema.StringAttribute{
				MarkdownDescription: "Kerberos principal, optionally as `user@REALM`. " +
					"Can be set via the `CASPORT_KERBEROS_USERNAME` environment variable.",
				Optional: true,
			},
			"kerberos_password": schema.StringAttribute{
				MarkdownDescription: "Kerberos password. " +
					"Can be set via the `CASPORT_KERBEROS_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos keytab file for authentication. " +
					"Can be set via the `CASPORT_KERBEROS_KEYTAB` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos configuration file. Defaults to `/etc/krb5.conf`. " +
					"Can be set via the `CASPORT_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos credential cache file for authentication. " +
					"Can be set via the `CASPORT_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Override the Service Principal Name. Defaults to `HTTP/<server host>`. " +
					"Can be set via the `CASPORT_KERBEROS_SPN` environment variable.",
				Optional: true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *CasportProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		providervalidator.Conflicting(
			path.MatchRoot("tls_ca_cert_file"),
			path.MatchRoot("tls_ca_cert"),
		),
	}
}

func (p *CasportProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data CasportProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = initializeLogging(ctx)
	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring CASPORT provider", map[string]any{
		"version": p.version,
	})

	config := p.buildConfig(ctx, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	start := time.Now()
	providerData, err := casport.NewProviderData(ctx, config)
	if err != nil {
		tflog.Error(ctx, "Failed to initialize identity resolution", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		resp.Diagnostics.AddError(
			"Unable to Create CASPORT Client",
			"An unexpected error occurred when creating the CASPORT directory client. "+
				"If the error is not clear, please contact the provider developers.\n\n"+
				"CASPORT Client Error: "+err.Error(),
		)
		return
	}

	if config.Cache.Enabled && providerData.Cache.Stats().Degraded {
		resp.Diagnostics.AddWarning(
			"Identity Cache Unavailable",
			"The identity cache at "+config.Cache.Address+" could not be reached. "+
				"Identities will be fetched from the directory on every lookup until the cache recovers.",
		)
	}

	tflog.Info(ctx, "CASPORT provider configured successfully", map[string]any{
		"duration_ms":   time.Since(start).Milliseconds(),
		"cache_enabled": config.Cache.Enabled,
	})

	resp.DataSourceData = providerData
	resp.ResourceData = providerData
}

// configureLogging adds persistent provider fields to all logs.
func (p *CasportProvider) configureLogging(ctx context.Context) context.Context {
	ctx = tflog.SetField(ctx, "provider", "casport")
	ctx = tflog.SetField(ctx, "provider_version", p.version)
	ctx = tflog.MaskFieldValuesWithFieldKeys(ctx, "password", "cache_password", "kerberos_password", "tls_client_key_passphrase")

	return ctx
}

// buildConfig overlays provider attributes and CASPORT_* environment variables on the defaults.
func (p *CasportProvider) buildConfig(ctx context.Context, data *CasportProviderModel, diags *diag.Diagnostics) *casport.Config {
	config := casport.DefaultConfig()

	config.ServerURL = p.getStringValue(data.ServerURL, "CASPORT_SERVER_URL")
	if config.ServerURL == "" {
		diags.AddAttributeError(
			path.Root("server_url"),
			"Missing CASPORT Server URL",
			"The provider requires the CASPORT directory URL. "+
				"Set the 'server_url' attribute or the CASPORT_SERVER_URL environment variable.",
		)
		return config
	}

	// Directory settings
	config.LookupPath = p.getStringValue(data.LookupPath, "CASPORT_LOOKUP_PATH")
	if format := p.getStringValue(data.Format, "CASPORT_FORMAT"); format != "" {
		config.Format = casport.ParseFormat(format)
	}
	config.FormatHeader = p.getStringValue(data.FormatHeader, "CASPORT_FORMAT_HEADER")
	config.AppendFormatExtension = p.getBoolValue(data.AppendFormatExtension, "CASPORT_APPEND_FORMAT_EXTENSION", config.AppendFormatExtension)
	config.IssuerDN = p.getStringValue(data.IssuerDN, "CASPORT_ISSUER_DN")

	if timeout := p.getInt64Value(data.RequestTimeout, "CASPORT_REQUEST_TIMEOUT", 0); timeout > 0 {
		config.RequestTimeout = time.Duration(timeout) * time.Second
	}
	if rps := p.getInt64Value(data.RequestsPerSecond, "CASPORT_REQUESTS_PER_SECOND", 0); rps > 0 {
		config.RequestsPerSecond = float64(rps)
	}

	// Record settings
	if field := p.getStringValue(data.IdentifierField, "CASPORT_IDENTIFIER_FIELD"); field != "" {
		config.IdentifierField = field
	}
	if !data.NameFields.IsNull() && !data.NameFields.IsUnknown() {
		var nameFields []string
		diags.Append(data.NameFields.ElementsAs(ctx, &nameFields, false)...)
		if len(nameFields) > 0 {
			config.NameFields = nameFields
		}
	}
	if field := p.getStringValue(data.EmailField, "CASPORT_EMAIL_FIELD"); field != "" {
		config.EmailField = field
	}
	if root := p.getStringValue(data.RecordRoot, "CASPORT_RECORD_ROOT"); root != "" {
		config.RecordRoot = root
	}
	config.SnakeCaseKeys = p.getBoolValue(data.SnakeCaseKeys, "CASPORT_SNAKE_CASE_KEYS", config.SnakeCaseKeys)
	if policy := p.getStringValue(data.EmptyRecordPolicy, "CASPORT_EMPTY_RECORD_POLICY"); policy != "" {
		config.EmptyRecordPolicy = casport.EmptyRecordPolicy(validators.CanonicalValue(policy,
			string(casport.EmptyRecordInvalid), string(casport.EmptyRecordNotFound)))
	}
	if order := p.getStringValue(data.DNOrder, "CASPORT_DN_ORDER"); order != "" {
		config.DNOrder = casport.DNOrder(validators.CanonicalValue(order,
			string(casport.DNOrderCountryFirst), string(casport.DNOrderCountryLast)))
	}

	// Cache settings
	config.Cache.Address = p.getStringValue(data.CacheAddress, "CASPORT_CACHE_ADDRESS")
	config.Cache.Enabled = config.Cache.Address != "" && !p.getBoolValue(data.CacheDisabled, "CASPORT_CACHE_DISABLED", false)
	if port := p.getInt64Value(data.CachePort, "CASPORT_CACHE_PORT", 0); port > 0 {
		config.Cache.Port = int(port)
	}
	config.Cache.Password = p.getStringValue(data.CachePassword, "CASPORT_CACHE_PASSWORD")
	config.Cache.DB = int(p.getInt64Value(data.CacheDB, "CASPORT_CACHE_DB", 0))
	if ttl := p.getInt64Value(data.CacheTTL, "CASPORT_CACHE_TTL", 0); ttl > 0 {
		config.Cache.TTL = time.Duration(ttl) * time.Second
	}
	config.Cache.KeyPrefix = p.getStringValue(data.CacheKeyPrefix, "CASPORT_CACHE_KEY_PREFIX")

	// TLS settings
	config.TLS.CACertFile = p.getStringValue(data.TLSCACertFile, "CASPORT_TLS_CA_CERT_FILE")
	config.TLS.CACert = p.getStringValue(data.TLSCACert, "CASPORT_TLS_CA_CERT")
	config.TLS.ClientCertFile = p.getStringValue(data.TLSClientCertFile, "CASPORT_TLS_CLIENT_CERT_FILE")
	config.TLS.ClientKeyFile = p.getStringValue(data.TLSClientKeyFile, "CASPORT_TLS_CLIENT_KEY_FILE")
	config.TLS.ClientKeyPassphrase = p.getStringValue(data.TLSClientKeyPassphrase, "CASPORT_TLS_CLIENT_KEY_PASSPHRASE")
	if version := p.getStringValue(data.TLSVersion, "CASPORT_TLS_VERSION"); version != "" {
		config.TLS.MinVersion = strings.TrimSpace(version)
	}
	config.TLS.VerifyDepth = int(p.getInt64Value(data.TLSVerifyDepth, "CASPORT_TLS_VERIFY_DEPTH", int64(config.TLS.VerifyDepth)))
	config.TLS.SkipVerify = p.getBoolValue(data.SkipTLSVerify, "CASPORT_SKIP_TLS_VERIFY", false)

	// Kerberos settings
	config.Kerberos.Realm = p.getStringValue(data.KerberosRealm, "CASPORT_KERBEROS_REALM")
	config.Kerberos.Username = p.getStringValue(data.KerberosUsername, "CASPORT_KERBEROS_USERNAME")
	config.Kerberos.Password = p.getStringValue(data.KerberosPassword, "CASPORT_KERBEROS_PASSWORD")
	config.Kerberos.Keytab = p.getStringValue(data.KerberosKeytab, "CASPORT_KERBEROS_KEYTAB")
	config.Kerberos.Config = p.getStringValue(data.KerberosConfig, "CASPORT_KERBEROS_CONFIG")
	config.Kerberos.CCache = p.getStringValue(data.KerberosCCache, "CASPORT_KERBEROS_CCACHE")
	config.Kerberos.SPN = p.getStringValue(data.KerberosSPN, "CASPORT_KERBEROS_SPN")
	if config.Kerberos.Realm == "" {
		if _, realm, found := strings.Cut(config.Kerberos.Username, "@"); found {
			config.Kerberos.Realm = realm
		}
	}

	if err := config.Validate(); err != nil {
		diags.AddError(
			"Invalid CASPORT Provider Configuration",
			"The provider configuration is not valid: "+err.Error(),
		)
	}

	return config
}

// Helper functions for configuration value resolution

func (p *CasportProvider) getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func (p *CasportProvider) getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *CasportProvider) getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *CasportProvider) Resources(ctx context.Context) []func() resource.Resource {
	return nil
}

func (p *CasportProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewUserDataSource,
		NewUsersDataSource,
		NewWhoAmIDataSource,
	}
}

func (p *CasportProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewNormalizeDNFunction,
		NewSnakeCaseKeysFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &CasportProvider{
			version: version,
		}
	}
}
