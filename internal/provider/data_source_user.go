package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
	"github.com/stevenhaddox/terraform-provider-casport/internal/provider/helpers"
	customtypes "github.com/stevenhaddox/terraform-provider-casport/internal/provider/types"
	"github.com/stevenhaddox/terraform-provider-casport/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &UserDataSource{}
var _ datasource.DataSourceWithConfigure = &UserDataSource{}

func NewUserDataSource() datasource.DataSource {
	return &UserDataSource{}
}

// UserDataSource resolves a single identity.
type UserDataSource struct {
	providerData *casport.ProviderData
}

// UserDataSourceModel describes the data source data model.
type UserDataSourceModel struct {
	// Inputs
	Identity customtypes.IdentityStringValue `tfsdk:"identity"`  // DN in either order, or an opaque user id
	IssuerDN types.String                    `tfsdk:"issuer_dn"` // Optional issuerDn filter

	// Resolution (all computed)
	ID                 types.String  `tfsdk:"id"`                  // Normalized identity
	NormalizedIdentity types.String  `tfsdk:"normalized_identity"` // Normalized identity
	UID                types.String  `tfsdk:"uid"`                 // Identifier field value
	Name               types.String  `tfsdk:"name"`                // Display name
	Email              types.String  `tfsdk:"email"`               // Email address
	SID                types.String  `tfsdk:"sid"`                 // Security Identifier, when present
	Source             types.String  `tfsdk:"source"`              // "cache" or "directory"
	Extra              types.Dynamic `tfsdk:"extra"`               // Full record
}

func (d *UserDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func (d *UserDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Resolves a certificate-derived identity or user id into a CASPORT user profile. " +
			"Results are served from the identity cache when present, otherwise fetched from the directory and cached.",

		Attributes: map[string]schema.Attribute{
			"identity": schema.StringAttribute{
				MarkdownDescription: "The identity to resolve: a Distinguished Name in slash or comma form, in either " +
					"component order, or an opaque user id. Example: `/C=US/O=Example/OU=People/CN=Tyler Durden`",
				Required:   true,
				CustomType: customtypes.IdentityStringType{},
				Validators: []validator.String{
					validators.IsValidIdentity(),
				},
			},
			"issuer_dn": schema.StringAttribute{
				MarkdownDescription: "Issuer DN sent as the `issuerDn` filter for this lookup, overriding the provider's `issuer_dn`.",
				Optional:            true,
			},

			"id": schema.StringAttribute{
				MarkdownDescription: "The normalized identity.",
				Computed:            true,
			},
			"normalized_identity": schema.StringAttribute{
				MarkdownDescription: "The identity after normalization (comma-joined, `c=` component first).",
				Computed:            true,
			},
			"uid": schema.StringAttribute{
				MarkdownDescription: "The user's unique identifier, taken from the provider's `identifier_field`.",
				Computed:            true,
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "The user's display name.",
				Computed:            true,
			},
			"email": schema.StringAttribute{
				MarkdownDescription: "The user's email address.",
				Computed:            true,
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "The user's Security Identifier, when the record carries one. " +
					"Example: `S-1-5-21-123456789-123456789-123456789-1001`",
				Computed: true,
			},
			"source": schema.StringAttribute{
				MarkdownDescription: "Where the record came from: `cache` or `directory`.",
				Computed:            true,
			},
			"extra": schema.DynamicAttribute{
				MarkdownDescription: "The full user record, with keys converted to snake_case unless disabled on the provider.",
				Computed:            true,
			},
		},
	}
}

func (d *UserDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.providerData = providerDataFromConfigure(req.ProviderData, &resp.Diagnostics)
}

func (d *UserDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UserDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := logDataSourceOperation(ctx, "casport_user", "read", nil)
	defer func() { logCompletion(firstError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.providerData == nil {
		resp.Diagnostics.AddError(
			"Provider Not Configured",
			"The CASPORT provider was not configured before reading casport_user.",
		)
		return
	}

	identity := data.Identity.ValueString()

	var opts []casport.ResolveOption
	if !data.IssuerDN.IsNull() && data.IssuerDN.ValueString() != "" {
		opts = append(opts, casport.WithIssuer(data.IssuerDN.ValueString()))
	}

	resolution, err := d.providerData.Resolver.Resolve(ctx, identity, opts...)
	if err != nil {
		addResolutionError(&resp.Diagnostics, identity, err)
		return
	}

	tflog.Debug(ctx, "Successfully resolved CASPORT user", map[string]any{
		"identity": resolution.Identity,
		"uid":      resolution.AuthHash.UID,
		"source":   string(resolution.Source),
	})

	mapResolutionToModel(ctx, resolution, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// mapResolutionToModel maps a resolution onto the data source model.
func mapResolutionToModel(ctx context.Context, resolution *casport.Resolution, data *UserDataSourceModel, diags *diag.Diagnostics) {
	data.ID = types.StringValue(resolution.Identity)
	data.NormalizedIdentity = types.StringValue(resolution.Identity)
	data.UID = types.StringValue(resolution.AuthHash.UID)
	data.Name = stringOrNull(resolution.AuthHash.Name)
	data.Email = stringOrNull(resolution.AuthHash.Email)
	data.SID = stringOrNull(resolution.AuthHash.SID)
	data.Source = types.StringValue(string(resolution.Source))

	extra, err := helpers.ToDynamic(ctx, resolution.AuthHash.Extra)
	if err != nil {
		diags.AddError(
			"Unable to Convert User Record",
			"The resolved user record could not be converted to Terraform values: "+err.Error(),
		)
		return
	}
	data.Extra = extra
}

func stringOrNull(s string) types.String {
	if s == "" {
		return types.StringNull()
	}
	return types.StringValue(s)
}
