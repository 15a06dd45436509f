package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &WhoAmIDataSource{}
var _ datasource.DataSourceWithConfigure = &WhoAmIDataSource{}

func NewWhoAmIDataSource() datasource.DataSource {
	return &WhoAmIDataSource{}
}

// WhoAmIDataSource resolves the identity of the provider's own client certificate.
type WhoAmIDataSource struct {
	providerData *casport.ProviderData
}

// WhoAmIDataSourceModel describes the data source data model.
type WhoAmIDataSourceModel struct {
	ID        types.String `tfsdk:"id"`         // Normalized identity
	SubjectDN types.String `tfsdk:"subject_dn"` // Certificate subject as presented
	Identity  types.String `tfsdk:"identity"`   // Normalized identity
	UID       types.String `tfsdk:"uid"`
	Name      types.String `tfsdk:"name"`
	Email     types.String `tfsdk:"email"`
}

func (d *WhoAmIDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_whoami"
}

func (d *WhoAmIDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Resolves the identity of the client certificate the provider presents to the CASPORT directory. " +
			"This data source requires no configuration but needs `tls_client_cert_file` on the provider.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Unique identifier for this data source (same as identity).",
				Computed:            true,
			},
			"subject_dn": schema.StringAttribute{
				MarkdownDescription: "The subject Distinguished Name of the client certificate. " +
					"Example: `CN=Tyler Durden,OU=People,O=Example,C=US`",
				Computed: true,
			},
			"identity": schema.StringAttribute{
				MarkdownDescription: "The normalized certificate identity used for the lookup. " +
					"Example: `C=US,O=Example,OU=People,CN=Tyler Durden`",
				Computed: true,
			},
			"uid": schema.StringAttribute{
				MarkdownDescription: "The user's unique identifier.",
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
		},
	}
}

func (d *WhoAmIDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.providerData = providerDataFromConfigure(req.ProviderData, &resp.Diagnostics)
}

func (d *WhoAmIDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data WhoAmIDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := logDataSourceOperation(ctx, "casport_whoami", "read", nil)
	defer func() { logCompletion(firstError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.providerData == nil {
		resp.Diagnostics.AddError(
			"Provider Not Configured",
			"The CASPORT provider was not configured before reading casport_whoami.",
		)
		return
	}

	subject, err := casport.ClientCertificateSubject(d.providerData.Config.TLS)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Client Certificate",
			fmt.Sprintf("Could not determine the client certificate subject: %s", err.Error()),
		)
		return
	}

	resolution, err := d.providerData.Resolver.Resolve(ctx, subject)
	if err != nil {
		addResolutionError(&resp.Diagnostics, subject, err)
		return
	}

	tflog.Debug(ctx, "Successfully resolved client certificate identity", map[string]any{
		"subject_dn": subject,
		"identity":   resolution.Identity,
		"source":     string(resolution.Source),
	})

	data.ID = types.StringValue(resolution.Identity)
	data.SubjectDN = types.StringValue(subject)
	data.Identity = types.StringValue(resolution.Identity)
	data.UID = types.StringValue(resolution.AuthHash.UID)
	data.Name = stringOrNull(resolution.AuthHash.Name)
	data.Email = stringOrNull(resolution.AuthHash.Email)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
