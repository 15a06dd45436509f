package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
	"github.com/stevenhaddox/terraform-provider-casport/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &UsersDataSource{}
var _ datasource.DataSourceWithConfigure = &UsersDataSource{}

func NewUsersDataSource() datasource.DataSource {
	return &UsersDataSource{}
}

// UsersDataSource resolves a batch of identities concurrently.
type UsersDataSource struct {
	providerData *casport.ProviderData
}

// UsersDataSourceModel describes the data source data model.
type UsersDataSourceModel struct {
	// Inputs
	Identities    types.List  `tfsdk:"identities"`     // Identities to resolve
	IgnoreMissing types.Bool  `tfsdk:"ignore_missing"` // Report unknown users in missing instead of failing
	Concurrency   types.Int64 `tfsdk:"concurrency"`    // Maximum lookups in flight

	// Output
	ID        types.String `tfsdk:"id"`
	Users     types.List   `tfsdk:"users"`
	Missing   types.List   `tfsdk:"missing"`
	UserCount types.Int64  `tfsdk:"user_count"`
}

var batchUserObjectType = types.ObjectType{
	AttrTypes: map[string]attr.Type{
		"identity": types.StringType,
		"uid":      types.StringType,
		"name":     types.StringType,
		"email":    types.StringType,
		"sid":      types.StringType,
		"source":   types.StringType,
	},
}

func (d *UsersDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_users"
}

func (d *UsersDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Resolves a list of identities into CASPORT user profiles. " +
			"Lookups run concurrently and results keep the order of `identities`.",

		Attributes: map[string]schema.Attribute{
			"identities": schema.ListAttribute{
				MarkdownDescription: "Identities to resolve. Each is a Distinguished Name in slash or comma form, or an opaque user id.",
				ElementType:         types.StringType,
				Required:            true,
				Validators: []validator.List{
					listvalidator.SizeAtLeast(1),
					listvalidator.ValueStringsAre(validators.IsValidIdentity()),
				},
			},
			"ignore_missing": schema.BoolAttribute{
				MarkdownDescription: "When `true`, identities the directory does not know are listed in `missing` " +
					"instead of failing the read. Defaults to `false`.",
				Optional: true,
			},
			"concurrency": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of lookups in flight. Defaults to `4`.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.Between(1, 64),
				},
			},

			// Output attributes
			"id": schema.StringAttribute{
				MarkdownDescription: "A computed identifier for this data source instance.",
				Computed:            true,
			},
			"user_count": schema.Int64Attribute{
				MarkdownDescription: "The number of identities resolved.",
				Computed:            true,
			},
			"missing": schema.ListAttribute{
				MarkdownDescription: "Identities the directory does not know, when `ignore_missing` is set.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"users": schema.ListNestedAttribute{
				MarkdownDescription: "Resolved users, in input order.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"identity": schema.StringAttribute{
							MarkdownDescription: "The normalized identity.",
							Computed:            true,
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
						"sid": schema.StringAttribute{
							MarkdownDescription: "The user's Security Identifier, when present.",
							Computed:            true,
						},
						"source": schema.StringAttribute{
							MarkdownDescription: "Where the record came from: `cache` or `directory`.",
							Computed:            true,
						},
					},
				},
			},
		},
	}
}

func (d *UsersDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.providerData = providerDataFromConfigure(req.ProviderData, &resp.Diagnostics)
}

func (d *UsersDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UsersDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := logDataSourceOperation(ctx, "casport_users", "read", nil)
	defer func() { logCompletion(firstError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.providerData == nil {
		resp.Diagnostics.AddError(
			"Provider Not Configured",
			"The CASPORT provider was not configured before reading casport_users.",
		)
		return
	}

	var identities []string
	resp.Diagnostics.Append(data.Identities.ElementsAs(ctx, &identities, false)...)
	if resp.Diagnostics.HasError() {
		return
	}

	limit := 0
	if !data.Concurrency.IsNull() {
		limit = int(data.Concurrency.ValueInt64())
	}
	ignoreMissing := !data.IgnoreMissing.IsNull() && data.IgnoreMissing.ValueBool()

	tflog.Debug(ctx, "Resolving CASPORT users", map[string]any{
		"identity_count": len(identities),
		"concurrency":    limit,
		"ignore_missing": ignoreMissing,
	})

	results, err := d.providerData.Resolver.ResolveAll(ctx, identities, limit)
	if err != nil {
		addResolutionError(&resp.Diagnostics, fmt.Sprintf("%d identities", len(identities)), err)
		return
	}

	resolutions, missing := collectBatchResults(results, ignoreMissing, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Debug(ctx, "Successfully resolved CASPORT users", map[string]any{
		"user_count":    len(resolutions),
		"missing_count": len(missing),
	})

	d.mapResolutionsToModel(ctx, resolutions, missing, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// collectBatchResults splits batch results into resolutions and missing identities.
// Every other failure is reported as a diagnostic.
func collectBatchResults(results []casport.BatchResult, ignoreMissing bool, diags *diag.Diagnostics) ([]*casport.Resolution, []string) {
	resolutions := make([]*casport.Resolution, 0, len(results))
	missing := make([]string, 0)

	for _, result := range results {
		switch {
		case result.Err == nil:
			resolutions = append(resolutions, result.Resolution)
		case ignoreMissing && casport.IsUserNotFound(result.Err):
			missing = append(missing, result.Input)
		default:
			addResolutionError(diags, result.Input, result.Err)
		}
	}

	return resolutions, missing
}

func (d *UsersDataSource) mapResolutionsToModel(ctx context.Context, resolutions []*casport.Resolution, missing []string, data *UsersDataSourceModel, diags *diag.Diagnostics) {
	userElements := make([]attr.Value, len(resolutions))
	for i, resolution := range resolutions {
		userObj, objDiags := types.ObjectValue(batchUserObjectType.AttrTypes, map[string]attr.Value{
			"identity": types.StringValue(resolution.Identity),
			"uid":      types.StringValue(resolution.AuthHash.UID),
			"name":     stringOrNull(resolution.AuthHash.Name),
			"email":    stringOrNull(resolution.AuthHash.Email),
			"sid":      stringOrNull(resolution.AuthHash.SID),
			"source":   types.StringValue(string(resolution.Source)),
		})
		diags.Append(objDiags...)
		if objDiags.HasError() {
			return
		}
		userElements[i] = userObj
	}

	usersList, listDiags := types.ListValue(batchUserObjectType, userElements)
	diags.Append(listDiags...)
	if listDiags.HasError() {
		return
	}

	missingList, listDiags := types.ListValueFrom(ctx, types.StringType, missing)
	diags.Append(listDiags...)
	if listDiags.HasError() {
		return
	}

	data.Users = usersList
	data.Missing = missingList
	data.UserCount = types.Int64Value(int64(len(resolutions)))
	data.ID = types.StringValue(fmt.Sprintf("casport-users-%d-%d", len(resolutions), len(missing)))
}
