package provider

import (
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/diag"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
)

// resolutionErrorDiagnostic maps a resolution failure onto a diagnostic summary and detail.
func resolutionErrorDiagnostic(identity string, err error) (string, string) {
	switch casport.GetErrorCategory(err) {
	case casport.ErrorCategoryMissingIdentity:
		return "Missing Identity", "No identity was supplied. Set a user id or Distinguished Name."
	case casport.ErrorCategoryUserNotFound:
		return "User Not Found", fmt.Sprintf("The CASPORT directory has no user for identity %q: %s", identity, err.Error())
	case casport.ErrorCategoryUpstreamUnavailable:
		return "Directory Unavailable", fmt.Sprintf("The CASPORT directory could not be reached while resolving %q. "+
			"This is usually temporary; retry the operation.\n\nError: %s", identity, err.Error())
	case casport.ErrorCategoryInvalidUserData:
		return "Invalid User Data", fmt.Sprintf("The CASPORT directory returned an unusable record for %q: %s", identity, err.Error())
	case casport.ErrorCategoryCanceled:
		return "Resolution Canceled", fmt.Sprintf("Resolving %q was canceled before it completed.", identity)
	default:
		return "Error Resolving Identity", fmt.Sprintf("Could not resolve identity %q: %s", identity, err.Error())
	}
}

func addResolutionError(diags *diag.Diagnostics, identity string, err error) {
	summary, detail := resolutionErrorDiagnostic(identity, err)
	diags.AddError(summary, detail)
}

// providerDataFromConfigure type-asserts the value handed to data sources by Configure.
func providerDataFromConfigure(providerData any, diags *diag.Diagnostics) *casport.ProviderData {
	if providerData == nil {
		return nil
	}

	data, ok := providerData.(*casport.ProviderData)
	if !ok {
		diags.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *casport.ProviderData, got: %T. Please report this issue to the provider developers.", providerData),
		)
		return nil
	}

	return data
}
