package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
)

var _ validator.String = identityValidator{}

// identityValidator accepts opaque user ids and DNs in either "/" or "," form.
// DNs must parse once normalized.
type identityValidator struct{}

func (v identityValidator) Description(_ context.Context) string {
	return "value must be a user id or a Distinguished Name (DN) in slash or comma form"
}

func (v identityValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v identityValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if strings.TrimSpace(value) == "" {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Identity",
			"The value \"\" is not a valid identity: identity cannot be empty",
		)
		return
	}

	if !casport.IsDistinguishedName(value) {
		return
	}

	normalized := casport.NormalizeIdentity(value)
	if err := casport.ValidateDN(normalized); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Identity",
			fmt.Sprintf("The value %q is not a valid Distinguished Name (normalized to %q): %s", value, normalized, err.Error()),
		)
	}
}

// IsValidIdentity returns a validator for identity attributes. Values without "/" or ","
// are opaque user ids and only need to be non-blank.
//
// Unknown values and null values are skipped from validation.
func IsValidIdentity() validator.String {
	return identityValidator{}
}
