package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = caseInsensitiveOneOfValidator{}

// caseInsensitiveOneOfValidator validates that a string matches one of the allowed values,
// ignoring case and surrounding whitespace.
type caseInsensitiveOneOfValidator struct {
	validValues []string
}

func (v caseInsensitiveOneOfValidator) Description(_ context.Context) string {
	return fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(v.validValues, ", "))
}

func (v caseInsensitiveOneOfValidator) MarkdownDescription(_ context.Context) string {
	quoted := make([]string, len(v.validValues))
	for i, value := range v.validValues {
		quoted[i] = "`" + value + "`"
	}
	return fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(quoted, ", "))
}

func (v caseInsensitiveOneOfValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if CanonicalValue(value, v.validValues...) != "" {
		return
	}

	response.Diagnostics.AddAttributeError(
		request.Path,
		"Invalid Value",
		fmt.Sprintf(
			"The value %q is not valid. Must be one of: %s (case-insensitive)",
			value,
			strings.Join(v.validValues, ", "),
		),
	)
}

// CanonicalValue returns the entry of values matching value case-insensitively,
// or "" when none matches. Providers use it to store the canonical spelling.
func CanonicalValue(value string, values ...string) string {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range values {
		if strings.EqualFold(trimmed, candidate) {
			return candidate
		}
	}
	return ""
}

// CaseInsensitiveOneOf returns a validator which ensures that any configured
// attribute value matches one of the provided values, ignoring case differences.
//
// Unknown values and null values are skipped from validation.
func CaseInsensitiveOneOf(values ...string) validator.String {
	return caseInsensitiveOneOfValidator{
		validValues: values,
	}
}
