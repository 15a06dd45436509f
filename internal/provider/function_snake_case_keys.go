package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
	"github.com/stevenhaddox/terraform-provider-casport/internal/provider/helpers"
)

var _ function.Function = &SnakeCaseKeysFunction{}

// SnakeCaseKeysFunction implements the snake_case_keys function.
type SnakeCaseKeysFunction struct{}

func (f SnakeCaseKeysFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "snake_case_keys"
}

func (f SnakeCaseKeysFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Convert camelCase keys to snake_case",
		Description: "Converts every map and object key in value from camelCase to snake_case, at any depth. Values are unchanged. When two keys collide, the key already in snake_case wins.",
		MarkdownDescription: "Converts every map and object key in `value` from camelCase to snake_case, at any depth.\n\n" +
			"- `fullName` becomes `full_name`\n" +
			"- Each uppercase letter starts a new word, so `userID` becomes `user_i_d`\n" +
			"- Values, including lists, are unchanged apart from their nested keys\n" +
			"- When `fullName` and `full_name` are both present, `full_name` wins",
		Parameters: []function.Parameter{
			function.DynamicParameter{
				Name:                "value",
				Description:         "A map or object, typically a decoded directory record.",
				MarkdownDescription: "A map or object, typically a decoded directory record.",
			},
		},
		Return: function.DynamicReturn{},
	}
}

func (f SnakeCaseKeysFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var value types.Dynamic

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &value))
	if resp.Error != nil {
		return
	}

	if value.IsNull() || value.IsUnknown() || value.IsUnderlyingValueNull() || value.IsUnderlyingValueUnknown() {
		resp.Error = function.NewArgumentFuncError(0, "value cannot be null or unknown")
		return
	}

	goValue, err := helpers.TerraformValueToGo(ctx, value)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(0, fmt.Sprintf("Failed to read value: %s", err.Error()))
		return
	}

	result, err := helpers.ToDynamic(ctx, casport.SnakeCaseValue(goValue))
	if err != nil {
		resp.Error = function.NewFuncError(fmt.Sprintf("Failed to convert result to Terraform types: %s", err.Error()))
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, result))
}

// NewSnakeCaseKeysFunction creates a new instance of the snake_case_keys function.
func NewSnakeCaseKeysFunction() function.Function {
	return &SnakeCaseKeysFunction{}
}
