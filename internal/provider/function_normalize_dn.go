package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
)

var _ function.Function = &NormalizeDNFunction{}

// NormalizeDNFunction implements the normalize_dn function.
type NormalizeDNFunction struct{}

func (f NormalizeDNFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "normalize_dn"
}

func (f NormalizeDNFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Normalize a certificate-derived identity",
		Description: "Converts a slash or comma separated Distinguished Name into the comma-joined form used for CASPORT lookups, with the country component first. Values containing neither separator are returned unchanged.",
		MarkdownDescription: "Converts a Distinguished Name into the form used for CASPORT lookups.\n\n" +
			"- `/` separators become `,`\n" +
			"- Empty components are dropped\n" +
			"- The order is reversed when the `c=` component is last\n" +
			"- Values containing neither `/` nor `,` are returned unchanged\n\n" +
			"Example: `provider::casport::normalize_dn(\"ou=org/c=US\")` returns `c=US,ou=org`.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "identity",
				Description:         "A Distinguished Name in slash or comma form, or an opaque user id.",
				MarkdownDescription: "A Distinguished Name in slash or comma form, or an opaque user id.",
			},
		},
		Return: function.StringReturn{},
	}
}

func (f NormalizeDNFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var identity string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &identity))
	if resp.Error != nil {
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, casport.NormalizeIdentity(identity)))
}

// NewNormalizeDNFunction creates a new instance of the normalize_dn function.
func NewNormalizeDNFunction() function.Function {
	return &NormalizeDNFunction{}
}
