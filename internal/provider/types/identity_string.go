package types

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types/basetypes"
	"github.com/hashicorp/terraform-plugin-go/tftypes"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
)

var (
	_ basetypes.StringTypable                    = IdentityStringType{}
	_ basetypes.StringValuable                   = IdentityStringValue{}
	_ basetypes.StringValuableWithSemanticEquals = IdentityStringValue{}
)

// IdentityStringType is a string type for caller identities. Two values are
// semantically equal when they normalize to the same identity, so "ou=org/c=US"
// and "c=US,ou=org" do not produce drift.
type IdentityStringType struct {
	basetypes.StringType
}

func (t IdentityStringType) String() string {
	return "IdentityStringType"
}

func (t IdentityStringType) ValueType(ctx context.Context) attr.Value {
	return IdentityStringValue{}
}

func (t IdentityStringType) Equal(o attr.Type) bool {
	other, ok := o.(IdentityStringType)
	if !ok {
		return false
	}

	return t.StringType.Equal(other.StringType)
}

func (t IdentityStringType) ValueFromString(ctx context.Context, in basetypes.StringValue) (basetypes.StringValuable, diag.Diagnostics) {
	return IdentityStringValue{StringValue: in}, nil
}

func (t IdentityStringType) ValueFromTerraform(ctx context.Context, in tftypes.Value) (attr.Value, error) {
	attrValue, err := t.StringType.ValueFromTerraform(ctx, in)
	if err != nil {
		return nil, err
	}

	stringValue, ok := attrValue.(basetypes.StringValue)
	if !ok {
		return nil, fmt.Errorf("expected basetypes.StringValue, got: %T", attrValue)
	}

	stringValuable, diags := t.ValueFromString(ctx, stringValue)
	if diags.HasError() {
		return nil, fmt.Errorf("could not create IdentityStringValue: %v", diags.Errors())
	}

	return stringValuable, nil
}

// IdentityStringValue is an identity string with normalization-aware semantic equality.
type IdentityStringValue struct {
	basetypes.StringValue
}

func (v IdentityStringValue) Equal(o attr.Value) bool {
	other, ok := o.(IdentityStringValue)
	if !ok {
		return false
	}

	return v.StringValue.Equal(other.StringValue)
}

func (v IdentityStringValue) Type(ctx context.Context) attr.Type {
	return IdentityStringType{}
}

// StringSemanticEquals compares the normalized forms of both identities.
func (v IdentityStringValue) StringSemanticEquals(ctx context.Context, newValuable basetypes.StringValuable) (bool, diag.Diagnostics) {
	var diags diag.Diagnostics

	newValue, ok := newValuable.(IdentityStringValue)
	if !ok {
		diags.AddError(
			"Semantic Equality Check Error",
			"An unexpected value type was received while attempting to perform semantic equality checks. "+
				"This is always an error in the provider. Please report the following to the provider developer:\n\n"+
				fmt.Sprintf("Expected IdentityStringValue, but got: %T", newValuable),
		)
		return false, diags
	}

	if v.IsNull() || v.IsUnknown() || newValue.IsNull() || newValue.IsUnknown() {
		return v.Equal(newValue), diags
	}

	return casport.EqualIdentities(v.ValueString(), newValue.ValueString()), diags
}

// Normalized returns the canonical identity, or "" for null and unknown values.
func (v IdentityStringValue) Normalized() string {
	if v.IsNull() || v.IsUnknown() {
		return ""
	}
	return casport.NormalizeIdentity(v.ValueString())
}

func IdentityString(value string) IdentityStringValue {
	return IdentityStringValue{StringValue: basetypes.NewStringValue(value)}
}

func IdentityStringNull() IdentityStringValue {
	return IdentityStringValue{StringValue: basetypes.NewStringNull()}
}

func IdentityStringUnknown() IdentityStringValue {
	return IdentityStringValue{StringValue: basetypes.NewStringUnknown()}
}
