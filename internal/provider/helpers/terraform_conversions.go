// Package helpers converts between Terraform attribute values and the plain Go values
// (string, float64, bool, nil, []any, map[string]any) that directory records are made of.
package helpers

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

// TerraformValueToGo converts a Terraform value into plain Go values.
// Lists, sets and tuples become []any; maps and objects become map[string]any.
// Null becomes nil and unknown values are an error.
func TerraformValueToGo(ctx context.Context, value attr.Value) (any, error) {
	if value.IsNull() {
		return nil, nil
	}
	if value.IsUnknown() {
		return nil, fmt.Errorf("cannot process unknown values")
	}

	switch v := value.(type) {
	case types.String:
		return v.ValueString(), nil
	case types.Int64:
		return v.ValueInt64(), nil
	case types.Float64:
		return v.ValueFloat64(), nil
	case types.Bool:
		return v.ValueBool(), nil
	case types.Number:
		bigFloat := v.ValueBigFloat()
		if bigFloat == nil {
			return nil, fmt.Errorf("number value is nil")
		}
		floatVal, _ := bigFloat.Float64()
		return floatVal, nil
	case types.List:
		return elementsToGo(ctx, v.Elements())
	case types.Set:
		return elementsToGo(ctx, v.Elements())
	case types.Tuple:
		return elementsToGo(ctx, v.Elements())
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Dynamic:
		return TerraformValueToGo(ctx, v.UnderlyingValue())
	default:
		return nil, fmt.Errorf("unsupported type: %T", value)
	}
}

func elementsToGo(ctx context.Context, elements []attr.Value) ([]any, error) {
	result := make([]any, len(elements))
	for i, elem := range elements {
		goVal, err := TerraformValueToGo(ctx, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		result[i] = goVal
	}
	return result, nil
}

func attributesToGo(ctx context.Context, attributes map[string]attr.Value) (map[string]any, error) {
	result := make(map[string]any, len(attributes))
	for name, attrVal := range attributes {
		goVal, err := TerraformValueToGo(ctx, attrVal)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		result[name] = goVal
	}
	return result, nil
}

// GoValueToTerraform converts plain Go values into Terraform values.
// Maps become objects and slices become tuples because record fields are heterogeneous.
// Numbers become types.Number so JSON integers and fractions round-trip.
// nil becomes a null string, since nested values need a concrete type.
func GoValueToTerraform(ctx context.Context, value any) (attr.Value, error) {
	if value == nil {
		return types.StringNull(), nil
	}

	switch v := value.(type) {
	case string:
		return types.StringValue(v), nil
	case int:
		return types.NumberValue(big.NewFloat(float64(v))), nil
	case int64:
		return types.NumberValue(new(big.Float).SetInt64(v)), nil
	case float64:
		return types.NumberValue(big.NewFloat(v)), nil
	case bool:
		return types.BoolValue(v), nil
	case map[string]any:
		attrTypes := make(map[string]attr.Type, len(v))
		attrValues := make(map[string]attr.Value, len(v))

		for key, val := range v {
			terraformVal, err := GoValueToTerraform(ctx, val)
			if err != nil {
				return nil, fmt.Errorf("failed to convert map element %s: %w", key, err)
			}
			attrValues[key] = terraformVal
			attrTypes[key] = terraformVal.Type(ctx)
		}

		return types.ObjectValueMust(attrTypes, attrValues), nil
	case []any:
		elements := make([]attr.Value, len(v))
		elementTypes := make([]attr.Type, len(v))

		for i, val := range v {
			terraformVal, err := GoValueToTerraform(ctx, val)
			if err != nil {
				return nil, fmt.Errorf("failed to convert list element %d: %w", i, err)
			}
			elements[i] = terraformVal
			elementTypes[i] = terraformVal.Type(ctx)
		}

		return types.TupleValueMust(elementTypes, elements), nil
	default:
		return nil, fmt.Errorf("unsupported Go type for conversion: %T", value)
	}
}

// ToDynamic wraps the converted value in a types.Dynamic.
func ToDynamic(ctx context.Context, value any) (types.Dynamic, error) {
	if value == nil {
		return types.DynamicNull(), nil
	}

	converted, err := GoValueToTerraform(ctx, value)
	if err != nil {
		return types.DynamicNull(), err
	}

	return types.DynamicValue(converted), nil
}
