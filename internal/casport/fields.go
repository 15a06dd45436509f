package casport

import (
	"slices"
	"strings"
)

// ToSnakeCase converts embedded ASCII uppercase letters to an underscore followed by the
// lowercase letter: "fullName" becomes "full_name".
//
// The mapping is lossy for acronyms ("userID" becomes "user_i_d") and is not reversible.
// A leading uppercase letter is lowercased without an underscore.
func ToSnakeCase(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)

	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}

	return b.String()
}

// SnakeCaseKeys returns a copy of m with every map key converted by ToSnakeCase,
// descending into nested maps and slices.
//
// When two keys collide ("fullName" and "full_name"), the key already in snake case wins.
func SnakeCaseKeys(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	// Keys that are already snake case first, so converted keys never shadow them.
	for _, k := range keys {
		if ToSnakeCase(k) == k {
			out[k] = SnakeCaseValue(m[k])
		}
	}
	for _, k := range keys {
		converted := ToSnakeCase(k)
		if converted == k {
			continue
		}
		if _, exists := out[converted]; exists {
			continue
		}
		out[converted] = SnakeCaseValue(m[k])
	}

	return out
}

// SnakeCaseValue applies SnakeCaseKeys to maps at any depth of v. Other values are returned as is.
func SnakeCaseValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return SnakeCaseKeys(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = SnakeCaseValue(item)
		}
		return items
	default:
		return v
	}
}
