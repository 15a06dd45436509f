package casport

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

// UserRecord is a directory profile keyed by field name.
// Values follow the JSON data model: string, float64, bool, nil, []any and map[string]any.
type UserRecord map[string]any

// AuthHash is the projection of a UserRecord exposed to callers.
type AuthHash struct {
	UID   string
	Name  string
	Email string
	SID   string
	Extra map[string]any // Full record, keys snake cased when configured
}

// Clone returns a deep copy of the record.
func (r UserRecord) Clone() UserRecord {
	if r == nil {
		return nil
	}
	return UserRecord(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case UserRecord:
		return cloneMap(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = cloneValue(item)
		}
		return items
	default:
		return v
	}
}

// Field returns the value stored under name, trying the exact key and then its snake-cased form.
func (r UserRecord) Field(name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	if v, ok := r[name]; ok {
		return v, true
	}
	if snake := ToSnakeCase(name); snake != name {
		if v, ok := r[snake]; ok {
			return v, true
		}
	}
	return nil, false
}

// StringField returns the field as a trimmed string, or "" when absent or null.
func (r UserRecord) StringField(name string) string {
	v, ok := r.Field(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringValue(v))
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any, map[string]any:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// validateRecord checks that a record is non-empty and carries a non-empty identifier.
func (c *Config) validateRecord(identity string, record UserRecord) error {
	if len(record) == 0 {
		if c.EmptyRecordPolicy == EmptyRecordNotFound {
			return NewResolutionError("validate", ErrorCategoryUserNotFound, identity, "directory returned an empty record", nil)
		}
		return NewResolutionError("validate", ErrorCategoryInvalidUserData, identity, "directory returned an empty record", nil)
	}

	if newFieldLookup(record).get(c.IdentifierField) == "" {
		return NewResolutionError("validate", ErrorCategoryInvalidUserData, identity,
			fmt.Sprintf("record has no value for identifier field %q", c.IdentifierField), nil)
	}

	return nil
}

// project derives the auth hash from a validated record.
func (c *Config) project(record UserRecord) AuthHash {
	extra := map[string]any(record.Clone())
	if c.SnakeCaseKeys {
		extra = SnakeCaseKeys(extra)
	}

	fields := newFieldLookup(record)

	hash := AuthHash{
		UID:   fields.get(c.IdentifierField),
		Email: fields.get(c.EmailField),
		Extra: extra,
	}

	hash.Name = c.displayName(fields, hash.UID)
	hash.SID = decodeSID(fields.get(c.SIDField))

	return hash
}

// fieldLookup finds configured fields in a record whether the upstream keys are
// camel case or snake case.
type fieldLookup struct {
	raw   UserRecord
	snake UserRecord
}

func newFieldLookup(record UserRecord) fieldLookup {
	return fieldLookup{raw: record, snake: UserRecord(SnakeCaseKeys(record))}
}

func (f fieldLookup) get(name string) string {
	if v := f.raw.StringField(name); v != "" {
		return v
	}
	return f.snake.StringField(ToSnakeCase(name))
}

func (c *Config) displayName(fields fieldLookup, uid string) string {
	for _, field := range c.NameFields {
		if name := fields.get(field); name != "" {
			return name
		}
	}

	var parts []string
	for _, field := range []string{c.FirstNameField, c.LastNameField} {
		if part := fields.get(field); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	if IsDistinguishedName(uid) {
		if cn, err := ExtractRDNValue(uid, "CN"); err == nil {
			return cn
		}
	}

	return ""
}

// decodeSID converts a base64 encoded binary SID to S-1-... form.
// Textual SIDs are returned unchanged; malformed values yield "".
func decodeSID(value string) string {
	if value == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToUpper(value), "S-1-") {
		return value
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return ""
	}

	// revision, sub-authority count, 6-byte authority, then 4 bytes per sub-authority
	if len(raw) < 8 || len(raw) != 8+4*int(raw[1]) {
		return ""
	}

	return objectsid.Decode(raw).String()
}
