package casport

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DNOrder controls the component order NormalizeIdentity produces.
type DNOrder string

const (
	// DNOrderCountryFirst places the c= component first (most significant first).
	DNOrderCountryFirst DNOrder = "country_first"
	// DNOrderCountryLast places the c= component last (least significant first).
	DNOrderCountryLast DNOrder = "country_last"
)

// IsDistinguishedName reports whether raw is treated as a DN rather than an opaque user id.
func IsDistinguishedName(raw string) bool {
	return strings.ContainsAny(raw, "/,")
}

// NormalizeIdentity canonicalizes a certificate-derived identity with the c= component first.
//
// Input:  "/CN=Tyler Durden/OU=People/O=Example/C=US"
// Output: "C=US,O=Example,OU=People,CN=Tyler Durden"
//
// Identities containing neither "/" nor "," are opaque ids and are returned unchanged.
// Component values are not escaped; callers URL-encode when building request paths.
func NormalizeIdentity(raw string) string {
	return NormalizeIdentityOrder(raw, DNOrderCountryFirst)
}

// NormalizeIdentityOrder is NormalizeIdentity with an explicit component order.
func NormalizeIdentityOrder(raw string, order DNOrder) string {
	if !IsDistinguishedName(raw) {
		return raw
	}

	components := SplitIdentity(raw)
	if len(components) < 2 {
		return strings.Join(components, ",")
	}

	first := isCountryComponent(components[0])
	last := isCountryComponent(components[len(components)-1])

	switch order {
	case DNOrderCountryLast:
		if first && !last {
			slices.Reverse(components)
		}
	default:
		if last && !first {
			slices.Reverse(components)
		}
	}

	return strings.Join(components, ",")
}

// SplitIdentity splits a "/" or "," separated DN into its non-blank components.
// The returned slice is freshly allocated.
func SplitIdentity(raw string) []string {
	parts := strings.Split(strings.ReplaceAll(raw, "/", ","), ",")

	components := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		components = append(components, part)
	}

	return components
}

// isCountryComponent matches "c=..." but not "dc=..." or "cn=...".
func isCountryComponent(component string) bool {
	attrType, _, found := strings.Cut(strings.TrimSpace(component), "=")
	if !found {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(attrType), "c")
}

// ValidateDN validates that a normalized identity is a well-formed Distinguished Name.
func ValidateDN(dn string) error {
	if strings.TrimSpace(dn) == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("invalid DN syntax: %w", err)
	}

	return nil
}

// ExtractRDNValue extracts the value of the first RDN with the given attribute type.
// For example, extracting "CN" from "C=US,O=Example,CN=Tyler Durden" returns "Tyler Durden".
func ExtractRDNValue(dn, attrType string) (string, error) {
	if dn == "" {
		return "", fmt.Errorf("DN cannot be empty")
	}

	parsedDN, err := ldap.ParseDN(NormalizeIdentity(dn))
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}

	for _, rdn := range parsedDN.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, attrType) {
				return attr.Value, nil
			}
		}
	}

	return "", fmt.Errorf("attribute type '%s' not found in DN '%s'", attrType, dn)
}

// EqualIdentities reports whether a and b name the same identity once normalized.
// DNs compare with case-insensitive attribute types and values; opaque ids compare exactly.
func EqualIdentities(a, b string) bool {
	na, nb := NormalizeIdentity(a), NormalizeIdentity(b)
	if na == nb {
		return true
	}

	if !IsDistinguishedName(a) || !IsDistinguishedName(b) {
		return false
	}

	da, err := ldap.ParseDN(na)
	if err != nil {
		return strings.EqualFold(na, nb)
	}
	db, err := ldap.ParseDN(nb)
	if err != nil {
		return strings.EqualFold(na, nb)
	}

	return da.EqualFold(db)
}
