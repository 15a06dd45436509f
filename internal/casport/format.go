package casport

import (
	"strings"
)

// Format is the representation requested from the directory.
// Any value other than FormatJSON and FormatXML is passed through unparsed.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// DefaultRawMediaType is sent for formats other than json and xml.
const DefaultRawMediaType = "text/plain"

// RawBodyField holds the unparsed body for formats other than json and xml.
const RawBodyField = "raw_body"

// ParseFormat normalizes a configured format name. Empty means json.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatJSON
	}
	return Format(s)
}

// MediaType returns the Accept/Content-Type value for the format.
// A non-empty override wins for every format.
func (f Format) MediaType(override string) string {
	if override != "" {
		return override
	}

	switch ParseFormat(string(f)) {
	case FormatJSON:
		return "application/json"
	case FormatXML:
		return "application/xml"
	default:
		return DefaultRawMediaType
	}
}

// Structured reports whether responses in this format are parsed into a record.
func (f Format) Structured() bool {
	switch ParseFormat(string(f)) {
	case FormatJSON, FormatXML:
		return true
	default:
		return false
	}
}

func (f Format) String() string {
	return string(ParseFormat(string(f)))
}
