package casport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	xml2json "github.com/basgys/goxml2json"
	"golang.org/x/time/rate"
)

// Directory fetches user records from the directory service.
type Directory interface {
	// Fetch returns the record for a normalized identity. Failures are *ResolutionError values
	// with category user_not_found, upstream_unavailable or canceled.
	Fetch(ctx context.Context, identity string, opts FetchOptions) (UserRecord, error)
}

// FetchOptions holds per-call lookup settings.
type FetchOptions struct {
	IssuerDN string // Overrides Config.IssuerDN when set
}

// DirectoryClient is the HTTP(S) client for the CASPORT directory service.
// It performs exactly one request per Fetch and never retries.
type DirectoryClient struct {
	config     *Config
	httpClient *http.Client
	transport  *http.Transport
	limiter    *rate.Limiter
	auth       *spnegoAuthenticator
}

// NewDirectoryClient builds the shared HTTP client, including mutual TLS and SPNEGO when configured.
func NewDirectoryClient(ctx context.Context, config *Config) (*DirectoryClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	tlsConfig, err := BuildTLSConfig(config.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS configuration: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := &DirectoryClient{
		config:    config,
		transport: transport,
		httpClient: &http.Client{
			Transport: transport,
		},
	}

	if config.RequestsPerSecond > 0 {
		burst := int(math.Max(1, math.Ceil(config.RequestsPerSecond)))
		client.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	if config.Kerberos.Enabled() {
		auth, err := newSPNEGOAuthenticator(ctx, config.Kerberos)
		if err != nil {
			return nil, fmt.Errorf("kerberos configuration error: %w", err)
		}
		client.auth = auth
	}

	return client, nil
}

// RequestURL builds {ServerURL}{LookupPath}/{escaped identity}[.{format}][?issuerDn=...].
func (c *DirectoryClient) RequestURL(identity, issuerDN string) string {
	var b strings.Builder

	b.WriteString(strings.TrimRight(c.config.ServerURL, "/"))
	if lookupPath := strings.Trim(c.config.LookupPath, "/"); lookupPath != "" {
		b.WriteString("/")
		b.WriteString(lookupPath)
	}

	b.WriteString("/")
	b.WriteString(url.PathEscape(identity))
	if c.config.AppendFormatExtension {
		b.WriteString(".")
		b.WriteString(c.config.Format.String())
	}

	if issuerDN != "" {
		b.WriteString("?issuerDn=")
		b.WriteString(url.QueryEscape(issuerDN))
	}

	return b.String()
}

func (c *DirectoryClient) Fetch(ctx context.Context, identity string, opts FetchOptions) (UserRecord, error) {
	issuer := opts.IssuerDN
	if issuer == "" {
		issuer = c.config.IssuerDN
	}
	requestURL := c.RequestURL(identity, issuer)

	fields := map[string]any{
		"identity": identity,
		"url":      requestURL,
		"format":   c.config.Format.String(),
	}

	var record UserRecord
	err := LogOperation(ctx, SubsystemDirectory, "fetch", fields, func() error {
		var fetchErr error
		record, fetchErr = c.fetch(ctx, identity, requestURL)
		return fetchErr
	})
	return record, err
}

func (c *DirectoryClient) fetch(ctx context.Context, identity, requestURL string) (UserRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.transportError(ctx, identity, err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, NewResolutionError("fetch", ErrorCategoryConfiguration, identity, "invalid directory request URL", err)
	}

	mediaType := c.config.Format.MediaType(c.config.FormatHeader)
	req.Header.Set("Accept", mediaType)
	req.Header.Set("Content-Type", mediaType)
	if c.config.Format.String() == string(FormatJSON) {
		req.Header.Set("X-XSRF-UseProtection", "false")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if c.auth != nil {
		if err := c.auth.authorize(req); err != nil {
			LogKerberosEvent(ctx, "spnego_header_failed", map[string]any{"error": err.Error()})
			return nil, NewResolutionError("fetch", ErrorCategoryUpstreamUnavailable, identity, "kerberos authentication failed", err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, identity, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes+1))
	if err != nil {
		return nil, c.transportError(ctx, identity, err)
	}

	LogPerformance(ctx, SubsystemDirectory, "fetch", time.Since(start), map[string]any{
		"status_code": resp.StatusCode,
		"bytes":       len(body),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		notFound := NewResolutionError("fetch", ErrorCategoryUserNotFound, identity,
			fmt.Sprintf("directory returned %s", resp.Status), nil)
		notFound.StatusCode = resp.StatusCode
		return nil, notFound
	}

	if int64(len(body)) > c.config.MaxResponseBytes {
		return nil, NewResolutionError("fetch", ErrorCategoryUserNotFound, identity,
			fmt.Sprintf("directory response exceeds %d bytes", c.config.MaxResponseBytes), nil)
	}

	record, err := ParseRecord(c.config.Format, c.config.RecordRoot, body)
	if err != nil {
		return nil, NewResolutionError("parse", ErrorCategoryUserNotFound, identity, "unparsable directory response", err)
	}

	return record, nil
}

// transportError separates caller cancellation from upstream failures, including our own timeout.
func (c *DirectoryClient) transportError(ctx context.Context, identity string, err error) error {
	if ctx.Err() != nil {
		return canceledError("fetch", identity, ctx.Err())
	}

	message := "directory service unreachable"
	if errors.Is(err, context.DeadlineExceeded) {
		message = fmt.Sprintf("directory request timed out after %s", c.config.RequestTimeout)
	}
	return NewResolutionError("fetch", ErrorCategoryUpstreamUnavailable, identity, message, err)
}

// Close releases idle connections and Kerberos credentials.
func (c *DirectoryClient) Close() {
	c.transport.CloseIdleConnections()
	if c.auth != nil {
		c.auth.close()
	}
}

// ParseRecord decodes a directory response body.
//
// json bodies must be objects. xml bodies are converted to JSON and their single root
// element is unwrapped. Other formats yield {"raw_body": body}. A lone recordRoot wrapper
// object is unwrapped for structured formats.
func ParseRecord(format Format, recordRoot string, body []byte) (UserRecord, error) {
	var record map[string]any

	switch ParseFormat(string(format)) {
	case FormatJSON:
		if err := decodeObject(bytes.NewReader(body), &record); err != nil {
			return nil, err
		}
	case FormatXML:
		converted, err := xml2json.Convert(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("invalid XML document: %w", err)
		}
		var document map[string]any
		if err := decodeObject(converted, &document); err != nil {
			return nil, err
		}
		record, err = unwrapSingle(document)
		if err != nil {
			return nil, err
		}
	default:
		return UserRecord{RawBodyField: string(body)}, nil
	}

	if recordRoot != "" {
		if inner, ok := record[recordRoot].(map[string]any); ok && len(record) == 1 {
			record = inner
		}
	}

	return UserRecord(record), nil
}

// decodeObject decodes exactly one JSON object. Trailing content is an error.
func decodeObject(r io.Reader, out *map[string]any) error {
	dec := json.NewDecoder(r)

	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON document: unexpected content after the top-level value")
	}

	object, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected a JSON object, got %T", value)
	}

	*out = object
	return nil
}

// unwrapSingle returns the object under a document's only key. An empty root element
// yields an empty record.
func unwrapSingle(document map[string]any) (map[string]any, error) {
	if len(document) != 1 {
		return nil, fmt.Errorf("expected a single root element, got %d", len(document))
	}

	for k, v := range document {
		switch inner := v.(type) {
		case map[string]any:
			return inner, nil
		case string:
			if strings.TrimSpace(inner) == "" {
				return map[string]any{}, nil
			}
		}
		return nil, fmt.Errorf("root element %q is not a structured record", k)
	}

	return nil, errors.New("empty document")
}
