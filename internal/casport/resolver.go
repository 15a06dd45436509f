package casport

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"
)

// Source records where a resolved record came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceDirectory Source = "directory"
)

// Resolution is a successfully resolved identity.
type Resolution struct {
	ID       string // Correlation id for log output
	Identity string // Normalized identity
	Record   UserRecord
	AuthHash AuthHash
	Source   Source
}

// ResolveOption customizes a single resolution.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	issuerDN string
}

// WithIssuer sends issuerDN as the secondary directory filter for this resolution.
func WithIssuer(issuerDN string) ResolveOption {
	return func(o *resolveOptions) {
		o.issuerDN = issuerDN
	}
}

// Resolver turns raw identities into user records using the cache and the directory.
// It keeps no per-identity state and is safe for concurrent use.
type Resolver struct {
	config    *Config
	directory Directory
	cache     Cache
}

// NewResolver creates a resolver. A nil cache disables caching.
func NewResolver(directory Directory, cache Cache, config *Config) *Resolver {
	if cache == nil {
		cache = NewNoopCache()
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Resolver{
		config:    config,
		directory: directory,
		cache:     cache,
	}
}

// Resolve normalizes raw, consults the cache, falls back to the directory, validates the
// record and projects the auth hash. Directory results are written to the cache only after
// they validate. Cache failures never fail a resolution.
func (r *Resolver) Resolve(ctx context.Context, raw string, opts ...ResolveOption) (*Resolution, error) {
	// Separator-only DNs such as " / " normalize to nothing.
	identity := NormalizeIdentityOrder(raw, r.config.DNOrder)
	if strings.TrimSpace(identity) == "" {
		return nil, NewResolutionError("resolve", ErrorCategoryMissingIdentity, "", "no identity was supplied", nil)
	}

	var options resolveOptions
	for _, opt := range opts {
		opt(&options)
	}

	id := uuid.NewString()
	ctx = tflog.SetField(ctx, "resolution_id", id)
	for _, subsystem := range []string{SubsystemResolver, SubsystemCache, SubsystemDirectory} {
		ctx = tflog.SubsystemSetField(ctx, subsystem, "resolution_id", id)
	}

	fields := map[string]any{
		"identity":     identity,
		"raw_identity": raw,
	}

	var resolution *Resolution
	err := LogOperation(ctx, SubsystemResolver, "resolve", fields, func() error {
		var resolveErr error
		resolution, resolveErr = r.resolve(ctx, identity, options)
		if resolution != nil {
			resolution.ID = id
			fields["source"] = string(resolution.Source)
		}
		return resolveErr
	})
	if err != nil {
		return nil, err
	}

	return resolution, nil
}

func (r *Resolver) resolve(ctx context.Context, identity string, options resolveOptions) (*Resolution, error) {
	if ctx.Err() != nil {
		return nil, canceledError("resolve", identity, ctx.Err())
	}

	record, hit, err := r.cache.Get(ctx, identity)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceledError("cache lookup", identity, ctx.Err())
		}
		tflog.SubsystemWarn(ctx, SubsystemResolver, "Identity cache unavailable, falling back to directory", map[string]any{
			"identity": identity,
			"error":    err.Error(),
		})
		hit = false
	}

	source := SourceCache
	if !hit {
		source = SourceDirectory
		record, err = r.directory.Fetch(ctx, identity, FetchOptions{IssuerDN: options.issuerDN})
		if err != nil {
			return nil, r.classifyFetchError(ctx, identity, err)
		}
	}

	if err := r.config.validateRecord(identity, record); err != nil {
		return nil, err
	}

	if source == SourceDirectory {
		if err := r.cache.Put(ctx, identity, record); err != nil {
			if ctx.Err() != nil {
				return nil, canceledError("cache write", identity, ctx.Err())
			}
			tflog.SubsystemWarn(ctx, SubsystemResolver, "Failed to cache resolved identity", map[string]any{
				"identity": identity,
				"error":    err.Error(),
			})
		}
	}

	return &Resolution{
		Identity: identity,
		Record:   record,
		AuthHash: r.config.project(record),
		Source:   source,
	}, nil
}

// classifyFetchError maps directory failures onto the resolution taxonomy.
// Unclassified errors are treated as transport failures.
func (r *Resolver) classifyFetchError(ctx context.Context, identity string, err error) error {
	if ctx.Err() != nil {
		return canceledError("fetch", identity, ctx.Err())
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		switch resErr.Category {
		case ErrorCategoryUserNotFound, ErrorCategoryUpstreamUnavailable, ErrorCategoryCanceled, ErrorCategoryConfiguration:
			return resErr
		}
	}

	return NewResolutionError("fetch", ErrorCategoryUpstreamUnavailable, identity, "directory lookup failed", err)
}

// BatchResult is the outcome of one identity in ResolveAll.
type BatchResult struct {
	Input      string
	Resolution *Resolution
	Err        error
}

// ResolveAll resolves identities concurrently with at most limit in flight.
// Results keep input order. Per-identity failures are reported in BatchResult.Err;
// the returned error is set only when ctx is canceled.
func (r *Resolver) ResolveAll(ctx context.Context, raws []string, limit int, opts ...ResolveOption) ([]BatchResult, error) {
	if limit <= 0 {
		limit = r.config.BatchConcurrency
	}
	if limit <= 0 {
		limit = 1
	}

	results := make([]BatchResult, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, raw := range raws {
		g.Go(func() error {
			resolution, err := r.Resolve(gctx, raw, opts...)
			results[i] = BatchResult{Input: raw, Resolution: resolution, Err: err}
			if IsCanceled(err) && ctx.Err() != nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

// Config returns the resolver configuration.
func (r *Resolver) Config() *Config {
	return r.config
}

// CacheStats returns statistics for the resolver's cache.
func (r *Resolver) CacheStats() CacheStats {
	return r.cache.Stats()
}
