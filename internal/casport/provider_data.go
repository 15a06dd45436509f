package casport

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ProviderData wraps the resolver and its shared collaborators for use by Terraform data sources.
type ProviderData struct {
	Config    *Config
	Resolver  *Resolver
	Directory *DirectoryClient
	Cache     Cache
}

// NewProviderData validates config and builds the directory client, cache and resolver.
// An unreachable cache is not an error; it starts in degraded mode.
func NewProviderData(ctx context.Context, config *Config) (*ProviderData, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	directory, err := NewDirectoryClient(ctx, config)
	if err != nil {
		return nil, err
	}

	var cache Cache = NewNoopCache()
	if config.Cache.Enabled {
		redisCache, err := NewRedisCache(ctx, config.Cache)
		if err != nil {
			directory.Close()
			return nil, fmt.Errorf("failed to configure identity cache: %w", err)
		}
		cache = redisCache
	}

	tflog.Debug(ctx, "Identity resolution pipeline initialized", SanitizeFields(map[string]any{
		"server_url":    config.ServerURL,
		"format":        config.Format.String(),
		"cache_enabled": config.Cache.Enabled,
		"mtls":          config.TLS.ClientCertFile != "",
		"kerberos":      config.Kerberos.Enabled(),
	}))

	return &ProviderData{
		Config:    config,
		Resolver:  NewResolver(directory, cache, config),
		Directory: directory,
		Cache:     cache,
	}, nil
}

// GetCombinedStats returns cache statistics as log fields.
func (pd *ProviderData) GetCombinedStats() map[string]any {
	if pd.Cache == nil {
		return map[string]any{}
	}

	stats := pd.Cache.Stats()
	return map[string]any{
		"cache_hits":     stats.Hits,
		"cache_misses":   stats.Misses,
		"cache_writes":   stats.Writes,
		"cache_errors":   stats.Errors,
		"cache_hit_rate": stats.HitRate,
		"cache_degraded": stats.Degraded,
	}
}

// Close releases the directory client and the cache connection.
func (pd *ProviderData) Close() error {
	var errs []error

	if pd.Directory != nil {
		pd.Directory.Close()
	}

	if pd.Cache != nil {
		if err := pd.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close identity cache: %w", err))
		}
	}

	return errors.Join(errs...)
}
