/*
Package casport resolves certificate-derived identities into user profiles held by a CASPORT
directory service.

# Pipeline

A resolution runs through a fixed sequence of steps:

  - Normalize the raw identity (DN component order, blank components dropped)
  - Look the normalized identity up in the identity cache
  - On a miss, fetch the record from the directory over HTTP(S)
  - Validate the record and project the auth hash (uid, name, email, extra)
  - Write directory results back to the cache

# Identity Cache

RedisCache stores records for a fixed TTL (24 hours by default) using GET, SET and EXPIRE.
Connection failures switch the cache to degraded mode, where every lookup misses and writes
are skipped, so the directory keeps serving resolutions. NoopCache is used when caching is
disabled.

# Directory Client

DirectoryClient performs one GET per lookup and never retries. It supports mutual TLS with
encrypted client keys, Kerberos SPNEGO, client-side rate limiting and json, xml or raw
response formats.

# Error Handling

Failures are *ResolutionError values with a category:

  - missing_identity: no identity was supplied
  - user_not_found: non-2xx response or unparsable body
  - upstream_unavailable: connection, TLS, DNS or timeout failure (retryable)
  - invalid_user_data: empty record or missing identifier field
  - canceled: the caller's context ended

Cache failures are logged and never returned from Resolve.

# Example Usage

	config := casport.DefaultConfig()
	config.ServerURL = "https://casport.example.com/users"
	config.Cache.Enabled = true
	config.Cache.Address = "redis.example.com"

	data, err := casport.NewProviderData(ctx, config)
	if err != nil {
		return err
	}
	defer data.Close()

	resolution, err := data.Resolver.Resolve(ctx, "/C=US/O=Example/CN=Tyler Durden")
	if err != nil {
		return err
	}
	fmt.Println(resolution.AuthHash.Name)
*/
package casport
