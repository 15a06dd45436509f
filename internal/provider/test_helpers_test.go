package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// Identities served by the test directory.
const (
	testIdentitySlash = "/CN=Tyler Durden/OU=People/O=Example/C=US"
	testIdentity      = "C=US,O=Example,OU=People,CN=Tyler Durden"
	testUserID        = "tdurden"
	testMissingID     = "mbutler"
)

// testDirectory is an in-process CASPORT directory serving JSON records.
type testDirectory struct {
	*httptest.Server

	mu      sync.Mutex
	records map[string]map[string]any
	hits    atomic.Int32
}

// newTestDirectory starts a directory serving records under /users/{identity}.json.
func newTestDirectory(t *testing.T) *testDirectory {
	t.Helper()

	d := &testDirectory{
		records: map[string]map[string]any{
			testIdentity: {
				"dn":        testIdentity,
				"fullName":  "Tyler Durden",
				"email":     "tyler@example.com",
				"objectSid": "S-1-5-21-123456789-123456789-123456789-1001",
			},
			testUserID: {
				"dn":       testUserID,
				"fullName": "Marla Singer",
				"email":    "marla@example.com",
			},
		},
	}

	d.Server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.Close)

	return d
}

func (d *testDirectory) serve(w http.ResponseWriter, r *http.Request) {
	d.hits.Add(1)

	identity, ok := strings.CutPrefix(r.URL.Path, "/users/")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	identity = strings.TrimSuffix(identity, ".json")

	d.mu.Lock()
	record, found := d.records[identity]
	d.mu.Unlock()

	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

// BaseURL returns the directory base URL for server_url.
func (d *testDirectory) BaseURL() string {
	return d.Server.URL + "/users"
}

// newTestCache starts an in-memory Redis for the identity cache.
func newTestCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr
}

// testAccProviderConfig returns a provider block for the test directory.
func testAccProviderConfig(serverURL string) string {
	return fmt.Sprintf(`
provider "casport" {
  server_url = %q
}
`, serverURL)
}

// testAccProviderConfigWithCache returns a provider block that also enables the identity cache.
func testAccProviderConfigWithCache(serverURL string, mr *miniredis.Miniredis) string {
	return fmt.Sprintf(`
provider "casport" {
  server_url    = %q
  cache_address = %q
  cache_port    = %s
}
`, serverURL, mr.Host(), mr.Port())
}
