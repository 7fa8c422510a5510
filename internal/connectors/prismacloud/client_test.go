package prismacloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// fakePlatform is an in-process stand-in for the code-security API. It
// issues token "t-N" for the Nth login and serves repositories, resource
// pages, and policy pages out of its fixtures.
type fakePlatform struct {
	repos     []repositoryItem
	resources []resourceItem
	policies  map[string][]policyItem

	// markerOnResourceReq makes the Nth resources request answer with the
	// platform error marker. failResourcesWith makes every resources
	// request fail with that HTTP status. Zero disables either.
	markerOnResourceReq int
	failResourcesWith   int

	mu           sync.Mutex
	logins       int
	dataAuth     []string
	resourceReqs []pagedRequest
	policyReqs   []pagedRequest
	policyMethod string
	policyPath   string
}

func pageSlice[T any](all []T, offset, limit int) ([]T, bool) {
	if offset >= len(all) || limit <= 0 {
		return nil, false
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], end < len(all)
}

func writePage[T any](w http.ResponseWriter, items []T, hasNext bool) {
	_ = json.NewEncoder(w).Encode(map[string]any{"data": items, "hasNext": hasNext})
}

func (f *fakePlatform) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+loginPath, func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.logins++
		n := f.logins
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(loginResponse{Token: fmt.Sprintf("t-%d", n)})
	})

	mux.HandleFunc("GET "+repositoriesPath, func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		_ = json.NewEncoder(w).Encode(f.repos)
	})

	mux.HandleFunc("POST "+resourcesPath, func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		var req pagedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.resourceReqs = append(f.resourceReqs, req)
		nth := len(f.resourceReqs)
		f.mu.Unlock()

		if f.failResourcesWith != 0 {
			http.Error(w, "upstream unavailable", f.failResourcesWith)
			return
		}
		if f.markerOnResourceReq != 0 && nth == f.markerOnResourceReq {
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "quota exceeded"})
			return
		}
		items, hasNext := pageSlice(f.resources, req.Offset, req.Limit)
		writePage(w, items, hasNext)
	})

	mux.HandleFunc("GET "+resourcesPath+"/{uuid}/policies", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		var req pagedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.policyReqs = append(f.policyReqs, req)
		f.policyMethod = r.Method
		f.policyPath = r.URL.Path
		f.mu.Unlock()

		items, hasNext := pageSlice(f.policies[r.PathValue("uuid")], req.Offset, req.Limit)
		writePage(w, items, hasNext)
	})

	return httptest.NewServer(mux)
}

func (f *fakePlatform) recordAuth(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataAuth = append(f.dataAuth, r.Header.Get("Authorization"))
}

func (f *fakePlatform) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func makeResources(n int) []resourceItem {
	items := make([]resourceItem, n)
	for i := range items {
		items[i] = resourceItem{
			ResourceUUID: fmt.Sprintf("uuid-%03d", i),
			RepoID:       "repo-1",
			ScanBranch:   "main",
			CodeCategory: domain.CategoryIacMisconfiguration,
			Counter:      i,
		}
	}
	return items
}

func newTestClient(serverURL string, pageSize, refreshEvery int) *Client {
	return NewClient(context.Background(), Config{
		BaseURL:      serverURL,
		AccessKey:    "key",
		SecretKey:    "secret",
		PageSize:     pageSize,
		RefreshEvery: refreshEvery,
	})
}

func TestClient_ListRepositories(t *testing.T) {
	t.Run("maps the wire payload to domain repositories", func(t *testing.T) {
		platform := &fakePlatform{repos: []repositoryItem{
			{
				ID:            "r-1",
				Repository:    "vault",
				Owner:         "acme",
				DefaultBranch: "main",
				IsPublic:      true,
				Runs:          12,
				Source:        "Github",
				CreationDate:  "2024-01-02T03:04:05Z",
				LastScanDate:  "2024-06-07T08:09:10Z",
				Description:   "secrets storage",
				URL:           "https://github.com/acme/vault",
			},
			{ID: "r-2", Repository: "billing", Owner: "acme", DefaultBranch: "develop"},
		}}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		repos, err := client.ListRepositories(context.Background())

		require.NoError(t, err)
		require.Len(t, repos, 2)
		assert.Equal(t, "vault", repos[0].Name)
		assert.Equal(t, "acme", repos[0].Owner)
		assert.Equal(t, "main", repos[0].DefaultBranch)
		assert.True(t, repos[0].IsPublic)
		assert.Equal(t, 12, repos[0].Runs)
		assert.Equal(t, "acme/vault", repos[0].DerivedKey())
		assert.Equal(t, "acme/billing", repos[1].DerivedKey())
	})

	t.Run("sends the bearer credential", func(t *testing.T) {
		platform := &fakePlatform{}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		_, err := client.ListRepositories(context.Background())

		require.NoError(t, err)
		require.Len(t, platform.dataAuth, 1)
		assert.Equal(t, "Bearer t-1", platform.dataAuth[0])
	})
}

func TestClient_EachResourcePage(t *testing.T) {
	query := domain.ResourceQuery{
		RepoIDs:    []string{"repo-1", "repo-2"},
		Branch:     "main",
		Categories: domain.AllCategories(),
	}

	t.Run("drains 150 resources in exactly two requests", func(t *testing.T) {
		platform := &fakePlatform{resources: makeResources(150)}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		var got []domain.Resource
		err := client.EachResourcePage(context.Background(), query, func(batch []domain.Resource) error {
			got = append(got, batch...)
			return nil
		})

		require.NoError(t, err)
		assert.Len(t, got, 150)
		require.Len(t, platform.resourceReqs, 2)
		assert.Equal(t, 0, platform.resourceReqs[0].Offset)
		assert.Equal(t, 100, platform.resourceReqs[1].Offset)
		assert.Equal(t, 100, platform.resourceReqs[1].Limit)
	})

	t.Run("sends the branch-scan filter block", func(t *testing.T) {
		platform := &fakePlatform{resources: makeResources(1)}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		err := client.EachResourcePage(context.Background(), query, func([]domain.Resource) error { return nil })

		require.NoError(t, err)
		require.NotEmpty(t, platform.resourceReqs)
		filters := platform.resourceReqs[0].Filters
		assert.Equal(t, []string{"repo-1", "repo-2"}, filters.Repositories)
		assert.Equal(t, "main", filters.Branch)
		assert.Equal(t, checkStatusError, filters.CheckStatus)
		assert.Equal(t, domain.AllCategories(), filters.CodeCategories)
	})

	t.Run("falls back to the query branch when an item omits it", func(t *testing.T) {
		platform := &fakePlatform{resources: []resourceItem{
			{ResourceUUID: "u-1", RepoID: "repo-1", CodeCategory: domain.CategorySecrets},
		}}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		var got []domain.Resource
		err := client.EachResourcePage(context.Background(), query, func(batch []domain.Resource) error {
			got = append(got, batch...)
			return nil
		})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "main", got[0].ScanBranch)
	})

	t.Run("error marker aborts the sequence after delivered pages", func(t *testing.T) {
		platform := &fakePlatform{resources: makeResources(250), markerOnResourceReq: 2}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		var delivered int
		err := client.EachResourcePage(context.Background(), query, func(batch []domain.Resource) error {
			delivered += len(batch)
			return nil
		})

		require.Error(t, err)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusOK, apiErr.Status)
		assert.Contains(t, apiErr.Message, "quota exceeded")
		assert.Equal(t, 100, delivered, "first page stays delivered")
	})

	t.Run("non-2xx surfaces as an api error with the status", func(t *testing.T) {
		platform := &fakePlatform{resources: makeResources(10), failResourcesWith: http.StatusBadGateway}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		err := client.EachResourcePage(context.Background(), query, func([]domain.Resource) error { return nil })

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.Status)
		assert.Equal(t, resourcesPath, apiErr.Endpoint)
		assert.True(t, IsAPIError(err))
	})
}

func TestClient_EachPolicyPage(t *testing.T) {
	unit := domain.WorkUnit{Resource: domain.Resource{
		ResourceUUID: "uuid-007",
		RepoID:       "repo-1",
		ScanBranch:   "main",
		CodeCategory: domain.CategoryVulnerabilities,
		Counter:      3,
	}}

	t.Run("fetches details with the unit's narrowed filters", func(t *testing.T) {
		platform := &fakePlatform{policies: map[string][]policyItem{
			"uuid-007": {
				{Severity: "HIGH", Title: "Outdated OpenSSL", CVSS: 8.1, RiskFactors: []string{"RCE", "Has fix"}},
				{Severity: "LOW", Title: "Verbose banner"},
			},
		}}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		var got []domain.Finding
		err := client.EachPolicyPage(context.Background(), unit, func(batch []domain.Finding) error {
			got = append(got, batch...)
			return nil
		})

		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, http.MethodGet, platform.policyMethod)
		assert.Equal(t, resourcesPath+"/uuid-007/policies", platform.policyPath)
		require.Len(t, platform.policyReqs, 1)
		filters := platform.policyReqs[0].Filters
		assert.Equal(t, []string{"repo-1"}, filters.Repositories)
		assert.Equal(t, "main", filters.Branch)
		assert.Equal(t, []string{domain.CategoryVulnerabilities}, filters.CodeCategories)
		assert.Equal(t, checkStatusError, filters.CheckStatus)
	})

	t.Run("stamps findings with the unit's composite key", func(t *testing.T) {
		platform := &fakePlatform{policies: map[string][]policyItem{
			"uuid-007": {{Severity: "HIGH", Title: "Outdated OpenSSL"}},
		}}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		var got []domain.Finding
		err := client.EachPolicyPage(context.Background(), unit, func(batch []domain.Finding) error {
			got = append(got, batch...)
			return nil
		})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "uuid-007", got[0].ResourceUUID)
		assert.Equal(t, "repo-1", got[0].RepoID)
		assert.Equal(t, "main", got[0].ScanBranch)
		assert.Equal(t, domain.CategoryVulnerabilities, got[0].CodeCategory)
		assert.Equal(t, "Outdated OpenSSL", got[0].Issue)
	})

	t.Run("unit with no findings delivers nothing", func(t *testing.T) {
		platform := &fakePlatform{policies: map[string][]policyItem{}}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		delivered := 0
		err := client.EachPolicyPage(context.Background(), unit, func([]domain.Finding) error {
			delivered++
			return nil
		})

		require.NoError(t, err)
		assert.Zero(t, delivered)
	})
}

func TestClient_RequestCountRefresh(t *testing.T) {
	t.Run("re-runs the login exchange at the request threshold", func(t *testing.T) {
		platform := &fakePlatform{resources: makeResources(250)}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 2)

		err := client.EachResourcePage(context.Background(), domain.ResourceQuery{Branch: "main"}, func([]domain.Resource) error { return nil })

		require.NoError(t, err)
		// Initial lazy exchange plus one at the two-request boundary.
		assert.Equal(t, 2, platform.loginCount())
		assert.Equal(t, int64(3), client.CompletedRequests())
		require.Len(t, platform.dataAuth, 3)
		assert.Equal(t, "Bearer t-1", platform.dataAuth[0])
		assert.Equal(t, "Bearer t-1", platform.dataAuth[1])
		assert.Equal(t, "Bearer t-2", platform.dataAuth[2], "refreshed credential reaches the next request")
	})
}

func TestClient_RefreshToken(t *testing.T) {
	t.Run("explicit refresh replaces the shared credential", func(t *testing.T) {
		platform := &fakePlatform{}
		server := platform.server(t)
		defer server.Close()

		client := newTestClient(server.URL, 100, 0)

		require.NoError(t, client.RefreshToken(context.Background()))
		require.NoError(t, client.RefreshToken(context.Background()))
		_, err := client.ListRepositories(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, platform.loginCount())
		require.Len(t, platform.dataAuth, 1)
		assert.Equal(t, "Bearer t-2", platform.dataAuth[0])
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("tracks advertised quota headers", func(t *testing.T) {
		rl := NewRateLimiter(0)
		resp := &http.Response{Header: http.Header{}}
		resp.Header.Set("X-RateLimit-Limit", "600")
		resp.Header.Set("X-RateLimit-Remaining", "42")

		rl.UpdateFromResponse(resp)

		assert.Equal(t, 42, rl.Remaining())
	})

	t.Run("remaining is unknown before any response", func(t *testing.T) {
		rl := NewRateLimiter(10)

		assert.Equal(t, -1, rl.Remaining())
	})

	t.Run("ignores responses without quota headers", func(t *testing.T) {
		rl := NewRateLimiter(0)

		rl.UpdateFromResponse(&http.Response{Header: http.Header{}})

		assert.Equal(t, -1, rl.Remaining())
	})

	t.Run("wait respects context cancellation", func(t *testing.T) {
		rl := NewRateLimiter(10)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := rl.Wait(ctx)

		assert.Error(t, err)
	})

	t.Run("disabled bucket does not block", func(t *testing.T) {
		rl := NewRateLimiter(0)

		assert.NoError(t, rl.Wait(context.Background()))
	})
}

func TestPageEnvelope_Marker(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		present bool
	}{
		{name: "no marker", body: `{"data":[],"hasNext":false}`, present: false},
		{name: "null marker", body: `{"data":[],"error":null}`, present: false},
		{name: "empty string marker", body: `{"data":[],"error":""}`, present: false},
		{name: "string marker", body: `{"error":"quota exceeded"}`, want: "quota exceeded", present: true},
		{name: "object marker with message", body: `{"error":{"code":13},"message":"internal"}`, want: "internal", present: true},
		{name: "object marker without message", body: `{"error":{"code":13}}`, want: `{"code":13}`, present: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env pageEnvelope
			require.NoError(t, json.Unmarshal([]byte(tt.body), &env))

			msg, ok := env.marker()

			assert.Equal(t, tt.present, ok)
			if tt.present {
				assert.Equal(t, tt.want, msg)
			}
		})
	}
}
