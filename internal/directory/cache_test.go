package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newCacheFixture(t *testing.T, handler http.Handler) *Cache {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	cache, err := NewCache(client, func(scope string, err error) {})
	require.NoError(t, err)
	return cache
}

func TestRefreshOrganizationsReplacesWholesale(t *testing.T) {
	var serve atomic.Value
	serve.Store([]Organization{{ID: "org-1", Name: "North"}})
	cache := newCacheFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(serve.Load())
	}))
	ctx := context.Background()

	require.NoError(t, cache.RefreshOrganizations(ctx, "tok"))
	require.Len(t, cache.Organizations(), 1)

	serve.Store([]Organization{{ID: "org-2"}, {ID: "org-3"}})
	require.NoError(t, cache.RefreshOrganizations(ctx, "tok"))
	orgs := cache.Organizations()
	require.Len(t, orgs, 2)
	require.Equal(t, "org-2", orgs[0].ID)
	require.False(t, cache.Loading())
}

func TestRefreshFailureRetainsPreviousContents(t *testing.T) {
	var fail atomic.Bool
	var reported []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]Organization{{ID: "org-1"}})
	}))
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	cache, err := NewCache(client, func(scope string, err error) {
		mu.Lock()
		reported = append(reported, scope)
		mu.Unlock()
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.RefreshOrganizations(ctx, "tok"))
	require.Len(t, cache.Organizations(), 1)

	fail.Store(true)
	err = cache.RefreshOrganizations(ctx, "tok")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)

	// stale-but-available beats empty-on-error
	require.Len(t, cache.Organizations(), 1)
	require.False(t, cache.Loading())
	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, reported, "organizations")
}

func TestRefreshSchoolsKeyedReplacement(t *testing.T) {
	cache := newCacheFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		orgID := parts[3]
		_ = json.NewEncoder(w).Encode([]School{{ID: "sch-" + orgID, OrganizationID: orgID}})
	}))
	ctx := context.Background()

	// concurrent refreshes for different organizations write disjoint slots
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, orgID := range []string{"orgA", "orgB"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			errs <- cache.RefreshSchools(ctx, "tok", id)
		}(orgID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	a := cache.Schools("orgA")
	b := cache.Schools("orgB")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	require.Equal(t, "sch-orgA", a[0].ID)
	require.Equal(t, "sch-orgB", b[0].ID)

	require.Error(t, cache.RefreshSchools(ctx, "tok", ""))
}

func TestRefreshSchoolsFailureLeavesOtherOrgsAlone(t *testing.T) {
	var failOrg atomic.Value
	failOrg.Store("")
	cache := newCacheFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		orgID := parts[3]
		if orgID == failOrg.Load().(string) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]School{{ID: "sch-" + orgID, OrganizationID: orgID}})
	}))
	ctx := context.Background()

	require.NoError(t, cache.RefreshSchools(ctx, "tok", "orgA"))
	require.NoError(t, cache.RefreshSchools(ctx, "tok", "orgB"))

	failOrg.Store("orgA")
	require.Error(t, cache.RefreshSchools(ctx, "tok", "orgA"))
	require.Len(t, cache.Schools("orgA"), 1)
	require.Len(t, cache.Schools("orgB"), 1)
	require.False(t, cache.LoadingSchools("orgA"))
}

func TestConcurrentRefreshesShareOneFetch(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	cache := newCacheFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode([]Organization{{ID: "org-1"}})
	}))
	ctx := context.Background()

	var wg, entered sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		entered.Add(1)
		go func() {
			defer wg.Done()
			entered.Done()
			_ = cache.RefreshOrganizations(ctx, "tok")
		}()
	}
	// the first fetch blocks on release, so every call issued before the
	// release joins the same flight
	entered.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int64(1), hits.Load())
	require.Len(t, cache.Organizations(), 1)
}

func TestExpandAndSelect(t *testing.T) {
	cache := newCacheFixture(t, http.NotFoundHandler())

	cache.ToggleExpanded("org-1")
	require.True(t, cache.Expanded("org-1"))
	// expanding never implies selecting
	_, ok := cache.Selected()
	require.False(t, ok)

	cache.ToggleExpanded("org-1")
	require.False(t, cache.Expanded("org-1"))

	// selecting a school expands its parent organization
	cache.SelectNode(Node{Type: NodeSchool, ID: "sch-1", OrgID: "org-1"})
	require.True(t, cache.Expanded("org-1"))
	node, ok := cache.Selected()
	require.True(t, ok)
	require.Equal(t, "sch-1", node.ID)

	cache.ClearSelection()
	_, ok = cache.Selected()
	require.False(t, ok)
	// clearing the selection keeps the expansion
	require.True(t, cache.Expanded("org-1"))
}

func TestNewCacheValidation(t *testing.T) {
	_, err := NewCache(nil, nil)
	require.Error(t, err)
}
