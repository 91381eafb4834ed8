package directory

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"talkboard.app/internal/obs"
)

const (
	scopeOrganizations = "organizations"
	scopeSchools       = "schools"
)

// ErrorLogger receives fetch failures instead of having them thrown into a
// render path. The default logs through obs.
type ErrorLogger func(scope string, err error)

// Cache is the in-memory organization/school tree shared across screens.
// Refreshes are idempotent fetch-and-replace operations deduplicated with
// singleflight; failures retain the previous contents. Expand/select state
// is purely presentational and never persisted.
type Cache struct {
	client  *Client
	onError ErrorLogger

	group singleflight.Group

	mu       sync.RWMutex
	orgs     []Organization
	schools  map[string][]School
	loading  map[string]bool
	expanded map[string]struct{}
	selected *Node
}

// NewCache wires the cache to its API client.
func NewCache(client *Client, onError ErrorLogger) (*Cache, error) {
	if client == nil {
		return nil, errors.New("directory: client is required")
	}
	if onError == nil {
		onError = func(scope string, err error) {
			obs.Error("directory: refresh failed", err, map[string]any{"scope": scope})
		}
	}
	return &Cache{
		client:   client,
		onError:  onError,
		schools:  make(map[string][]School),
		loading:  make(map[string]bool),
		expanded: make(map[string]struct{}),
	}, nil
}

// RefreshOrganizations replaces the cached organization list. Concurrent
// callers share one in-flight fetch. On failure the previous list stays.
func (c *Cache) RefreshOrganizations(ctx context.Context, token string) error {
	c.setLoading(scopeOrganizations, true)
	defer c.setLoading(scopeOrganizations, false)

	v, err, _ := c.group.Do(scopeOrganizations, func() (any, error) {
		return c.client.Organizations(ctx, token, false)
	})
	if err != nil {
		obs.ObserveCacheRefresh(scopeOrganizations, "failure")
		c.onError(scopeOrganizations, err)
		return err
	}
	orgs := v.([]Organization)

	c.mu.Lock()
	c.orgs = orgs
	c.mu.Unlock()
	obs.ObserveCacheRefresh(scopeOrganizations, "success")
	return nil
}

// RefreshSchools replaces the cached school list for one organization,
// leaving every other organization's slice untouched.
func (c *Cache) RefreshSchools(ctx context.Context, token, orgID string) error {
	if orgID == "" {
		return errors.New("directory: organization id is required")
	}
	key := scopeSchools + ":" + orgID
	c.setLoading(key, true)
	defer c.setLoading(key, false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.client.OrganizationSchools(ctx, token, orgID)
	})
	if err != nil {
		obs.ObserveCacheRefresh(scopeSchools, "failure")
		c.onError(key, err)
		return err
	}
	schools := v.([]School)

	c.mu.Lock()
	c.schools[orgID] = schools
	c.mu.Unlock()
	obs.ObserveCacheRefresh(scopeSchools, "success")
	return nil
}

func (c *Cache) setLoading(key string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v {
		c.loading[key] = true
	} else {
		delete(c.loading, key)
	}
}

// Loading reports whether a refresh for the organizations list is in flight.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading[scopeOrganizations]
}

// LoadingSchools reports whether a school refresh for orgID is in flight.
func (c *Cache) LoadingSchools(orgID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading[scopeSchools+":"+orgID]
}

// Organizations returns a copy of the cached organization list.
func (c *Cache) Organizations() []Organization {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Organization, len(c.orgs))
	copy(out, c.orgs)
	return out
}

// Schools returns a copy of the cached school list for one organization.
func (c *Cache) Schools(orgID string) []School {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]School, len(c.schools[orgID]))
	copy(out, c.schools[orgID])
	return out
}

// ToggleExpanded flips the expanded flag of one organization row. Expanding
// never implies selecting.
func (c *Cache) ToggleExpanded(orgID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.expanded[orgID]; ok {
		delete(c.expanded, orgID)
	} else {
		c.expanded[orgID] = struct{}{}
	}
}

// Expanded reports whether the organization row is expanded.
func (c *Cache) Expanded(orgID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.expanded[orgID]
	return ok
}

// SelectNode moves UI focus. Selecting a school expands its parent
// organization so the focused row is visible.
func (c *Cache) SelectNode(node Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := node
	c.selected = &n
	if node.Type == NodeSchool && node.OrgID != "" {
		c.expanded[node.OrgID] = struct{}{}
	}
}

// ClearSelection drops the UI focus without touching expansion state.
func (c *Cache) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

// Selected returns the focused node, if any.
func (c *Cache) Selected() (Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return Node{}, false
	}
	return *c.selected, true
}
