// Package workspace tracks which organizational scope the UI operates
// against: the signed-in user's personal context, or a selected
// organization/school. The mutating operations enforce the scope invariants
// themselves, so no caller can observe a personal workspace with a lingering
// selection.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"talkboard.app/internal/directory"
	"talkboard.app/internal/obs"
	"talkboard.app/internal/storage"
)

// Mode is the workspace scope.
type Mode string

const (
	ModePersonal     Mode = "personal"
	ModeOrganization Mode = "organization"
)

// Persisted entries, each rehydrated independently at boot.
const (
	modeKey   = "workspace:mode"
	orgKey    = "workspace:organization"
	schoolKey = "workspace:school"
)

// TokenSource yields the active bearer token; empty means signed out. The
// credential resolver is the production implementation.
type TokenSource interface {
	Token() string
}

// Context is the workspace state machine. personal ⇒ no selection; selecting
// a school forces organization mode and implies its parent organization.
type Context struct {
	kv     storage.KV
	tokens TokenSource
	cache  *directory.Cache

	mu     sync.RWMutex
	mode   Mode
	org    *directory.Organization
	school *directory.School
	err    error
}

// NewContext wires the workspace to storage, the token source and the
// directory cache, then rehydrates the persisted selection. Missing or
// unparsable entries default to personal/nil/nil.
func NewContext(kv storage.KV, tokens TokenSource, cache *directory.Cache) (*Context, error) {
	if kv == nil {
		return nil, errors.New("workspace: storage is required")
	}
	if tokens == nil {
		return nil, errors.New("workspace: token source is required")
	}
	if cache == nil {
		return nil, errors.New("workspace: directory cache is required")
	}
	c := &Context{kv: kv, tokens: tokens, cache: cache, mode: ModePersonal}
	c.hydrate()
	return c, nil
}

func (c *Context) hydrate() {
	ctx := context.Background()

	if raw, err := c.kv.Get(ctx, modeKey); err == nil {
		switch Mode(raw) {
		case ModePersonal, ModeOrganization:
			c.mode = Mode(raw)
		default:
			obs.Warn("workspace: unknown persisted mode, defaulting to personal", map[string]any{"mode": string(raw)})
		}
	}

	c.org = hydrateJSON[directory.Organization](ctx, c.kv, orgKey)
	c.school = hydrateJSON[directory.School](ctx, c.kv, schoolKey)

	// enforce invariants on whatever storage handed back
	if c.mode == ModePersonal {
		c.org = nil
		c.school = nil
	}
	if c.school != nil && c.org == nil {
		c.school = nil
	}
}

func hydrateJSON[T any](ctx context.Context, kv storage.KV, key string) *T {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		obs.Warn("workspace: corrupt persisted entry, ignoring", map[string]any{"key": key})
		return nil
	}
	return &v
}

// Mode returns the current scope.
func (c *Context) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SelectedOrganization returns the selected organization, if any.
func (c *Context) SelectedOrganization() *directory.Organization {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.org == nil {
		return nil
	}
	out := *c.org
	return &out
}

// SelectedSchool returns the selected school, if any.
func (c *Context) SelectedSchool() *directory.School {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.school == nil {
		return nil
	}
	out := *c.school
	return &out
}

// Err returns the last organization-fetch failure, nil after a success.
func (c *Context) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// SetMode switches scope. Switching to personal is the only transition that
// clears the selection; its persisted entries are removed in the same call.
func (c *Context) SetMode(ctx context.Context, mode Mode) error {
	if mode != ModePersonal && mode != ModeOrganization {
		return fmt.Errorf("workspace: unknown mode %q", mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	if mode == ModePersonal {
		c.org = nil
		c.school = nil
		if err := c.kv.Delete(ctx, orgKey); err != nil {
			return fmt.Errorf("workspace: clear selection: %w", err)
		}
		if err := c.kv.Delete(ctx, schoolKey); err != nil {
			return fmt.Errorf("workspace: clear selection: %w", err)
		}
	}
	if err := c.kv.Set(ctx, modeKey, []byte(mode)); err != nil {
		return fmt.Errorf("workspace: persist mode: %w", err)
	}
	return nil
}

// SelectOrganization selects an organization (dropping any school selection)
// and forces organization mode.
func (c *Context) SelectOrganization(ctx context.Context, org directory.Organization) error {
	if org.ID == "" {
		return errors.New("workspace: organization id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeOrganization
	c.org = &org
	c.school = nil
	if err := c.kv.Delete(ctx, schoolKey); err != nil {
		return fmt.Errorf("workspace: clear school: %w", err)
	}
	return c.persistSelectionLocked(ctx)
}

// SelectSchool selects a school together with its parent organization. This
// is the only transition into a concrete selection, and it unconditionally
// forces organization mode.
func (c *Context) SelectSchool(ctx context.Context, school directory.School, org directory.Organization) error {
	if school.ID == "" || org.ID == "" {
		return errors.New("workspace: school and organization are required")
	}
	if school.OrganizationID != "" && school.OrganizationID != org.ID {
		return fmt.Errorf("workspace: school %s does not belong to organization %s", school.ID, org.ID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeOrganization
	c.org = &org
	c.school = &school
	if err := c.persistSelectionLocked(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(school)
	if err != nil {
		return fmt.Errorf("workspace: marshal school: %w", err)
	}
	if err := c.kv.Set(ctx, schoolKey, data); err != nil {
		return fmt.Errorf("workspace: persist school: %w", err)
	}
	return nil
}

func (c *Context) persistSelectionLocked(ctx context.Context) error {
	if err := c.kv.Set(ctx, modeKey, []byte(c.mode)); err != nil {
		return fmt.Errorf("workspace: persist mode: %w", err)
	}
	data, err := json.Marshal(c.org)
	if err != nil {
		return fmt.Errorf("workspace: marshal organization: %w", err)
	}
	if err := c.kv.Set(ctx, orgKey, data); err != nil {
		return fmt.Errorf("workspace: persist organization: %w", err)
	}
	return nil
}

// FetchOrganizations refreshes the directory's organization list for the
// active credential. Without a resolvable token it is a no-op with a
// warning; a failed fetch lands in Err() and leaves previously loaded data
// in place.
func (c *Context) FetchOrganizations(ctx context.Context) {
	token := c.tokens.Token()
	if token == "" {
		obs.Warn("workspace: organization fetch skipped, no resolvable token", nil)
		return
	}
	err := c.cache.RefreshOrganizations(ctx, token)
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Organizations serves the cached organization list.
func (c *Context) Organizations() []directory.Organization {
	return c.cache.Organizations()
}
