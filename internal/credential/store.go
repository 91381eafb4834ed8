package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"talkboard.app/internal/obs"
	"talkboard.app/internal/storage"
)

// Storage keys, one durable record per principal kind.
const (
	teacherStorageKey = "teacher-auth-storage"
	studentStorageKey = "student-auth-storage"
)

var errUnknownKind = errors.New("credential: unknown principal kind")

// Store holds one principal kind's credential. It is process-wide shared
// state: any component may read it, only Login/Logout/UpdateUser mutate it.
// Every mutation synchronously rewrites the kind's persisted record.
type Store struct {
	mu   sync.RWMutex
	kind Kind
	kv   storage.KV

	token     string
	principal *Principal

	// Teacher-only role cache populated from the backend.
	roles        []string
	rolesLoading bool
}

// NewStore creates the store for one kind and rehydrates it from storage.
// A corrupt or structurally wrong persisted record degrades to a signed-out
// store rather than an error.
func NewStore(kind Kind, kv storage.KV) (*Store, error) {
	if kind != KindTeacher && kind != KindStudent {
		return nil, fmt.Errorf("%w: %q", errUnknownKind, kind)
	}
	if kv == nil {
		return nil, errors.New("credential: storage is required")
	}
	s := &Store{kind: kind, kv: kv}
	s.hydrate()
	return s, nil
}

// Kind returns the principal kind this store owns.
func (s *Store) Kind() Kind { return s.kind }

func (s *Store) storageKey() string {
	if s.kind == KindStudent {
		return studentStorageKey
	}
	return teacherStorageKey
}

// persistedState mirrors the on-disk record. The same shape decodes both
// kinds; the teacher-only fields stay zero for students.
type persistedState struct {
	Token           string     `json:"token"`
	User            *Principal `json:"user"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	UserRoles       []string   `json:"userRoles,omitempty"`
	RolesLoading    bool       `json:"rolesLoading,omitempty"`
}

type persistedRecord struct {
	State persistedState `json:"state"`
}

func (s *Store) hydrate() {
	raw, err := s.kv.Get(context.Background(), s.storageKey())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			obs.Warn("credential: read persisted record failed", map[string]any{
				"kind": string(s.kind), "key": s.storageKey(),
			})
		}
		return
	}
	var rec persistedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		obs.Warn("credential: corrupt persisted record, treating as signed out", map[string]any{
			"kind": string(s.kind), "key": s.storageKey(),
		})
		return
	}
	// Authenticity derives from the tuple itself, not the stored flag.
	if rec.State.Token == "" || rec.State.User == nil {
		return
	}
	s.token = rec.State.Token
	s.principal = rec.State.User
	if s.kind == KindTeacher {
		s.roles = rec.State.UserRoles
	}
}

func (s *Store) persistLocked(ctx context.Context) error {
	state := persistedState{
		Token:           s.token,
		User:            s.principal,
		IsAuthenticated: s.token != "" && s.principal != nil,
	}
	if s.kind == KindTeacher {
		state.UserRoles = s.roles
		state.RolesLoading = s.rolesLoading
	}
	data, err := json.Marshal(persistedRecord{State: state})
	if err != nil {
		return fmt.Errorf("credential: marshal record: %w", err)
	}
	if err := s.kv.Set(ctx, s.storageKey(), data); err != nil {
		return fmt.Errorf("credential: persist record: %w", err)
	}
	return nil
}

// Login unconditionally overwrites the credential and persists it. The token
// is trusted as received from the network layer; no format validation.
func (s *Store) Login(ctx context.Context, token string, principal *Principal) error {
	if token == "" || principal == nil {
		return errors.New("credential: token and principal are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.principal = principal.clone()
	s.principal.Kind = s.kind
	return s.persistLocked(ctx)
}

// Logout clears the credential and the role cache, then persists the cleared
// state. Idempotent: logging out an empty store is a no-op, never an error.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.principal = nil
	s.roles = nil
	s.rolesLoading = false
	return s.persistLocked(ctx)
}

// UpdateUser merges a partial principal patch. A no-op when no principal is
// currently set.
func (s *Store) UpdateUser(ctx context.Context, patch PrincipalPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return nil
	}
	p := s.principal
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	if patch.OrganizationID != nil {
		p.OrganizationID = *patch.OrganizationID
	}
	if patch.SchoolID != nil {
		p.SchoolID = *patch.SchoolID
	}
	if patch.IsAdmin != nil {
		p.IsAdmin = *patch.IsAdmin
	}
	if patch.IsDemo != nil {
		p.IsDemo = *patch.IsDemo
	}
	if patch.Permissions != nil {
		perms := *patch.Permissions
		p.Permissions = &perms
	}
	return s.persistLocked(ctx)
}

// Credential returns a copy of the current state.
func (s *Store) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credential{
		Token:         s.token,
		Principal:     s.principal.clone(),
		Authenticated: s.token != "" && s.principal != nil,
	}
}

// Authenticated reports whether a principal is currently signed in.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.principal != nil
}

// Token returns the bearer token, empty when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Roles returns the cached backend roles for a teacher principal.
func (s *Store) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.roles))
	copy(out, s.roles)
	return out
}

// RolesLoading reports whether a role refresh is in flight.
func (s *Store) RolesLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rolesLoading
}

// RolesFetcher retrieves the signed-in teacher's backend roles.
type RolesFetcher interface {
	TeacherRoles(ctx context.Context, token string) ([]string, error)
}

// RefreshRoles fetches the teacher's roles from the backend and caches them.
// A failed fetch keeps the previous roles in place. No-op for student stores
// and for signed-out stores.
func (s *Store) RefreshRoles(ctx context.Context, fetch RolesFetcher) error {
	if s.kind != KindTeacher {
		return nil
	}
	s.mu.Lock()
	if s.token == "" || s.principal == nil {
		s.mu.Unlock()
		obs.Warn("credential: role refresh without a signed-in teacher", nil)
		return nil
	}
	token := s.token
	s.rolesLoading = true
	_ = s.persistLocked(ctx)
	s.mu.Unlock()

	roles, err := fetch.TeacherRoles(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolesLoading = false
	if err != nil {
		_ = s.persistLocked(ctx)
		obs.Error("credential: role refresh failed", err, map[string]any{"kind": string(s.kind)})
		return err
	}
	s.roles = roles
	return s.persistLocked(ctx)
}
