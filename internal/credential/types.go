package credential

import (
	"talkboard.app/internal/permission"
)

// Kind distinguishes the two principal kinds that can be signed in at once.
type Kind string

const (
	KindTeacher Kind = "teacher"
	KindStudent Kind = "student"
)

// Principal is an authenticated identity. The role and organization fields
// are only populated for teacher principals.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Kind  Kind   `json:"kind"`

	Role           permission.Role `json:"role,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
	SchoolID       string          `json:"school_id,omitempty"`
	IsAdmin        bool            `json:"is_admin,omitempty"`
	IsDemo         bool            `json:"is_demo,omitempty"`
	Permissions    *permission.Set `json:"permissions,omitempty"`
}

// Subject projects the principal into the permission engine's view. Safe on
// a nil principal.
func (p *Principal) Subject() *permission.Subject {
	if p == nil {
		return nil
	}
	return &permission.Subject{Role: p.Role, Permissions: p.Permissions}
}

func (p *Principal) clone() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	if p.Permissions != nil {
		perms := *p.Permissions
		if p.Permissions.AllowedActions != nil {
			perms.AllowedActions = make([]string, len(p.Permissions.AllowedActions))
			copy(perms.AllowedActions, p.Permissions.AllowedActions)
		}
		out.Permissions = &perms
	}
	return &out
}

// Credential is one kind's bearer token plus profile.
// Authenticated == (Token != "" && Principal != nil) after every operation.
type Credential struct {
	Token         string
	Principal     *Principal
	Authenticated bool
}

// PrincipalPatch is a partial principal update; nil fields are left as-is.
type PrincipalPatch struct {
	Name           *string
	Email          *string
	Role           *permission.Role
	OrganizationID *string
	SchoolID       *string
	IsAdmin        *bool
	IsDemo         *bool
	Permissions    *permission.Set
}
