// Package permission computes effective capability sets for staff principals.
// All functions are pure and total: a nil subject or missing permission record
// resolves to the most restrictive answer, never to an error.
package permission

// Role is a staff principal's explicit role within the organization hierarchy.
type Role string

const (
	RoleOrgOwner       Role = "org_owner"
	RoleOrgAdmin       Role = "org_admin"
	RoleSchoolAdmin    Role = "school_admin"
	RoleSchoolDirector Role = "school_director"
	RoleTeacher        Role = "teacher"
	RoleUnset          Role = ""
)

// Key identifies one boolean capability in a Set.
type Key string

const (
	KeyCreateClassrooms   Key = "can_create_classrooms"
	KeyViewOtherTeachers  Key = "can_view_other_teachers"
	KeyManageStudents     Key = "can_manage_students"
	KeyViewAllClassrooms  Key = "can_view_all_classrooms"
	KeyEditSchoolSettings Key = "can_edit_school_settings"
)

// Wildcard grants every action when present in AllowedActions.
const Wildcard = "*"

// Unlimited is the MaxClassrooms sentinel for "no quota".
const Unlimited = -1

// Set is a concrete capability set.
type Set struct {
	CanCreateClassrooms   bool     `json:"can_create_classrooms"`
	CanViewOtherTeachers  bool     `json:"can_view_other_teachers"`
	CanManageStudents     bool     `json:"can_manage_students"`
	CanViewAllClassrooms  bool     `json:"can_view_all_classrooms"`
	CanEditSchoolSettings bool     `json:"can_edit_school_settings"`
	MaxClassrooms         int      `json:"max_classrooms"`
	AllowedActions        []string `json:"allowed_actions"`
}

// Subject is the slice of a principal the engine operates on.
type Subject struct {
	Role        Role
	Permissions *Set
}

// Templates map roles to capability sets. They never mutate at runtime;
// callers always receive copies.
var (
	fullTemplate = Set{
		CanCreateClassrooms:   true,
		CanViewOtherTeachers:  true,
		CanManageStudents:     true,
		CanViewAllClassrooms:  true,
		CanEditSchoolSettings: true,
		MaxClassrooms:         Unlimited,
		AllowedActions:        []string{Wildcard},
	}
	schoolAdminTemplate = Set{
		CanCreateClassrooms:   true,
		CanViewOtherTeachers:  true,
		CanManageStudents:     true,
		CanViewAllClassrooms:  true,
		CanEditSchoolSettings: false,
		MaxClassrooms:         Unlimited,
		AllowedActions:        []string{Wildcard},
	}
	limitedTemplate = Set{MaxClassrooms: 0}
	zeroTemplate    = Set{}
)

// FullTemplate returns the blanket-access set granted to organization owners.
func FullTemplate() Set { return copySet(fullTemplate) }

// SchoolAdminTemplate returns the school-admin set: everything except school
// settings edits.
func SchoolAdminTemplate() Set { return copySet(schoolAdminTemplate) }

// LimitedTemplate returns the minimal set used for roles without an explicit
// permission record.
func LimitedTemplate() Set { return copySet(limitedTemplate) }

func copySet(s Set) Set {
	out := s
	if s.AllowedActions != nil {
		out.AllowedActions = make([]string, len(s.AllowedActions))
		copy(out.AllowedActions, s.AllowedActions)
	}
	return out
}

// Effective resolves the capability set for a subject. Role elevation wins
// over any stored record; unknown or unset roles fall back to the explicit
// record, then to the limited template.
func Effective(s *Subject) Set {
	if s == nil {
		return copySet(zeroTemplate)
	}
	switch s.Role {
	case RoleOrgOwner:
		return FullTemplate()
	case RoleSchoolAdmin:
		return SchoolAdminTemplate()
	}
	if s.Permissions != nil {
		return copySet(*s.Permissions)
	}
	return LimitedTemplate()
}

// Has reports whether the subject holds the capability identified by key.
func Has(s *Subject, key Key) bool {
	if s == nil {
		return false
	}
	switch s.Role {
	case RoleOrgOwner:
		return true
	case RoleSchoolAdmin:
		return key != KeyEditSchoolSettings
	}
	set := Effective(s)
	switch key {
	case KeyCreateClassrooms:
		return set.CanCreateClassrooms
	case KeyViewOtherTeachers:
		return set.CanViewOtherTeachers
	case KeyManageStudents:
		return set.CanManageStudents
	case KeyViewAllClassrooms:
		return set.CanViewAllClassrooms
	case KeyEditSchoolSettings:
		return set.CanEditSchoolSettings
	}
	return false
}

// CanPerformAction reports whether the subject may execute the named action.
func CanPerformAction(s *Subject, action string) bool {
	if s == nil || action == "" {
		return false
	}
	if s.Role == RoleOrgOwner {
		return true
	}
	for _, a := range Effective(s).AllowedActions {
		if a == Wildcard || a == action {
			return true
		}
	}
	return false
}

// CanCreateClassroom reports whether the subject may create one more
// classroom given how many it already has.
func CanCreateClassroom(s *Subject, currentCount int) bool {
	set := Effective(s)
	if !set.CanCreateClassrooms {
		return false
	}
	if set.MaxClassrooms == Unlimited {
		return true
	}
	return currentCount < set.MaxClassrooms
}

// Merge composes two sets field-wise with override winning, except
// AllowedActions which is the union of both sides: composing a role template
// with a custom grant must never drop actions granted by either.
func Merge(base, override Set) Set {
	out := override
	out.AllowedActions = unionActions(base.AllowedActions, override.AllowedActions)
	return out
}

func unionActions(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, action := range list {
			if action == "" {
				continue
			}
			if _, ok := seen[action]; ok {
				continue
			}
			seen[action] = struct{}{}
			out = append(out, action)
		}
	}
	return out
}

// Validate rejects internally inconsistent sets: a quota below the unlimited
// sentinel, or a positive quota on a subject that cannot create classrooms.
func Validate(s Set) bool {
	if s.MaxClassrooms < Unlimited {
		return false
	}
	if !s.CanCreateClassrooms && s.MaxClassrooms > 0 {
		return false
	}
	return true
}
