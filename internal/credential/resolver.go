package credential

import "errors"

// Resolver picks which bearer token an outgoing request carries. The
// precedence is fixed: on a shared device a student session must never be
// shadowed by a stale teacher session, so student wins whenever both kinds
// are signed in. Every call site that needs token selection goes through
// here rather than re-deriving the rule.
type Resolver struct {
	teacher *Store
	student *Store
}

// NewResolver wires the two kind stores.
func NewResolver(teacher, student *Store) (*Resolver, error) {
	if teacher == nil || student == nil {
		return nil, errors.New("credential: resolver requires both stores")
	}
	return &Resolver{teacher: teacher, student: student}, nil
}

// Token returns the active bearer token, or "" when neither kind is signed
// in. Corrupt persisted state already degraded to signed-out at hydration,
// so this never fails.
func (r *Resolver) Token() string {
	if r.student.Authenticated() {
		return r.student.Token()
	}
	if r.teacher.Authenticated() {
		return r.teacher.Token()
	}
	return ""
}

// Active returns the winning credential and its kind.
func (r *Resolver) Active() (Kind, Credential, bool) {
	if cred := r.student.Credential(); cred.Authenticated {
		return KindStudent, cred, true
	}
	if cred := r.teacher.Credential(); cred.Authenticated {
		return KindTeacher, cred, true
	}
	return "", Credential{}, false
}
