package credential

import (
	"context"
	"errors"

	"talkboard.app/internal/storage"
)

// legacyKeys are stray entries written by earlier client versions. Current
// code never writes them; unified sign-out deletes them unconditionally.
var legacyKeys = []string{
	"token",
	"access_token",
	"user",
	"userInfo",
	"role",
	"username",
	"userType",
	"auth-storage",
	"selectedPlan",
}

// Manager coordinates sign-out across both kind stores.
type Manager struct {
	teacher *Store
	student *Store
	kv      storage.KV
}

// NewManager wires both stores and the shared storage used for the legacy
// key purge.
func NewManager(teacher, student *Store, kv storage.KV) (*Manager, error) {
	if teacher == nil || student == nil {
		return nil, errors.New("credential: manager requires both stores")
	}
	if kv == nil {
		return nil, errors.New("credential: storage is required")
	}
	return &Manager{teacher: teacher, student: student, kv: kv}, nil
}

// ClearAllAuth logs out both stores and purges every legacy auth key in one
// pass, whether or not the keys exist. Non-auth entries are left alone.
func (m *Manager) ClearAllAuth(ctx context.Context) error {
	var errs []error
	if err := m.teacher.Logout(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := m.student.Logout(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, key := range legacyKeys {
		if err := m.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogoutTeacher signs out only the teacher store; the student store and all
// legacy keys are untouched.
func (m *Manager) LogoutTeacher(ctx context.Context) error {
	return m.teacher.Logout(ctx)
}

// LogoutStudent signs out only the student store.
func (m *Manager) LogoutStudent(ctx context.Context) error {
	return m.student.Logout(ctx)
}
