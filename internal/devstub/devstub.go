// Package devstub implements a miniature backend used for local development
// and integration tests: bearer token issuance plus the directory endpoints,
// all served from canned in-memory data.
package devstub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"talkboard.app/internal/directory"
	"talkboard.app/internal/obs"
)

const issuer = "talkboard-devstub"

var errInvalidToken = errors.New("devstub: invalid token")

type claims struct {
	Kind  string   `json:"kind"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Server is the stub backend.
type Server struct {
	secret []byte
	mux    *http.ServeMux

	orgs    []directory.Organization
	schools map[string][]directory.School
	roles   []string
}

// New builds a stub signing tokens with the given secret.
func New(secret string) *Server {
	s := &Server{
		secret: []byte(secret),
		mux:    http.NewServeMux(),
		roles:  []string{"school_admin"},
	}
	s.seed()

	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.Handle("GET /api/teachers/me/roles", s.authed(s.handleRoles))
	s.mux.Handle("GET /api/organizations", s.authed(s.handleOrganizations))
	s.mux.Handle("GET /api/organizations/{id}", s.authed(s.handleOrganization))
	s.mux.Handle("GET /api/organizations/{id}/schools", s.authed(s.handleOrgSchools))
	s.mux.Handle("GET /api/schools", s.authed(s.handleSchools))
	s.mux.Handle("GET /api/schools/{id}", s.authed(s.handleSchool))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "talkboard-devstub"})
	})
	s.mux.Handle("GET /metrics", obs.Handler())
	return s
}

// Handler returns the stub's HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) seed() {
	now := time.Now().UTC()
	s.orgs = []directory.Organization{
		{ID: "org-north", Name: "north-district", DisplayName: "North District", IsActive: true, CreatedAt: now},
		{ID: "org-south", Name: "south-district", DisplayName: "South District", IsActive: true, CreatedAt: now},
	}
	s.schools = map[string][]directory.School{
		"org-north": {
			{ID: "sch-riverside", OrganizationID: "org-north", Name: "Riverside Elementary", IsActive: true, CreatedAt: now},
			{ID: "sch-hilltop", OrganizationID: "org-north", Name: "Hilltop Middle", IsActive: true, CreatedAt: now},
		},
		"org-south": {
			{ID: "sch-lakeview", OrganizationID: "org-south", Name: "Lakeview High", IsActive: true, CreatedAt: now},
		},
	}
}

// IssueToken signs a short-lived bearer token for the given identity.
func (s *Server) IssueToken(userID, kind string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Kind:  kind,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) parseToken(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Issuer != issuer {
		return nil, errInvalidToken
	}
	return c, nil
}

func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing bearer token"})
			return
		}
		if _, err := s.parseToken(token); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
			return
		}
		next(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Kind  string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email is required"})
		return
	}
	if req.Kind == "" {
		req.Kind = "teacher"
	}
	userID := "user-" + strings.SplitN(req.Email, "@", 2)[0]
	var roles []string
	if req.Kind == "teacher" {
		roles = s.roles
	}
	token, err := s.IssueToken(userID, req.Kind, roles, time.Hour)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "token signing failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":    userID,
			"name":  strings.SplitN(req.Email, "@", 2)[0],
			"email": req.Email,
			"kind":  req.Kind,
		},
	})
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roles": s.roles})
}

func (s *Server) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs := s.orgs
	if r.URL.Query().Get("owner_only") == "true" {
		// canned data: the first organization belongs to the caller
		orgs = s.orgs[:1]
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (s *Server) handleOrganization(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, org := range s.orgs {
		if org.ID == id {
			writeJSON(w, http.StatusOK, org)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "organization not found"})
}

func (s *Server) handleOrgSchools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.schoolsFor(r.PathValue("id")))
}

func (s *Server) handleSchools(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "organization_id is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.schoolsFor(orgID))
}

func (s *Server) handleSchool(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, schools := range s.schools {
		for _, school := range schools {
			if school.ID == id {
				writeJSON(w, http.StatusOK, school)
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "school not found"})
}

func (s *Server) schoolsFor(orgID string) []directory.School {
	schools := s.schools[orgID]
	if schools == nil {
		schools = []directory.School{}
	}
	return schools
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
