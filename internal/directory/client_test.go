package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientSendsAuthAndCorrelationHeaders(t *testing.T) {
	var gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		_ = json.NewEncoder(w).Encode([]Organization{{ID: "org-1", Name: "North District"}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	orgs, err := c.Organizations(context.Background(), "tok-1", false)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	require.Equal(t, "org-1", orgs[0].ID)
	require.Equal(t, "Bearer tok-1", gotAuth)
	require.NotEmpty(t, gotReqID)
}

func TestClientOwnerOnlyQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode([]Organization{})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Organizations(context.Background(), "tok-1", true)
	require.NoError(t, err)
	require.Equal(t, "owner_only=true", gotQuery)
}

func TestClientSchoolEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/organizations/org-1/schools":
			_ = json.NewEncoder(w).Encode([]School{{ID: "sch-1", OrganizationID: "org-1"}})
		case "/api/schools":
			if r.URL.Query().Get("organization_id") != "org-1" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode([]School{{ID: "sch-1", OrganizationID: "org-1"}})
		case "/api/schools/sch-1":
			_ = json.NewEncoder(w).Encode(School{ID: "sch-1", OrganizationID: "org-1", Name: "Riverside"})
		case "/api/teachers/me/roles":
			_ = json.NewEncoder(w).Encode(map[string][]string{"roles": {"school_admin"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	schools, err := c.OrganizationSchools(ctx, "tok-1", "org-1")
	require.NoError(t, err)
	require.Len(t, schools, 1)

	schools, err = c.SchoolsByOrganization(ctx, "tok-1", "org-1")
	require.NoError(t, err)
	require.Len(t, schools, 1)

	school, err := c.School(ctx, "tok-1", "sch-1")
	require.NoError(t, err)
	require.Equal(t, "Riverside", school.Name)

	roles, err := c.TeacherRoles(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, []string{"school_admin"}, roles)
}

func TestClientNonSuccessIsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Organizations(context.Background(), "tok-1", false)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.Status)
}

func TestClientRequiresToken(t *testing.T) {
	c, err := NewClient("http://localhost:0")
	require.NoError(t, err)

	_, err = c.Organizations(context.Background(), "", false)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}
