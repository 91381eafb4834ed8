package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"talkboard.app/internal/ids"
	"talkboard.app/internal/obs"
)

// ErrUnauthenticated indicates the call was attempted without a token.
var ErrUnauthenticated = errors.New("directory: no bearer token")

// StatusError is a non-2xx backend response. It is recoverable by design:
// cache layers retain their previous contents when they see one.
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory: %s returned %d", e.Path, e.Status)
}

// Client talks to the backend directory endpoints over HTTP/JSON. Tokens are
// opaque bearer credentials chosen by the caller (normally the credential
// resolver); the client never inspects them.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying transport.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRateLimit throttles outgoing calls with a token bucket.
func WithRateLimit(perSecond, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewClient creates a directory client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("directory: base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values, out any) error {
	if token == "" {
		return ErrUnauthenticated
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", ids.New())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		obs.ObserveAPIRequest(http.MethodGet, path, 0, time.Since(start))
		return fmt.Errorf("directory: %s: %w", path, err)
	}
	defer resp.Body.Close()
	obs.ObserveAPIRequest(http.MethodGet, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Path: path}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode %s: %w", path, err)
	}
	return nil
}

// TeacherRoles fetches the signed-in teacher's backend role names.
func (c *Client) TeacherRoles(ctx context.Context, token string) ([]string, error) {
	var payload struct {
		Roles []string `json:"roles"`
	}
	if err := c.get(ctx, token, "/api/teachers/me/roles", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Roles, nil
}

// Organizations lists the organizations visible to the token's principal.
// ownerOnly restricts the listing to organizations the principal owns.
func (c *Client) Organizations(ctx context.Context, token string, ownerOnly bool) ([]Organization, error) {
	var query url.Values
	if ownerOnly {
		query = url.Values{"owner_only": []string{"true"}}
	}
	var orgs []Organization
	if err := c.get(ctx, token, "/api/organizations", query, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Organization fetches a single organization.
func (c *Client) Organization(ctx context.Context, token, id string) (Organization, error) {
	var org Organization
	if err := c.get(ctx, token, "/api/organizations/"+url.PathEscape(id), nil, &org); err != nil {
		return Organization{}, err
	}
	return org, nil
}

// OrganizationSchools lists the schools under one organization.
func (c *Client) OrganizationSchools(ctx context.Context, token, orgID string) ([]School, error) {
	var schools []School
	path := "/api/organizations/" + url.PathEscape(orgID) + "/schools"
	if err := c.get(ctx, token, path, nil, &schools); err != nil {
		return nil, err
	}
	return schools, nil
}

// SchoolsByOrganization lists schools through the flat schools endpoint.
func (c *Client) SchoolsByOrganization(ctx context.Context, token, orgID string) ([]School, error) {
	query := url.Values{"organization_id": []string{orgID}}
	var schools []School
	if err := c.get(ctx, token, "/api/schools", query, &schools); err != nil {
		return nil, err
	}
	return schools, nil
}

// School fetches a single school.
func (c *Client) School(ctx context.Context, token, id string) (School, error) {
	var school School
	if err := c.get(ctx, token, "/api/schools/"+url.PathEscape(id), nil, &school); err != nil {
		return School{}, err
	}
	return school, nil
}
