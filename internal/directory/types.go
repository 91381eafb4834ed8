package directory

import "time"

// Organization is one tenant in the directory tree. It is the sole owner of
// the organization/school relationship.
type Organization struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// School is a weak back-reference holder: OrganizationID points at the
// owning organization without implying ownership.
type School struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name,omitempty"`
	Description    string    `json:"description,omitempty"`
	ContactEmail   string    `json:"contact_email,omitempty"`
	ContactPhone   string    `json:"contact_phone,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// NodeType tags the UI focus selection.
type NodeType string

const (
	NodeOrganization NodeType = "organization"
	NodeSchool       NodeType = "school"
)

// Node is the tree node currently holding UI focus. OrgID carries the parent
// organization for school nodes.
type Node struct {
	Type  NodeType
	ID    string
	OrgID string
}
