package auth

import (
	"fmt"
	"strings"
)

// Role determines the default permission scope of an actor.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCompany Role = "company"
	RoleControl Role = "control"
	// RoleDev is a development-only override that carries admin privileges.
	RoleDev Role = "dev"
)

// Action is the operation being attempted on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource is a domain entity type subject to permission checks.
type Resource string

const (
	ResourceProject Resource = "project"
	ResourceEvent   Resource = "event"
	ResourceCompany Resource = "company"
	ResourceStaff   Resource = "staff"
	ResourceUser    Resource = "user"
	ResourceCheck   Resource = "check"
)

var (
	Actions   = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	Resources = []Resource{ResourceProject, ResourceEvent, ResourceCompany, ResourceStaff, ResourceUser, ResourceCheck}
)

// Item carries the ownership field of a resource instance.
type Item struct {
	CompanyID *int64 `json:"company_id,omitempty"`
}

// OwnedBy returns an item affiliated with the given company.
func OwnedBy(companyID int64) *Item {
	return &Item{CompanyID: &companyID}
}

// Actor is the authenticated user on whose behalf a request runs.
type Actor struct {
	UserID    int64  `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role"`
	CompanyID *int64 `json:"company_id,omitempty"`
}

// IsAdmin also holds for the dev role, which carries admin permissions.
func (a *Actor) IsAdmin() bool { return a != nil && (a.Role == RoleAdmin || a.Role == RoleDev) }
func (a *Actor) IsCompany() bool { return a != nil && a.Role == RoleCompany }
func (a *Actor) IsControl() bool { return a != nil && a.Role == RoleControl }

// IsDev reports admin privileges: an override is resolved to admin by
// ResolveRole, and a token issued with role dev is treated the same way.
func (a *Actor) IsDev() bool { return a.IsAdmin() }

// ResolveRole applies a development override on top of the identity's role.
// An empty override keeps base, and dev collapses to admin.
func ResolveRole(base, override Role) Role {
	switch override {
	case "":
		return base
	case RoleDev:
		return RoleAdmin
	default:
		return override
	}
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	switch r {
	case RoleAdmin, RoleCompany, RoleControl, RoleDev:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

func ParseAction(s string) (Action, error) {
	a := Action(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, s)
}

// collectionNames maps REST collection names onto resources.
var collectionNames = map[string]Resource{
	"projects":  ResourceProject,
	"events":    ResourceEvent,
	"companies": ResourceCompany,
	"staffs":    ResourceStaff,
	"users":     ResourceUser,
	"checks":    ResourceCheck,
}

// ParseResource accepts a resource name ("staff") or its collection name
// ("staffs").
func ParseResource(s string) (Resource, error) {
	name := strings.Trim(strings.TrimSpace(strings.ToLower(s)), "/")
	if r, ok := collectionNames[name]; ok {
		return r, nil
	}
	r := Resource(name)
	for _, known := range Resources {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown resource %q", ErrInvalidInput, s)
}
