// internal/workflow/role.go
package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of actors in the system.
type Role string

const (
	RoleStudent   Role = "student"
	RoleCompany   Role = "company"
	RoleInstitute Role = "institute"
	RoleAdmin     Role = "admin"
)

func Roles() []Role {
	return []Role{RoleStudent, RoleCompany, RoleInstitute, RoleAdmin}
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCompany, RoleInstitute, RoleAdmin:
		return true
	}
	return false
}

// CanWrite is false only for admin, which observes but never mutates.
func (r Role) CanWrite() bool {
	switch r {
	case RoleStudent, RoleCompany, RoleInstitute:
		return true
	case RoleAdmin:
		return false
	}
	return false
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated caller as resolved from the access token.
type Principal struct {
	UserID      uuid.UUID  `json:"user_id"`
	Role        Role       `json:"role"`
	InstituteID *uuid.UUID `json:"institute_id,omitempty"`
}

func (p Principal) Is(r Role) bool { return p.Role == r }

// BelongsTo reports whether the principal is affiliated with institute id.
func (p Principal) BelongsTo(id *uuid.UUID) bool {
	if p.InstituteID == nil || id == nil {
		return false
	}
	return *p.InstituteID == *id
}
