package policy

import (
	"strings"

	"github.com/google/uuid"
)

// Role is a member's role within one account.
type Role string

const (
	Owner  Role = "owner"
	Admin  Role = "admin"
	Member Role = "member"
	Guest  Role = "guest"
)

// Rank orders roles: owner > admin > member > guest. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case Owner:
		return 4
	case Admin:
		return 3
	case Member:
		return 2
	case Guest:
		return 1
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Actor is the signed-in user acting within the resolved account.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// Action names a capability.
type Action string

const (
	Index   Action = "index"
	Show    Action = "show"
	Create  Action = "create"
	Update  Action = "update"
	Destroy Action = "destroy"

	Leave         Action = "leave"
	ChangeRole    Action = "change_role"
	MarkPaid      Action = "mark_paid"
	Send          Action = "send"
	Download      Action = "download"
	Export        Action = "export"
	ManageBilling Action = "manage_billing"
)
