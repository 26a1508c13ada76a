// Package membership changes who belongs to an account and with which role.
//
// Every mutation runs in a transaction that locks the account's owner rows
// and re-counts them, so two concurrent demotions cannot leave an account
// without an owner even though each passed the policy check on its own.
package membership

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/policy"
)

var (
	ErrNotFound      = errors.New("membership.not_found")
	ErrSoleOwner     = errors.New("membership.sole_owner")
	ErrAlreadyMember = errors.New("membership.already_member")
)

type Membership struct {
	ID        uuid.UUID   `json:"id"`
	AccountID uuid.UUID   `json:"account_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Email     string      `json:"email,omitempty"`
	Role      policy.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// Store persists memberships. Every method is scoped by accountID.
type Store interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Membership, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a membership transaction.
type Tx interface {
	// LockOwners locks the owner memberships of the account and returns their count.
	LockOwners(ctx context.Context, accountID uuid.UUID) (int, error)
	Get(ctx context.Context, accountID, id uuid.UUID) (*Membership, error)
	GetByUser(ctx context.Context, accountID, userID uuid.UUID) (*Membership, error)
	Create(ctx context.Context, m *Membership) error
	UpdateRole(ctx context.Context, accountID, id uuid.UUID, role policy.Role) error
	Delete(ctx context.Context, accountID, id uuid.UUID) error
}

// Notifier is told about new memberships, typically to enqueue an invitation email.
type Notifier interface {
	MembershipCreated(ctx context.Context, m Membership) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, m Membership) error

func (f NotifierFunc) MembershipCreated(ctx context.Context, m Membership) error {
	return f(ctx, m)
}
