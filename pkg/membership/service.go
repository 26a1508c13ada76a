package membership

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/policy"
)

type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the account's memberships if the actor may see them.
func (s *Service) List(ctx context.Context, actor policy.Actor, accountID uuid.UUID) ([]Membership, error) {
	if err := policy.Authorize(policy.Memberships, actor, policy.Index, policy.MembershipRecord{}); err != nil {
		return nil, err
	}
	if accountID == uuid.Nil {
		return []Membership{}, nil
	}
	return s.store.ListByAccount(ctx, accountID)
}

// ChangeRole sets a new role on a membership. The actor cannot grant a role
// above their own, and the last owner cannot be demoted.
func (s *Service) ChangeRole(ctx context.Context, actor policy.Actor, accountID, id uuid.UUID, role policy.Role) (*Membership, error) {
	if !role.Valid() {
		return nil, policy.ErrUnknownRole
	}
	if role.Rank() > actor.Role.Rank() {
		return nil, policy.ErrForbidden
	}

	var updated *Membership
	err := s.store.InTx(ctx, func(tx Tx) error {
		target, owners, err := s.loadTarget(ctx, tx, accountID, id)
		if err != nil {
			return err
		}
		if target.Role == policy.Owner && role != policy.Owner && owners <= 1 {
			return ErrSoleOwner
		}
		rec := policy.MembershipRecord{UserID: target.UserID, Role: target.Role, OwnerCount: owners}
		if err := policy.Authorize(policy.Memberships, actor, policy.ChangeRole, rec); err != nil {
			return err
		}
		if err := tx.UpdateRole(ctx, accountID, id, role); err != nil {
			return err
		}
		target.Role = role
		updated = target
		return nil
	})
	if err != nil {
		s.logDenied(ctx, "change_role", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "membership role changed",
		logger.TenantID(accountID), logger.Role(role), logger.Component("membership"))
	return updated, nil
}

// Remove deletes a membership. Removing one's own non-owner membership is
// always allowed; the last owner can never be removed.
func (s *Service) Remove(ctx context.Context, actor policy.Actor, accountID, id uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		target, owners, err := s.loadTarget(ctx, tx, accountID, id)
		if err != nil {
			return err
		}
		if target.Role == policy.Owner && owners <= 1 {
			return ErrSoleOwner
		}
		rec := policy.MembershipRecord{UserID: target.UserID, Role: target.Role, OwnerCount: owners}
		if err := policy.Authorize(policy.Memberships, actor, policy.Destroy, rec); err != nil {
			return err
		}
		return tx.Delete(ctx, accountID, id)
	})
	if err != nil {
		s.logDenied(ctx, "remove", err)
		return err
	}

	s.logger.InfoContext(ctx, "membership removed",
		logger.TenantID(accountID), logger.Component("membership"))
	return nil
}

// Leave removes the actor's own membership. Owners cannot leave.
func (s *Service) Leave(ctx context.Context, actor policy.Actor, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return ErrNotFound
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		own, err := tx.GetByUser(ctx, accountID, actor.UserID)
		if err != nil {
			return err
		}
		rec := policy.MembershipRecord{UserID: own.UserID, Role: own.Role}
		if err := policy.Authorize(policy.Memberships, actor, policy.Leave, rec); err != nil {
			return err
		}
		return tx.Delete(ctx, accountID, own.ID)
	})
	if err != nil {
		s.logDenied(ctx, "leave", err)
		return err
	}
	return nil
}

// Invite adds userID to the account with role and notifies them.
func (s *Service) Invite(ctx context.Context, actor policy.Actor, accountID, userID uuid.UUID, email string, role policy.Role) (*Membership, error) {
	if accountID == uuid.Nil {
		return nil, ErrNotFound
	}
	if !role.Valid() {
		return nil, policy.ErrUnknownRole
	}
	if err := policy.Authorize(policy.Memberships, actor, policy.Create, policy.MembershipRecord{}); err != nil {
		return nil, err
	}
	if role.Rank() > actor.Role.Rank() {
		return nil, policy.ErrForbidden
	}

	m := &Membership{
		ID:        uuid.New(),
		AccountID: accountID,
		UserID:    userID,
		Email:     email,
		Role:      role,
		CreatedAt: s.now(),
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetByUser(ctx, accountID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return tx.Create(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.MembershipCreated(ctx, *m); err != nil {
			s.logger.ErrorContext(ctx, "failed to notify invited member",
				logger.Error(err), logger.TenantID(accountID), logger.Component("membership"))
		}
	}
	return m, nil
}

func (s *Service) loadTarget(ctx context.Context, tx Tx, accountID, id uuid.UUID) (*Membership, int, error) {
	if accountID == uuid.Nil {
		return nil, 0, ErrNotFound
	}
	owners, err := tx.LockOwners(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	target, err := tx.Get(ctx, accountID, id)
	if err != nil {
		return nil, 0, err
	}
	return target, owners, nil
}

func (s *Service) logDenied(ctx context.Context, op string, err error) {
	if errors.Is(err, policy.ErrForbidden) || errors.Is(err, ErrSoleOwner) || errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "membership change rejected",
			slog.String("op", op), logger.Error(err), logger.Component("membership"))
	}
}
