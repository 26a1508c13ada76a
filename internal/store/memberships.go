package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/membership"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/policy"
)

// MembershipStore implements membership.Store.
type MembershipStore struct {
	db DB
}

const membershipSelect = `
	SELECT m.id, m.account_id, m.user_id, u.email, m.role, m.created_at
	FROM memberships m JOIN users u ON u.id = m.user_id`

func scanMembership(row pgx.Row) (*membership.Membership, error) {
	var m membership.Membership
	if err := row.Scan(&m.ID, &m.AccountID, &m.UserID, &m.Email, &m.Role, &m.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, membership.ErrNotFound
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	return &m, nil
}

func (s *MembershipStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]membership.Membership, error) {
	out := []membership.Membership{}
	if accountID == uuid.Nil {
		return out, nil
	}
	rows, err := s.db.Query(ctx, membershipSelect+`
		WHERE m.account_id = $1 ORDER BY m.created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *MembershipStore) InTx(ctx context.Context, fn func(tx membership.Tx) error) error {
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&membershipTx{tx: tx})
	})
}

type membershipTx struct {
	tx pgx.Tx
}

// LockOwners takes row locks on the owner memberships so concurrent demotions serialize.
func (t *membershipTx) LockOwners(ctx context.Context, accountID uuid.UUID) (int, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM memberships WHERE account_id = $1 AND role = $2 FOR UPDATE`,
		accountID, policy.Owner)
	if err != nil {
		return 0, fmt.Errorf("lock owners: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func (t *membershipTx) Get(ctx context.Context, accountID, id uuid.UUID) (*membership.Membership, error) {
	if accountID == uuid.Nil {
		return nil, membership.ErrNotFound
	}
	return scanMembership(t.tx.QueryRow(ctx, membershipSelect+`
		WHERE m.account_id = $1 AND m.id = $2`, accountID, id))
}

func (t *membershipTx) GetByUser(ctx context.Context, accountID, userID uuid.UUID) (*membership.Membership, error) {
	if accountID == uuid.Nil {
		return nil, membership.ErrNotFound
	}
	return scanMembership(t.tx.QueryRow(ctx, membershipSelect+`
		WHERE m.account_id = $1 AND m.user_id = $2`, accountID, userID))
}

func (t *membershipTx) Create(ctx context.Context, m *membership.Membership) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO memberships (id, account_id, user_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.AccountID, m.UserID, m.Role, m.CreatedAt)
	switch {
	case pg.IsDuplicateKeyError(err):
		return membership.ErrAlreadyMember
	case pg.IsForeignKeyViolationError(err):
		return membership.ErrNotFound
	case err != nil:
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (t *membershipTx) UpdateRole(ctx context.Context, accountID, id uuid.UUID, role policy.Role) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE memberships SET role = $3 WHERE account_id = $1 AND id = $2`, accountID, id, role)
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrNotFound
	}
	return nil
}

func (t *membershipTx) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM memberships WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrNotFound
	}
	return nil
}
