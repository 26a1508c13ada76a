package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

// TenantStore resolves accounts for request scoping.
type TenantStore struct {
	db DB
}

const tenantColumns = `id, subdomain, name, active, created_at`

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	if err := row.Scan(&t.ID, &t.Subdomain, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

func (s *TenantStore) BySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	if subdomain == "" {
		return nil, tenant.ErrTenantNotFound
	}
	return scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM accounts WHERE subdomain = $1`, subdomain))
}

func (s *TenantStore) ByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if id == uuid.Nil {
		return nil, tenant.ErrTenantNotFound
	}
	return scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM accounts WHERE id = $1`, id))
}

// ListActive returns every active account.
func (s *TenantStore) ListActive(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+tenantColumns+` FROM accounts WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// HasMembership reports whether userID belongs to tenantID.
func (s *TenantStore) HasMembership(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || tenantID == uuid.Nil {
		return false, nil
	}
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM memberships WHERE user_id = $1 AND account_id = $2)`,
		userID, tenantID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// Role returns the user's role in the account.
func (s *TenantStore) Role(ctx context.Context, userID, tenantID uuid.UUID) (policy.Role, error) {
	if userID == uuid.Nil || tenantID == uuid.Nil {
		return "", ErrNotFound
	}
	var role policy.Role
	err := s.db.QueryRow(ctx, `
		SELECT role FROM memberships WHERE user_id = $1 AND account_id = $2`,
		userID, tenantID).Scan(&role)
	if pg.IsNotFoundError(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load role: %w", err)
	}
	return role, nil
}
