// Package store implements the service's repositories on PostgreSQL with pgx.
//
// Every tenant-scoped method takes the account id explicitly. A zero account
// id never reaches the database: reads return an empty result and writes a
// not-found error.
package store

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migrations holds the goose migrations, applied with pg.Migrate(ctx, pool, store.Migrations, store.MigrationsDir, ...).
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repositories sharing one connection pool.
type Store struct {
	Tenants     *TenantStore
	Users       *UserStore
	Sessions    *SessionStore
	Memberships *MembershipStore
	Accounts    *AccountStore
	Plans       *PlanStore
	Invoices    *InvoiceStore
	Metrics     *MetricsSource
	Jobs        *JobStore
}

func New(db DB) *Store {
	return &Store{
		Tenants:     &TenantStore{db: db},
		Users:       &UserStore{db: db},
		Sessions:    &SessionStore{db: db},
		Memberships: &MembershipStore{db: db},
		Accounts:    &AccountStore{db: db},
		Plans:       &PlanStore{db: db},
		Invoices:    &InvoiceStore{db: db},
		Metrics:     &MetricsSource{db: db},
		Jobs:        &JobStore{db: db},
	}
}
