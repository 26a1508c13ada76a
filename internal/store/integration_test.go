package store_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/membership"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/session"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// newTestPool connects to PG_CONN_URL and applies migrations.
// The test is skipped when PG_CONN_URL is not set.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, store.Migrations, store.MigrationsDir,
		pg.Config{MigrationsTable: "schema_migrations"}, logger.Discard()))
	return pool
}

type fixture struct {
	account uuid.UUID
	owner   *store.User
	member  *store.User
	invoice uuid.UUID
}

func seed(t *testing.T, pool *pgxpool.Pool, s *store.Store) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{account: uuid.New(), invoice: uuid.New()}
	suffix := f.account.String()[:8]

	_, err := pool.Exec(ctx, `INSERT INTO accounts (id, subdomain, name, customer_id) VALUES ($1, $2, 'Acme', $3)`,
		f.account, "acme-"+suffix, "cus_"+suffix)
	require.NoError(t, err)

	f.owner, err = s.Users.Create(ctx, "owner-"+suffix+"@acme.test", "Owner", "secret-pass")
	require.NoError(t, err)
	f.member, err = s.Users.Create(ctx, "member-"+suffix+"@acme.test", "Member", "secret-pass")
	require.NoError(t, err)

	for _, m := range []struct {
		user uuid.UUID
		role policy.Role
	}{{f.owner.ID, policy.Owner}, {f.member.ID, policy.Member}} {
		_, err = pool.Exec(ctx, `INSERT INTO memberships (id, account_id, user_id, role) VALUES ($1, $2, $3, $4)`,
			uuid.New(), f.account, m.user, string(m.role))
		require.NoError(t, err)
	}

	client := uuid.New()
	_, err = pool.Exec(ctx, `INSERT INTO clients (id, account_id, name, email) VALUES ($1, $2, 'Globex', 'ap@globex.test')`,
		client, f.account)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO invoices (id, account_id, client_id, number) VALUES ($1, $2, $3, $4)`,
		f.invoice, f.account, client, "INV-"+suffix)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO invoice_lines (id, invoice_id, position, description, quantity, unit_cents)
		VALUES ($1, $2, 0, 'Consulting', 2, 15000)`, uuid.New(), f.invoice)
	require.NoError(t, err)
	return f
}

func TestStoreIntegration(t *testing.T) {
	pool := newTestPool(t)
	s := store.New(pool)
	f := seed(t, pool, s)
	ctx := context.Background()

	t.Run("authenticate", func(t *testing.T) {
		u, err := s.Users.Authenticate(ctx, "  "+f.owner.Email+" ", "secret-pass")
		require.NoError(t, err)
		assert.Equal(t, f.owner.ID, u.ID)

		_, err = s.Users.Authenticate(ctx, f.owner.Email, "nope")
		assert.ErrorIs(t, err, store.ErrInvalidCredentials)
		_, err = s.Users.Authenticate(ctx, "ghost@acme.test", "secret-pass")
		assert.ErrorIs(t, err, store.ErrInvalidCredentials)
	})

	t.Run("membership check", func(t *testing.T) {
		ok, err := s.Tenants.HasMembership(ctx, f.member.ID, f.account)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Tenants.HasMembership(ctx, f.member.ID, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("mark paid is idempotent", func(t *testing.T) {
		paidAt := time.Now().UTC().Truncate(time.Second)
		changed, err := s.Invoices.MarkPaid(ctx, f.invoice, "pi_first", paidAt)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.Invoices.MarkPaid(ctx, f.invoice, "pi_second", paidAt.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)

		inv, err := s.Invoices.Get(ctx, f.account, f.invoice)
		require.NoError(t, err)
		require.NotNil(t, inv.PaymentReference)
		assert.Equal(t, "pi_first", *inv.PaymentReference)
		assert.True(t, inv.Paid)

		_, err = s.Invoices.Update(ctx, f.account, f.invoice, store.InvoiceUpdate{})
		assert.ErrorIs(t, err, store.ErrInvoicePaid)

		_, err = s.Invoices.MarkPaid(ctx, uuid.New(), "pi_x", paidAt)
		assert.ErrorIs(t, err, subscription.ErrInvoiceNotFound)
	})

	t.Run("status only moves forward", func(t *testing.T) {
		id := uuid.New()
		_, err := pool.Exec(ctx, `INSERT INTO invoices (id, account_id, client_id, number)
			SELECT $1, account_id, client_id, $2 FROM invoices WHERE id = $3`, id, "INV-T-"+f.account.String()[:8], f.invoice)
		require.NoError(t, err)

		sent, canceled, draft := document.Sent, document.Canceled, document.Draft
		inv, err := s.Invoices.Update(ctx, f.account, id, store.InvoiceUpdate{Status: &sent})
		require.NoError(t, err)
		assert.Equal(t, document.Sent, inv.Status)

		_, err = s.Invoices.Update(ctx, f.account, id, store.InvoiceUpdate{Status: &draft})
		assert.ErrorIs(t, err, store.ErrInvalidTransition)

		inv, err = s.Invoices.Update(ctx, f.account, id, store.InvoiceUpdate{Status: &canceled})
		require.NoError(t, err)
		assert.Equal(t, document.Canceled, inv.Status)

		_, err = s.Invoices.Update(ctx, f.account, id, store.InvoiceUpdate{Status: &sent})
		assert.ErrorIs(t, err, store.ErrInvalidTransition)
	})

	t.Run("estimates cannot be marked paid", func(t *testing.T) {
		id := uuid.New()
		_, err := pool.Exec(ctx, `INSERT INTO invoices (id, account_id, client_id, kind, number)
			SELECT $1, account_id, client_id, 'estimate', $2 FROM invoices WHERE id = $3`, id, "EST-"+f.account.String()[:8], f.invoice)
		require.NoError(t, err)

		changed, err := s.Invoices.MarkPaid(ctx, id, "pi_est", time.Now())
		assert.ErrorIs(t, err, subscription.ErrInvoiceNotFound)
		assert.False(t, changed)

		est, err := s.Invoices.Get(ctx, f.account, id)
		require.NoError(t, err)
		assert.False(t, est.Paid)
		assert.Equal(t, document.Draft, est.Status)
	})

	t.Run("overdue invoices", func(t *testing.T) {
		overdue, future := uuid.New(), uuid.New()
		for _, row := range []struct {
			id  uuid.UUID
			due time.Time
		}{{overdue, time.Now().Add(-48 * time.Hour)}, {future, time.Now().Add(48 * time.Hour)}} {
			_, err := pool.Exec(ctx, `INSERT INTO invoices (id, account_id, client_id, number, status, due_at)
				SELECT $1, account_id, client_id, $2, 'sent', $3 FROM invoices WHERE id = $4`,
				row.id, "INV-O-"+row.id.String()[:8], row.due, f.invoice)
			require.NoError(t, err)
		}

		ids, err := s.Jobs.OverdueInvoices(ctx, time.Now())
		require.NoError(t, err)
		assert.Contains(t, ids, overdue)
		assert.NotContains(t, ids, future)
		assert.NotContains(t, ids, f.invoice, "paid invoices are not overdue")

		doc, err := s.Jobs.InvoiceDocument(ctx, overdue)
		require.NoError(t, err)
		assert.True(t, doc.Remindable())
	})

	t.Run("invoice is scoped to its account", func(t *testing.T) {
		_, err := s.Invoices.Get(ctx, uuid.New(), f.invoice)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("invoice document", func(t *testing.T) {
		doc, err := s.Jobs.InvoiceDocument(ctx, f.invoice)
		require.NoError(t, err)
		assert.Equal(t, "Acme", doc.AccountName)
		assert.EqualValues(t, 30000, doc.TotalCents())
	})

	t.Run("export", func(t *testing.T) {
		columns, rows, err := s.Jobs.ExportRows(ctx, f.account, jobs.ExportInvoices)
		require.NoError(t, err)
		require.NotEmpty(t, rows)
		assert.Equal(t, f.invoice.String(), rows[0][0])
		assert.Len(t, rows[0], len(columns))
		assert.Equal(t, "30000", rows[0][6])
	})

	t.Run("concurrent owner demotion keeps one owner", func(t *testing.T) {
		second, err := s.Users.Create(ctx, "owner2-"+f.account.String()[:8]+"@acme.test", "Owner 2", "secret-pass")
		require.NoError(t, err)
		_, err = pool.Exec(ctx, `INSERT INTO memberships (id, account_id, user_id, role) VALUES ($1, $2, $3, 'owner')`,
			uuid.New(), f.account, second.ID)
		require.NoError(t, err)

		svc := membership.NewService(s.Memberships)
		members, err := s.Memberships.ListByAccount(ctx, f.account)
		require.NoError(t, err)

		var owners []membership.Membership
		for _, m := range members {
			if m.Role == policy.Owner {
				owners = append(owners, m)
			}
		}
		require.Len(t, owners, 2)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, target := range owners {
			wg.Add(1)
			go func(i int, target membership.Membership) {
				defer wg.Done()
				actor := policy.Actor{UserID: owners[1-i].UserID, Role: policy.Owner}
				_, errs[i] = svc.ChangeRole(ctx, actor, f.account, target.ID, policy.Admin)
			}(i, target)
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
			}
		}
		assert.Equal(t, 1, failed)

		var count int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM memberships WHERE account_id = $1 AND role = 'owner'`, f.account).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("sessions", func(t *testing.T) {
		sess := &session.Session{
			ID: uuid.New(), Token: uuid.NewString(), UserID: f.owner.ID,
			Data: map[string]any{"tenant_id": f.account.String()},
			CreatedAt: time.Now().Add(-48 * time.Hour), LastActivityAt: time.Now(),
		}
		require.NoError(t, s.Sessions.Create(ctx, sess))

		got, err := s.Sessions.GetByToken(ctx, sess.Token)
		require.NoError(t, err)
		v, _ := got.GetString("tenant_id")
		assert.Equal(t, f.account.String(), v)

		n, err := s.Sessions.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = s.Sessions.GetByToken(ctx, sess.Token)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}
