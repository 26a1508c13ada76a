package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/file"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/queue"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

type mailbox struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (m *mailbox) SendEmail(_ context.Context, p email.SendEmailParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, p)
	return nil
}

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) Invitation(ctx context.Context, id uuid.UUID) (*jobs.Invitation, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*jobs.Invitation)
	return inv, args.Error(1)
}

func (m *mockLookup) InvoiceDocument(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, id)
	doc, _ := args.Get(0).(*document.Document)
	return doc, args.Error(1)
}

func (m *mockLookup) UserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *mockLookup) OverdueInvoices(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, asOf)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

type recordingQueue struct {
	mu       sync.Mutex
	payloads []any
	failFor  uuid.UUID
}

func (q *recordingQueue) Enqueue(_ context.Context, payload any, _ ...queue.EnqueueOption) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := payload.(jobs.SendInvoiceReminder); ok && p.InvoiceID == q.failFor {
		return uuid.Nil, errors.New("queue unavailable")
	}
	q.payloads = append(q.payloads, payload)
	return uuid.New(), nil
}

type tenantList []tenant.Tenant

func (l tenantList) ListActive(context.Context) ([]tenant.Tenant, error) { return l, nil }

type failingTenants struct{}

func (failingTenants) ListActive(context.Context) ([]tenant.Tenant, error) {
	return nil, errors.New("connection refused")
}

type sweeperFunc func(ctx context.Context, maxAge time.Duration) (int64, error)

func (f sweeperFunc) SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	return f(ctx, maxAge)
}

type exportRows struct {
	columns []string
	rows    [][]string
	err     error
}

func (e exportRows) ExportRows(context.Context, uuid.UUID, jobs.ExportKind) ([]string, [][]string, error) {
	return e.columns, e.rows, e.err
}

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func newRunner(t *testing.T, deps jobs.Deps) *jobs.Runner {
	t.Helper()
	if deps.Storage == nil {
		storage, err := file.NewLocalStorage(t.TempDir(), "https://files.test/")
		require.NoError(t, err)
		deps.Storage = storage
	}
	if deps.Mailer == nil {
		deps.Mailer = &mailbox{}
	}
	return jobs.New(deps, jobs.Config{
		ExportLinkTTL: 72 * time.Hour,
		URLScheme:     "https",
		RootDomain:    "billing.test",
		SessionMaxAge: 24 * time.Hour,
	}, jobs.WithClock(func() time.Time { return fixedNow }))
}

func TestWarmCache(t *testing.T) {
	t.Parallel()

	good := tenant.Tenant{ID: uuid.New(), Subdomain: "acme", Name: "Acme", Active: true}
	bad := tenant.Tenant{ID: uuid.New(), Name: "No subdomain", Active: true}
	cache := tenant.NewMemoryCache(time.Hour)

	r := newRunner(t, jobs.Deps{Tenants: tenantList{good, bad}, Cache: cache})
	res, err := r.WarmCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Warmed)
	assert.Equal(t, 1, res.Skipped)

	got, ok := cache.Get(context.Background(), tenant.CacheKey(tenant.Identifier{Source: tenant.SourceSubdomain, Value: "acme"}))
	require.True(t, ok)
	assert.Equal(t, good.ID, got.ID)

	_, ok = cache.Get(context.Background(), tenant.CacheKey(tenant.Identifier{Source: tenant.SourceSession, Value: good.ID.String()}))
	assert.True(t, ok)

	_, err = newRunner(t, jobs.Deps{Tenants: failingTenants{}, Cache: cache}).WarmCache(context.Background())
	assert.Error(t, err)
}

func TestSweepSessions(t *testing.T) {
	t.Parallel()

	var gotAge time.Duration
	r := newRunner(t, jobs.Deps{Sessions: sweeperFunc(func(_ context.Context, maxAge time.Duration) (int64, error) {
		gotAge = maxAge
		return 7, nil
	})})

	res, err := r.SweepSessions(context.Background(), jobs.SweepSessions{})
	require.NoError(t, err)
	assert.EqualValues(t, 7, res.Deleted)
	assert.Equal(t, 24*time.Hour, gotAge)

	_, err = r.SweepSessions(context.Background(), jobs.SweepSessions{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, gotAge)
}

func TestExportData(t *testing.T) {
	t.Parallel()

	account := uuid.New()
	requester := uuid.New()
	source := exportRows{
		columns: []string{"name", "billing_email"},
		rows:    [][]string{{"Globex", "ap@globex.test"}, {"Initech, LLC", "bills@initech.test"}},
	}

	t.Run("success uploads and emails", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("UserEmail", mock.Anything, requester).Return("owner@acme.test", nil)
		mail := &mailbox{}
		storage, err := file.NewLocalStorage(t.TempDir(), "https://files.test/")
		require.NoError(t, err)

		r := newRunner(t, jobs.Deps{Exports: source, Lookup: lookup, Mailer: mail, Storage: storage})
		res := r.ExportData(context.Background(), jobs.ExportData{AccountID: account, Kind: "Clients", RequestedBy: requester})

		require.True(t, res.OK, "%v", res.Err)
		assert.Equal(t, 2, res.Rows)
		assert.Equal(t, account.String()+"/exports/clients-20250501-120000.csv", res.Key)

		body, err := storage.Get(context.Background(), res.Key)
		require.NoError(t, err)
		assert.Equal(t, "Name,Billing Email\nGlobex,ap@globex.test\n\"Initech, LLC\",bills@initech.test\n", string(body))

		require.Len(t, mail.sent, 1)
		assert.Equal(t, "owner@acme.test", mail.sent[0].SendTo)
		assert.Contains(t, mail.sent[0].BodyHTML, res.URL)
	})

	t.Run("kind outside the allow-list", func(t *testing.T) {
		t.Parallel()
		r := newRunner(t, jobs.Deps{Exports: source})
		res := r.ExportData(context.Background(), jobs.ExportData{AccountID: account, Kind: "users"})
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, jobs.ErrUnknownExport)
		assert.False(t, res.Retryable())
	})

	t.Run("missing account", func(t *testing.T) {
		t.Parallel()
		r := newRunner(t, jobs.Deps{Exports: source})
		res := r.ExportData(context.Background(), jobs.ExportData{Kind: "clients"})
		assert.ErrorIs(t, res.Err, jobs.ErrMissingAccount)
	})

	t.Run("source failure is reported not raised", func(t *testing.T) {
		t.Parallel()
		r := newRunner(t, jobs.Deps{Exports: exportRows{err: errors.New("boom")}})
		var res jobs.ExportResult
		require.NotPanics(t, func() {
			res = r.ExportData(context.Background(), jobs.ExportData{AccountID: account, Kind: "invoices"})
		})
		assert.False(t, res.OK)
		assert.Error(t, res.Err)
	})

	t.Run("unknown requester still stores the file", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("UserEmail", mock.Anything, mock.Anything).Return("", jobs.ErrRecordNotFound)
		mail := &mailbox{}

		r := newRunner(t, jobs.Deps{Exports: source, Lookup: lookup, Mailer: mail})
		res := r.ExportData(context.Background(), jobs.ExportData{AccountID: account, Kind: "memberships", RequestedBy: uuid.New()})
		assert.True(t, res.OK)
		assert.Empty(t, mail.sent)
	})
}

func TestParseExportKind(t *testing.T) {
	t.Parallel()

	for _, k := range jobs.ExportKinds {
		got, err := jobs.ParseExportKind(" " + strings.ToUpper(string(k)) + " ")
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := jobs.ParseExportKind("../../etc")
	assert.ErrorIs(t, err, jobs.ErrUnknownExport)
}

func TestSendInvitation(t *testing.T) {
	t.Parallel()

	t.Run("sends link to tenant subdomain", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		lookup := &mockLookup{}
		lookup.On("Invitation", mock.Anything, id).Return(&jobs.Invitation{
			MembershipID: id, Email: "new@acme.test", Role: policy.Member, AccountName: "Acme", Subdomain: "acme",
		}, nil)
		mail := &mailbox{}

		err := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: mail}).SendInvitation(context.Background(), jobs.SendInvitation{MembershipID: id})
		require.NoError(t, err)
		require.Len(t, mail.sent, 1)
		assert.Equal(t, "new@acme.test", mail.sent[0].SendTo)
		assert.Contains(t, mail.sent[0].BodyHTML, "https://acme.billing.test/auth/sign-in")
	})

	t.Run("missing membership is a no-op", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("Invitation", mock.Anything, mock.Anything).Return(nil, jobs.ErrRecordNotFound)
		mail := &mailbox{}

		err := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: mail}).SendInvitation(context.Background(), jobs.SendInvitation{MembershipID: uuid.New()})
		require.NoError(t, err)
		assert.Empty(t, mail.sent)
	})

	t.Run("mailer failure is returned for retry", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("Invitation", mock.Anything, mock.Anything).Return(&jobs.Invitation{Email: "a@b.test", AccountName: "Acme"}, nil)

		err := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: &mailbox{err: errors.New("smtp down")}}).
			SendInvitation(context.Background(), jobs.SendInvitation{MembershipID: uuid.New()})
		assert.Error(t, err)
		assert.False(t, queue.IsPermanent(err))
	})
}

func TestSendInvoiceReminder(t *testing.T) {
	t.Parallel()

	doc := &document.Document{
		ID:          uuid.New(),
		AccountID:   uuid.New(),
		Kind:        document.Invoice,
		Status:      document.Sent,
		Number:      "42",
		AccountName: "Acme",
		ClientName:  "Globex",
		ClientEmail: "ap@globex.test",
		Currency:    "usd",
		DueAt:       fixedNow.AddDate(0, 0, 14),
		Lines:       []document.Line{{Description: "Plan", Quantity: 1, UnitCents: 4900}},
	}

	okConverter := document.ConverterFunc(func(context.Context, []byte, document.PageOptions) ([]byte, error) {
		return []byte("%PDF-1.7"), nil
	})
	badConverter := document.ConverterFunc(func(context.Context, []byte, document.PageOptions) ([]byte, error) {
		return nil, errors.New("chrome crashed")
	})

	t.Run("attaches the pdf when generation succeeds", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("InvoiceDocument", mock.Anything, doc.ID).Return(doc, nil)
		mail := &mailbox{}

		r := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: mail, Documents: document.NewGenerator(okConverter)})
		require.NoError(t, r.SendInvoiceReminder(context.Background(), jobs.SendInvoiceReminder{InvoiceID: doc.ID}))

		require.Len(t, mail.sent, 1)
		require.Len(t, mail.sent[0].Attachments, 1)
		assert.Equal(t, "Invoice-42.pdf", mail.sent[0].Attachments[0].Name)
		assert.Contains(t, mail.sent[0].BodyHTML, "USD 49.00")
	})

	t.Run("sends without attachment when generation fails", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("InvoiceDocument", mock.Anything, doc.ID).Return(doc, nil)
		mail := &mailbox{}

		r := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: mail, Documents: document.NewGenerator(badConverter)})
		require.NoError(t, r.SendInvoiceReminder(context.Background(), jobs.SendInvoiceReminder{InvoiceID: doc.ID}))

		require.Len(t, mail.sent, 1)
		assert.Empty(t, mail.sent[0].Attachments)
	})

	t.Run("paid invoice is a no-op", func(t *testing.T) {
		t.Parallel()
		paid := *doc
		paid.Status = document.Paid
		lookup := &mockLookup{}
		lookup.On("InvoiceDocument", mock.Anything, doc.ID).Return(&paid, nil)
		mail := &mailbox{}

		r := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: mail, Documents: document.NewGenerator(okConverter)})
		require.NoError(t, r.SendInvoiceReminder(context.Background(), jobs.SendInvoiceReminder{InvoiceID: doc.ID}))
		assert.Empty(t, mail.sent)
	})

	t.Run("canceled invoice and estimate are skipped", func(t *testing.T) {
		t.Parallel()
		canceled := *doc
		canceled.Status = document.Canceled
		estimate := *doc
		estimate.ID = uuid.New()
		estimate.Kind = document.Estimate

		lookup := &mockLookup{}
		lookup.On("InvoiceDocument", mock.Anything, doc.ID).Return(&canceled, nil)
		lookup.On("InvoiceDocument", mock.Anything, estimate.ID).Return(&estimate, nil)
		mail := &mailbox{}

		r := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: mail, Documents: document.NewGenerator(okConverter)})
		require.NoError(t, r.SendInvoiceReminder(context.Background(), jobs.SendInvoiceReminder{InvoiceID: doc.ID}))
		require.NoError(t, r.SendInvoiceReminder(context.Background(), jobs.SendInvoiceReminder{InvoiceID: estimate.ID}))
		assert.Empty(t, mail.sent)
	})

	t.Run("missing invoice is a no-op", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("InvoiceDocument", mock.Anything, mock.Anything).Return(nil, jobs.ErrRecordNotFound)
		mail := &mailbox{}

		r := newRunner(t, jobs.Deps{Lookup: lookup, Mailer: mail, Documents: document.NewGenerator(okConverter)})
		require.NoError(t, r.SendInvoiceReminder(context.Background(), jobs.SendInvoiceReminder{InvoiceID: uuid.New()}))
		assert.Empty(t, mail.sent)
	})
}

func TestHandlers(t *testing.T) {
	t.Parallel()

	lookup := &mockLookup{}
	lookup.On("Invitation", mock.Anything, mock.Anything).Return(nil, errors.Join(jobs.ErrRecordNotFound, errors.New("gone")))
	r := newRunner(t, jobs.Deps{Lookup: lookup, Exports: exportRows{}})

	byName := map[string]queue.Handler{}
	for _, h := range r.Handlers() {
		byName[h.Name()] = h
	}
	for _, payload := range []any{jobs.WarmCache{}, jobs.SweepSessions{}, jobs.RemindOverdue{}, jobs.ExportData{}, jobs.SendInvoiceReminder{}} {
		require.Contains(t, byName, queue.TaskName(payload))
	}

	payload, err := json.Marshal(jobs.ExportData{AccountID: uuid.New(), Kind: "passwords"})
	require.NoError(t, err)
	assert.NoError(t, byName[queue.TaskName(jobs.ExportData{})].Handle(context.Background(), payload))

	payload, err = json.Marshal(jobs.SendInvitation{MembershipID: uuid.New()})
	require.NoError(t, err)
	assert.NoError(t, byName[queue.TaskName(jobs.SendInvitation{})].Handle(context.Background(), payload))

	s, err := queue.NewScheduler(queue.NewMemoryStorage())
	require.NoError(t, err)
	require.NoError(t, jobs.Schedule(s))
	assert.Equal(t, []string{"jobs.RemindOverdue", "jobs.SweepSessions", "jobs.WarmCache"}, s.Names())
}

func TestRemindOverdue(t *testing.T) {
	t.Parallel()

	first, broken, last := uuid.New(), uuid.New(), uuid.New()

	t.Run("queues a reminder per overdue invoice", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("OverdueInvoices", mock.Anything, fixedNow).Return([]uuid.UUID{first, broken, last}, nil)
		q := &recordingQueue{failFor: broken}

		res, err := newRunner(t, jobs.Deps{Lookup: lookup, Queue: q}).RemindOverdue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, res.Queued)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, []any{
			jobs.SendInvoiceReminder{InvoiceID: first},
			jobs.SendInvoiceReminder{InvoiceID: last},
		}, q.payloads)
	})

	t.Run("lookup failure is returned for retry", func(t *testing.T) {
		t.Parallel()
		lookup := &mockLookup{}
		lookup.On("OverdueInvoices", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
		q := &recordingQueue{}

		_, err := newRunner(t, jobs.Deps{Lookup: lookup, Queue: q}).RemindOverdue(context.Background())
		assert.Error(t, err)
		assert.Empty(t, q.payloads)
	})
}
