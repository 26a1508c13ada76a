package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/internal/api"
	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/clientip"
	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/membership"
	"github.com/dmitrymomot/billingkit/pkg/metrics"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/queue"
	"github.com/dmitrymomot/billingkit/pkg/ratelimiter"
	"github.com/dmitrymomot/billingkit/pkg/session"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

const rootDomain = "billing.test"

type fakeUsers struct {
	byEmail map[string]*store.User
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*store.User, error) {
	u, ok := f.byEmail[email]
	if !ok || password != "secret-pass" {
		return nil, store.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) ByEmail(_ context.Context, email string) (*store.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) LoadUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, session.ErrUserNotFound
}

type fakeTenants struct {
	tenants map[uuid.UUID]*tenant.Tenant
	roles   map[[2]uuid.UUID]policy.Role
}

func (f *fakeTenants) BySubdomain(_ context.Context, sub string) (*tenant.Tenant, error) {
	for _, t := range f.tenants {
		if t.Subdomain == sub {
			return t, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (f *fakeTenants) ByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, tenant.ErrTenantNotFound
}

func (f *fakeTenants) HasMembership(_ context.Context, userID, tenantID uuid.UUID) (bool, error) {
	_, ok := f.roles[[2]uuid.UUID{userID, tenantID}]
	return ok, nil
}

func (f *fakeTenants) Role(_ context.Context, userID, tenantID uuid.UUID) (policy.Role, error) {
	r, ok := f.roles[[2]uuid.UUID{userID, tenantID}]
	if !ok {
		return "", store.ErrNotFound
	}
	return r, nil
}

type fakeInvoices struct {
	mu    sync.Mutex
	items map[uuid.UUID]*store.Invoice
}

func (f *fakeInvoices) Get(_ context.Context, accountID, id uuid.UUID) (*store.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.items[id]
	if !ok || inv.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoices) Update(ctx context.Context, accountID, id uuid.UUID, upd store.InvoiceUpdate) (*store.Invoice, error) {
	f.mu.Lock()
	inv, ok := f.items[id]
	switch {
	case !ok || inv.AccountID != accountID:
		f.mu.Unlock()
		return nil, store.ErrNotFound
	case inv.Paid:
		f.mu.Unlock()
		return nil, store.ErrInvoicePaid
	case upd.Status != nil && !inv.Status.CanMoveTo(*upd.Status):
		f.mu.Unlock()
		return nil, store.ErrInvalidTransition
	}
	if upd.Notes != nil {
		inv.Notes = *upd.Notes
	}
	if upd.Status != nil {
		inv.Status = *upd.Status
	}
	f.mu.Unlock()
	return f.Get(ctx, accountID, id)
}

func (f *fakeInvoices) Document(ctx context.Context, accountID, id uuid.UUID, kind document.Kind) (*document.Document, error) {
	inv, err := f.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if inv.Kind != kind {
		return nil, store.ErrNotFound
	}
	d := inv.Document("Acme")
	return &d, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []any
}

func (f *fakeQueue) Enqueue(_ context.Context, payload any, _ ...queue.EnqueueOption) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return uuid.New(), nil
}

type env struct {
	handler  http.Handler
	acme     *tenant.Tenant
	other    *tenant.Tenant
	owner    *store.User
	admin    *store.User
	member   *store.User
	outsider *store.User
	ownerMS  membership.Membership
	memberMS membership.Membership
	unpaid   uuid.UUID
	paid     uuid.UUID
	draft    uuid.UUID
	estimate uuid.UUID
	jobs     *fakeQueue
	logs     bytes.Buffer
}

func newEnv(t *testing.T, mods ...func(*api.Deps)) *env {
	t.Helper()

	e := &env{
		acme:     &tenant.Tenant{ID: uuid.New(), Subdomain: "acme", Name: "Acme", Active: true},
		other:    &tenant.Tenant{ID: uuid.New(), Subdomain: "globex", Name: "Globex", Active: true},
		owner:    &store.User{ID: uuid.New(), Email: "owner@acme.test"},
		admin:    &store.User{ID: uuid.New(), Email: "admin@acme.test"},
		member:   &store.User{ID: uuid.New(), Email: "member@acme.test"},
		outsider: &store.User{ID: uuid.New(), Email: "new@globex.test"},
		unpaid:   uuid.New(),
		paid:     uuid.New(),
		draft:    uuid.New(),
		estimate: uuid.New(),
		jobs:     &fakeQueue{},
	}

	users := &fakeUsers{byEmail: map[string]*store.User{
		e.owner.Email: e.owner, e.admin.Email: e.admin, e.member.Email: e.member, e.outsider.Email: e.outsider,
	}}
	tenants := &fakeTenants{
		tenants: map[uuid.UUID]*tenant.Tenant{e.acme.ID: e.acme, e.other.ID: e.other},
		roles: map[[2]uuid.UUID]policy.Role{
			{e.owner.ID, e.acme.ID}:  policy.Owner,
			{e.admin.ID, e.acme.ID}:  policy.Admin,
			{e.member.ID, e.acme.ID}: policy.Member,
		},
	}

	now := time.Now()
	e.ownerMS = membership.Membership{ID: uuid.New(), AccountID: e.acme.ID, UserID: e.owner.ID, Role: policy.Owner, CreatedAt: now}
	adminMS := membership.Membership{ID: uuid.New(), AccountID: e.acme.ID, UserID: e.admin.ID, Role: policy.Admin, CreatedAt: now}
	e.memberMS = membership.Membership{ID: uuid.New(), AccountID: e.acme.ID, UserID: e.member.ID, Role: policy.Member, CreatedAt: now}

	ref := "pi_123"
	invoices := &fakeInvoices{items: map[uuid.UUID]*store.Invoice{
		e.unpaid: {ID: e.unpaid, AccountID: e.acme.ID, Kind: document.Invoice, Number: "7", Status: "sent", Currency: "usd",
			ClientName: "Globex", Lines: []document.Line{{Description: "Work", Quantity: 1, UnitCents: 10000}}},
		e.paid: {ID: e.paid, AccountID: e.acme.ID, Kind: document.Invoice, Number: "8", Status: "paid", Paid: true,
			PaymentReference: &ref, Currency: "usd"},
		e.draft: {ID: e.draft, AccountID: e.acme.ID, Kind: document.Invoice, Number: "9", Status: document.Draft, Currency: "usd"},
		e.estimate: {ID: e.estimate, AccountID: e.acme.ID, Kind: document.Estimate, Number: "E-1", Status: document.Sent,
			Currency: "usd"},
	}}

	converter := document.ConverterFunc(func(context.Context, []byte, document.PageOptions) ([]byte, error) {
		return []byte("%PDF-1.7 test"), nil
	})

	source := metrics.SourceFunc(func(context.Context) ([]metrics.AccountSnapshot, error) {
		return []metrics.AccountSnapshot{
			{ID: uuid.New(), PriceCents: 4900, Interval: subscription.IntervalMonth, Status: subscription.StatusActive, CreatedAt: now},
		}, nil
	})

	deps := api.Deps{
		Sessions:    session.New(session.WithStore(session.NewMemoryStore())),
		Users:       users,
		Tenants:     tenants,
		TenantCfg:   tenant.Config{RootDomain: rootDomain, Reserved: []string{"www"}, CacheTTL: time.Minute},
		Memberships: membership.NewService(membership.NewMemoryStore(e.ownerMS, adminMS, e.memberMS)),
		Invoices:    invoices,
		Documents:   document.NewGenerator(converter),
		Jobs:        e.jobs,
		Dashboard:   metrics.NewDashboard(source, nil),
		ClientIP:    clientip.New(false),
	}
	for _, mod := range mods {
		mod(&deps)
	}
	a := api.New(deps, api.Config{OperatorAccountID: e.acme.ID},
		api.WithLogger(slog.New(slog.NewJSONHandler(&e.logs, nil))))

	e.handler = a.Router()
	return e
}

func (e *env) do(t *testing.T, method, host, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = host
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) signIn(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, rootDomain, "/auth/sign-in", "", map[string]string{"email": email, "password": "secret-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := rec.Header().Get("X-Session-Token")
	require.NotEmpty(t, token)
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var body handler.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuth(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, rootDomain, "/auth/sign-in", "", map[string]string{"email": e.owner.Email, "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decode(t, rec).Error.Code)

	rec = e.do(t, http.MethodPost, rootDomain, "/auth/sign-in", "", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Details, "password")

	rec = e.do(t, http.MethodGet, rootDomain, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := e.signIn(t, e.owner.Email)
	rec = e.do(t, http.MethodGet, "acme."+rootDomain, "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"owner"`)

	rec = e.do(t, http.MethodPost, rootDomain, "/auth/sign-out", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, rootDomain, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignInRateLimit(t *testing.T) {
	t.Parallel()

	limits := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(limits.Close)
	bucket, err := ratelimiter.NewBucket(limits, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)
	e := newEnv(t, func(d *api.Deps) { d.SignIn = bucket })

	e.signIn(t, e.owner.Email)
	rec := e.do(t, http.MethodPost, rootDomain, "/auth/sign-in", "", map[string]string{"email": e.owner.Email, "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, rootDomain, "/auth/sign-in", "", map[string]string{"email": e.owner.Email, "password": "secret-pass"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode(t, rec).Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = e.do(t, http.MethodGet, rootDomain, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSwitchTenant(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.signIn(t, e.member.Email)

	rec := e.do(t, http.MethodPost, rootDomain, "/tenants/switch", token, map[string]string{"tenant_id": e.other.ID.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, rootDomain, "/memberships", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no tenant selected yet")

	rec = e.do(t, http.MethodPost, rootDomain, "/tenants/switch", token, map[string]string{"tenant_id": e.acme.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, rootDomain, "/memberships", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec).Meta["count"])
}

func TestTenantFailsClosed(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.signIn(t, e.member.Email)

	rec := e.do(t, http.MethodGet, "globex."+rootDomain, "/invoices/"+e.unpaid.String(), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "no membership in globex")

	rec = e.do(t, http.MethodGet, "unknown."+rootDomain, "/invoices/"+e.unpaid.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemberships(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	host := "acme." + rootDomain

	member := e.signIn(t, e.member.Email)
	rec := e.do(t, http.MethodPatch, host, "/memberships/"+e.ownerMS.ID.String(), member, map[string]string{"role": "guest"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := e.signIn(t, e.owner.Email)
	rec = e.do(t, http.MethodPatch, host, "/memberships/"+e.ownerMS.ID.String(), owner, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "sole owner cannot be demoted")

	rec = e.do(t, http.MethodPatch, host, "/memberships/"+e.memberMS.ID.String(), owner, map[string]string{"role": "wizard"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPatch, host, "/memberships/"+e.memberMS.ID.String(), owner, map[string]string{"role": "guest"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"guest"`)

	rec = e.do(t, http.MethodPost, host, "/memberships/leave", owner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "owners cannot leave")

	admin := e.signIn(t, e.admin.Email)
	rec = e.do(t, http.MethodPost, host, "/memberships/leave", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInvite(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	host := "acme." + rootDomain

	member := e.signIn(t, e.member.Email)
	rec := e.do(t, http.MethodPost, host, "/memberships", member, map[string]string{"email": e.outsider.Email, "role": "guest"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := e.signIn(t, e.admin.Email)
	rec = e.do(t, http.MethodPost, host, "/memberships", admin, map[string]string{"email": "not-an-email", "role": "guest"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Details, "email")

	rec = e.do(t, http.MethodPost, host, "/memberships", admin, map[string]string{"email": "ghost@nowhere.test", "role": "guest"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPost, host, "/memberships", admin, map[string]string{"email": e.outsider.Email, "role": "owner"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "admins cannot grant owner")

	rec = e.do(t, http.MethodPost, host, "/memberships", admin, map[string]string{"email": e.outsider.Email, "role": "member"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), e.outsider.ID.String())

	rec = e.do(t, http.MethodPost, host, "/memberships", admin, map[string]string{"email": e.outsider.Email, "role": "member"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvoices(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	host := "acme." + rootDomain
	token := e.signIn(t, e.member.Email)

	rec := e.do(t, http.MethodGet, host, "/invoices/"+e.unpaid.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, host, "/invoices/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPatch, host, "/invoices/"+e.paid.String(), token, map[string]string{"notes": "late"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPatch, host, "/invoices/"+e.unpaid.String(), token, map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPatch, host, "/invoices/"+e.unpaid.String(), token, map[string]string{"notes": "Net 30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Net 30")

	rec = e.do(t, http.MethodGet, host, "/invoices/"+e.unpaid.String()+"/pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Invoice-7.pdf")

	rec = e.do(t, http.MethodGet, host, "/estimates/"+e.unpaid.String()+"/pdf", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoiceStatusTransitions(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	host := "acme." + rootDomain
	token := e.signIn(t, e.member.Email)

	patch := func(id uuid.UUID, status string) *httptest.ResponseRecorder {
		return e.do(t, http.MethodPatch, host, "/invoices/"+id.String(), token, map[string]string{"status": status})
	}

	rec := patch(e.unpaid, "draft")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "sent invoices cannot go back to draft")
	assert.Contains(t, decode(t, rec).Error.Details, "status")

	rec = patch(e.unpaid, "void")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = patch(e.draft, "sent")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"sent"`)

	rec = patch(e.draft, "canceled")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"canceled"`)

	rec = patch(e.draft, "sent")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "canceled is final")
	rec = patch(e.draft, "draft")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "canceled is final")

	rec = e.do(t, http.MethodPatch, host, "/invoices/"+e.draft.String(), token, map[string]string{"notes": "Voided by request"})
	assert.Equal(t, http.StatusOK, rec.Code, "notes stay editable")
}

// staleInvoices reports every invoice as a draft, as a read taken before a
// concurrent cancel would.
type staleInvoices struct {
	*fakeInvoices
}

func (s staleInvoices) Get(ctx context.Context, accountID, id uuid.UUID) (*store.Invoice, error) {
	inv, err := s.fakeInvoices.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	inv.Status = document.Draft
	return inv, nil
}

func TestInvoiceStatusConflict(t *testing.T) {
	t.Parallel()
	e := newEnv(t, func(d *api.Deps) {
		fake := d.Invoices.(*fakeInvoices)
		for _, inv := range fake.items {
			if inv.Status == document.Draft {
				inv.Status = document.Canceled
			}
		}
		d.Invoices = staleInvoices{fake}
	})
	token := e.signIn(t, e.member.Email)

	rec := e.do(t, http.MethodPatch, "acme."+rootDomain, "/invoices/"+e.draft.String(), token, map[string]string{"status": "sent"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode(t, rec).Error.Code)
}

func TestRemindInvoice(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	host := "acme." + rootDomain
	token := e.signIn(t, e.member.Email)

	rec := e.do(t, http.MethodPost, host, "/invoices/"+e.unpaid.String()+"/remind", token, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "task_id")
	require.Len(t, e.jobs.payloads, 1)
	assert.Equal(t, jobs.SendInvoiceReminder{InvoiceID: e.unpaid}, e.jobs.payloads[0])

	for name, id := range map[string]uuid.UUID{"paid": e.paid, "draft": e.draft, "estimate": e.estimate} {
		rec = e.do(t, http.MethodPost, host, "/invoices/"+id.String()+"/remind", token, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, name)
		assert.Equal(t, "invoice_not_remindable", decode(t, rec).Error.Code, name)
	}
	assert.Len(t, e.jobs.payloads, 1)

	rec = e.do(t, http.MethodPost, host, "/invoices/"+uuid.NewString()+"/remind", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "globex."+rootDomain, "/invoices/"+e.unpaid.String()+"/remind", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// clearFailStore fails when the tenant is removed from session data.
type clearFailStore struct {
	*session.MemoryStore
}

func (s clearFailStore) UpdateData(ctx context.Context, id uuid.UUID, data map[string]any) error {
	if v, ok := data[api.TenantSessionKey]; ok && v == "" {
		return errors.New("session store unavailable")
	}
	return s.MemoryStore.UpdateData(ctx, id, data)
}

func TestLeaveLogsSessionFailure(t *testing.T) {
	t.Parallel()
	e := newEnv(t, func(d *api.Deps) {
		d.Sessions = session.New(session.WithStore(clearFailStore{session.NewMemoryStore()}))
	})
	admin := e.signIn(t, e.admin.Email)

	rec := e.do(t, http.MethodPost, rootDomain, "/tenants/switch", admin, map[string]string{"tenant_id": e.acme.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "acme."+rootDomain, "/memberships/leave", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, e.logs.String(), "failed to clear tenant from session")
	assert.Contains(t, e.logs.String(), `"level":"WARN"`)
}

func TestExports(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	host := "acme." + rootDomain

	member := e.signIn(t, e.member.Email)
	rec := e.do(t, http.MethodPost, host, "/exports", member, map[string]string{"kind": "clients"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := e.signIn(t, e.admin.Email)
	rec = e.do(t, http.MethodPost, host, "/exports", admin, map[string]string{"kind": "passwords"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPost, host, "/exports", admin, map[string]string{"kind": "Invoices"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Len(t, e.jobs.payloads, 1)
	payload, ok := e.jobs.payloads[0].(jobs.ExportData)
	require.True(t, ok)
	assert.Equal(t, e.acme.ID, payload.AccountID)
	assert.Equal(t, "invoices", payload.Kind)
	assert.Equal(t, e.admin.ID, payload.RequestedBy)
}

func TestAdminMetrics(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	admin := e.signIn(t, e.admin.Email)
	rec := e.do(t, http.MethodGet, rootDomain, "/admin/metrics", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := e.signIn(t, e.owner.Email)
	rec = e.do(t, http.MethodGet, rootDomain, "/admin/metrics", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "revenue")
}

func TestHealth(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, rootDomain, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
