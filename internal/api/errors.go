package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/membership"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/session"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
	"github.com/dmitrymomot/billingkit/pkg/validator"
)

var (
	errInvalidCredentials = handler.HTTPError{Code: http.StatusUnauthorized, Key: "invalid_credentials"}
	errSoleOwner          = handler.HTTPError{Code: http.StatusForbidden, Key: "sole_owner"}
	errInvoicePaid        = handler.HTTPError{Code: http.StatusForbidden, Key: "invoice_paid"}
	errInvalidTransition  = handler.HTTPError{Code: http.StatusConflict, Key: "invalid_status_transition"}
	errNotRemindable      = handler.HTTPError{Code: http.StatusConflict, Key: "invoice_not_remindable"}
	errInactiveTenant     = handler.HTTPError{Code: http.StatusForbidden, Key: "tenant_inactive"}
	errAlreadyMember      = handler.HTTPError{Code: http.StatusConflict, Key: "already_member"}
	errDocumentFailed     = handler.HTTPError{Code: http.StatusInternalServerError, Key: "document_failed"}
)

// mapError translates domain errors into HTTP errors, keeping the cause
// in the chain for logging.
func mapError(err error) error {
	if ve := validator.Extract(err); ve != nil {
		v := handler.NewValidationError()
		for _, e := range ve {
			v.Add(e.Field, e.Message)
		}
		return v
	}

	var (
		httpErr handler.HTTPError
		valErr  handler.ValidationError
	)
	if errors.As(err, &httpErr) || errors.As(err, &valErr) {
		return err
	}

	var mapped error
	switch {
	case errors.Is(err, session.ErrNotSignedIn), errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrUserNotFound):
		mapped = handler.ErrUnauthorized
	case errors.Is(err, store.ErrInvalidCredentials):
		mapped = errInvalidCredentials
	case errors.Is(err, membership.ErrSoleOwner):
		mapped = errSoleOwner
	case errors.Is(err, store.ErrInvoicePaid):
		mapped = errInvoicePaid
	case errors.Is(err, store.ErrInvalidTransition):
		mapped = errInvalidTransition
	case errors.Is(err, tenant.ErrInactiveTenant):
		mapped = errInactiveTenant
	case errors.Is(err, policy.ErrForbidden), errors.Is(err, tenant.ErrAccessDenied):
		mapped = handler.ErrForbidden
	case errors.Is(err, store.ErrNotFound), errors.Is(err, membership.ErrNotFound),
		errors.Is(err, tenant.ErrTenantNotFound), errors.Is(err, tenant.ErrNoTenantInContext):
		mapped = handler.ErrNotFound
	case errors.Is(err, tenant.ErrInvalidIdentifier):
		mapped = handler.ErrBadRequest
	case errors.Is(err, membership.ErrAlreadyMember):
		mapped = errAlreadyMember
	case errors.Is(err, policy.ErrUnknownRole):
		v := handler.NewValidationError()
		v.Add("role", "must be one of owner, admin, member, guest")
		return v
	case errors.Is(err, jobs.ErrUnknownExport):
		v := handler.NewValidationError()
		v.Add("kind", "must be one of clients, invoices, memberships")
		return v
	case errors.Is(err, document.ErrEngineOpen):
		mapped = handler.ErrUnavailable
	case errors.Is(err, document.ErrRenderFailed), errors.Is(err, document.ErrConvertFailed),
		errors.Is(err, document.ErrEmptyOutput), errors.Is(err, document.ErrGeneratorPanic):
		mapped = errDocumentFailed
	default:
		return err
	}
	return errors.Join(mapped, err)
}

// fail logs err through the error handler and returns a response that
// writes nothing more.
func (a *API) fail(ctx handler.Context, err error) handler.Response {
	a.onError(ctx, mapError(err))
	return handled{}
}

type handled struct{}

func (handled) Render(http.ResponseWriter, *http.Request) error { return nil }
