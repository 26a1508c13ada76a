package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
	"github.com/dmitrymomot/billingkit/pkg/validator"
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req SignInRequest) validate() error {
	return validator.Apply(
		validator.ValidEmail("email", req.Email),
		validator.Required("password", req.Password),
	)
}

func (a *API) signIn(ctx handler.Context, req SignInRequest) handler.Response {
	if err := req.validate(); err != nil {
		return a.fail(ctx, err)
	}

	user, err := a.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return a.fail(ctx, err)
	}

	if _, err := a.Sessions.SignIn(ctx.ResponseWriter(), ctx.Request(), user.ID); err != nil {
		return a.fail(ctx, err)
	}
	return handler.JSON(user)
}

func (a *API) signOut(ctx handler.Context, _ struct{}) handler.Response {
	if err := a.Sessions.SignOut(ctx.ResponseWriter(), ctx.Request()); err != nil {
		return a.fail(ctx, err)
	}
	return handler.EmptyWithStatus(http.StatusNoContent)
}

type MeResponse struct {
	User   *store.User    `json:"user"`
	Tenant *tenant.Tenant `json:"tenant,omitempty"`
	Role   policy.Role    `json:"role,omitempty"`
}

func (a *API) me(ctx handler.Context, _ struct{}) handler.Response {
	user, ok := a.auth.CurrentUser(ctx.Request())
	if !ok {
		return a.fail(ctx, handler.ErrUnauthorized)
	}

	resp := MeResponse{User: user}
	if t, ok := tenant.FromContext(ctx); ok {
		resp.Tenant = t
		if role, err := a.Tenants.Role(ctx, user.ID, t.ID); err == nil {
			resp.Role = role
		}
	}
	return handler.JSON(resp)
}

type SwitchTenantRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
}

// switchTenant remembers the tenant in the session after checking membership.
func (a *API) switchTenant(ctx handler.Context, req SwitchTenantRequest) handler.Response {
	if err := validator.Apply(validator.RequiredUUID("tenant_id", req.TenantID)); err != nil {
		return a.fail(ctx, err)
	}

	sess, err := a.Sessions.Current(ctx.Request())
	if err != nil {
		return a.fail(ctx, err)
	}

	err = a.switcher.Switch(ctx, sess.UserID, req.TenantID, func(id string) error {
		return a.Sessions.SetValue(ctx, sess, TenantSessionKey, id)
	})
	if err != nil {
		return a.fail(ctx, err)
	}

	t, err := a.Tenants.ByID(ctx, req.TenantID)
	if err != nil {
		return a.fail(ctx, err)
	}
	a.log.InfoContext(ctx, "tenant switched",
		logger.UserID(sess.UserID), logger.TenantID(t.ID), logger.Component("api"))
	return handler.JSON(t)
}
