package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/validator"
)

func (a *API) listMemberships(ctx handler.Context, _ struct{}) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	members, err := a.Memberships.List(ctx, actor, accountID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return handler.JSON(members, handler.WithJSONMeta(map[string]any{"count": len(members)}))
}

type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// invite adds an existing user to the tenant. The invitation email is sent
// by a queued job.
func (a *API) invite(ctx handler.Context, req InviteRequest) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := validator.Apply(validator.ValidEmail("email", req.Email)); err != nil {
		return a.fail(ctx, err)
	}
	role, err := policy.ParseRole(req.Role)
	if err != nil {
		return a.fail(ctx, err)
	}
	user, err := a.Users.ByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v := handler.NewValidationError()
			v.Add("email", "no user with this email")
			return a.fail(ctx, v)
		}
		return a.fail(ctx, err)
	}
	m, err := a.Memberships.Invite(ctx, actor, accountID, user.ID, user.Email, role)
	if err != nil {
		return a.fail(ctx, err)
	}
	return handler.JSON(m, handler.WithJSONStatus(http.StatusCreated))
}

type ChangeRoleRequest struct {
	ID   uuid.UUID `path:"id" json:"-"`
	Role string    `json:"role"`
}

func (a *API) changeRole(ctx handler.Context, req ChangeRoleRequest) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	role, err := policy.ParseRole(req.Role)
	if err != nil {
		return a.fail(ctx, err)
	}
	m, err := a.Memberships.ChangeRole(ctx, actor, accountID, req.ID, role)
	if err != nil {
		return a.fail(ctx, err)
	}
	return handler.JSON(m)
}

func (a *API) removeMembership(ctx handler.Context, req IDRequest) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Memberships.Remove(ctx, actor, accountID, req.ID); err != nil {
		return a.fail(ctx, err)
	}
	return handler.EmptyWithStatus(http.StatusNoContent)
}

// leave drops the caller's membership and forgets the tenant in the session.
func (a *API) leave(ctx handler.Context, _ struct{}) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Memberships.Leave(ctx, actor, accountID); err != nil {
		return a.fail(ctx, err)
	}
	if sess, err := a.Sessions.Current(ctx.Request()); err == nil {
		if v, _ := sess.GetString(TenantSessionKey); v == accountID.String() {
			if err := a.Sessions.SetValue(ctx, sess, TenantSessionKey, ""); err != nil {
				a.log.WarnContext(ctx, "failed to clear tenant from session",
					logger.TenantID(accountID), logger.UserID(actor.UserID), logger.Error(err), logger.Component("api"))
			}
		}
	}
	return handler.EmptyWithStatus(http.StatusNoContent)
}
