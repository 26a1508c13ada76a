// Package handler is the typed HTTP layer of the API.
//
// A HandlerFunc receives a Context and a bound request value and returns a
// Response. Wrap converts it into an http.HandlerFunc, running binders first
// and routing binding and rendering errors to an ErrorHandler:
//
//	type updateRoleRequest struct {
//		ID   string `path:"id"`
//		Role string `json:"role"`
//	}
//
//	r.Patch("/memberships/{id}", handler.Wrap(updateRole,
//		handler.WithBinders[handler.Context, updateRoleRequest](binder.JSON(), binder.Path(chi.URLParam)),
//		handler.WithErrorHandler[handler.Context, updateRoleRequest](handler.NewErrorHandler(log)),
//	))
//
// Errors returned through JSONError are mapped to status codes: HTTPError
// carries its own code, ValidationError becomes 422 with field details and
// anything else is a 500 whose message is not leaked to the client.
package handler
