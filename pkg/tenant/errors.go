package tenant

import "errors"

var (
	ErrNoIdentifier      = errors.New("tenant.no_identifier")
	ErrInvalidIdentifier = errors.New("tenant.invalid_identifier")
	ErrTenantNotFound    = errors.New("tenant.not_found")
	ErrInactiveTenant    = errors.New("tenant.inactive")
	ErrNoTenantInContext = errors.New("tenant.not_in_context")
	ErrAccessDenied      = errors.New("tenant.access_denied")
)
