package policy

import "errors"

var (
	ErrForbidden   = errors.New("policy.forbidden")
	ErrUnknownRole = errors.New("policy.unknown_role")
)
