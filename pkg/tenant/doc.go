// Package tenant resolves the account ("tenant") a request operates on.
//
// Resolution order is fixed: a non-reserved subdomain of the configured root
// domain first, the tenant id stored in the caller's session second. The first
// resolver that produces an identifier decides the outcome; a subdomain with no
// matching account does not fall back to the session.
//
// Resolution is fail-closed. When nothing resolves, the request continues with
// no tenant in context and IDFromContext returns uuid.Nil, which every
// tenant-scoped repository treats as "no rows". Routes that cannot work without
// a tenant add RequireTenant.
//
// Switcher persists an explicit tenant switch into the session after checking
// that the user is a member of the target account.
package tenant
