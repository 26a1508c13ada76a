// Package pg wraps the pgx/v5 connection pool for the billing service:
// connecting with retries, running goose migrations from an embedded
// filesystem, running functions inside a transaction and classifying
// PostgreSQL errors.
package pg
