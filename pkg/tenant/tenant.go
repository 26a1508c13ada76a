package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is an account as seen by request scoping.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Subdomain string    `json:"subdomain"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider loads tenants. Implementations return ErrTenantNotFound when no
// account matches.
type Provider interface {
	BySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	ByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
}

// MembershipChecker reports whether a user belongs to an account.
type MembershipChecker interface {
	HasMembership(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
}

type Config struct {
	RootDomain string        `env:"TENANT_ROOT_DOMAIN" envDefault:"localhost"`
	Reserved   []string      `env:"TENANT_RESERVED_SUBDOMAINS" envDefault:"www,app,api,admin" envSeparator:","`
	CacheTTL   time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
}
