package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Switcher changes the tenant remembered in a user's session.
type Switcher struct {
	members MembershipChecker
	cache   Cache
}

func NewSwitcher(members MembershipChecker, cache Cache) *Switcher {
	if cache == nil {
		cache = noopCache{}
	}
	return &Switcher{members: members, cache: cache}
}

// Switch verifies that userID belongs to tenantID and, only then, calls
// persist with the tenant id. Without membership it returns ErrAccessDenied
// and persist is never called.
func (s *Switcher) Switch(ctx context.Context, userID, tenantID uuid.UUID, persist func(tenantID string) error) error {
	if userID == uuid.Nil || tenantID == uuid.Nil {
		return ErrAccessDenied
	}

	ok, err := s.members.HasMembership(ctx, userID, tenantID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccessDenied
	}

	if err := persist(tenantID.String()); err != nil {
		return errors.Join(errors.New("tenant.persist_failed"), err)
	}
	s.cache.Delete(ctx, CacheKey(Identifier{Source: SourceSession, Value: tenantID.String()}))
	return nil
}
