package access

import (
	"context"
	"sync"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// GrantSource adapts the repository to the access evaluator, caching
// resolved grants briefly. Admin edits take effect within the TTL.
type GrantSource struct {
	repo *Repository
	ttl  time.Duration

	mu    sync.RWMutex
	cache map[types.ID]cachedGrants
}

type cachedGrants struct {
	grants  []authz.Grant
	expires time.Time
}

// NewGrantSource creates a caching grant source
func NewGrantSource(repo *Repository, ttl time.Duration) *GrantSource {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &GrantSource{
		repo:  repo,
		ttl:   ttl,
		cache: make(map[types.ID]cachedGrants),
	}
}

// GrantsForUser resolves a user's effective module grants
func (s *GrantSource) GrantsForUser(ctx context.Context, userID types.ID) ([]authz.Grant, error) {
	s.mu.RLock()
	entry, ok := s.cache[userID]
	s.mu.RUnlock()

	if ok && time.Now().Before(entry.expires) {
		return entry.grants, nil
	}

	rows, err := s.repo.GrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	grants := make([]authz.Grant, 0, len(rows))
	for _, g := range rows {
		grants = append(grants, authz.Grant{
			Module:    g.Module,
			CanView:   g.CanView,
			CanCreate: g.CanCreate,
			CanEdit:   g.CanUpdate,
			CanDelete: g.CanDelete,
			CanAdmin:  g.CanAdmin,
		})
	}

	s.mu.Lock()
	s.cache[userID] = cachedGrants{grants: grants, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return grants, nil
}

// Invalidate drops cached grants so the next read hits the database.
// Called after group or membership changes.
func (s *GrantSource) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[types.ID]cachedGrants)
	s.mu.Unlock()
}

var _ authz.GrantSource = (*GrantSource)(nil)
