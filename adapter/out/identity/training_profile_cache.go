package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/cache"
	"training_server/pkg/logger"
)

// CachedProfileResolver serves attendee profiles from Redis before asking the directory.
// Route decisions never go through this cache.
type CachedProfileResolver struct {
	inner out.UserProfileResolver
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewCachedProfileResolver(inner out.UserProfileResolver, c *cache.RedisCache, ttl time.Duration) *CachedProfileResolver {
	return &CachedProfileResolver{inner: inner, cache: c, ttl: ttl}
}

func cacheKey(id string) string {
	return strings.ToLower(id)
}

// ResolveProfiles keeps input order. Cache errors fall through to the directory.
func (r *CachedProfileResolver) ResolveProfiles(ctx context.Context, ids []string) ([]*domain.DirectoryProfile, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	hits, err := r.cache.GetMultiJSON(ctx, keys)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("[ProfileCache] read failed, resolving %d ids from directory", len(ids))
		hits = map[string][]byte{}
	}

	resolved := make(map[string]*domain.DirectoryProfile, len(ids))
	var missing []string
	for i, key := range keys {
		if raw, ok := hits[key]; ok {
			var p domain.DirectoryProfile
			if json.Unmarshal(raw, &p) == nil {
				resolved[key] = &p
				continue
			}
		}
		missing = append(missing, ids[i])
	}

	if len(missing) > 0 {
		fetched, err := r.inner.ResolveProfiles(ctx, missing)
		if err != nil {
			return nil, err
		}

		toStore := make(map[string]any, len(fetched))
		for _, id := range missing {
			if p := matchProfile(id, fetched); p != nil {
				key := cacheKey(id)
				resolved[key] = p
				toStore[key] = p
			}
		}
		if err := r.cache.SetMultiJSON(ctx, toStore, r.ttl); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("[ProfileCache] write failed")
		}
	}

	profiles := make([]*domain.DirectoryProfile, 0, len(ids))
	for _, key := range keys {
		if p, ok := resolved[key]; ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// matchProfile finds the profile an identifier refers to by id, UPN or mail.
func matchProfile(id string, profiles []*domain.DirectoryProfile) *domain.DirectoryProfile {
	for _, p := range profiles {
		if strings.EqualFold(p.ID, id) || strings.EqualFold(p.UserPrincipalName, id) || strings.EqualFold(p.Mail, id) {
			return p
		}
	}
	return nil
}

var _ out.UserProfileResolver = (*CachedProfileResolver)(nil)
