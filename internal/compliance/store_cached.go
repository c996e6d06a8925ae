package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"verity/pkg/cache"
	id "verity/pkg/domain"
)

const (
	requirementCachePrefix = "compliance:req:"
	requirementGenKey      = "compliance:req:gen"
)

// CachedRequirementStore fronts a RequirementStore with the process TTL
// cache. Because wildcard and jurisdiction rows combine at query time, a
// single upsert can change the result of any cached query; invalidation
// therefore bumps a generation counter that is part of every cache key
// instead of chasing individual entries.
type CachedRequirementStore struct {
	backing RequirementStore
	cache   cache.Store
	ttl     time.Duration
}

func NewCachedRequirementStore(backing RequirementStore, cacheStore cache.Store, ttl time.Duration) *CachedRequirementStore {
	return &CachedRequirementStore{backing: backing, cache: cacheStore, ttl: ttl}
}

func (s *CachedRequirementStore) List(ctx context.Context, jurisdiction id.Jurisdiction, productType id.ProductType) ([]Requirement, error) {
	key := s.key(ctx, jurisdiction, productType)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var rows []Requirement
		if err := json.Unmarshal(raw, &rows); err == nil {
			return rows, nil
		}
	}

	rows, err := s.backing.List(ctx, jurisdiction, productType)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(rows); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.ttl)
	}
	return rows, nil
}

func (s *CachedRequirementStore) Upsert(ctx context.Context, requirement Requirement) error {
	if err := s.backing.Upsert(ctx, requirement); err != nil {
		return err
	}
	// Old-generation entries age out via their TTL.
	_, _ = s.cache.Increment(ctx, requirementGenKey, 1, 0)
	return nil
}

func (s *CachedRequirementStore) key(ctx context.Context, jurisdiction id.Jurisdiction, productType id.ProductType) string {
	gen := int64(0)
	if raw, err := s.cache.Get(ctx, requirementGenKey); err == nil {
		fmt.Sscanf(string(raw), "%d", &gen)
	}
	return fmt.Sprintf("%s%d:%s:%s", requirementCachePrefix, gen, jurisdiction, productType)
}
