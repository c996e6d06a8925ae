package prescription

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"verity/pkg/cache"
	"verity/pkg/platform/sentinel"
)

// Registry resolves prescribers by name or license number. Read-mostly;
// writes must invalidate any cache in front of the backing store.
type Registry interface {
	Find(ctx context.Context, nameOrLicense string) (*Prescriber, error)
	Register(ctx context.Context, prescriber Prescriber) error
	Deactivate(ctx context.Context, licenseNumber string) error
}

// MemoryRegistry is the in-process prescriber registry.
type MemoryRegistry struct {
	mu          sync.RWMutex
	prescribers map[string]Prescriber // keyed by license number
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{prescribers: make(map[string]Prescriber)}
}

func (r *MemoryRegistry) Find(_ context.Context, nameOrLicense string) (*Prescriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.prescribers[nameOrLicense]; ok {
		return &p, nil
	}
	for _, p := range r.prescribers {
		if strings.EqualFold(p.Name, nameOrLicense) {
			return &p, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (r *MemoryRegistry) Register(_ context.Context, prescriber Prescriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prescribers[prescriber.LicenseNumber] = prescriber
	return nil
}

func (r *MemoryRegistry) Deactivate(_ context.Context, licenseNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prescribers[licenseNumber]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Active = false
	r.prescribers[licenseNumber] = p
	return nil
}

const registryCachePrefix = "prescriber:"

// CachedRegistry fronts a Registry with the process TTL cache. Lookups
// during delivery verification hit the same few prescribers repeatedly;
// writes invalidate so a deactivation is visible within one request.
type CachedRegistry struct {
	backing Registry
	cache   cache.Store
	ttl     time.Duration
}

func NewCachedRegistry(backing Registry, cacheStore cache.Store, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{backing: backing, cache: cacheStore, ttl: ttl}
}

func (r *CachedRegistry) Find(ctx context.Context, nameOrLicense string) (*Prescriber, error) {
	key := registryCachePrefix + strings.ToLower(nameOrLicense)
	if raw, err := r.cache.Get(ctx, key); err == nil {
		var p Prescriber
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
	}

	p, err := r.backing.Find(ctx, nameOrLicense)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = r.cache.Set(ctx, key, raw, r.ttl)
	}
	return p, nil
}

func (r *CachedRegistry) Register(ctx context.Context, prescriber Prescriber) error {
	if err := r.backing.Register(ctx, prescriber); err != nil {
		return err
	}
	r.invalidate(ctx, prescriber.Name, prescriber.LicenseNumber)
	return nil
}

func (r *CachedRegistry) Deactivate(ctx context.Context, licenseNumber string) error {
	p, err := r.backing.Find(ctx, licenseNumber)
	if err != nil {
		return err
	}
	if err := r.backing.Deactivate(ctx, licenseNumber); err != nil {
		return err
	}
	r.invalidate(ctx, p.Name, licenseNumber)
	return nil
}

func (r *CachedRegistry) invalidate(ctx context.Context, name, license string) {
	_ = r.cache.Delete(ctx, registryCachePrefix+strings.ToLower(name))
	_ = r.cache.Delete(ctx, registryCachePrefix+strings.ToLower(license))
}
