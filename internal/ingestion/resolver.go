package ingestion

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// lookupTimeout bounds a shared owner lookup, which outlives any single caller's context.
const lookupTimeout = 5 * time.Second

type ownerEntry struct {
	userID   string
	cachedAt time.Time
}

type lookupResult struct {
	userID string
	found  bool
}

// Resolver maps device ids to owning users with a read-through cache.
// Only definite owners are cached; unknown and unclaimed devices are looked up again next time.
type Resolver struct {
	lookup  OwnerLookup
	ttl     time.Duration
	metrics *MetricsTracker
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]ownerEntry
	group singleflight.Group
}

// NewResolver builds a resolver. A ttl of zero keeps entries until invalidated.
func NewResolver(lookup OwnerLookup, ttl time.Duration, metrics *MetricsTracker) *Resolver {
	return &Resolver{
		lookup:  lookup,
		ttl:     ttl,
		metrics: metrics,
		now:     time.Now,
		cache:   make(map[string]ownerEntry),
	}
}

// Resolve returns the device's owner. ok is false when the device is unknown,
// unclaimed or the lookup failed; err is set only in the last case.
func (r *Resolver) Resolve(ctx context.Context, deviceID string) (userID string, ok bool, err error) {
	if deviceID == "" {
		return "", false, nil
	}

	if userID, ok := r.cached(deviceID); ok {
		r.metrics.Update(func(m *IngestMetrics) { m.OwnerCacheHits++ })
		return userID, true, nil
	}
	r.metrics.Update(func(m *IngestMetrics) { m.OwnerCacheMisses++ })

	v, err, _ := r.group.Do(deviceID, func() (any, error) {
		if userID, ok := r.cached(deviceID); ok {
			return lookupResult{userID: userID, found: true}, nil
		}
		// Waiters share this lookup, so the first caller going away must not fail it for the rest.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		userID, found, err := r.lookup.LookupOwner(lookupCtx, deviceID)
		if err != nil {
			return nil, err
		}
		if found && userID != "" {
			r.Set(deviceID, userID)
		}
		return lookupResult{userID: userID, found: found && userID != ""}, nil
	})
	if err != nil {
		return "", false, err
	}

	res := v.(lookupResult)
	return res.userID, res.found, nil
}

func (r *Resolver) cached(deviceID string) (string, bool) {
	r.mu.RLock()
	entry, ok := r.cache[deviceID]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	if r.ttl > 0 && r.now().Sub(entry.cachedAt) >= r.ttl {
		r.mu.Lock()
		if cur, still := r.cache[deviceID]; still && cur == entry {
			delete(r.cache, deviceID)
		}
		r.mu.Unlock()
		return "", false
	}
	return entry.userID, true
}

// Set records a known owner, e.g. right after a device is claimed.
func (r *Resolver) Set(deviceID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[deviceID] = ownerEntry{userID: userID, cachedAt: r.now()}
}

// Invalidate drops the cached owner so the next frame reads storage.
func (r *Resolver) Invalidate(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, deviceID)
}

func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
