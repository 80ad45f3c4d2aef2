// Package dedup filters duplicate payload deliveries. The gateway link runs
// at QoS 1, so a sensor update can be redelivered; the current-reading cache
// must only ever see it once.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type Filter struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
	now  func() time.Time
}

func New(ttl time.Duration, max int) *Filter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if max <= 0 {
		max = 4096
	}
	return &Filter{
		ttl:  ttl,
		max:  max,
		seen: make(map[string]time.Time, max),
		now:  time.Now,
	}
}

// Fresh hashes the payload and reports whether it has not been seen within
// the TTL window. The first delivery of any payload is fresh.
func (f *Filter) Fresh(payload []byte) bool {
	sum := sha256.Sum256(payload)
	return f.FreshKey(hex.EncodeToString(sum[:]))
}

// FreshKey is Fresh for callers that already have a stable key.
func (f *Filter) FreshKey(key string) bool {
	if key == "" {
		return true
	}
	now := f.now()
	f.mu.Lock()
	defer f.mu.Unlock()

	if exp, ok := f.seen[key]; ok && now.Before(exp) {
		return false
	}
	f.seen[key] = now.Add(f.ttl)
	if len(f.seen) > f.max {
		for k, exp := range f.seen {
			if now.After(exp) {
				delete(f.seen, k)
			}
			if len(f.seen) <= f.max {
				break
			}
		}
	}
	return true
}
