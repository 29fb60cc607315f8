package webhook

import (
	"strings"
	"sync"
	"time"
)

// Deduper records webhook event ids and reports repeats.
type Deduper interface {
	// Seen records id and reports whether it was already recorded.
	Seen(id string) bool
}

// NoopDeduper never reports a repeat, so every redelivery is processed again.
type NoopDeduper struct{}

func (NoopDeduper) Seen(string) bool { return false }

// MemoryDeduper remembers event ids in process memory for a fixed TTL.
// Expired ids are swept at most once per TTL.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
	// nextSweep is when expired ids are next removed from seen.
	nextSweep time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryDeduper{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

func (d *MemoryDeduper) Seen(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evictLocked(now)
	if expires, ok := d.seen[id]; ok && now.Before(expires) {
		return true
	}
	d.seen[id] = now.Add(d.ttl)
	return false
}

func (d *MemoryDeduper) evictLocked(now time.Time) {
	if now.Before(d.nextSweep) {
		return
	}
	d.nextSweep = now.Add(d.ttl)
	for id, expires := range d.seen {
		if !now.Before(expires) {
			delete(d.seen, id)
		}
	}
}
