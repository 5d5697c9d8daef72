package timetable

import (
	"sync"
	"time"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

// classCache is a short-TTL, process-local cache of the classes a subject is
// permitted to view. Never persisted and never shared across replicas.
type classCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]classEntry
}

type classEntry struct {
	classes   []model.ClassInfo
	fetchedAt time.Time
}

func newClassCache(ttl time.Duration, now func() time.Time) *classCache {
	return &classCache{ttl: ttl, now: now, entries: make(map[string]classEntry)}
}

func (c *classCache) get(userID string) ([]model.ClassInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || c.now().Sub(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e.classes, true
}

func (c *classCache) put(userID string, classes []model.ClassInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = classEntry{classes: classes, fetchedAt: c.now()}
}
