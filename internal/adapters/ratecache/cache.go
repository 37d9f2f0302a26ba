package ratecache

import (
	"sync"
	"time"

	"property-sync-service/internal/core/domain"
)

// Cache хранит последние курсы в памяти процесса.
// Записи старше ttl считаются отсутствующими (ttl <= 0 - без срока).
type Cache struct {
	mu       sync.RWMutex
	rates    domain.Rates
	storedAt time.Time
	ok       bool
	ttl      time.Duration
	now      func() time.Time
}

func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now}
}

func (c *Cache) Get() (domain.Rates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ok {
		return domain.Rates{}, false
	}
	if c.ttl > 0 && c.now().Sub(c.storedAt) > c.ttl {
		return domain.Rates{}, false
	}
	return c.rates, true
}

func (c *Cache) Set(rates domain.Rates) {
	if !rates.Usable() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rates = rates
	c.storedAt = c.now()
	c.ok = true
}
