package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/user"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CallerCache keeps recently resolved callers for a short TTL. Entries are
// dropped as soon as the user record changes.
type CallerCache struct {
	entries *lru.LRU[int64, *user.User]
}

func NewCallerCache(size int, ttl time.Duration) *CallerCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CallerCache{entries: lru.NewLRU[int64, *user.User](size, nil, ttl)}
}

func (c *CallerCache) Get(id int64) (*user.User, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(id)
}

func (c *CallerCache) Add(u *user.User) {
	if c == nil || u == nil {
		return
	}
	c.entries.Add(u.ID, u)
}

func (c *CallerCache) Invalidate(id int64) {
	if c == nil {
		return
	}
	c.entries.Remove(id)
}

// Subscribe drops cached callers whenever the directory reports a change.
func (c *CallerCache) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeUserChanged, func(_ context.Context, e events.Event) error {
		if changed, ok := e.(*events.UserChangedEvent); ok {
			c.Invalidate(changed.UserID)
		}
		return nil
	})
}
