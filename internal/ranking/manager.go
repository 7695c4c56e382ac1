package ranking

import (
	gocache "github.com/patrickmn/go-cache"
	"time"
)

// Manager keeps one stack per owner key and forgets stacks idle longer than the ttl.
type Manager struct {
	cache *gocache.Cache
}

func NewManager(ttl time.Duration) *Manager {
	return &Manager{cache: gocache.New(ttl, 2*ttl)}
}

// Get returns the stack for owner, creating it on first use. Every call extends its lifetime.
func (m *Manager) Get(owner string) *Stack {
	if cached, found := m.cache.Get(owner); found {
		stack := cached.(*Stack)
		m.cache.SetDefault(owner, stack)
		return stack
	}

	stack := NewStack()
	if err := m.cache.Add(owner, stack, gocache.DefaultExpiration); err != nil {
		if cached, found := m.cache.Get(owner); found {
			return cached.(*Stack)
		}
		m.cache.SetDefault(owner, stack)
	}
	return stack
}

// Drop forgets the stack of owner.
func (m *Manager) Drop(owner string) {
	m.cache.Delete(owner)
}
