package session_manager

import (
	"sync"

	"github.com/mkantor-dev/research_agent/internal/conversation"
)

// contextCache is the injected in-process cache mapping session id to its
// live AgentContext. The durable store remains the source of truth; the
// cache is lazily populated and entries are evicted on TTL expiry and by
// the periodic sweep.
type contextCache struct {
	mu       sync.RWMutex
	contexts map[string]*conversation.AgentContext
}

func newContextCache() *contextCache {
	return &contextCache{
		contexts: make(map[string]*conversation.AgentContext),
	}
}

func (c *contextCache) get(sessionID string) (*conversation.AgentContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctx, ok := c.contexts[sessionID]
	return ctx, ok
}

func (c *contextCache) put(sessionID string, ctx *conversation.AgentContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts[sessionID] = ctx
}

func (c *contextCache) delete(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, existed := c.contexts[sessionID]
	delete(c.contexts, sessionID)
	return existed
}

// snapshot returns the cached session ids, used by the sweep.
func (c *contextCache) snapshot() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.contexts))
	for id := range c.contexts {
		ids = append(ids, id)
	}
	return ids
}
