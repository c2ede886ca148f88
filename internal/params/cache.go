package params

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourceplane/apphost/internal/async"
	"github.com/sourceplane/apphost/internal/topology"
)

// Cache memoizes parameter values for a single publish pass. Each
// parameter's provider runs at most once; concurrent callers share the
// outcome. Providers run on the pass context, not the caller's, so a
// caller giving up early cannot poison the value for everyone else.
type Cache struct {
	ctx     context.Context
	mu      sync.Mutex
	entries map[string]*async.Future[string]
	logger  *slog.Logger
}

// NewCache creates an empty cache whose providers run on ctx. A nil logger
// discards log output.
func NewCache(ctx context.Context, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		ctx:     ctx,
		entries: make(map[string]*async.Future[string]),
		logger:  logger,
	}
}

// Value returns the parameter's value, invoking its provider on first use.
// ctx bounds only how long this caller waits.
func (c *Cache) Value(ctx context.Context, p *topology.Parameter) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[p.Name]
	if !ok {
		entry = async.NewFuture[string]()
		c.entries[p.Name] = entry
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("resolving parameter", "parameter", p)
		val, err := p.Provider(c.ctx)
		if err != nil {
			_ = entry.Reject(err)
		} else {
			_ = entry.Resolve(val)
		}
	}
	return entry.Await(ctx)
}

// Resolved returns the values settled successfully so far, keyed by
// parameter name.
func (c *Cache) Resolved() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.entries))
	for name, entry := range c.entries {
		if !entry.Settled() {
			continue
		}
		if val, err := entry.Await(context.Background()); err == nil {
			out[name] = val
		}
	}
	return out
}
