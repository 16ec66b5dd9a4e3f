package engine

import (
	"sort"
	"sync"

	"github.com/bittoy/reactor/types"
)

// Context is the default types.Context implementation: a local service
// registry plus local read/write interceptor lists, falling back to a
// chain of parent contexts on miss. Grounded on the teacher's
// ComponentRegistry try-add pattern (types/types.go) and the functional
// Config/Option split (types/config.go, types/options.go), generalized
// from a process-wide singleton registry to one instance per subject.
type Context struct {
	mu sync.RWMutex

	logger    types.Logger
	services  map[string][]any
	fallbacks []types.Context

	readInterceptors  []types.ReadInterceptor
	writeInterceptors []types.WriteInterceptor
}

// NewContext builds a Context from opts, per the types.ContextOption
// pattern.
func NewContext(opts ...types.ContextOption) (*Context, error) {
	cfg, err := types.NewContextConfig(opts...)
	if err != nil {
		return nil, err
	}
	c := &Context{
		logger:    cfg.Logger,
		services:  make(map[string][]any),
		fallbacks: append([]types.Context(nil), cfg.Fallbacks...),
	}
	for role, svcs := range cfg.Services {
		c.services[role] = append(c.services[role], svcs...)
	}
	return c, nil
}

func (c *Context) Logger() types.Logger { return c.logger }

func (c *Context) GetService(role string) (any, bool) {
	c.mu.RLock()
	svcs := c.services[role]
	fallbacks := c.fallbacks
	c.mu.RUnlock()

	if len(svcs) > 0 {
		return svcs[0], true
	}
	for _, f := range fallbacks {
		if svc, ok := f.GetService(role); ok {
			return svc, true
		}
	}
	return nil, false
}

func (c *Context) GetServices(role string) []any {
	c.mu.RLock()
	local := append([]any(nil), c.services[role]...)
	fallbacks := c.fallbacks
	c.mu.RUnlock()

	seen := make(map[any]struct{}, len(local))
	out := make([]any, 0, len(local))
	for _, s := range local {
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, f := range fallbacks {
		for _, s := range f.GetServices(role) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (c *Context) TryAddService(role string, svc any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.services[role]) > 0 {
		return false
	}
	c.services[role] = append(c.services[role], svc)
	return true
}

func (c *Context) AddReadInterceptor(i types.ReadInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readInterceptors = append(c.readInterceptors, i)
	sort.SliceStable(c.readInterceptors, func(a, b int) bool {
		return c.readInterceptors[a].Order() < c.readInterceptors[b].Order()
	})
}

func (c *Context) AddWriteInterceptor(i types.WriteInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeInterceptors = append(c.writeInterceptors, i)
	sort.SliceStable(c.writeInterceptors, func(a, b int) bool {
		return c.writeInterceptors[a].Order() < c.writeInterceptors[b].Order()
	})
}

func (c *Context) ReadInterceptors() []types.ReadInterceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.ReadInterceptor(nil), c.readInterceptors...)
}

func (c *Context) WriteInterceptors() []types.WriteInterceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.WriteInterceptor(nil), c.writeInterceptors...)
}

func (c *Context) AddFallbackContext(fc types.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbacks = append(c.fallbacks, fc)
}

func (c *Context) RemoveFallbackContext(fc types.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, f := range c.fallbacks {
		if f == fc {
			c.fallbacks = append(c.fallbacks[:i], c.fallbacks[i+1:]...)
			return
		}
	}
}

func (c *Context) FallbackContexts() []types.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.Context(nil), c.fallbacks...)
}

// Read and Write are implemented in pipeline.go, which folds
// ReadInterceptors/WriteInterceptors around the subject's own getter/setter.

var _ types.Context = (*Context)(nil)
