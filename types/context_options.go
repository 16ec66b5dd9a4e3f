package types

// ContextConfig is the plain-data settings a Context implementation builds
// itself from. Mirrors the teacher's Config/Option split: Context itself
// stays an interface, the functional options only ever touch this struct.
type ContextConfig struct {
	Logger    Logger
	Fallbacks []Context
	Services  map[string][]any
}

// ContextOption is a function that modifies a ContextConfig, following the
// teacher's Option func(*Config) error pattern (types/options.go).
type ContextOption func(*ContextConfig) error

// NewContextConfig applies opts over a zero-value ContextConfig, defaulting
// Logger to NopLogger when no option sets one.
func NewContextConfig(opts ...ContextOption) (*ContextConfig, error) {
	c := &ContextConfig{Services: make(map[string][]any)}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	return c, nil
}

// WithLogger sets the context's logger.
func WithLogger(logger Logger) ContextOption {
	return func(c *ContextConfig) error {
		c.Logger = logger
		return nil
	}
}

// WithFallbackContext appends a fallback context, consulted in the order
// added when a service lookup misses locally. Interceptor lists are not
// inherited from fallbacks.
func WithFallbackContext(fallback Context) ContextOption {
	return func(c *ContextConfig) error {
		c.Fallbacks = append(c.Fallbacks, fallback)
		return nil
	}
}

// WithService pre-registers svc under role before the context is used.
// Unlike TryAddService, repeated WithService options for the same role all
// register their service.
func WithService(role string, svc any) ContextOption {
	return func(c *ContextConfig) error {
		c.Services[role] = append(c.Services[role], svc)
		return nil
	}
}
