package busx

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"go.eggybyte.com/busnode/core/errors"
)

// EndpointIdentity is the logical name of a bus endpoint. It is also the
// service name under which the node reports traces.
type EndpointIdentity string

func (id EndpointIdentity) String() string { return string(id) }

// Defaults applied by NewEndpointConfiguration.
const (
	DefaultTransport            = "learning"
	DefaultImmediateRetries     = 3
	DefaultDelayedRetries       = 2
	DefaultDelayedRetryInterval = 10 * time.Second
	DefaultErrorQueue           = "error"
	DefaultAuditQueue           = "audit"
)

// Recoverability controls how failed messages are retried before they are
// moved to the error queue.
type Recoverability struct {
	ImmediateRetries     int
	DelayedRetries       int
	DelayedRetryInterval time.Duration
}

// EndpointConfiguration is everything the bus runtime needs to start an
// endpoint. Configure hooks mutate it before the runtime sees it.
type EndpointConfiguration struct {
	identity EndpointIdentity

	Name           EndpointIdentity
	Transport      string
	Concurrency    int
	Recoverability Recoverability
	ErrorQueue     string
	AuditQueue     string
	SendOnly       bool
	Settings       Settings
}

// NewEndpointConfiguration returns the default configuration of the endpoint
// named identity.
func NewEndpointConfiguration(identity EndpointIdentity) *EndpointConfiguration {
	return &EndpointConfiguration{
		identity:    identity,
		Name:        identity,
		Transport:   DefaultTransport,
		Concurrency: runtime.NumCPU(),
		Recoverability: Recoverability{
			ImmediateRetries:     DefaultImmediateRetries,
			DelayedRetries:       DefaultDelayedRetries,
			DelayedRetryInterval: DefaultDelayedRetryInterval,
		},
		ErrorQueue: DefaultErrorQueue,
		AuditQueue: DefaultAuditQueue,
		Settings:   Settings{},
	}
}

// Identity returns the identity the configuration was created for.
func (c *EndpointConfiguration) Identity() EndpointIdentity { return c.identity }

// UseTransport selects the transport by name.
func (c *EndpointConfiguration) UseTransport(name string) *EndpointConfiguration {
	c.Transport = name
	return c
}

// LimitConcurrency sets the number of messages processed in parallel.
func (c *EndpointConfiguration) LimitConcurrency(n int) *EndpointConfiguration {
	c.Concurrency = n
	return c
}

// Retries sets immediate and delayed retry policy.
func (c *EndpointConfiguration) Retries(immediate, delayed int, interval time.Duration) *EndpointConfiguration {
	c.Recoverability = Recoverability{
		ImmediateRetries:     immediate,
		DelayedRetries:       delayed,
		DelayedRetryInterval: interval,
	}
	return c
}

// ConfigureFunc customizes an endpoint configuration. Hooks are supplied by
// the transport or deployment package.
type ConfigureFunc func(*EndpointConfiguration) error

// Apply runs the hooks in order and validates the result. A hook that
// returns an error or panics aborts the rest; either way the result is an
// ENDPOINT_CONFIGURATION error.
func (c *EndpointConfiguration) Apply(hooks ...ConfigureFunc) error {
	const op = "busx.Apply"
	for i, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := runHook(hook, c); err != nil {
			return errors.EndpointConfiguration(op, string(c.identity), fmt.Errorf("hook %d: %w", i, err))
		}
	}
	if err := c.Validate(); err != nil {
		return errors.EndpointConfiguration(op, string(c.identity), err)
	}
	return nil
}

func runHook(hook ConfigureFunc, c *EndpointConfiguration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("configure hook panicked: %v", r)
		}
	}()
	return hook(c)
}

// Validate checks the configuration is startable.
func (c *EndpointConfiguration) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("endpoint name is required")
	case c.Name != c.identity:
		return fmt.Errorf("endpoint name %q does not match identity %q", c.Name, c.identity)
	case c.Transport == "":
		return fmt.Errorf("transport is required")
	case c.Concurrency <= 0:
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	case c.Recoverability.ImmediateRetries < 0 || c.Recoverability.DelayedRetries < 0:
		return fmt.Errorf("retry counts must not be negative")
	case c.Recoverability.DelayedRetries > 0 && c.Recoverability.DelayedRetryInterval <= 0:
		return fmt.Errorf("delayed retries need a positive interval")
	case !c.SendOnly && c.ErrorQueue == "":
		return fmt.Errorf("error queue is required for a receiving endpoint")
	}
	return nil
}

// Settings carries transport-specific options.
type Settings map[string]any

// With sets key and returns the settings for chaining.
func (s Settings) With(key string, value any) Settings {
	s[key] = value
	return s
}

// String returns the value of key if it is a string.
func (s Settings) String(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// Int returns the value of key if it is an int.
func (s Settings) Int(key string) (int, bool) {
	v, ok := s[key].(int)
	return v, ok
}

// Bool returns the value of key if it is a bool.
func (s Settings) Bool(key string) (bool, bool) {
	v, ok := s[key].(bool)
	return v, ok
}

// Keys returns the setting names in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
