package wire

import (
	"time"

	"github.com/maxpert/eventwire/tick"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultCacheSize is the default capacity of the match cache.
	DefaultCacheSize = 1024

	// DefaultBeforePriority is used by Before when no priority is given.
	DefaultBeforePriority = -10

	// DefaultAfterPriority is used by After when no priority is given.
	DefaultAfterPriority = 10

	// AnonymousName is the display name of handlers with no name.
	AnonymousName = "<anonymous>"
)

// Option configures a Wire.
type Option func(*config)

type config struct {
	runner    CoroutineRunner
	scheduler tick.Scheduler
	cacheSize int
	timeout   time.Duration
	logger    zerolog.Logger
}

func defaultConfig() config {
	return config{
		runner:    GoroutineRunner,
		scheduler: tick.Go{},
		cacheSize: DefaultCacheSize,
		logger:    log.With().Str("component", "wire").Logger(),
	}
}

// WithCoroutineRunner replaces the runner used for Coroutine handlers.
func WithCoroutineRunner(r CoroutineRunner) Option {
	return func(c *config) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithScheduler sets where PublishFunc completion callbacks are deferred to.
func WithScheduler(s tick.Scheduler) Option {
	return func(c *config) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithCacheSize sets the match cache capacity.
func WithCacheSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.cacheSize = size
		}
	}
}

// WithHandlerTimeout sets a default timeout for every handler. Zero, the
// default, waits forever.
func WithHandlerTimeout(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used by the dispatcher.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// HandlerOption configures a single registration.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	priority    int
	prioritySet bool
	once        bool
	ensure      bool
	parallel    bool
	name        string
	timeout     time.Duration
}

// WithPriority sets the execution priority. Lower runs earlier.
func WithPriority(p int) HandlerOption {
	return func(c *handlerConfig) {
		c.priority = p
		c.prioritySet = true
	}
}

// WithOnce unregisters the handler the first time it is selected.
func WithOnce() HandlerOption {
	return func(c *handlerConfig) {
		c.once = true
	}
}

// WithEnsure runs the handler even after an earlier handler failed.
func WithEnsure() HandlerOption {
	return func(c *handlerConfig) {
		c.ensure = true
	}
}

// WithParallel lets the handler run concurrently with adjacent parallel
// handlers of the same priority.
func WithParallel() HandlerOption {
	return func(c *handlerConfig) {
		c.parallel = true
	}
}

// WithName sets the display name used when the function itself has none.
func WithName(name string) HandlerOption {
	return func(c *handlerConfig) {
		c.name = name
	}
}

// WithTimeout bounds how long the dispatcher waits for this handler.
func WithTimeout(d time.Duration) HandlerOption {
	return func(c *handlerConfig) {
		c.timeout = d
	}
}
