package wire

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jizhuozhi/go-future"
	"github.com/maxpert/eventwire/telemetry"
	"github.com/puzpuzpuz/xsync/v3"
)

// ChannelStat is the live resolution of one registered channel pattern.
type ChannelStat struct {
	Name      string       `json:"name"`
	Listeners []RecordView `json:"listeners"`
}

// Wire is a priority ordered, pattern matched publish/subscribe dispatcher.
// It is safe for concurrent use.
type Wire struct {
	cfg config

	mu      sync.RWMutex
	records []*Record
	skips   *skipRegistry
	matcher *matcher
	hooks   map[HookEvent][]HookFunc

	// known counts live, zero priority, exact registrations per channel.
	known *xsync.MapOf[string, int]
}

// New creates an empty dispatcher.
func New(opts ...Option) *Wire {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}

	return &Wire{
		cfg:     c,
		skips:   newSkipRegistry(),
		matcher: newMatcher(c.cacheSize),
		hooks:   make(map[HookEvent][]HookFunc),
		known:   xsync.NewMapOf[string, int](),
	}
}

// On registers h on channel. A channel ending in "*" matches every channel
// sharing its prefix.
func (w *Wire) On(channel string, h *Handler, opts ...HandlerOption) error {
	return w.register("on", []string{channel}, h, buildHandlerConfig(opts))
}

// OnChannels registers h on every channel. Either all registrations
// succeed or none is made.
func (w *Wire) OnChannels(channels []string, h *Handler, opts ...HandlerOption) error {
	return w.register("on", channels, h, buildHandlerConfig(opts))
}

// Once registers h to run a single time.
func (w *Wire) Once(channel string, h *Handler, opts ...HandlerOption) error {
	hc := buildHandlerConfig(opts)
	hc.once = true
	return w.register("once", []string{channel}, h, hc)
}

// Before registers h ahead of the channel's regular handlers. The priority
// defaults to DefaultBeforePriority and must stay negative.
func (w *Wire) Before(channel string, h *Handler, opts ...HandlerOption) error {
	hc := buildHandlerConfig(opts)
	if !hc.prioritySet {
		hc.priority = DefaultBeforePriority
	}
	if hc.priority >= 0 {
		return validationErr("before", channel, ErrBadPriority)
	}
	return w.register("before", []string{channel}, h, hc)
}

// After registers h behind the channel's regular handlers. The priority
// defaults to DefaultAfterPriority and must stay positive.
func (w *Wire) After(channel string, h *Handler, opts ...HandlerOption) error {
	hc := buildHandlerConfig(opts)
	if !hc.prioritySet {
		hc.priority = DefaultAfterPriority
	}
	if hc.priority <= 0 {
		return validationErr("after", channel, ErrBadPriority)
	}
	return w.register("after", []string{channel}, h, hc)
}

func buildHandlerConfig(opts []HandlerOption) handlerConfig {
	var hc handlerConfig
	for _, opt := range opts {
		opt(&hc)
	}
	return hc
}

func (w *Wire) register(op string, channels []string, h *Handler, hc handlerConfig) error {
	if len(channels) == 0 {
		return validationErr(op, "", ErrChannelRequired)
	}
	if !h.valid() {
		return validationErr(op, "", ErrNilHandler)
	}
	for _, ch := range channels {
		if err := validateChannel(op, ch); err != nil {
			return err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Compile everything before touching the arena.
	created := make([]*Record, 0, len(channels))
	for _, ch := range channels {
		created = append(created, newRecord(ch, h, hc, w.cfg.runner))
	}

	for _, r := range created {
		w.records = append(w.records, r)
		if r.primary() {
			w.known.Compute(r.channel, func(old int, _ bool) (int, bool) {
				return old + 1, false
			})
		}
		w.cfg.logger.Debug().
			Str("channel", r.channel).
			Str("handler", r.name).
			Int("priority", r.priority).
			Msg("Handler registered")
	}

	w.matcher.invalidate()
	return nil
}

// Off tombstones every record of h on channel. A nil h removes every handler
// registered on channel. The channel must be given exactly as registered.
func (w *Wire) Off(channel string, h *Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for _, r := range w.records {
		if r.channel != channel {
			continue
		}
		if h != nil && r.handler != h {
			continue
		}
		if !r.tombstone() {
			continue
		}
		removed++
		if r.primary() {
			w.known.Compute(channel, func(old int, _ bool) (int, bool) {
				return old - 1, old <= 1
			})
		}
	}

	if removed > 0 {
		w.matcher.invalidate()
		w.cfg.logger.Debug().Str("channel", channel).Int("removed", removed).Msg("Handlers unregistered")
	}
}

// Skip prevents the handlers with the given display names from ever running
// on channel, which may end in "*".
func (w *Wire) Skip(channel string, names ...string) error {
	if err := validateChannel("skip", channel); err != nil {
		return err
	}
	if len(names) == 0 {
		return validationErr("skip", channel, ErrSkipNames)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.matcher.invalidate()

	for _, name := range names {
		w.skips.add(name, channel)
	}
	return nil
}

// Has reports whether channel has at least one live, zero priority handler
// registered on exactly that name.
func (w *Wire) Has(channel string) bool {
	n, ok := w.known.Load(channel)
	return ok && n > 0
}

// Stat resolves every channel pattern ever registered, sorted by name.
func (w *Wire) Stat() []ChannelStat {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.records))
	seen := make(map[string]struct{}, len(w.records))
	for _, r := range w.records {
		if _, ok := seen[r.channel]; ok {
			continue
		}
		seen[r.channel] = struct{}{}
		names = append(names, r.channel)
	}
	slices.Sort(names)

	stats := make([]ChannelStat, 0, len(names))
	for _, name := range names {
		stats = append(stats, ChannelStat{Name: name, Listeners: w.views(name)})
	}
	return stats
}

// Listeners returns the handlers a dispatch on channel would run, in order.
func (w *Wire) Listeners(channel string) []RecordView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.views(channel)
}

func (w *Wire) views(channel string) []RecordView {
	resolved := w.matcher.resolve(channel, w.records, w.skips)
	views := make([]RecordView, len(resolved))
	for i, r := range resolved {
		views[i] = r.View()
	}
	return views
}

// Size returns how many records were ever registered and how many are live.
func (w *Wire) Size() (total, live int) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, r := range w.records {
		if r.Live() {
			live++
		}
	}
	return len(w.records), live
}

// snapshot copies the resolved handlers of channel. The copy is what a
// dispatch runs, regardless of later mutations.
func (w *Wire) snapshot(channel string) []*Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.matcher.resolve(channel, w.records, w.skips))
}

// Emit dispatches payload on channel and blocks until every handler settled.
func (w *Wire) Emit(ctx context.Context, channel string, payload any) error {
	return w.EmitAll(ctx, []string{channel}, payload)
}

// EmitAll dispatches payload on each channel in order and blocks until
// done. It returns the first handler error, wrapped in a *HandlerError, or
// a *ValidationError when a channel is empty or contains a wildcard.
func (w *Wire) EmitAll(ctx context.Context, channels []string, payload any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	d := &dispatch{w: w, ctx: ctx, payload: payload}
	err := d.run(channels)
	telemetry.DispatchDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.DispatchTotal.With("failed").Inc()
		w.cfg.logger.Debug().Err(err).Strs("channels", channels).Msg("Dispatch failed")
		return err
	}

	telemetry.DispatchTotal.With("completed").Inc()
	return nil
}

// Publish dispatches in the background and returns a future of the outcome.
func (w *Wire) Publish(ctx context.Context, channels []string, payload any) *future.Future[struct{}] {
	p := future.NewPromise[struct{}]()
	go func() {
		p.Set(struct{}{}, w.EmitAll(ctx, channels, payload))
	}()
	return p.Future()
}

// PublishFunc is Publish with a completion callback. cb receives the outcome
// on the configured scheduler, never on the caller's goroutine.
func (w *Wire) PublishFunc(ctx context.Context, channels []string, payload any, cb func(error)) *future.Future[struct{}] {
	p := future.NewPromise[struct{}]()
	go func() {
		err := w.EmitAll(ctx, channels, payload)
		p.Set(struct{}{}, err)
		if cb != nil {
			w.cfg.scheduler.Defer(func() { cb(err) })
		}
	}()
	return p.Future()
}
