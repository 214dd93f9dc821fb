package wire

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
)

// Wildcard is the broadcast marker. It is only valid as the last character
// of a registration or skip pattern.
const Wildcard = "*"

// Record is one registration of a handler on a channel pattern. Records are
// never removed from the dispatcher; Off tombstones them instead.
type Record struct {
	channelPattern

	handler *Handler
	invoke  invoker
	name    string

	once     bool
	ensure   bool
	parallel bool
	priority int
	timeout  time.Duration

	live    atomic.Bool
	claimed atomic.Bool
	calls   atomic.Uint64
}

// RecordView is an immutable copy of a record's state for inspection.
type RecordView struct {
	Channel   string `json:"channel"`
	Name      string `json:"name"`
	Shape     string `json:"shape"`
	Priority  int    `json:"priority"`
	Once      bool   `json:"once,omitempty"`
	Ensure    bool   `json:"ensure,omitempty"`
	Parallel  bool   `json:"parallel,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`
	Calls     uint64 `json:"calls"`
	Live      bool   `json:"live"`
}

func newRecord(channel string, h *Handler, hc handlerConfig, runner CoroutineRunner) *Record {
	r := &Record{
		channelPattern: compilePattern(channel),
		handler:        h,
		invoke:         h.adapt(runner),
		name:           displayName(h, hc.name),
		once:           hc.once,
		ensure:         hc.ensure,
		parallel:       hc.parallel,
		priority:       hc.priority,
		timeout:        hc.timeout,
	}
	r.live.Store(true)
	return r
}

// displayName prefers the function's own name, then the explicit override.
func displayName(h *Handler, override string) string {
	if h.name != "" {
		return h.name
	}
	if override != "" {
		return override
	}
	return AnonymousName
}

// Channel returns the registration pattern.
func (r *Record) Channel() string { return r.channel }

// Name returns the display name used by skip lists.
func (r *Record) Name() string { return r.name }

// Priority returns the execution priority.
func (r *Record) Priority() int { return r.priority }

// Calls returns how many times the handler actually ran.
func (r *Record) Calls() uint64 { return r.calls.Load() }

// Live reports whether the record has not been tombstoned.
func (r *Record) Live() bool { return r.live.Load() }

// View returns a snapshot of the record.
func (r *Record) View() RecordView {
	return RecordView{
		Channel:   r.channel,
		Name:      r.name,
		Shape:     r.handler.shape.String(),
		Priority:  r.priority,
		Once:      r.once,
		Ensure:    r.ensure,
		Parallel:  r.parallel,
		Broadcast: r.broadcast,
		Calls:     r.calls.Load(),
		Live:      r.live.Load(),
	}
}

// primary reports whether the record counts towards Has().
func (r *Record) primary() bool {
	return r.priority == 0 && !r.broadcast
}

// tombstone marks the record inert. Returns false if it already was.
func (r *Record) tombstone() bool {
	return r.live.CompareAndSwap(true, false)
}

// claim reserves a once record for exactly one execution.
func (r *Record) claim() bool {
	if !r.once {
		return true
	}
	return r.claimed.CompareAndSwap(false, true)
}

// validateChannel checks a registration or skip pattern.
func validateChannel(op, channel string) error {
	if channel == "" {
		return validationErr(op, channel, ErrChannelRequired)
	}
	if i := strings.Index(channel, Wildcard); i >= 0 && i != len(channel)-1 {
		return validationErr(op, channel, ErrBadChannel)
	}
	return nil
}

// channelPattern is a compiled registration or skip pattern.
type channelPattern struct {
	channel   string
	broadcast bool
	prefix    string
	compiled  glob.Glob // nil for exact channels and unquotable prefixes
}

// compilePattern splits channel into its prefix and, for broadcast
// patterns, a prefix glob. The prefix is quoted so glob metacharacters in
// channel names are matched literally. Prefixes the glob lexer rejects
// (invalid UTF-8) are matched on the raw prefix instead.
func compilePattern(channel string) channelPattern {
	p := channelPattern{channel: channel, prefix: channel}
	if !strings.HasSuffix(channel, Wildcard) {
		return p
	}

	p.broadcast = true
	p.prefix = strings.TrimSuffix(channel, Wildcard)
	if g, err := glob.Compile(glob.QuoteMeta(p.prefix) + Wildcard); err == nil {
		p.compiled = g
	}
	return p
}

// matches reports whether a concrete channel is selected by the pattern.
func (p channelPattern) matches(channel string) bool {
	switch {
	case !p.broadcast:
		return channel == p.channel
	case p.compiled != nil:
		return p.compiled.Match(channel)
	default:
		return strings.HasPrefix(channel, p.prefix)
	}
}
