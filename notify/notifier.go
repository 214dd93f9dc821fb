package notify

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/maxpert/eventwire/wire"
	"github.com/puzpuzpuz/xsync/v3"
)

// defaultSignalBufferSize is the buffer size for tap channels.
// Subscribers that can't keep up will have signals dropped (non-blocking send).
const defaultSignalBufferSize = 16

// TapPriority places taps after every regular After handler.
const TapPriority = math.MaxInt32

// TapName is the display name of tap handlers, usable in skip lists.
const TapName = "notify.tap"

// Signal is one dispatch observed by a tap.
type Signal struct {
	Channel string
	Payload any
}

// subscription represents a single tap.
type subscription struct {
	id      uint64
	pattern string
	handler *wire.Handler
	ch      chan Signal

	mu     sync.RWMutex
	closed bool
}

// send delivers sig unless the buffer is full or the tap is closed.
func (s *subscription) send(sig Signal) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- sig:
		return true
	default:
		return false
	}
}

// close closes the subscription channel if not already closed.
func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub bridges dispatches of a Wire into Go channels.
// Thread-safe; taps never fail or slow down a dispatch.
type Hub struct {
	w             *wire.Wire
	subscriptions *xsync.MapOf[uint64, *subscription]
	nextID        atomic.Uint64
	dropped       atomic.Uint64
}

// NewHub creates a hub tapping w.
func NewHub(w *wire.Wire) *Hub {
	return &Hub{
		w:             w,
		subscriptions: xsync.NewMapOf[uint64, *subscription](),
	}
}

// Subscribe taps every dispatch on pattern, which may end in "*". The
// returned channel is buffered; signals are dropped when it is full. Taps
// run as ensure handlers, so failed dispatches are observed too. The cancel
// function is idempotent.
func (h *Hub) Subscribe(pattern string) (<-chan Signal, func(), error) {
	sub := &subscription{
		id:      h.nextID.Add(1),
		pattern: pattern,
		ch:      make(chan Signal, defaultSignalBufferSize),
	}

	sub.handler = wire.Sync(func(ctx context.Context, payload any) error {
		if !sub.send(Signal{Channel: wire.Channel(ctx), Payload: payload}) {
			h.dropped.Add(1)
		}
		return nil
	})

	err := h.w.After(pattern, sub.handler,
		wire.WithPriority(TapPriority),
		wire.WithEnsure(),
		wire.WithName(TapName),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to tap %q: %w", pattern, err)
	}

	h.subscriptions.Store(sub.id, sub)

	cancel := func() {
		h.unsubscribe(sub.id)
	}

	return sub.ch, cancel, nil
}

// Len returns the number of active taps.
func (h *Hub) Len() int {
	return h.subscriptions.Size()
}

// Dropped returns how many signals were dropped on full buffers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close cancels every tap.
func (h *Hub) Close() {
	h.subscriptions.Range(func(id uint64, _ *subscription) bool {
		h.unsubscribe(id)
		return true
	})
}

// unsubscribe removes a tap from the wire and closes its channel.
func (h *Hub) unsubscribe(id uint64) {
	sub, ok := h.subscriptions.LoadAndDelete(id)
	if !ok {
		return
	}

	h.w.Off(sub.pattern, sub.handler)
	sub.close()
}
