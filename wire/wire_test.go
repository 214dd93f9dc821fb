package wire

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects handler invocations in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) handler(name string) *Handler {
	return Sync(func(ctx context.Context, payload any) error {
		r.add(name)
		return nil
	})
}

func (r *recorder) failing(name string, err error) *Handler {
	return Sync(func(ctx context.Context, payload any) error {
		r.add(name)
		return err
	})
}

func TestRegister_Validation(t *testing.T) {
	w := New()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"empty channel", func() error { return w.On("", noop()) }, ErrChannelRequired},
		{"no channels", func() error { return w.OnChannels(nil, noop()) }, ErrChannelRequired},
		{"nil handler", func() error { return w.On("a", nil) }, ErrNilHandler},
		{"zero handler", func() error { return w.On("a", &Handler{}) }, ErrNilHandler},
		{"nil func", func() error { return w.On("a", Sync(nil)) }, ErrNilHandler},
		{"wildcard in middle", func() error { return w.On("a*b", noop()) }, ErrBadChannel},
		{"double wildcard", func() error { return w.On("a**", noop()) }, ErrBadChannel},
		{"before non-negative", func() error { return w.Before("a", noop(), WithPriority(0)) }, ErrBadPriority},
		{"after non-positive", func() error { return w.After("a", noop(), WithPriority(-1)) }, ErrBadPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	assert.Empty(t, w.Stat())
}

func TestRegister_MultipleChannelsAllOrNothing(t *testing.T) {
	w := New()

	err := w.OnChannels([]string{"a", "b*c"}, noop())
	require.ErrorIs(t, err, ErrBadChannel)
	assert.Empty(t, w.Stat())

	require.NoError(t, w.OnChannels([]string{"a", "b", "c.*"}, noop()))
	total, live := w.Size()
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, live)
}

func TestRegister_BeforeAfterDefaults(t *testing.T) {
	w := New()
	require.NoError(t, w.Before("ch", noop(), WithName("before")))
	require.NoError(t, w.After("ch", noop(), WithName("after")))
	require.NoError(t, w.Before("ch", noop(), WithName("early"), WithPriority(-20)))

	snap := w.snapshot("ch")
	require.Len(t, snap, 3)
	assert.Equal(t, "early", snap[0].Name())
	assert.Equal(t, -20, snap[0].Priority())
	assert.Equal(t, DefaultBeforePriority, snap[1].Priority())
	assert.Equal(t, DefaultAfterPriority, snap[2].Priority())
}

func namedHandler(ctx context.Context, payload any) error { return nil }

type service struct{}

func (s *service) Handle(ctx context.Context, payload any) error { return nil }

func TestDisplayName(t *testing.T) {
	w := New()
	svc := &service{}

	require.NoError(t, w.On("n", Sync(namedHandler), WithName("ignored")))
	require.NoError(t, w.On("n", Sync(svc.Handle)))
	require.NoError(t, w.On("n", noop(), WithName("override")))
	require.NoError(t, w.On("n", noop()))

	assert.Equal(t, []string{"namedHandler", "Handle", "override", AnonymousName}, names(w.snapshot("n")))
	assert.Equal(t, "namedHandler", Sync(namedHandler).Name())
	assert.Empty(t, noop().Name())
}

func TestHas(t *testing.T) {
	w := New()
	h1, h2 := noop(), noop()

	assert.False(t, w.Has("ch"))

	require.NoError(t, w.Before("ch", noop()))
	require.NoError(t, w.On("ch*", noop()))
	assert.False(t, w.Has("ch"), "before and wildcard handlers are not primary")

	require.NoError(t, w.On("ch", h1))
	require.NoError(t, w.On("ch", h2))
	assert.True(t, w.Has("ch"))

	w.Off("ch", h1)
	assert.True(t, w.Has("ch"))

	w.Off("ch", h2)
	assert.False(t, w.Has("ch"))

	// Removing again must not drive the count negative.
	w.Off("ch", h2)
	require.NoError(t, w.On("ch", h1))
	assert.True(t, w.Has("ch"))
}

func TestOff(t *testing.T) {
	t.Run("specific handler", func(t *testing.T) {
		w := New()
		h := noop()
		require.NoError(t, w.On("ch", h, WithName("gone")))
		require.NoError(t, w.On("ch", noop(), WithName("kept")))

		w.Off("ch", h)
		assert.Equal(t, []string{"kept"}, names(w.snapshot("ch")))

		_, live := w.Size()
		assert.Equal(t, 1, live)
	})

	t.Run("all handlers of channel", func(t *testing.T) {
		w := New()
		require.NoError(t, w.On("ch", noop()))
		require.NoError(t, w.After("ch", noop()))
		require.NoError(t, w.On("other", noop()))

		w.Off("ch", nil)
		assert.Empty(t, w.snapshot("ch"))
		assert.Len(t, w.snapshot("other"), 1)
		assert.False(t, w.Has("ch"))
	})

	t.Run("pattern must match as registered", func(t *testing.T) {
		w := New()
		h := noop()
		require.NoError(t, w.On("ch.*", h))

		w.Off("ch.a", h)
		assert.Len(t, w.snapshot("ch.a"), 1)

		w.Off("ch.*", h)
		assert.Empty(t, w.snapshot("ch.a"))
	})

	t.Run("every registration of the handler", func(t *testing.T) {
		w := New()
		h := noop()
		require.NoError(t, w.On("ch", h))
		require.NoError(t, w.On("ch", h, WithPriority(5)))

		w.Off("ch", h)
		assert.Empty(t, w.snapshot("ch"))
	})
}

func TestSkip(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		w := New()
		assert.ErrorIs(t, w.Skip("", "x"), ErrChannelRequired)
		assert.ErrorIs(t, w.Skip("a*b", "x"), ErrBadChannel)
		assert.ErrorIs(t, w.Skip("a"), ErrSkipNames)
	})

	t.Run("exact pattern", func(t *testing.T) {
		w := New()
		require.NoError(t, w.On("foo.*", noop(), WithName("wild")))
		require.NoError(t, w.Skip("foo.bar", "wild"))

		assert.Empty(t, w.snapshot("foo.bar"))
		assert.Len(t, w.snapshot("foo.baz"), 1)
	})

	t.Run("wildcard pattern", func(t *testing.T) {
		w := New()
		require.NoError(t, w.On("*", noop(), WithName("all")))
		require.NoError(t, w.Skip("internal.*", "all"))

		assert.Empty(t, w.snapshot("internal.tick"))
		assert.Len(t, w.snapshot("internal"), 1)
		assert.Len(t, w.snapshot("public.tick"), 1)
	})

	t.Run("idempotent", func(t *testing.T) {
		w := New()
		require.NoError(t, w.On("ch", noop(), WithName("a")))
		require.NoError(t, w.On("ch", noop(), WithName("b")))

		require.NoError(t, w.Skip("ch", "a"))
		once := names(w.snapshot("ch"))
		require.NoError(t, w.Skip("ch", "a"))
		twice := names(w.snapshot("ch"))

		assert.Equal(t, []string{"b"}, once)
		assert.Equal(t, once, twice)
		assert.Equal(t, []string{"ch"}, w.skips.channels("a"))
	})

	t.Run("applies to later registrations", func(t *testing.T) {
		w := New()
		require.NoError(t, w.Skip("ch", "late"))
		require.NoError(t, w.On("ch", noop(), WithName("late")))

		assert.Empty(t, w.snapshot("ch"))
	})
}

func TestHook_Validation(t *testing.T) {
	w := New()
	assert.ErrorIs(t, w.Hook("eachMiddle", func(*Record, any) {}), ErrUnknownHook)
	assert.ErrorIs(t, w.Hook(EachBefore, nil), ErrNilHook)
	assert.NoError(t, w.Hook(EachAfter, func(*Record, any) {}))
}

func TestStat(t *testing.T) {
	w := New()
	require.NoError(t, w.On("test.2", noop(), WithName("two")))
	require.NoError(t, w.On("test.*", noop(), WithName("wild")))
	require.NoError(t, w.On("test.1", noop(), WithName("one"), WithPriority(3)))
	require.NoError(t, w.On("test.1", noop(), WithName("one-again")))

	stats := w.Stat()
	require.Len(t, stats, 3)

	assert.Equal(t, "test.*", stats[0].Name)
	assert.Equal(t, "test.1", stats[1].Name)
	assert.Equal(t, "test.2", stats[2].Name)

	listeners := stats[1].Listeners
	require.Len(t, listeners, 3)
	assert.Equal(t, "wild", listeners[0].Name)
	assert.Equal(t, "one-again", listeners[1].Name)
	assert.Equal(t, "one", listeners[2].Name)
	assert.Equal(t, 3, listeners[2].Priority)
	assert.True(t, listeners[0].Broadcast)
	assert.Equal(t, "sync", listeners[0].Shape)

	t.Run("tombstoned channels stay listed", func(t *testing.T) {
		w.Off("test.2", nil)
		stats := w.Stat()
		require.Len(t, stats, 3)
		assert.Equal(t, []string{"wild"}, viewNames(stats[2].Listeners))
	})

	t.Run("reports calls", func(t *testing.T) {
		require.NoError(t, w.Emit(context.Background(), "test.1", nil))
		for _, l := range w.Stat()[1].Listeners {
			assert.Equal(t, uint64(1), l.Calls, l.Name)
		}
	})
}

func viewNames(views []RecordView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Name
	}
	return out
}

func TestConcurrentRegistration(t *testing.T) {
	w := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := noop()
			assert.NoError(t, w.On("ch", h))
			assert.NoError(t, w.Emit(context.Background(), "ch", nil))
			w.Off("ch", h)
		}()
	}
	wg.Wait()

	assert.False(t, w.Has("ch"))
	_, live := w.Size()
	assert.Zero(t, live)
}

var errBoom = errors.New("boom")
