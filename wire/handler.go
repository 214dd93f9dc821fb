package wire

import (
	"context"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"unicode"

	"github.com/jizhuozhi/go-future"
)

// Shape is the calling convention of a handler, fixed when the handler is built.
type Shape uint8

const (
	// ShapeSync handlers run inline and report failure through their return value.
	ShapeSync Shape = iota
	// ShapeAsync handlers return a future that is awaited.
	ShapeAsync
	// ShapeCallback handlers signal completion through a done callback.
	ShapeCallback
	// ShapeCoroutine handlers are driven by the configured CoroutineRunner.
	ShapeCoroutine
)

// String returns a human-readable shape name.
func (s Shape) String() string {
	switch s {
	case ShapeSync:
		return "sync"
	case ShapeAsync:
		return "async"
	case ShapeCallback:
		return "callback"
	case ShapeCoroutine:
		return "coroutine"
	default:
		return "unknown"
	}
}

// SyncFunc is a synchronous handler. A non-nil error fails the handler.
type SyncFunc func(ctx context.Context, payload any) error

// AsyncFunc returns a future that settles when the handler is done.
// A nil future counts as immediate success.
type AsyncFunc func(ctx context.Context, payload any) *future.Future[struct{}]

// CallbackFunc reports completion by calling done exactly once. Only the
// first call to done is honoured.
type CallbackFunc func(ctx context.Context, payload any, done func(error))

// CoroutineFunc is a suspend/resume style handler. It is never called
// directly by the dispatcher, only through a CoroutineRunner.
type CoroutineFunc func(ctx context.Context, payload any) error

// CoroutineRunner drives a coroutine handler to completion and returns a
// future of its outcome.
type CoroutineRunner func(ctx context.Context, fn CoroutineFunc, payload any) *future.Future[struct{}]

// invoker is the normalized form every handler shape is adapted to.
type invoker func(ctx context.Context, payload any) *future.Future[struct{}]

// Handler is a registrable callable. Its pointer identity is what Off
// compares against, so build it once and keep the reference around.
type Handler struct {
	shape     Shape
	name      string
	sync      SyncFunc
	async     AsyncFunc
	callback  CallbackFunc
	coroutine CoroutineFunc
}

// Sync builds a synchronous handler.
func Sync(fn SyncFunc) *Handler {
	if fn == nil {
		return nil
	}
	return &Handler{shape: ShapeSync, name: funcName(fn), sync: fn}
}

// Async builds a handler returning a future.
func Async(fn AsyncFunc) *Handler {
	if fn == nil {
		return nil
	}
	return &Handler{shape: ShapeAsync, name: funcName(fn), async: fn}
}

// Callback builds a callback-style handler.
func Callback(fn CallbackFunc) *Handler {
	if fn == nil {
		return nil
	}
	return &Handler{shape: ShapeCallback, name: funcName(fn), callback: fn}
}

// Coroutine builds a coroutine-style handler.
func Coroutine(fn CoroutineFunc) *Handler {
	if fn == nil {
		return nil
	}
	return &Handler{shape: ShapeCoroutine, name: funcName(fn), coroutine: fn}
}

// Shape returns the handler's calling convention.
func (h *Handler) Shape() Shape {
	return h.shape
}

// Name returns the Go function name of the handler, or "" for closures.
func (h *Handler) Name() string {
	return h.name
}

func (h *Handler) valid() bool {
	if h == nil {
		return false
	}
	switch h.shape {
	case ShapeSync:
		return h.sync != nil
	case ShapeAsync:
		return h.async != nil
	case ShapeCallback:
		return h.callback != nil
	case ShapeCoroutine:
		return h.coroutine != nil
	}
	return false
}

// adapt builds the normalized invoker for this handler.
func (h *Handler) adapt(runner CoroutineRunner) invoker {
	switch h.shape {
	case ShapeAsync:
		fn := h.async
		return func(ctx context.Context, payload any) *future.Future[struct{}] {
			var f *future.Future[struct{}]
			err := callSafely(func() error {
				f = fn(ctx, payload)
				return nil
			})
			if err != nil || f == nil {
				return Settled(err)
			}
			return f
		}

	case ShapeCallback:
		fn := h.callback
		return func(ctx context.Context, payload any) *future.Future[struct{}] {
			p := future.NewPromise[struct{}]()
			var once sync.Once
			done := func(err error) {
				once.Do(func() { p.Set(struct{}{}, err) })
			}
			if err := callSafely(func() error {
				fn(ctx, payload, done)
				return nil
			}); err != nil {
				done(err)
			}
			return p.Future()
		}

	case ShapeCoroutine:
		fn := h.coroutine
		return func(ctx context.Context, payload any) *future.Future[struct{}] {
			var f *future.Future[struct{}]
			err := callSafely(func() error {
				f = runner(ctx, fn, payload)
				return nil
			})
			if err != nil || f == nil {
				return Settled(err)
			}
			return f
		}

	default:
		fn := h.sync
		return func(ctx context.Context, payload any) *future.Future[struct{}] {
			return Settled(callSafely(func() error { return fn(ctx, payload) }))
		}
	}
}

// GoroutineRunner is the default CoroutineRunner: it runs the handler on
// its own goroutine and resolves the returned future when it returns.
func GoroutineRunner(ctx context.Context, fn CoroutineFunc, payload any) *future.Future[struct{}] {
	p := future.NewPromise[struct{}]()
	go func() {
		p.Set(struct{}{}, callSafely(func() error { return fn(ctx, payload) }))
	}()
	return p.Future()
}

// Settled returns an already completed future carrying err.
func Settled(err error) *future.Future[struct{}] {
	p := future.NewPromise[struct{}]()
	p.Set(struct{}{}, err)
	return p.Future()
}

// callSafely runs fn and converts a panic into a *PanicError.
func callSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// funcName extracts the declared name of fn. Closures and method
// expressions generated by the compiler yield "".
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return ""
	}

	full := rf.Name()
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	if i := strings.Index(full, "["); i >= 0 {
		full = full[:i]
	}
	full = strings.TrimSuffix(full, "-fm")

	segments := strings.Split(full, ".")
	if len(segments) < 2 {
		return ""
	}
	// Drop the package qualifier.
	segments = segments[1:]
	for _, seg := range segments {
		if isClosureSegment(seg) {
			return ""
		}
	}
	return segments[len(segments)-1]
}

// isClosureSegment reports whether seg looks like "func1", "func12", or a
// bare gc-generated number used for nested closures.
func isClosureSegment(seg string) bool {
	rest := strings.TrimPrefix(seg, "func")
	if rest == "" {
		return seg == "func"
	}
	for _, r := range rest {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
