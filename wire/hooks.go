package wire

// HookEvent names a point in a handler's lifecycle.
type HookEvent string

const (
	// EachBefore fires right before every handler invocation.
	EachBefore HookEvent = "eachBefore"
	// EachAfter fires once every invoked handler has settled, failed or not.
	EachAfter HookEvent = "eachAfter"
)

// HookFunc observes a handler invocation. Hooks run on the dispatching
// goroutine; a panicking hook fails the handler it was fired for.
type HookFunc func(rec *Record, payload any)

// Hook registers fn for event. Hooks fire in registration order.
func (w *Wire) Hook(event HookEvent, fn HookFunc) error {
	if event != EachBefore && event != EachAfter {
		return validationErr("hook", string(event), ErrUnknownHook)
	}
	if fn == nil {
		return validationErr("hook", string(event), ErrNilHook)
	}

	w.mu.Lock()
	w.hooks[event] = append(w.hooks[event], fn)
	w.mu.Unlock()
	return nil
}

// fireHooks calls every hook of event. The first panicking hook stops the
// rest and its panic is returned as an error.
func (w *Wire) fireHooks(event HookEvent, r *Record, payload any) error {
	w.mu.RLock()
	hooks := w.hooks[event]
	w.mu.RUnlock()

	for _, fn := range hooks {
		if err := callSafely(func() error {
			fn(r, payload)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
