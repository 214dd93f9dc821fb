// Package wire implements an in-process publish/subscribe dispatcher with
// priority ordering, wildcard channels, per-handler skip lists and
// ensure/once/parallel execution semantics.
//
// # Channels
//
// Handlers register on a channel name. A name ending in "*" is a broadcast
// pattern that matches every channel starting with the same prefix, so
// "user.*" matches "user.created" but not "user" or "users". Publish targets
// are always concrete names; a wildcard there fails the dispatch.
//
// # Ordering
//
// Handlers resolved for a channel run in ascending priority. Equal
// priorities keep registration order. Before and After are shortcuts for
// negative and positive priorities:
//
//	w := wire.New()
//	_ = w.Before("user.created", wire.Sync(validate))
//	_ = w.On("user.created", wire.Sync(store))
//	_ = w.After("user.created", wire.Sync(audit))
//	err := w.Emit(ctx, "user.created", user)
//
// # Errors
//
// The first handler error of a dispatch is kept and returned as a
// *HandlerError. Once a dispatch has failed only handlers registered with
// WithEnsure still run. This state carries over to later channels of the
// same EmitAll/Publish call.
//
// # Parallel runs
//
// Adjacent handlers with WithParallel and the same priority form a run.
// Every member starts before any is awaited, and the dispatch moves on only
// after all of them settled.
//
// # Handler shapes
//
// Sync, Async, Callback and Coroutine build a *Handler from the respective
// function form. The returned pointer is the identity Off compares against.
package wire
