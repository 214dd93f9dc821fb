package wire

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jizhuozhi/go-future"
	"github.com/maxpert/eventwire/telemetry"
)

// dispatch carries the state of one publish call across all its channels.
// Only the dispatching goroutine touches err, so it needs no lock.
type dispatch struct {
	w       *Wire
	ctx     context.Context
	payload any
	err     error
}

// settled is the outcome of one member of a parallel run.
type settled struct {
	pos int
	rec *Record
	err error
}

// validatePublish rejects publish targets that are empty or contain a wildcard.
func validatePublish(channel string) error {
	if channel == "" {
		return validationErr("publish", channel, ErrChannelRequired)
	}
	if strings.Contains(channel, Wildcard) {
		return validationErr("publish", channel, ErrWildcardPublish)
	}
	return nil
}

// run dispatches payload to every channel in order. A failure on one
// channel is carried into the next ones, where only ensure handlers run.
func (d *dispatch) run(channels []string) error {
	for _, ch := range channels {
		if err := validatePublish(ch); err != nil {
			return err
		}
	}

	for _, ch := range channels {
		d.emit(ch)
	}
	return d.err
}

// emit runs the handler snapshot of a single channel, run by run.
func (d *dispatch) emit(channel string) {
	handlers := d.w.snapshot(channel)
	if len(handlers) == 0 {
		return
	}

	ctx := withChannel(d.ctx, channel)

	for i := 0; i < len(handlers); {
		r := handlers[i]
		if !r.parallel {
			d.runSequential(ctx, channel, r)
			i++
			continue
		}

		j := i + 1
		for j < len(handlers) && handlers[j].parallel && handlers[j].priority == r.priority {
			j++
		}
		d.runParallel(ctx, channel, handlers[i:j])
		i = j
	}
}

// runSequential runs a single non-parallel handler to completion.
func (d *dispatch) runSequential(ctx context.Context, channel string, r *Record) {
	if !d.selectRecord(r, d.err != nil) {
		return
	}

	err := d.w.fireHooks(EachBefore, r, d.payload)
	if err == nil {
		err = d.call(ctx, r)
	}
	d.settle(channel, r, err)
}

// runParallel starts every selected member of the run before waiting for
// any of them. Outcomes are settled in the order they are observed; members
// observed together are settled in list order.
func (d *dispatch) runParallel(ctx context.Context, channel string, run []*Record) {
	hadErr := d.err != nil
	results := make(chan settled, len(run))
	started := 0

	for pos, r := range run {
		if !d.selectRecord(r, hadErr) {
			continue
		}
		started++

		if err := d.w.fireHooks(EachBefore, r, d.payload); err != nil {
			results <- settled{pos: pos, rec: r, err: err}
			continue
		}

		go func(pos int, r *Record) {
			results <- settled{pos: pos, rec: r, err: d.call(ctx, r)}
		}(pos, r)
	}

	for received := 0; received < started; {
		batch := []settled{<-results}
	drain:
		for {
			select {
			case s := <-results:
				batch = append(batch, s)
			default:
				break drain
			}
		}

		slices.SortFunc(batch, func(a, b settled) int { return a.pos - b.pos })
		for _, s := range batch {
			d.settle(channel, s.rec, s.err)
		}
		received += len(batch)
	}
}

// selectRecord decides whether r runs in this dispatch. Selected once
// records are unregistered before they are invoked.
func (d *dispatch) selectRecord(r *Record, hadErr bool) bool {
	if hadErr && !r.ensure {
		telemetry.HandlerSkippedTotal.Inc()
		return false
	}
	if !r.claim() {
		return false
	}
	if r.once {
		d.w.Off(r.channel, r.handler)
	}
	r.calls.Add(1)
	return true
}

// call invokes the handler and waits for its outcome.
func (d *dispatch) call(ctx context.Context, r *Record) error {
	timeout := r.timeout
	if timeout <= 0 {
		timeout = d.w.cfg.timeout
	}

	hctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shape := r.handler.shape.String()
	telemetry.HandlerCallsTotal.With(shape).Inc()
	start := time.Now()

	f := r.invoke(hctx, d.payload)

	// Sync handlers have already returned; their outcome is final.
	var err error
	if r.handler.shape == ShapeSync {
		_, err = f.Get()
	} else {
		err = await(hctx, f)
	}
	if err != nil && timeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s", ErrHandlerTimeout, timeout)
	}

	telemetry.HandlerDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.HandlerErrorsTotal.With(shape).Inc()
	}
	return err
}

// settle fires the after hooks and records the first error.
func (d *dispatch) settle(channel string, r *Record, err error) {
	hookErr := d.w.fireHooks(EachAfter, r, d.payload)
	if err == nil {
		err = hookErr
	}
	if err == nil {
		return
	}

	if d.err == nil {
		d.err = &HandlerError{Channel: channel, Handler: r.name, Err: err}
		return
	}

	d.w.cfg.logger.Debug().
		Err(err).
		Str("channel", channel).
		Str("handler", r.name).
		Msg("Handler failed after an earlier error, ignoring")
}

// await blocks until f settles or ctx is done. The handler itself is not
// interrupted when ctx ends first.
func await(ctx context.Context, f *future.Future[struct{}]) error {
	done := make(chan error, 1)
	go func() {
		_, err := f.Get()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
