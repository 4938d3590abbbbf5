package studio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maauso/logo-animator-api/internal/gemini"
)

// Progress is reported to the poll observer after submission (Attempt 0)
// and after every status query.
type Progress struct {
	Attempt       int
	OperationName string
	Done          bool
}

// PollOptions bound the video polling loop. A zero Timeout or MaxAttempts
// leaves that bound off; with both off the loop only ends on completion,
// a query error or context cancellation.
type PollOptions struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
	Observer    func(Progress)
}

// PollOption is a function that configures PollOptions.
type PollOption func(*PollOptions)

// WithInterval sets the wait between status queries.
func WithInterval(d time.Duration) PollOption {
	return func(o *PollOptions) {
		if d > 0 {
			o.Interval = d
		}
	}
}

// WithTimeout bounds the total polling time.
func WithTimeout(d time.Duration) PollOption {
	return func(o *PollOptions) {
		o.Timeout = d
	}
}

// WithMaxAttempts bounds the number of status queries.
func WithMaxAttempts(n int) PollOption {
	return func(o *PollOptions) {
		o.MaxAttempts = n
	}
}

// WithObserver sets a callback invoked on every progress update.
func WithObserver(fn func(Progress)) PollOption {
	return func(o *PollOptions) {
		o.Observer = fn
	}
}

func (o PollOptions) notify(p Progress) {
	if o.Observer != nil {
		o.Observer(p)
	}
}

// pollOperation re-queries op every interval until it is done.
func pollOperation(ctx context.Context, c gemini.Client, op *gemini.Operation, o PollOptions) (*gemini.Operation, error) {
	interval := o.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, o.Timeout, ErrPollTimeout)
		defer cancel()
	}

	for attempt := 0; !op.Done; {
		if o.MaxAttempts > 0 && attempt >= o.MaxAttempts {
			return nil, fmt.Errorf("%w: %d queries", ErrPollAttemptsExceeded, attempt)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, pollContextError(ctx)
		case <-timer.C:
		}

		next, err := c.GetVideosOperation(ctx, op)
		if err != nil {
			if ctx.Err() != nil {
				return nil, pollContextError(ctx)
			}
			return nil, fmt.Errorf("studio: poll operation: %w", err)
		}

		attempt++
		op = next
		o.notify(Progress{Attempt: attempt, OperationName: op.Name, Done: op.Done})
	}

	return op, nil
}

// pollContextError maps a finished context to ErrPollTimeout when the poll
// bound fired, or to the context's own error otherwise.
func pollContextError(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), ErrPollTimeout) {
		return ErrPollTimeout
	}
	return ctx.Err()
}
