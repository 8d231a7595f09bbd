package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"librarian/internal/domain"
	models "librarian/internal/domain/models/library"
)

// PollOptions bound a caller's wait for a dataset to finish ingestion
type PollOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

// DefaultPollOptions suits interactive callers such as the seed command
func DefaultPollOptions() PollOptions {
	return PollOptions{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Timeout:         time.Minute,
	}
}

var errNotTerminal = errors.New("dataset not terminal")

// Poll calls fetch with exponential backoff until it returns a dataset in a
// terminal state. It fails with TransientStateError once Timeout elapses,
// with ctx's error if ctx ends first, and with fetch's error as soon as
// fetch fails.
func Poll(ctx context.Context, fetch func(ctx context.Context) (*models.Dataset, error), opts PollOptions) (*models.Dataset, error) {
	b := backoff.NewExponentialBackOff()
	if opts.InitialInterval > 0 {
		b.InitialInterval = opts.InitialInterval
	}
	if opts.MaxInterval > 0 {
		b.MaxInterval = opts.MaxInterval
	}
	b.MaxElapsedTime = opts.Timeout
	b.Reset()

	var last *models.Dataset
	op := func() error {
		ds, err := fetch(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = ds
		if !ds.State.IsTerminal() {
			return errNotTerminal
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errNotTerminal):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return last, ctxErr
		}
		return last, &domain.TransientStateError{DatasetID: last.ID, State: string(last.State)}
	default:
		return last, err
	}
}
