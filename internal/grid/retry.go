package grid

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the exponential backoff applied to transient failures.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	MaxInterval time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy starts at one second, doubles, and caps at one minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Initial:     time.Second,
		MaxInterval: time.Minute,
		Multiplier:  2,
	}
}

type retryStore struct {
	Store
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps s so that every call failing with ErrTransient is retried
// under policy. Any other error, ErrNotFound included, is returned at once.
func WithRetry(s Store, policy RetryPolicy, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryStore{Store: s, policy: policy, logger: logger}
}

func (r *retryStore) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.Initial
	b.MaxInterval = r.policy.MaxInterval
	if r.policy.Multiplier > 0 {
		b.Multiplier = r.policy.Multiplier
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
}

func (r *retryStore) do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, r.backOff(ctx), func(err error, wait time.Duration) {
		r.logger.Warn("store call failed, retrying",
			"op", op, "attempt", attempt, "wait", wait, "error", err)
	})
}

func (r *retryStore) ListGrids(ctx context.Context) ([]Handle, error) {
	var out []Handle
	err := r.do(ctx, "ListGrids", func() (err error) {
		out, err = r.Store.ListGrids(ctx)
		return err
	})
	return out, err
}

func (r *retryStore) GetGrid(ctx context.Context, name string) (Handle, error) {
	var out Handle
	err := r.do(ctx, "GetGrid", func() (err error) {
		out, err = r.Store.GetGrid(ctx, name)
		return err
	})
	return out, err
}

func (r *retryStore) CreateGrid(ctx context.Context, name string, rows, cols int) (Handle, error) {
	var out Handle
	err := r.do(ctx, "CreateGrid", func() (err error) {
		out, err = r.Store.CreateGrid(ctx, name, rows, cols)
		return err
	})
	return out, err
}

func (r *retryStore) RenameGrid(ctx context.Context, h Handle, name string) (Handle, error) {
	var out Handle
	err := r.do(ctx, "RenameGrid", func() (err error) {
		out, err = r.Store.RenameGrid(ctx, h, name)
		return err
	})
	return out, err
}

func (r *retryStore) DeleteGrid(ctx context.Context, h Handle) error {
	return r.do(ctx, "DeleteGrid", func() error {
		return r.Store.DeleteGrid(ctx, h)
	})
}

func (r *retryStore) ResizeGrid(ctx context.Context, h Handle, rows, cols int) (Handle, error) {
	var out Handle
	err := r.do(ctx, "ResizeGrid", func() (err error) {
		out, err = r.Store.ResizeGrid(ctx, h, rows, cols)
		return err
	})
	return out, err
}

func (r *retryStore) ReadCells(ctx context.Context, h Handle, rg Range) (Snapshot, error) {
	var out Snapshot
	err := r.do(ctx, "ReadCells", func() (err error) {
		out, err = r.Store.ReadCells(ctx, h, rg)
		return err
	})
	return out, err
}

func (r *retryStore) WriteCells(ctx context.Context, h Handle, writes []Write) error {
	return r.do(ctx, "WriteCells", func() error {
		return r.Store.WriteCells(ctx, h, writes)
	})
}
