package plugin

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/api"
)

// LoadWithRetry calls m.Load until it succeeds, b gives up or ctx is done.
// Only api.ErrLibraryOpenFailed is retried: every later stage leaves the
// library open, so retrying it would open the library again. A nil b means
// backoff.NewExponentialBackOff().
func LoadWithRetry[T api.Plugin](ctx context.Context, m *Manager[T], name string, b backoff.BackOff) error {
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}
	op := func() error {
		err := m.Load(ctx, name)
		if err == nil || errors.Is(err, api.ErrLibraryOpenFailed) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		m.logger.Warn("load failed, retrying",
			zap.String("name", name),
			zap.Duration("next", next),
			zap.Error(err))
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}
