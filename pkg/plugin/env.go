package plugin

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// LoadFromEnv loads every library listed in envVar, separated by the
// platform list separator (':' on unix), in order. A missing variable is
// logged as a warning and is not an error; the first failing load stops the
// batch.
func (m *Manager[T]) LoadFromEnv(ctx context.Context, envVar string) error {
	m.logger.Info("loading plugins from environment", zap.String("env", envVar))
	value, ok := os.LookupEnv(envVar)
	if !ok {
		m.logger.Warn("failed to find environment variable", zap.String("env", envVar))
		return nil
	}
	for _, name := range filepath.SplitList(value) {
		if name == "" {
			continue
		}
		if err := m.Load(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
