package adapter

import (
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/api"
)

// AuditObserver writes one structured log entry per lifecycle event, for
// shipping to an audit or compliance sink.
type AuditObserver struct {
	logger *zap.Logger
}

var _ api.Observer = (*AuditObserver)(nil)

// NewAuditObserver returns an observer logging to logger under the "audit"
// name. A nil logger discards events.
func NewAuditObserver(logger *zap.Logger) *AuditObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditObserver{logger: logger.Named("audit")}
}

func (a *AuditObserver) LibraryOpened(path string) {
	a.logger.Info("library opened", zap.String("event", "library_opened"), zap.String("library", path))
}

func (a *AuditObserver) LibraryClosed(path string, err error) {
	if err != nil {
		a.logger.Error("library close failed", zap.String("event", "library_closed"), zap.String("library", path), zap.Error(err))
		return
	}
	a.logger.Info("library closed", zap.String("event", "library_closed"), zap.String("library", path))
}

func (a *AuditObserver) PluginLoaded(id, path string) {
	a.logger.Info("plugin loaded", zap.String("event", "plugin_loaded"), zap.String("plugin", id), zap.String("library", path))
}

func (a *AuditObserver) PluginUnloaded(id, path string, err error) {
	fields := []zap.Field{zap.String("event", "plugin_unloaded"), zap.String("plugin", id), zap.String("library", path)}
	if err != nil {
		a.logger.Warn("plugin unloaded with error", append(fields, zap.Error(err))...)
		return
	}
	a.logger.Info("plugin unloaded", fields...)
}

func (a *AuditObserver) LoadFailed(name string, err error) {
	a.logger.Warn("load failed",
		zap.String("event", "load_failed"),
		zap.String("library", name),
		zap.String("kind", failureKind(err)),
		zap.Error(err))
}
