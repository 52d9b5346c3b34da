package adapter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/srediag/plugin-dylib/api"
)

// OTelObserver records manager lifecycle events with OpenTelemetry
// instruments.
type OTelObserver struct {
	libraries metric.Int64UpDownCounter
	plugins   metric.Int64UpDownCounter
	failures  metric.Int64Counter
}

var _ api.Observer = (*OTelObserver)(nil)

// NewOTelObserver creates the observer's instruments on meter.
func NewOTelObserver(meter metric.Meter) (*OTelObserver, error) {
	libraries, err := meter.Int64UpDownCounter("plugin.libraries.open",
		metric.WithDescription("Dynamic libraries currently open."),
		metric.WithUnit("{library}"))
	if err != nil {
		return nil, err
	}
	plugins, err := meter.Int64UpDownCounter("plugin.installed",
		metric.WithDescription("Plugins currently installed."),
		metric.WithUnit("{plugin}"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("plugin.load.failures",
		metric.WithDescription("Failed library loads."),
		metric.WithUnit("{failure}"))
	if err != nil {
		return nil, err
	}
	return &OTelObserver{libraries: libraries, plugins: plugins, failures: failures}, nil
}

func (o *OTelObserver) LibraryOpened(path string) {
	o.libraries.Add(context.Background(), 1, metric.WithAttributes(attribute.String("library.path", path)))
}

func (o *OTelObserver) LibraryClosed(path string, err error) {
	if err != nil {
		return
	}
	o.libraries.Add(context.Background(), -1, metric.WithAttributes(attribute.String("library.path", path)))
}

func (o *OTelObserver) PluginLoaded(_, path string) {
	o.plugins.Add(context.Background(), 1, metric.WithAttributes(attribute.String("library.path", path)))
}

func (o *OTelObserver) PluginUnloaded(_, path string, _ error) {
	o.plugins.Add(context.Background(), -1, metric.WithAttributes(attribute.String("library.path", path)))
}

func (o *OTelObserver) LoadFailed(_ string, err error) {
	o.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", failureKind(err))))
}
