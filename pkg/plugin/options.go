package plugin

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/pkg/compat"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	searchPath    dynlib.SearchPath
	searchPathEnv string
	regSymbol     string
	opener        dynlib.Opener
	gate          *compat.Gate
	logger        *zap.Logger
	tracer        trace.Tracer
	observers     []api.Observer
}

// WithSearchPath sets the directories consulted for bare library names.
func WithSearchPath(dirs ...string) Option {
	return func(o *options) { o.searchPath = append(dynlib.SearchPath(nil), dirs...) }
}

// WithSearchPathFromEnv reads the search path from envVar when the manager
// is created. A missing variable is logged and leaves the search path empty.
func WithSearchPathFromEnv(envVar string) Option {
	return func(o *options) { o.searchPathEnv = envVar }
}

// WithRegistrationSymbol overrides api.DefaultRegistrationSymbol, e.g. to
// pick one of several registration functions exported by the same library.
func WithRegistrationSymbol(name string) Option {
	return func(o *options) { o.regSymbol = name }
}

// WithOpener sets how libraries are opened. Defaults to dynlib.OSOpener.
func WithOpener(opener dynlib.Opener) Option {
	return func(o *options) { o.opener = opener }
}

// WithGate sets the compatibility gate. Defaults to compat.NewGate().
func WithGate(gate *compat.Gate) Option {
	return func(o *options) { o.gate = gate }
}

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracer sets the tracer used for load and unload spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithObserver adds an observer of lifecycle events. May be repeated.
func WithObserver(observer api.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}
