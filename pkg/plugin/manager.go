// Package plugin loads plugins from dynamic libraries into a directory and
// unloads them.
//
// A load resolves the library name against the search path, opens the
// library, runs the compatibility gate, calls the registration entry point
// with a fresh Registrar and installs every registered plugin after its
// OnLoad hook succeeds. An unload removes the directory entry, calls
// OnUnload and closes the library once nothing references it any more.
//
// Usage:
//
//	m := plugin.New[sound.Effect](plugin.WithSearchPath("/usr/lib/sound"))
//	defer m.Close()
//	if err := m.Load(ctx, "reverb"); err != nil {
//		return err
//	}
//	fx, ok := m.Get("sound::reverb")
package plugin

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/pkg/compat"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
)

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("plugin manager is closed")

// Manager owns a directory of plugins of type T and the libraries they
// came from.
//
// Load, Unload and Close hold the directory's write lock for their whole
// duration; reads take the read lock. Plugin hooks and registration
// functions therefore must not call back into the same Manager.
type Manager[T api.Plugin] struct {
	searchPath dynlib.SearchPath
	opener     dynlib.Opener
	gate       *compat.Gate
	logger     *zap.Logger
	tracer     trace.Tracer
	observer   api.Observer

	dir *directory[T]
	// Guarded by dir.mu.
	regSymbol string
	retained  []*loadedLibrary
	closed    bool
}

// New returns an empty manager.
func New[T api.Plugin](opts ...Option) *Manager[T] {
	o := options{regSymbol: api.DefaultRegistrationSymbol}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.opener == nil {
		o.opener = dynlib.OSOpener{}
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("")
	}
	logger := o.logger.With(zap.String("component", "plugin_manager"))
	if o.gate == nil {
		o.gate = compat.NewGate()
		o.gate.Logger = logger
	}
	if o.searchPathEnv != "" {
		if sp, ok := dynlib.SearchPathFromEnv(o.searchPathEnv); ok {
			o.searchPath = append(o.searchPath, sp...)
		} else {
			logger.Warn("search path environment variable not set", zap.String("env", o.searchPathEnv))
		}
	}

	var observer api.Observer = api.NopObserver{}
	switch len(o.observers) {
	case 0:
	case 1:
		observer = o.observers[0]
	default:
		observer = api.Observers(o.observers)
	}

	return &Manager[T]{
		searchPath: o.searchPath,
		opener:     o.opener,
		gate:       o.gate,
		logger:     logger,
		tracer:     o.tracer,
		observer:   observer,
		dir:        newDirectory[T](),
		regSymbol:  o.regSymbol,
	}
}

// NewWithSearchPath returns a manager resolving bare names in dirs.
func NewWithSearchPath[T api.Plugin](dirs []string, opts ...Option) *Manager[T] {
	return New[T](append([]Option{WithSearchPath(dirs...)}, opts...)...)
}

// NewWithSearchEnvVar returns a manager whose search path is read from
// envVar. A missing variable is logged as a warning.
func NewWithSearchEnvVar[T api.Plugin](envVar string, opts ...Option) *Manager[T] {
	return New[T](append([]Option{WithSearchPathFromEnv(envVar)}, opts...)...)
}

// SearchPath returns the directories consulted for bare names.
func (m *Manager[T]) SearchPath() dynlib.SearchPath {
	return append(dynlib.SearchPath(nil), m.searchPath...)
}

// SetRegistrationSymbol changes the registration entry point used by
// subsequent loads.
func (m *Manager[T]) SetRegistrationSymbol(name string) {
	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	m.regSymbol = name
}

// RegistrationSymbol returns the registration entry point name.
func (m *Manager[T]) RegistrationSymbol() string {
	m.dir.mu.RLock()
	defer m.dir.mu.RUnlock()
	return m.regSymbol
}

// Load loads every plugin registered by the library name.
//
// Failures at each stage are reported as *api.Error of the matching kind,
// except OnLoad failures, which are returned unchanged. An opened library is
// never rolled back: if a later stage fails, or no plugin ends up installed,
// it stays open without entries until Close. Plugins installed before an
// OnLoad failure stay installed. ctx only carries trace context; a load
// cannot be canceled.
func (m *Manager[T]) Load(ctx context.Context, name string) (err error) {
	_, span := m.tracer.Start(ctx, "plugin.Load", trace.WithAttributes(attribute.String("library.name", name)))
	defer func() { endSpan(span, err) }()

	m.logger.Info("loading plugins", zap.String("name", name))

	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err = m.loadLocked(span, name); err != nil {
		m.observer.LoadFailed(name, err)
	}
	return err
}

// LoadAll loads each library in order and stops at the first error.
func (m *Manager[T]) LoadAll(ctx context.Context, names []string) error {
	m.logger.Info("loading plugins from all", zap.Strings("names", names))
	for _, name := range names {
		if err := m.Load(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager[T]) resolve(name string) string {
	if len(m.searchPath) == 0 {
		return name
	}
	path := m.searchPath.Resolve(name)
	if path != name {
		m.logger.Debug("resolved library in search path", zap.String("name", name), zap.String("path", path))
	}
	return path
}

func (m *Manager[T]) loadLocked(span trace.Span, name string) error {
	path := m.resolve(name)
	span.SetAttributes(attribute.String("library.path", path))
	log := m.logger.With(zap.String("library", path))

	log.Debug("opening library")
	raw, err := m.opener.Open(path)
	if err != nil {
		return api.LibraryOpenFailed(path, err)
	}
	lib := newLoadedLibrary(raw)
	log = log.With(zap.Stringer("library_id", lib.id))
	m.observer.LibraryOpened(path)
	defer m.releaseTransientLocked(lib, log)

	log.Debug("checking compatibility")
	if err := m.gate.Check(raw); err != nil {
		return err
	}

	log.Debug("registering plugins", zap.String("symbol", m.regSymbol))
	plugins, err := m.register(raw)
	if err != nil {
		return err
	}

	for _, p := range plugins {
		id := p.ID()
		log.Debug("calling plugin OnLoad", zap.String("plugin", id))
		if err := p.OnLoad(); err != nil {
			log.Error("plugin OnLoad failed", zap.String("plugin", id), zap.Error(err))
			return err
		}
		prev, replaced := m.dir.insertLocked(id, entry[T]{plugin: p, lib: lib})
		m.observer.PluginLoaded(id, path)
		if replaced {
			log.Warn("new plugin replaced a plugin with the same ID",
				zap.String("plugin", id),
				zap.String("replaced_library", prev.lib.path()))
			m.observer.PluginUnloaded(id, prev.lib.path(), nil)
			if prev.lib.release() {
				_ = m.closeLibrary(prev.lib)
			}
		}
		log.Info("plugin loaded", zap.String("plugin", id))
	}
	span.SetAttributes(attribute.Int("plugins.registered", len(plugins)))
	return nil
}

// releaseTransientLocked drops the reference held by the load in progress.
// A library left without entries is kept open until Close.
func (m *Manager[T]) releaseTransientLocked(lib *loadedLibrary, log *zap.Logger) {
	if lib.release() {
		log.Warn("library holds no plugins; keeping it open until the manager is closed")
		m.retained = append(m.retained, lib)
	}
}

func (m *Manager[T]) register(lib dynlib.Library) ([]T, error) {
	sym, err := lib.Lookup(m.regSymbol)
	if err != nil {
		return nil, api.SymbolNotFound(m.regSymbol, lib.Path(), err)
	}
	fn := registrationFunc[T](sym)
	if fn == nil {
		return nil, api.SymbolNotFound(m.regSymbol, lib.Path(),
			fmt.Errorf("unexpected signature %T, want func(*plugin.Registrar[%s])", sym, reflect.TypeFor[T]()))
	}

	r := newRegistrar[T]()
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.Error(fmt.Errorf("registration panicked: %v", rec))
			}
		}()
		fn(r)
	}()

	plugins, err := r.finish()
	if err != nil {
		m.logger.Error("plugin registration failed", zap.String("library", lib.Path()), zap.Error(err))
		return nil, api.PluginRegistration(err)
	}
	return plugins, nil
}

func registrationFunc[T api.Plugin](sym dynlib.Symbol) func(*Registrar[T]) {
	switch f := sym.(type) {
	case func(*Registrar[T]):
		return f
	case RegistrationFunc[T]:
		return f
	case *func(*Registrar[T]):
		if f != nil {
			return *f
		}
	case *RegistrationFunc[T]:
		if f != nil {
			return *f
		}
	}
	return nil
}

// Unload removes the plugin id, calls its OnUnload hook and closes its
// library if no other entry or lease references it. Unknown ids are a
// no-op.
//
// The entry is removed even when OnUnload fails; that error is returned
// unchanged. A close failure is reported as api.ErrLibraryCloseFailed.
func (m *Manager[T]) Unload(ctx context.Context, id string) (err error) {
	_, span := m.tracer.Start(ctx, "plugin.Unload", trace.WithAttributes(attribute.String("plugin.id", id)))
	defer func() { endSpan(span, err) }()

	m.logger.Info("unloading plugin", zap.String("plugin", id))

	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	return m.unloadLocked(id)
}

func (m *Manager[T]) unloadLocked(id string) error {
	e, ok := m.dir.removeLocked(id)
	if !ok {
		m.logger.Debug("plugin not loaded", zap.String("plugin", id))
		return nil
	}
	path := e.lib.path()

	m.logger.Debug("calling plugin OnUnload", zap.String("plugin", id))
	unloadErr := e.plugin.OnUnload()
	if unloadErr != nil {
		m.logger.Error("plugin OnUnload failed", zap.String("plugin", id), zap.Error(unloadErr))
	}
	m.observer.PluginUnloaded(id, path, unloadErr)

	var closeErr error
	if e.lib.release() {
		closeErr = m.closeLibrary(e.lib)
	}
	if unloadErr != nil {
		return unloadErr
	}
	return closeErr
}

// closeLibrary closes a library whose last reference was just dropped.
func (m *Manager[T]) closeLibrary(lib *loadedLibrary) error {
	path := lib.path()
	m.logger.Debug("closing library", zap.String("library", path), zap.Stringer("library_id", lib.id))
	err := lib.lib.Close()
	m.observer.LibraryClosed(path, err)
	if err != nil {
		m.logger.Error("error closing library", zap.String("library", path), zap.Error(err))
		return api.LibraryCloseFailed(path, err)
	}
	return nil
}

// UnloadAll unloads every plugin present when it starts, stopping at the
// first failure. Plugins after the failing one stay loaded.
func (m *Manager[T]) UnloadAll(ctx context.Context) error {
	m.logger.Info("unloading all plugins")
	for _, id := range m.dir.ids() {
		if err := m.Unload(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Close unloads every plugin and closes retained libraries. Unlike
// UnloadAll it keeps going after a failure; every failure is logged and
// the joined errors are returned. After Close, Load fails with ErrClosed.
// Outstanding leases keep their libraries open until released.
func (m *Manager[T]) Close() error {
	m.logger.Info("closing plugin manager")

	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for _, id := range m.dir.idsLocked() {
		if err := m.unloadLocked(id); err != nil {
			m.logger.Error("unload during close failed", zap.String("plugin", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("unload %s: %w", id, err))
		}
	}
	for _, lib := range m.retained {
		if err := m.closeLibrary(lib); err != nil {
			errs = append(errs, err)
		}
	}
	m.retained = nil
	return errors.Join(errs...)
}

// Contains reports whether a plugin with id is installed.
func (m *Manager[T]) Contains(id string) bool { return m.dir.contains(id) }

// Get returns the plugin installed under id. The returned value does not
// keep its library open; use Acquire for that.
func (m *Manager[T]) Get(id string) (T, bool) {
	e, ok := m.dir.get(id)
	return e.plugin, ok
}

// Acquire returns a lease on the plugin installed under id. The lease keeps
// the plugin's library open, even past an Unload of id, until released.
func (m *Manager[T]) Acquire(id string) (*Lease[T], bool) {
	m.dir.mu.RLock()
	defer m.dir.mu.RUnlock()
	e, ok := m.dir.entries[id]
	if !ok {
		return nil, false
	}
	e.lib.acquire()
	return &Lease[T]{plugin: e.plugin, lib: e.lib, closeLibrary: m.closeLibrary}, true
}

// Plugins returns the installed plugins ordered by id.
func (m *Manager[T]) Plugins() []T { return m.dir.plugins() }

// IDs returns the installed plugin ids in sorted order.
func (m *Manager[T]) IDs() []string { return m.dir.ids() }

// Len returns the number of installed plugins.
func (m *Manager[T]) Len() int { return m.dir.len() }

// IsEmpty reports whether no plugin is installed.
func (m *Manager[T]) IsEmpty() bool { return m.dir.len() == 0 }

// Libraries describes the libraries currently held open by the directory
// and the retained list. Libraries kept open only by leases are not listed.
func (m *Manager[T]) Libraries() []LibraryInfo {
	m.dir.mu.RLock()
	defer m.dir.mu.RUnlock()

	byLib := make(map[*loadedLibrary]*LibraryInfo)
	var out []*LibraryInfo
	info := func(l *loadedLibrary) *LibraryInfo {
		if li, ok := byLib[l]; ok {
			return li
		}
		li := &LibraryInfo{ID: l.id.String(), Path: l.path(), OpenedAt: l.openedAt, Refs: l.refs.Load()}
		byLib[l] = li
		out = append(out, li)
		return li
	}
	for _, id := range m.dir.idsLocked() {
		li := info(m.dir.entries[id].lib)
		li.Plugins = append(li.Plugins, id)
	}
	for _, l := range m.retained {
		info(l).Retained = true
	}

	infos := make([]LibraryInfo, len(out))
	for i, li := range out {
		infos[i] = *li
	}
	return infos
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
