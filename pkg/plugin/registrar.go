package plugin

import (
	"errors"
	"reflect"

	"github.com/srediag/plugin-dylib/api"
)

// RegistrationFunc is the signature of a provider's registration entry point.
type RegistrationFunc[T api.Plugin] func(r *Registrar[T])

var errNilPlugin = errors.New("nil plugin registered")

// Registrar collects the plugins a provider constructs during one load.
//
// Providers call Register for each instance, or Error once they cannot go
// on. After the first Error the registrar is poisoned: later calls are
// ignored and nothing collected so far is installed.
type Registrar[T api.Plugin] struct {
	plugins []T
	err     error
}

func newRegistrar[T api.Plugin]() *Registrar[T] {
	return &Registrar[T]{}
}

// Register queues p for installation.
func (r *Registrar[T]) Register(p T) {
	if r.err != nil {
		return
	}
	if isNil(p) {
		r.err = errNilPlugin
		return
	}
	r.plugins = append(r.plugins, p)
}

// Error records err as the outcome of registration. Only the first error is
// kept; a nil err is ignored.
func (r *Registrar[T]) Error(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Failed reports whether an error has been recorded.
func (r *Registrar[T]) Failed() bool { return r.err != nil }

// finish consumes the registrar.
func (r *Registrar[T]) finish() ([]T, error) {
	plugins, err := r.plugins, r.err
	r.plugins = nil
	if err != nil {
		return nil, err
	}
	return plugins, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
