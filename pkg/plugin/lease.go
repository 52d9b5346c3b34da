package plugin

import (
	"sync"

	"github.com/srediag/plugin-dylib/api"
)

// Lease is a caller-held reference to an installed plugin. While a lease is
// held, the library that produced the plugin is not closed, even if the
// plugin is unloaded from the manager in the meantime.
type Lease[T api.Plugin] struct {
	plugin       T
	lib          *loadedLibrary
	closeLibrary func(*loadedLibrary) error

	once sync.Once
	err  error
}

// Plugin returns the leased plugin. It must not be used after Release.
func (l *Lease[T]) Plugin() T { return l.plugin }

// Release drops the lease. If it held the last reference to the library,
// the library is closed and a close failure is returned as
// api.ErrLibraryCloseFailed. Calling Release again returns the first result.
func (l *Lease[T]) Release() error {
	l.once.Do(func() {
		if l.lib.release() {
			l.err = l.closeLibrary(l.lib)
		}
	})
	return l.err
}
