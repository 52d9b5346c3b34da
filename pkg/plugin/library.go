package plugin

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/srediag/plugin-dylib/pkg/dynlib"
)

// loadedLibrary is the shared, reference-counted owner of one opened
// library. Directory entries, leases and the load in progress each hold one
// reference; whoever drops the last one decides what happens to the handle.
type loadedLibrary struct {
	id       uuid.UUID
	lib      dynlib.Library
	openedAt time.Time
	refs     atomic.Int64
}

func newLoadedLibrary(lib dynlib.Library) *loadedLibrary {
	l := &loadedLibrary{id: uuid.New(), lib: lib, openedAt: time.Now()}
	l.refs.Store(1)
	return l
}

func (l *loadedLibrary) path() string { return l.lib.Path() }

func (l *loadedLibrary) acquire() { l.refs.Add(1) }

// release drops one reference and reports whether it was the last.
func (l *loadedLibrary) release() bool {
	return l.refs.Add(-1) == 0
}

// LibraryInfo describes a library held open by a manager.
type LibraryInfo struct {
	ID       string
	Path     string
	OpenedAt time.Time
	// Refs counts directory entries and outstanding leases.
	Refs int64
	// Plugins lists the directory entries produced by the library.
	Plugins []string
	// Retained is set for libraries kept open without any entry.
	Retained bool
}
