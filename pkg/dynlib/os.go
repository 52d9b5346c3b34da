package dynlib

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/srediag/plugin-dylib/internal/dl"
)

// ErrUnsupported is returned by OSOpener where the platform has no loader.
var ErrUnsupported = dl.ErrUnsupported

// Supported reports whether OSOpener can load libraries on this platform.
func Supported() bool { return dl.Supported }

// OSOpener opens Go plugins built with -buildmode=plugin.
//
// The Go runtime never unmaps a plugin. Close invalidates the handle so
// later lookups fail, but the code stays resident until the process exits.
type OSOpener struct{}

func (OSOpener) Open(path string) (Library, error) {
	h, err := dl.Open(path)
	if err != nil {
		return nil, err
	}
	return &osLibrary{path: path, handle: h}, nil
}

type osLibrary struct {
	path   string
	handle dl.Handle
	closed atomic.Bool
}

func (l *osLibrary) Path() string { return l.path }

func (l *osLibrary) Lookup(name string) (Symbol, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	sym, err := l.handle.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoSymbol, name, err)
	}
	return sym, nil
}

func (l *osLibrary) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}

// IsUnsupported reports whether err came from a platform without a loader.
func IsUnsupported(err error) bool {
	return errors.Is(err, dl.ErrUnsupported)
}
