// Package dynlib provides handles to dynamic libraries and the ways to
// open them.
//
// A Library is opened by an Opener and owned by whoever opened it. Symbol
// lookup returns an untyped value; callers assert the expected signature
// and must not call into a library after closing it.
package dynlib

import (
	"errors"
)

var (
	// ErrNoSymbol is wrapped by Lookup when the library does not export the
	// requested name.
	ErrNoSymbol = errors.New("symbol not exported")

	// ErrClosed is returned by Lookup and Close once a library is closed.
	ErrClosed = errors.New("library is closed")
)

// Symbol is an exported value: a function, or a pointer to a variable.
type Symbol = any

// Library is one opened dynamic library.
type Library interface {
	// Path returns the path the library was opened from.
	Path() string
	// Lookup resolves an exported symbol.
	Lookup(name string) (Symbol, error)
	// Close releases the library. It must be called at most once.
	Close() error
}

// Opener opens libraries by path.
type Opener interface {
	Open(path string) (Library, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Library, error)

func (f OpenerFunc) Open(path string) (Library, error) { return f(path) }
