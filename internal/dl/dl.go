// Package dl contains the platform-specific loader behind dynlib.OSOpener.
package dl

import "errors"

// ErrUnsupported is returned by Open on platforms without a dynamic loader
// for Go plugins.
var ErrUnsupported = errors.New("dynamic plugin loading is not supported on this platform")

// Handle is an opened native module.
type Handle interface {
	Lookup(symbol string) (any, error)
}

// Function implementations are provided in platform-specific files (dl_unix.go, dl_other.go).
