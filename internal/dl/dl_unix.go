//go:build (linux || darwin || freebsd) && cgo

package dl

import (
	"fmt"
	"plugin"

	"golang.org/x/sys/unix"
)

// Supported reports whether Open can load modules on this platform.
const Supported = true

// Open loads the Go plugin at path. The file must be readable by the
// process; that is checked first so the caller gets the errno instead of
// the loader's free-form message.
func Open(path string) (Handle, error) {
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, fmt.Errorf("access %s: %w", path, err)
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return goPlugin{p}, nil
}

type goPlugin struct {
	p *plugin.Plugin
}

func (g goPlugin) Lookup(symbol string) (any, error) {
	sym, err := g.p.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return sym, nil
}
