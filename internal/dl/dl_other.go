//go:build !((linux || darwin || freebsd) && cgo)

package dl

// Supported reports whether Open can load modules on this platform.
const Supported = false

// Open always fails with ErrUnsupported.
func Open(path string) (Handle, error) {
	return nil, ErrUnsupported
}
