// Package compat implements the compatibility gate run against a library
// before any foreign call other than the probe itself.
//
// Host and provider each compute a fingerprint of their build identity (the
// plugin-dylib version they were built against and the Go toolchain). The
// provider exports its fingerprint under api.CompatibilitySymbol; the host
// refuses the library unless both values are equal. There is no partial
// compatibility: a different toolchain or library version may change the
// in-memory layout of every type crossing the boundary.
package compat

import (
	"fmt"
	"runtime"

	"github.com/cespare/xxhash/v2"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/internal/version"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
)

// Identity is the build identity a fingerprint is computed from.
type Identity struct {
	LibraryVersion string
	Toolchain      string
}

// HostIdentity returns the identity of the running binary.
func HostIdentity() Identity {
	return Identity{LibraryVersion: version.Version, Toolchain: runtime.Version()}
}

// Fingerprint hashes id. The fields are NUL-separated so that moving bytes
// between them changes the result.
func Fingerprint(id Identity) uint64 {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString(id.LibraryVersion)
	_ = buf.WriteByte(0)
	_, _ = buf.WriteString(id.Toolchain)
	return xxhash.Sum64(buf.B)
}

// CompatibilityHash returns the fingerprint of the running binary. Providers
// export it under api.CompatibilitySymbol:
//
//	func CompatibilityHash() uint64 { return compat.CompatibilityHash() }
func CompatibilityHash() uint64 {
	return Fingerprint(HostIdentity())
}

// Gate compares a library's exported fingerprint with Expected.
type Gate struct {
	Expected uint64
	Logger   *zap.Logger
}

// NewGate returns a gate expecting the running binary's fingerprint.
func NewGate() *Gate {
	return &Gate{Expected: CompatibilityHash()}
}

// Probe resolves and calls the compatibility probe of lib.
func Probe(lib dynlib.Library) (uint64, error) {
	sym, err := lib.Lookup(api.CompatibilitySymbol)
	if err != nil {
		return 0, api.SymbolNotFound(api.CompatibilitySymbol, lib.Path(), err)
	}
	var fn func() uint64
	switch f := sym.(type) {
	case func() uint64:
		fn = f
	case *func() uint64:
		if f != nil {
			fn = *f
		}
	case api.CompatibilityFunc:
		fn = f
	case *api.CompatibilityFunc:
		if f != nil {
			fn = *f
		}
	}
	if fn == nil {
		return 0, api.SymbolNotFound(api.CompatibilitySymbol, lib.Path(),
			fmt.Errorf("unexpected signature %T, want func() uint64", sym))
	}
	return fn(), nil
}

// Check returns nil when lib exports the expected fingerprint. A missing or
// mistyped probe yields api.ErrSymbolNotFound, a different value
// api.ErrIncompatibleLibraryVersion.
func (g *Gate) Check(lib dynlib.Library) error {
	got, err := Probe(lib)
	if err != nil {
		return err
	}
	if got != g.Expected {
		g.logger().Error("version incompatibility",
			zap.String("path", lib.Path()),
			zap.Uint64("library", got),
			zap.Uint64("expected", g.Expected))
		return api.IncompatibleLibraryVersion(lib.Path())
	}
	return nil
}

func (g *Gate) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}
