// Package api defines public API contracts for plugin-dylib.
package api

// Well-known symbols a provider library exports.
const (
	// CompatibilitySymbol names the zero-argument probe returning the
	// provider's build fingerprint. It is resolved before any other symbol.
	CompatibilitySymbol = "CompatibilityHash"

	// DefaultRegistrationSymbol names the registration entry point. A
	// manager can be pointed at a different one.
	DefaultRegistrationSymbol = "RegisterPlugins"
)

// Plugin is the capability set every plugin instance provides.
//
// Implementations must be safe for concurrent use once installed: the host
// hands the same instance to many readers.
type Plugin interface {
	// ID returns the stable identifier of the plugin.
	ID() string
	// OnLoad is called before the plugin is installed in a directory.
	OnLoad() error
	// OnUnload is called after the plugin was removed from a directory.
	OnUnload() error
}

// CompatibilityFunc is the signature of the compatibility probe.
type CompatibilityFunc func() uint64
