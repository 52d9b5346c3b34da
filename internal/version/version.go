// Package version provides build-time version information.
package version

// Set via -ldflags at build time:
//
//	-ldflags "-X github.com/srediag/plugin-dylib/internal/version.Version=v0.3.0"
//
// Hosts and providers must be built with the same value to pass the
// compatibility gate.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
