package api

import (
	"errors"
	"fmt"
)

// Kind classifies a manager failure by the stage that produced it.
type Kind int

const (
	KindLibraryOpenFailed Kind = iota + 1
	KindLibraryCloseFailed
	KindSymbolNotFound
	KindIncompatibleLibraryVersion
	KindPluginRegistration
	KindUnknownPluginManagerType
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrLibraryOpenFailed          = errors.New("library open failed")
	ErrLibraryCloseFailed         = errors.New("library close failed")
	ErrSymbolNotFound             = errors.New("symbol not found")
	ErrIncompatibleLibraryVersion = errors.New("incompatible library version")
	ErrPluginRegistration         = errors.New("plugin registration failed")
	ErrUnknownPluginManagerType   = errors.New("unknown plugin manager type")
)

func (k Kind) sentinel() error {
	switch k {
	case KindLibraryOpenFailed:
		return ErrLibraryOpenFailed
	case KindLibraryCloseFailed:
		return ErrLibraryCloseFailed
	case KindSymbolNotFound:
		return ErrSymbolNotFound
	case KindIncompatibleLibraryVersion:
		return ErrIncompatibleLibraryVersion
	case KindPluginRegistration:
		return ErrPluginRegistration
	case KindUnknownPluginManagerType:
		return ErrUnknownPluginManagerType
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindLibraryOpenFailed:
		return "LibraryOpenFailed"
	case KindLibraryCloseFailed:
		return "LibraryCloseFailed"
	case KindSymbolNotFound:
		return "SymbolNotFound"
	case KindIncompatibleLibraryVersion:
		return "IncompatibleLibraryVersion"
	case KindPluginRegistration:
		return "PluginRegistration"
	case KindUnknownPluginManagerType:
		return "UnknownPluginManagerType"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every stage of loading and unloading. Lifecycle hook
// failures are not wrapped in an Error; they are returned unchanged.
type Error struct {
	Kind       Kind
	Path       string
	Symbol     string
	PluginType string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindLibraryOpenFailed:
		return fmt.Sprintf("library %q failed to open: %v", e.Path, e.Err)
	case KindLibraryCloseFailed:
		return fmt.Sprintf("library %q failed to close: %v", e.Path, e.Err)
	case KindSymbolNotFound:
		return fmt.Sprintf("could not find symbol %q in library %q: %v", e.Symbol, e.Path, e.Err)
	case KindIncompatibleLibraryVersion:
		return fmt.Sprintf("library %q has incompatible version", e.Path)
	case KindPluginRegistration:
		return fmt.Sprintf("plugin(s) failed to register: %v", e.Err)
	case KindUnknownPluginManagerType:
		return fmt.Sprintf("no configured plugins for type %q", e.PluginType)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// LibraryOpenFailed reports that path could not be opened.
func LibraryOpenFailed(path string, cause error) error {
	return &Error{Kind: KindLibraryOpenFailed, Path: path, Err: cause}
}

// LibraryCloseFailed reports that path could not be closed.
func LibraryCloseFailed(path string, cause error) error {
	return &Error{Kind: KindLibraryCloseFailed, Path: path, Err: cause}
}

// SymbolNotFound reports that symbol is missing from path or unusable.
func SymbolNotFound(symbol, path string, cause error) error {
	return &Error{Kind: KindSymbolNotFound, Symbol: symbol, Path: path, Err: cause}
}

// IncompatibleLibraryVersion reports a fingerprint mismatch for path.
func IncompatibleLibraryVersion(path string) error {
	return &Error{Kind: KindIncompatibleLibraryVersion, Path: path}
}

// PluginRegistration reports the error a registration function recorded.
func PluginRegistration(cause error) error {
	return &Error{Kind: KindPluginRegistration, Err: cause}
}

// UnknownPluginManagerType reports a plugin type absent from configuration.
func UnknownPluginManagerType(pluginType string) error {
	return &Error{Kind: KindUnknownPluginManagerType, PluginType: pluginType}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
