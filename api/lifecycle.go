// Package api defines public API contracts for plugin-dylib.
package api

// Observer receives library and plugin lifecycle events from a manager.
// Load and unload events are delivered synchronously on the goroutine doing
// the load or unload. LibraryClosed may also fire from whichever goroutine
// releases the last lease on a library, without the manager's lock held, so
// implementations must be safe for concurrent use.
type Observer interface {
	LibraryOpened(path string)
	LibraryClosed(path string, err error)
	PluginLoaded(id, path string)
	PluginUnloaded(id, path string, err error)
	LoadFailed(name string, err error)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) LibraryOpened(string)                 {}
func (NopObserver) LibraryClosed(string, error)          {}
func (NopObserver) PluginLoaded(string, string)          {}
func (NopObserver) PluginUnloaded(string, string, error) {}
func (NopObserver) LoadFailed(string, error)             {}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (o Observers) LibraryOpened(path string) {
	for _, ob := range o {
		ob.LibraryOpened(path)
	}
}

func (o Observers) LibraryClosed(path string, err error) {
	for _, ob := range o {
		ob.LibraryClosed(path, err)
	}
}

func (o Observers) PluginLoaded(id, path string) {
	for _, ob := range o {
		ob.PluginLoaded(id, path)
	}
}

func (o Observers) PluginUnloaded(id, path string, err error) {
	for _, ob := range o {
		ob.PluginUnloaded(id, path, err)
	}
}

func (o Observers) LoadFailed(name string, err error) {
	for _, ob := range o {
		ob.LoadFailed(name, err)
	}
}
