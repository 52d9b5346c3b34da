package plugin

import (
	"errors"
	"sync"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/pkg/compat"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
)

type testPlugin struct {
	id        string
	loadErr   error
	unloadErr error

	mu      sync.Mutex
	loads   int
	unloads int
}

func newTestPlugin(id string) *testPlugin { return &testPlugin{id: id} }

func (p *testPlugin) ID() string { return p.id }

func (p *testPlugin) OnLoad() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	return p.loadErr
}

func (p *testPlugin) OnUnload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloads++
	return p.unloadErr
}

func (p *testPlugin) counts() (loads, unloads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads, p.unloads
}

// provider returns the symbol table of a compatible library registering
// plugins under the default registration symbol.
func provider(plugins ...*testPlugin) map[string]dynlib.Symbol {
	return map[string]dynlib.Symbol{
		api.CompatibilitySymbol: compat.CompatibilityHash,
		api.DefaultRegistrationSymbol: func(r *Registrar[*testPlugin]) {
			for _, p := range plugins {
				r.Register(p)
			}
		},
	}
}

type event struct {
	kind string
	name string
	err  error
}

// recorder is an api.Observer keeping every event in order.
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(kind, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: kind, name: name, err: err})
}

func (r *recorder) LibraryOpened(path string)            { r.add("opened", path, nil) }
func (r *recorder) LibraryClosed(path string, err error) { r.add("closed", path, err) }
func (r *recorder) PluginLoaded(id, _ string)            { r.add("loaded", id, nil) }
func (r *recorder) PluginUnloaded(id, _ string, err error) {
	r.add("unloaded", id, err)
}
func (r *recorder) LoadFailed(name string, err error) { r.add("failed", name, err) }

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.kind + ":" + e.name
	}
	return out
}

var errBoom = errors.New("boom")
