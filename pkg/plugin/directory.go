package plugin

import (
	"sort"
	"sync"

	"github.com/srediag/plugin-dylib/api"
)

// entry pairs an installed plugin with the library that produced it.
type entry[T api.Plugin] struct {
	plugin T
	lib    *loadedLibrary
}

// directory maps plugin identifiers to entries. Readers take mu.RLock;
// the manager holds mu.Lock for the whole of a load or unload and calls the
// *Locked methods.
type directory[T api.Plugin] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
}

func newDirectory[T api.Plugin]() *directory[T] {
	return &directory[T]{entries: make(map[string]entry[T])}
}

// insertLocked installs e under id, taking a library reference for it, and
// returns the entry it replaced. The caller owns the replaced entry's
// library reference.
func (d *directory[T]) insertLocked(id string, e entry[T]) (entry[T], bool) {
	e.lib.acquire()
	prev, ok := d.entries[id]
	d.entries[id] = e
	return prev, ok
}

// removeLocked deletes id. The caller owns the removed entry's library
// reference.
func (d *directory[T]) removeLocked(id string) (entry[T], bool) {
	e, ok := d.entries[id]
	if ok {
		delete(d.entries, id)
	}
	return e, ok
}

func (d *directory[T]) idsLocked() []string {
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *directory[T]) get(id string) (entry[T], bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	return e, ok
}

func (d *directory[T]) contains(id string) bool {
	_, ok := d.get(id)
	return ok
}

func (d *directory[T]) len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

func (d *directory[T]) ids() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.idsLocked()
}

func (d *directory[T]) plugins() []T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]T, 0, len(d.entries))
	for _, id := range d.idsLocked() {
		out = append(out, d.entries[id].plugin)
	}
	return out
}
