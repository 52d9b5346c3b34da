package dynlib

import (
	"fmt"
	"io/fs"
	"sync"
)

// Table is an in-process Opener. Each path maps to a fixed symbol table, so
// providers linked into the host binary go through the same loading path as
// shared objects. Unlike OSOpener, closing a Table library really releases
// it, which makes Table the reference for lifetime tests.
type Table struct {
	mu   sync.Mutex
	libs map[string]*tableEntry
}

type tableEntry struct {
	symbols  map[string]Symbol
	open     int
	opens    int
	closeErr error
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{libs: make(map[string]*tableEntry)}
}

// Add registers symbols under path, replacing any previous table for it.
func (t *Table) Add(path string, symbols map[string]Symbol) {
	copied := make(map[string]Symbol, len(symbols))
	for k, v := range symbols {
		copied[k] = v
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.libs[path] = &tableEntry{symbols: copied}
}

// FailClose makes every subsequent Close of path return err.
func (t *Table) FailClose(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.libs[path]; ok {
		e.closeErr = err
	}
}

// OpenCount returns the number of handles to path not yet closed.
func (t *Table) OpenCount(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.libs[path]; ok {
		return e.open
	}
	return 0
}

// Opens returns how many times path was opened in total.
func (t *Table) Opens(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.libs[path]; ok {
		return e.opens
	}
	return 0
}

func (t *Table) Open(path string) (Library, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.libs[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	e.open++
	e.opens++
	return &tableLibrary{table: t, path: path, entry: e}, nil
}

type tableLibrary struct {
	table  *Table
	path   string
	entry  *tableEntry
	closed bool
}

func (l *tableLibrary) Path() string { return l.path }

func (l *tableLibrary) Lookup(name string) (Symbol, error) {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	sym, ok := l.entry.symbols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSymbol, name)
	}
	return sym, nil
}

func (l *tableLibrary) Close() error {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.entry.closeErr != nil {
		return l.entry.closeErr
	}
	l.closed = true
	l.entry.open--
	return nil
}
