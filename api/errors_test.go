package api

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelOfItsKind(t *testing.T) {
	err := LibraryOpenFailed("missing.so", fs.ErrNotExist)
	assert.ErrorIs(t, err, ErrLibraryOpenFailed)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrLibraryCloseFailed)
	assert.Equal(t, KindLibraryOpenFailed, KindOf(err))
}

func TestErrorSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("load: %w", IncompatibleLibraryVersion("old.so"))
	assert.ErrorIs(t, err, ErrIncompatibleLibraryVersion)
	assert.Equal(t, KindIncompatibleLibraryVersion, KindOf(err))

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "old.so", e.Path)
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, `could not find symbol "RegisterPlugins" in library "a.so": boom`,
		SymbolNotFound(DefaultRegistrationSymbol, "a.so", cause).Error())
	assert.Equal(t, `no configured plugins for type "sound"`,
		UnknownPluginManagerType("sound").Error())
	assert.Equal(t, "plugin(s) failed to register: boom", PluginRegistration(cause).Error())
	assert.Equal(t, Kind(0), KindOf(cause))
}

func TestObserversFanOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	obs := Observers{a, b}
	obs.LibraryOpened("x.so")
	obs.PluginLoaded("p", "x.so")
	obs.PluginUnloaded("p", "x.so", nil)
	obs.LibraryClosed("x.so", nil)
	obs.LoadFailed("y.so", errors.New("nope"))
	for _, o := range []*countingObserver{a, b} {
		assert.Equal(t, 5, o.events)
	}
}

type countingObserver struct {
	NopObserver
	events int
}

func (c *countingObserver) LibraryOpened(string)                 { c.events++ }
func (c *countingObserver) LibraryClosed(string, error)          { c.events++ }
func (c *countingObserver) PluginLoaded(string, string)          { c.events++ }
func (c *countingObserver) PluginUnloaded(string, string, error) { c.events++ }
func (c *countingObserver) LoadFailed(string, error)             { c.events++ }
