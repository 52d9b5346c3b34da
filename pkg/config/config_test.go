package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/pkg/compat"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
	"github.com/srediag/plugin-dylib/pkg/plugin"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigTestSuite) TestInsertAndRemove() {
	c := New()
	s.True(c.IsEmpty())

	prev, existed := c.Insert("sound", []string{"reverb", "delay"})
	s.False(existed)
	s.Nil(prev)
	prev, existed = c.Insert("sound", []string{"chorus"})
	s.True(existed)
	s.Equal([]string{"reverb", "delay"}, prev)

	c.Insert("light", []string{"strobe"})
	s.Equal(2, c.Len())
	s.Equal([]string{"light", "sound"}, c.PluginTypes())

	libs, ok := c.Libraries("sound")
	s.True(ok)
	s.Equal([]string{"chorus"}, libs)
	_, ok = c.Libraries("video")
	s.False(ok)

	libs, ok = c.Remove("light")
	s.True(ok)
	s.Equal([]string{"strobe"}, libs)
	_, ok = c.Remove("light")
	s.False(ok)
	s.Equal(1, c.Len())
}

func (s *ConfigTestSuite) TestValidate() {
	c := New()
	c.Insert("sound", []string{"reverb"})
	s.NoError(c.Validate())

	c.Insert("light", nil)
	s.ErrorContains(c.Validate(), `"light"`)

	c.Insert("light", []string{" "})
	s.ErrorContains(c.Validate(), "empty library name")
}

func (s *ConfigTestSuite) TestLoadYAML() {
	path := filepath.Join(s.dir, "plugins.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(`
plugins:
  sound:
    - reverb
    - delay
  light:
    - /opt/plugins/libstrobe.so
`), 0o644))

	c, err := Load(path)
	s.Require().NoError(err)
	s.Equal([]string{"light", "sound"}, c.PluginTypes())
	libs, _ := c.Libraries("sound")
	s.Equal([]string{"reverb", "delay"}, libs)
}

func (s *ConfigTestSuite) TestLoadErrors() {
	_, err := Load(filepath.Join(s.dir, "absent.yaml"))
	s.ErrorIs(err, os.ErrNotExist)

	bad := filepath.Join(s.dir, "bad.yaml")
	s.Require().NoError(os.WriteFile(bad, []byte("plugins: [unclosed"), 0o644))
	_, err = Load(bad)
	s.ErrorContains(err, "failed to parse config file")

	empty := filepath.Join(s.dir, "empty.json")
	s.Require().NoError(os.WriteFile(empty, []byte(`{"plugins":{"sound":[]}}`), 0o644))
	_, err = Load(empty)
	s.ErrorContains(err, "invalid config file")
}

func (s *ConfigTestSuite) TestSaveRoundTrip() {
	c := New()
	c.Insert("sound", []string{"reverb", "delay"})
	c.Insert("light", []string{"strobe"})

	for _, name := range []string{"plugins.yaml", "plugins.json"} {
		path := filepath.Join(s.dir, name)
		s.Require().NoError(c.Save(path))
		got, err := Load(path)
		s.Require().NoError(err, name)
		s.Equal(c.PluginTypes(), got.PluginTypes(), name)
		for _, t := range c.PluginTypes() {
			want, _ := c.Libraries(t)
			libs, _ := got.Libraries(t)
			s.Equal(want, libs, name)
		}
	}
}

func (s *ConfigTestSuite) TestNewManagerForType() {
	table := dynlib.NewTable()
	table.Add("reverb.lib", map[string]dynlib.Symbol{
		api.CompatibilitySymbol: compat.CompatibilityHash,
		api.DefaultRegistrationSymbol: func(r *plugin.Registrar[*effect]) {
			r.Register(&effect{id: "sound::reverb"})
		},
	})

	c := New()
	c.Insert("sound", []string{"reverb.lib"})

	ctx := context.Background()
	_, err := NewManagerForType[*effect](ctx, c, "video", plugin.WithOpener(table))
	s.True(errors.Is(err, api.ErrUnknownPluginManagerType))
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal("video", apiErr.PluginType)

	m, err := NewManagerForType[*effect](ctx, c, "sound", plugin.WithOpener(table))
	s.Require().NoError(err)
	s.True(m.Contains("sound::reverb"))
	s.NoError(m.Close())

	c.Insert("sound", []string{"reverb.lib", "missing.lib"})
	m, err = NewManagerForType[*effect](ctx, c, "sound", plugin.WithOpener(table))
	s.True(errors.Is(err, api.ErrLibraryOpenFailed))
	s.Require().NotNil(m)
	s.Equal(1, m.Len())
	s.NoError(m.Close())
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func TestInsertRemoveModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := New()
		model := make(map[string][]string)
		types := rapid.SampledFrom([]string{"sound", "light", "video", "input"})
		lib := rapid.StringMatching(`[a-z]{1,8}`)

		for i := rapid.IntRange(0, 40).Draw(t, "steps"); i > 0; i-- {
			typ := types.Draw(t, "type")
			if rapid.Bool().Draw(t, "insert") {
				libs := rapid.SliceOfN(lib, 1, 3).Draw(t, "libs")
				prev, existed := c.Insert(typ, libs)
				want, had := model[typ]
				if existed != had || (had && !equal(prev, want)) {
					t.Fatalf("insert %s: got %v/%v want %v/%v", typ, prev, existed, want, had)
				}
				model[typ] = libs
			} else {
				got, ok := c.Remove(typ)
				want, had := model[typ]
				if ok != had || (had && !equal(got, want)) {
					t.Fatalf("remove %s: got %v/%v want %v/%v", typ, got, ok, want, had)
				}
				delete(model, typ)
			}
			if c.Len() != len(model) {
				t.Fatalf("len %d, want %d", c.Len(), len(model))
			}
		}
	})
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type effect struct{ id string }

func (e *effect) ID() string      { return e.id }
func (e *effect) OnLoad() error   { return nil }
func (e *effect) OnUnload() error { return nil }

func TestZeroConfigurationIsUsable(t *testing.T) {
	var c Configuration
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.PluginTypes())
	assert.NoError(t, c.Validate())

	_, existed := c.Insert("sound", []string{"reverb"})
	assert.False(t, existed)
	assert.Equal(t, 1, c.Len())

	libs, ok := c.Remove("sound")
	assert.True(t, ok)
	assert.Equal(t, []string{"reverb"}, libs)
	_, ok = c.Libraries("sound")
	assert.False(t, ok)
}

func TestZeroConfigurationDecodes(t *testing.T) {
	var c Configuration
	require.NoError(t, c.UnmarshalJSON([]byte(`{"plugins":{"sound":["reverb"]}}`)))
	assert.Equal(t, []string{"sound"}, c.PluginTypes())
}
