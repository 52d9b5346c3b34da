// Package config maps plugin types to the libraries that provide them.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/pkg/plugin"
)

// Configuration maps a plugin type name to an ordered list of library
// names. It is safe for concurrent use. The zero value is an empty
// configuration ready to use. A Configuration must not be copied after
// first use.
type Configuration struct {
	once sync.Once
	m    cmap.ConcurrentMap[string, []string]
}

// New returns an empty configuration.
func New() *Configuration {
	return &Configuration{}
}

func (c *Configuration) libs() *cmap.ConcurrentMap[string, []string] {
	c.once.Do(func() { c.m = cmap.New[[]string]() })
	return &c.m
}

// IsEmpty reports whether no plugin type is configured.
func (c *Configuration) IsEmpty() bool { return c.libs().IsEmpty() }

// Len returns the number of configured plugin types.
func (c *Configuration) Len() int { return c.libs().Count() }

// PluginTypes returns the configured plugin types in sorted order.
func (c *Configuration) PluginTypes() []string {
	keys := c.libs().Keys()
	sort.Strings(keys)
	return keys
}

// Libraries returns the libraries configured for pluginType.
func (c *Configuration) Libraries(pluginType string) ([]string, bool) {
	libs, ok := c.libs().Get(pluginType)
	if !ok {
		return nil, false
	}
	return append([]string(nil), libs...), true
}

// Insert sets the libraries of pluginType and returns the list it
// replaced, if any.
func (c *Configuration) Insert(pluginType string, libs []string) (previous []string, existed bool) {
	libs = append([]string(nil), libs...)
	c.libs().Upsert(pluginType, libs, func(exist bool, old, v []string) []string {
		previous, existed = old, exist
		return v
	})
	return previous, existed
}

// Remove deletes pluginType and returns its libraries.
func (c *Configuration) Remove(pluginType string) ([]string, bool) {
	return c.libs().Pop(pluginType)
}

// Validate checks that every plugin type names at least one library.
func (c *Configuration) Validate() error {
	for _, t := range c.PluginTypes() {
		libs, _ := c.libs().Get(t)
		if len(libs) == 0 {
			return fmt.Errorf("plugin type %q has no libraries", t)
		}
		for _, l := range libs {
			if strings.TrimSpace(l) == "" {
				return fmt.Errorf("plugin type %q has an empty library name", t)
			}
		}
	}
	return nil
}

type document struct {
	Plugins map[string][]string `yaml:"plugins" json:"plugins"`
}

func (c *Configuration) document() document {
	d := document{Plugins: make(map[string][]string, c.Len())}
	for t, libs := range c.libs().Items() {
		d.Plugins[t] = libs
	}
	return d
}

func (c *Configuration) fill(d document) {
	for t, libs := range d.Plugins {
		c.Insert(t, libs)
	}
}

func (c *Configuration) MarshalYAML() (interface{}, error) { return c.document(), nil }

func (c *Configuration) UnmarshalYAML(value *yaml.Node) error {
	var d document
	if err := value.Decode(&d); err != nil {
		return err
	}
	c.fill(d)
	return nil
}

func (c *Configuration) MarshalJSON() ([]byte, error) { return json.Marshal(c.document()) }

func (c *Configuration) UnmarshalJSON(data []byte) error {
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	c.fill(d)
	return nil
}

// Load reads a configuration file. Files ending in .json are decoded as
// JSON, anything else as YAML.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	c := New()
	if isJSON(path) {
		err = json.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path, choosing the format from the extension like Load.
func (c *Configuration) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// NewManagerForType builds a manager and loads every library configured for
// pluginType, in order. The manager is returned even when a load fails, so
// the caller can Close what was loaded.
func NewManagerForType[T api.Plugin](ctx context.Context, c *Configuration, pluginType string, opts ...plugin.Option) (*plugin.Manager[T], error) {
	libs, ok := c.Libraries(pluginType)
	if !ok {
		return nil, api.UnknownPluginManagerType(pluginType)
	}
	m := plugin.New[T](opts...)
	if err := m.LoadAll(ctx, libs); err != nil {
		return m, err
	}
	return m, nil
}
