package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/srediag/plugin-dylib/pkg/plugin"
)

// Inventory is the read side of a plugin.Manager consulted by health checks.
type Inventory interface {
	Len() int
	Libraries() []plugin.LibraryInfo
}

// PluginsLoadedCheck fails until at least min plugins are installed.
// Use it as a readiness check.
func PluginsLoadedCheck(inv Inventory, min int) healthcheck.Check {
	return func() error {
		if n := inv.Len(); n < min {
			return fmt.Errorf("%d plugins installed, want at least %d", n, min)
		}
		return nil
	}
}

// LibrariesMappedCheck fails when a library the manager holds open is no
// longer mapped into the process. Only libraries backed by a file on disk
// are checked; on platforms other than linux the check always passes.
// Use it as a liveness check.
func LibrariesMappedCheck(inv Inventory) healthcheck.Check {
	return func() error {
		if runtime.GOOS != "linux" {
			return nil
		}
		var files []string
		for _, lib := range inv.Libraries() {
			if fi, err := os.Stat(lib.Path); err == nil && fi.Mode().IsRegular() {
				files = append(files, lib.Path)
			}
		}
		if len(files) == 0 {
			return nil
		}
		mapped, err := mappedPaths()
		if err != nil {
			return fmt.Errorf("failed to read memory maps: %w", err)
		}
		var missing []string
		for _, f := range files {
			if !mapped[canonical(f)] {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("libraries not mapped: %s", strings.Join(missing, ", "))
		}
		return nil
	}
}

// Register adds the readiness and liveness checks for inv to h.
func Register(h healthcheck.Handler, inv Inventory, minPlugins int) {
	h.AddReadinessCheck("plugins-loaded", PluginsLoadedCheck(inv, minPlugins))
	h.AddLivenessCheck("libraries-mapped", LibrariesMappedCheck(inv))
}

func mappedPaths() (map[string]bool, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	maps, err := p.MemoryMaps(true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(*maps))
	for _, m := range *maps {
		if m.Path != "" {
			out[canonical(m.Path)] = true
		}
	}
	return out, nil
}

func canonical(path string) string {
	if p, err := filepath.EvalSymlinks(path); err == nil {
		return p
	}
	return path
}
