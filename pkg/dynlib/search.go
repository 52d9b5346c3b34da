package dynlib

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SearchPath is an ordered list of directories consulted for bare library
// names.
type SearchPath []string

// SearchPathFromEnv splits the list in envVar with the platform list
// separator (':' on unix). ok is false when the variable is unset.
func SearchPathFromEnv(envVar string) (sp SearchPath, ok bool) {
	value, ok := os.LookupEnv(envVar)
	if !ok {
		return nil, false
	}
	for _, dir := range filepath.SplitList(value) {
		if dir != "" {
			sp = append(sp, dir)
		}
	}
	return sp, true
}

// IsBareName reports whether name has neither a path separator nor an
// extension, i.e. whether it should be resolved through a search path.
func IsBareName(name string) bool {
	return !strings.ContainsAny(name, `/\.`)
}

// Resolve returns the first regular file named name, or the platform file
// name for it, found in the search path. Names that are not bare, and names
// not found, are returned unchanged.
func (sp SearchPath) Resolve(name string) string {
	if len(sp) == 0 || !IsBareName(name) {
		return name
	}
	candidates := []string{name, FileName(name)}
	for _, dir := range sp {
		for _, c := range candidates {
			p := filepath.Join(dir, c)
			if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
				return p
			}
		}
	}
	return name
}

// FileName returns the platform file name of library name:
// libname.so, libname.dylib or name.dll.
func FileName(name string) string {
	return fileName(runtime.GOOS, name)
}

func fileName(goos, name string) string {
	switch goos {
	case "windows":
		return name + ".dll"
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}
