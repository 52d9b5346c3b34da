// Command pluginhost loads plugin libraries into a plugin manager, inspects
// libraries for compatibility and serves health and metrics for a loaded
// set.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}
