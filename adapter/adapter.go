// Package adapter connects plugin manager lifecycle events to external
// systems: Prometheus, OpenTelemetry metrics, audit logs and health checks.
package adapter

import "github.com/srediag/plugin-dylib/api"

// failureKind labels err by the stage that produced it. Errors returned by
// plugin hooks carry no kind and are labelled "Lifecycle".
func failureKind(err error) string {
	if k := api.KindOf(err); k != 0 {
		return k.String()
	}
	return "Lifecycle"
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
