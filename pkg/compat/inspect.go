package compat

import (
	"context"
	"errors"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
)

// Report is the outcome of inspecting one library.
type Report struct {
	Path        string
	Fingerprint uint64
	Compatible  bool
	// Symbols records, for each requested name, whether it is exported.
	// It is only filled for compatible libraries.
	Symbols map[string]bool
	Err     error
}

// Inspect opens path, runs g against it and, if compatible, checks which of
// symbols it exports. Registration is never invoked. The library is closed
// before Inspect returns; a close failure is reported in Err unless an
// earlier error is already there.
func (g *Gate) Inspect(opener dynlib.Opener, path string, symbols ...string) Report {
	r := Report{Path: path}
	lib, err := opener.Open(path)
	if err != nil {
		r.Err = api.LibraryOpenFailed(path, err)
		return r
	}
	defer func() {
		if cerr := lib.Close(); cerr != nil && r.Err == nil {
			r.Err = api.LibraryCloseFailed(path, cerr)
		}
	}()

	r.Fingerprint, err = Probe(lib)
	if err != nil {
		r.Err = err
		return r
	}
	if r.Fingerprint != g.Expected {
		g.logger().Warn("version incompatibility",
			zap.String("path", path),
			zap.Uint64("library", r.Fingerprint),
			zap.Uint64("expected", g.Expected))
		r.Err = api.IncompatibleLibraryVersion(path)
		return r
	}
	r.Compatible = true
	r.Symbols = make(map[string]bool, len(symbols))
	for _, name := range symbols {
		_, lerr := lib.Lookup(name)
		r.Symbols[name] = lerr == nil
	}
	return r
}

// InspectAll inspects paths concurrently on a pool of workers goroutines
// and returns reports in the order of paths. Paths not started before ctx
// is done are reported with ctx.Err().
func (g *Gate) InspectAll(ctx context.Context, opener dynlib.Opener, paths []string, workers int, symbols ...string) ([]Report, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	reports := make([]Report, len(paths))
	var wg sync.WaitGroup
	var submitErr error
	for i, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			reports[i] = Report{Path: path, Err: ctxErr}
			continue
		}
		wg.Add(1)
		i, path := i, path
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctxErr := ctx.Err(); ctxErr != nil {
				reports[i] = Report{Path: path, Err: ctxErr}
				return
			}
			reports[i] = g.Inspect(opener, path, symbols...)
		}); err != nil {
			wg.Done()
			reports[i] = Report{Path: path, Err: err}
			submitErr = errors.Join(submitErr, err)
		}
	}
	wg.Wait()
	return reports, submitErr
}
