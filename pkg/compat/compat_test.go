package compat

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/internal/version"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
)

func TestFingerprintIsStable(t *testing.T) {
	id := Identity{LibraryVersion: "v1.2.3", Toolchain: "go1.24.2"}
	assert.Equal(t, Fingerprint(id), Fingerprint(id))
	assert.NotEqual(t, Fingerprint(id), Fingerprint(Identity{LibraryVersion: "v1.2.4", Toolchain: "go1.24.2"}))
	assert.NotEqual(t, Fingerprint(id), Fingerprint(Identity{LibraryVersion: "v1.2.3", Toolchain: "go1.24.3"}))
	assert.NotEqual(t,
		Fingerprint(Identity{LibraryVersion: "ab", Toolchain: "c"}),
		Fingerprint(Identity{LibraryVersion: "a", Toolchain: "bc"}))
}

func TestHostIdentity(t *testing.T) {
	id := HostIdentity()
	assert.Equal(t, version.Version, id.LibraryVersion)
	assert.Equal(t, runtime.Version(), id.Toolchain)
	assert.Equal(t, Fingerprint(id), CompatibilityHash())
	assert.Equal(t, CompatibilityHash(), NewGate().Expected)
}

type GateTestSuite struct {
	suite.Suite
	table *dynlib.Table
	gate  *Gate
	logs  *observer.ObservedLogs
}

func (s *GateTestSuite) SetupTest() {
	core, logs := observer.New(zap.DebugLevel)
	s.logs = logs
	s.gate = &Gate{Expected: 7, Logger: zap.New(core)}
	s.table = dynlib.NewTable()

	var probe api.CompatibilityFunc = func() uint64 { return 7 }
	s.table.Add("func.so", map[string]dynlib.Symbol{api.CompatibilitySymbol: func() uint64 { return 7 }})
	s.table.Add("var.so", map[string]dynlib.Symbol{api.CompatibilitySymbol: &probe})
	s.table.Add("named.so", map[string]dynlib.Symbol{api.CompatibilitySymbol: probe})
	s.table.Add("other.so", map[string]dynlib.Symbol{api.CompatibilitySymbol: func() uint64 { return 8 }})
	s.table.Add("typo.so", map[string]dynlib.Symbol{api.CompatibilitySymbol: func() int { return 7 }})
	s.table.Add("none.so", map[string]dynlib.Symbol{})
	s.table.Add("full.so", map[string]dynlib.Symbol{
		api.CompatibilitySymbol:       func() uint64 { return 7 },
		api.DefaultRegistrationSymbol: func() { panic("registration must not run") },
	})
}

func (s *GateTestSuite) open(path string) dynlib.Library {
	lib, err := s.table.Open(path)
	s.Require().NoError(err)
	return lib
}

func (s *GateTestSuite) TestAcceptedProbeForms() {
	for _, path := range []string{"func.so", "var.so", "named.so"} {
		s.NoError(s.gate.Check(s.open(path)), path)
	}
}

func (s *GateTestSuite) TestMismatch() {
	err := s.gate.Check(s.open("other.so"))
	s.Require().Error(err)
	s.True(errors.Is(err, api.ErrIncompatibleLibraryVersion))
	s.Equal(1, s.logs.FilterMessage("version incompatibility").Len())
}

func (s *GateTestSuite) TestMissingProbe() {
	err := s.gate.Check(s.open("none.so"))
	s.True(errors.Is(err, api.ErrSymbolNotFound))
	s.True(errors.Is(err, dynlib.ErrNoSymbol))
}

func (s *GateTestSuite) TestWrongSignature() {
	err := s.gate.Check(s.open("typo.so"))
	s.True(errors.Is(err, api.ErrSymbolNotFound))
	s.Contains(err.Error(), "unexpected signature")
}

func (s *GateTestSuite) TestInspectNeverRegisters() {
	r := s.gate.Inspect(s.table, "full.so", api.DefaultRegistrationSymbol, "Missing")
	s.Require().NoError(r.Err)
	s.True(r.Compatible)
	s.Equal(uint64(7), r.Fingerprint)
	s.Equal(map[string]bool{api.DefaultRegistrationSymbol: true, "Missing": false}, r.Symbols)
	s.Equal(0, s.table.OpenCount("full.so"))
}

func (s *GateTestSuite) TestInspectReportsFailures() {
	r := s.gate.Inspect(s.table, "absent.so")
	s.True(errors.Is(r.Err, api.ErrLibraryOpenFailed))

	r = s.gate.Inspect(s.table, "other.so")
	s.False(r.Compatible)
	s.Equal(uint64(8), r.Fingerprint)
	s.True(errors.Is(r.Err, api.ErrIncompatibleLibraryVersion))
	s.Equal(0, s.table.OpenCount("other.so"))

	s.table.FailClose("func.so", errors.New("busy"))
	r = s.gate.Inspect(s.table, "func.so")
	s.True(errors.Is(r.Err, api.ErrLibraryCloseFailed))
}

func (s *GateTestSuite) TestInspectAllKeepsOrder() {
	paths := []string{"func.so", "other.so", "absent.so", "var.so", "none.so"}
	reports, err := s.gate.InspectAll(context.Background(), s.table, paths, 3)
	s.Require().NoError(err)
	s.Require().Len(reports, len(paths))
	for i, r := range reports {
		s.Equal(paths[i], r.Path)
	}
	s.True(reports[0].Compatible)
	s.False(reports[1].Compatible)
	s.True(errors.Is(reports[2].Err, api.ErrLibraryOpenFailed))
	s.True(reports[3].Compatible)
	s.True(errors.Is(reports[4].Err, api.ErrSymbolNotFound))
}

func (s *GateTestSuite) TestInspectAllCanceled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports, err := s.gate.InspectAll(ctx, s.table, []string{"func.so", "var.so"}, 0)
	s.Require().NoError(err)
	for _, r := range reports {
		s.True(errors.Is(r.Err, context.Canceled))
	}
	s.Equal(0, s.table.Opens("func.so"))
}

func TestGateTestSuite(t *testing.T) {
	suite.Run(t, new(GateTestSuite))
}

func TestInspectAllManyLibraries(t *testing.T) {
	table := dynlib.NewTable()
	gate := NewGate()
	paths := make([]string, 64)
	for i := range paths {
		paths[i] = fmt.Sprintf("lib%d.so", i)
		table.Add(paths[i], map[string]dynlib.Symbol{api.CompatibilitySymbol: CompatibilityHash})
	}
	reports, err := gate.InspectAll(context.Background(), table, paths, 8)
	require.NoError(t, err)
	for _, r := range reports {
		assert.True(t, r.Compatible, r.Path)
		assert.Equal(t, 0, table.OpenCount(r.Path))
	}
}
