package tatara

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompilers struct {
	depsCalls int32
	unitCalls int32
}

// installFakeCompilers replaces the external compiler invocations with fakes
// that materialize the expected outputs.
func installFakeCompilers(t *testing.T) *fakeCompilers {
	t.Helper()
	fakes := &fakeCompilers{}

	origDeps, origUnit := compileDeps, compileUnit
	compileDeps = func(exec *Executor, tc Toolchain, unit BuildUnit, fs FeatureSet, targetDir string) (string, error) {
		atomic.AddInt32(&fakes.depsCalls, 1)
		marker := filepath.Join(targetDir, "deps.marker")
		return "deps cooked", os.WriteFile(marker, []byte(depsCacheKey(tc, unit, fs)), 0o644)
	}
	compileUnit = func(exec *Executor, tc Toolchain, unit BuildUnit, fs FeatureSet, platform Platform, targetDir string, lint bool) (string, error) {
		atomic.AddInt32(&fakes.unitCalls, 1)
		if lint {
			return "clippy clean", nil
		}
		bin := platform.binaryPath(targetDir, unit.Bin)
		if err := os.MkdirAll(filepath.Dir(bin), 0o755); err != nil {
			return "", err
		}
		return "compiled", os.WriteFile(bin, []byte("ELF"), 0o755)
	}
	t.Cleanup(func() { compileDeps, compileUnit = origDeps, origUnit })
	return fakes
}

func testGraph(t *testing.T) (*Graph, *Registry) {
	t.Helper()
	reg := NewRegistry(&Config{Values: map[string]string{}})
	return NewGraph(quietExecutor(), reg), reg
}

var alphaUnit = BuildUnit{Name: "alpha", Bin: "alpha", Description: "test unit", Flags: []string{"x", "y"}}

func TestBuildDeps_Idempotent(t *testing.T) {
	testSetup(t)
	fakes := installFakeCompilers(t)
	graph, _ := testGraph(t)

	tc := Toolchain{Name: ToolchainStable, Channel: "stable"}
	fs := FeatureSet{Name: "x+y", Flags: []string{"x", "y"}}

	first, err := graph.BuildDeps(tc, alphaUnit, fs)
	require.NoError(t, err)
	assert.FileExists(t, first.Path)

	second, err := graph.BuildDeps(tc, alphaUnit, fs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fakes.depsCalls, "cache hit must not re-invoke the compiler")
}

func TestBuildDeps_KeySensitivity(t *testing.T) {
	testSetup(t)
	installFakeCompilers(t)
	graph, _ := testGraph(t)

	tc := Toolchain{Name: ToolchainStable, Channel: "stable"}
	base, err := graph.BuildDeps(tc, alphaUnit, FeatureSet{Name: "x", Flags: []string{"x"}})
	require.NoError(t, err)

	otherSet, err := graph.BuildDeps(tc, alphaUnit, FeatureSet{Name: "x+y", Flags: []string{"x", "y"}})
	require.NoError(t, err)
	assert.NotEqual(t, base.Key, otherSet.Key)

	otherTC, err := graph.BuildDeps(Toolchain{Name: ToolchainNightly, Channel: "nightly"}, alphaUnit, FeatureSet{Name: "x", Flags: []string{"x"}})
	require.NoError(t, err)
	assert.NotEqual(t, base.Key, otherTC.Key)

	otherUnit, err := graph.BuildDeps(tc, BuildUnit{Name: "beta", Bin: "beta"}, FeatureSet{Name: "x", Flags: []string{"x"}})
	require.NoError(t, err)
	assert.NotEqual(t, base.Key, otherUnit.Key)
}

func TestBuildDeps_SingleFlight(t *testing.T) {
	testSetup(t)
	graph, _ := testGraph(t)

	var calls int32
	release := make(chan struct{})
	origDeps := compileDeps
	compileDeps = func(exec *Executor, tc Toolchain, unit BuildUnit, fs FeatureSet, targetDir string) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "", os.WriteFile(filepath.Join(targetDir, "deps.marker"), nil, 0o644)
	}
	t.Cleanup(func() { compileDeps = origDeps })

	tc := Toolchain{Name: ToolchainStable, Channel: "stable"}
	fs := FeatureSet{Name: FeatureSetDefault}

	var wg sync.WaitGroup
	results := make([]DepsArtifact, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			artifact, err := graph.BuildDeps(tc, alphaUnit, fs)
			assert.NoError(t, err)
			results[i] = artifact
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls, "concurrent requesters must share one in-flight build")
	for _, res := range results[1:] {
		assert.Equal(t, results[0], res)
	}
}

func TestBuild_AlphaEndToEnd(t *testing.T) {
	testSetup(t)
	fakes := installFakeCompilers(t)
	graph, reg := testGraph(t)

	tc := Toolchain{Name: ToolchainStable, Channel: "stable"}
	fs, ok := featureSetByName(alphaUnit.Flags, "x+y")
	require.True(t, ok)

	res, err := graph.Build(tc, alphaUnit, fs, reg.Native(), BuildOptions{WithDeps: true})
	require.NoError(t, err)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, "stable", res.Artifact.Toolchain)
	assert.Equal(t, "alpha", res.Artifact.Unit)
	assert.Equal(t, "x+y", res.Artifact.FeatureSet)
	assert.Equal(t, "native", res.Artifact.Platform)
	assert.FileExists(t, res.Artifact.Binary)

	// The same request again reuses the cached dependency artifact.
	_, err = graph.Build(tc, alphaUnit, fs, reg.Native(), BuildOptions{WithDeps: true})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fakes.depsCalls)
	assert.Equal(t, int32(2), fakes.unitCalls)
}

func TestBuild_WithoutDepsSkipsCache(t *testing.T) {
	testSetup(t)
	fakes := installFakeCompilers(t)
	graph, reg := testGraph(t)

	tc := Toolchain{Name: ToolchainStable, Channel: "stable"}
	_, err := graph.Build(tc, alphaUnit, FeatureSet{Name: FeatureSetDefault}, reg.Native(), BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), fakes.depsCalls)
}

func TestBuild_LintReturnsReport(t *testing.T) {
	testSetup(t)
	installFakeCompilers(t)
	graph, reg := testGraph(t)

	tc := Toolchain{Name: ToolchainStable, Channel: "stable"}
	res, err := graph.Build(tc, alphaUnit, FeatureSet{Name: FeatureSetDefault}, reg.Native(), BuildOptions{WithDeps: true, Lint: true})
	require.NoError(t, err)
	assert.Nil(t, res.Artifact)
	assert.Equal(t, "clippy clean", res.Report)
}

func TestBuild_FailureCarriesContext(t *testing.T) {
	testSetup(t)
	installFakeCompilers(t)
	graph, reg := testGraph(t)

	origUnit := compileUnit
	compileUnit = func(exec *Executor, tc Toolchain, unit BuildUnit, fs FeatureSet, platform Platform, targetDir string, lint bool) (string, error) {
		return "error[E0599]: no method named `frobnicate`", errors.New("exit status 101")
	}
	t.Cleanup(func() { compileUnit = origUnit })

	tc := Toolchain{Name: ToolchainStable, Channel: "stable"}
	_, err := graph.Build(tc, alphaUnit, FeatureSet{Name: "x", Flags: []string{"x"}}, reg.Native(), BuildOptions{WithDeps: true})

	var bf *BuildFailureError
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, "stable", bf.Toolchain)
	assert.Equal(t, "alpha", bf.Unit)
	assert.Equal(t, "x", bf.FeatureSet)
	assert.Equal(t, "native", bf.Platform)
	assert.Contains(t, bf.Output, "E0599")
}
