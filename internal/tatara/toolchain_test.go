package tatara

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFakeToolchainInstall(t *testing.T) *int {
	t.Helper()
	calls := 0
	orig := toolchainInstall
	toolchainInstall = func(exec *Executor, channel string, triples []string) error {
		calls++
		return nil
	}
	t.Cleanup(func() { toolchainInstall = orig })
	return &calls
}

func TestResolveToolchain_Unknown(t *testing.T) {
	testSetup(t)
	reg := NewRegistry(&Config{Values: map[string]string{}})

	_, err := ResolveToolchain(quietExecutor(), reg, "beta")
	var unknown *UnknownToolchainError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "beta", unknown.Name)
}

func TestResolveToolchain_IncludesForeignTargets(t *testing.T) {
	testSetup(t)
	withFakeToolchainInstall(t)
	reg := NewRegistry(&Config{Values: map[string]string{}})

	tc, err := ResolveToolchain(quietExecutor(), reg, ToolchainStable)
	require.NoError(t, err)
	assert.Equal(t, "stable", tc.Channel)
	assert.Equal(t, []string{"x86_64-unknown-freebsd"}, tc.Triples)
}

func TestResolveToolchain_Memoized(t *testing.T) {
	testSetup(t)
	calls := withFakeToolchainInstall(t)
	reg := NewRegistry(&Config{Values: map[string]string{}})

	_, err := ResolveToolchain(quietExecutor(), reg, ToolchainNightly)
	require.NoError(t, err)
	_, err = ResolveToolchain(quietExecutor(), reg, ToolchainNightly)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)

	// The on-disk stamp short-circuits even after the in-memory cache is
	// discarded.
	resolvedToolchains.Purge()
	_, err = ResolveToolchain(quietExecutor(), reg, ToolchainNightly)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
}

func TestResolveToolchain_MSRVChannel(t *testing.T) {
	testSetup(t)
	withFakeToolchainInstall(t)
	reg := NewRegistry(&Config{Values: map[string]string{}})

	tc, err := ResolveToolchain(quietExecutor(), reg, ToolchainMSRV)
	require.NoError(t, err)
	assert.Equal(t, msrvVersion, tc.Channel)
}
