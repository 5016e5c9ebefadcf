package tatara

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry(&Config{Values: map[string]string{}})

	native, err := reg.Platform("native")
	require.NoError(t, err)
	assert.True(t, native.Native())

	// Empty selects the native platform.
	byDefault, err := reg.Platform("")
	require.NoError(t, err)
	assert.Equal(t, native.Name, byDefault.Name)

	junos, err := reg.Platform("junos")
	require.NoError(t, err)
	assert.False(t, junos.Native())
	assert.True(t, junos.Signed)

	_, err = reg.Platform("vxworks")
	assert.ErrorIs(t, err, errUnknownPlatform)
}

func TestApplyTo_NativeIsNoOp(t *testing.T) {
	reg := NewRegistry(&Config{Values: map[string]string{}})
	env := reg.Native().ApplyTo(map[string]string{"CARGO_TARGET_DIR": "/t"})
	assert.Equal(t, map[string]string{"CARGO_TARGET_DIR": "/t"}, env)
}

func TestApplyTo_ForeignInjectsEnvironment(t *testing.T) {
	testSetup(t)
	reg := NewRegistry(&Config{Values: map[string]string{}})
	junos, err := reg.Platform("junos")
	require.NoError(t, err)

	env := junos.ApplyTo(nil)
	assert.Equal(t, "x86_64-unknown-freebsd", env["CARGO_BUILD_TARGET"])
	assert.Contains(t, env["CARGO_TARGET_X86_64_UNKNOWN_FREEBSD_LINKER"], "x86_64-unknown-freebsd-gcc")
	assert.Contains(t, env["RUSTFLAGS"], `--cfg tatara_platform="junos"`)
}

func TestApplyTo_AppendsRustflags(t *testing.T) {
	testSetup(t)
	reg := NewRegistry(&Config{Values: map[string]string{}})
	junos, err := reg.Platform("junos")
	require.NoError(t, err)

	env := junos.ApplyTo(map[string]string{"RUSTFLAGS": "-C lto"})
	assert.Contains(t, env["RUSTFLAGS"], "-C lto ")
	assert.Contains(t, env["RUSTFLAGS"], "tatara_platform")
}

func TestForeignTriples(t *testing.T) {
	reg := NewRegistry(&Config{Values: map[string]string{}})
	assert.Equal(t, []string{"x86_64-unknown-freebsd"}, reg.ForeignTriples())
}

func TestLinkerEnvVar(t *testing.T) {
	assert.Equal(t, "CARGO_TARGET_X86_64_UNKNOWN_FREEBSD_LINKER", linkerEnvVar("x86_64-unknown-freebsd"))
}

func TestCrossVersionPins(t *testing.T) {
	cfg := &Config{Values: map[string]string{
		"TATARA_CROSS_BASE_VERSION": "13.2-RELEASE",
		"TATARA_CROSS_GCC_VERSION":  "12.3.0",
	}}
	ct := newCrossToolchain(cfg, "junos", "x86_64-unknown-freebsd")
	assert.Contains(t, ct.baseURL, "13.2-RELEASE")
	assert.Contains(t, ct.gccURL, "gcc-12.3.0")
	assert.Equal(t, "junos-base13.2-RELEASE-binutils2.41-gcc12.3.0", ct.versionTag())
}
