package tatara

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveManifest(t *testing.T) {
	platform := junosPlatform(t)
	m := deriveManifest(agentUnit, platform, "/tmp/out/bgpfu-junos-agent")

	assert.Equal(t, "bgpfu-junos-agent", m.Basename)
	assert.Equal(t, agentUnit.Description, m.Description)
	assert.Equal(t, platform.Arch, m.Arch)
	assert.Equal(t, platform.ABI, m.ABI)

	require.Len(t, m.Files, 1)
	assert.Equal(t, "/tmp/out/bgpfu-junos-agent", m.Files[0].Source)
	assert.Equal(t, "/var/db/scripts/jet/bgpfu-junos-agent", m.Files[0].Dest)
}

func TestManifestRender_Deterministic(t *testing.T) {
	platform := junosPlatform(t)

	first, err := deriveManifest(agentUnit, platform, "/tmp/bin").Render()
	require.NoError(t, err)
	second, err := deriveManifest(agentUnit, platform, "/tmp/bin").Render()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "<package>")
	assert.Contains(t, string(first), `dest="/var/db/scripts/jet/bgpfu-junos-agent"`)
}
