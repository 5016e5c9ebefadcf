package tatara

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tatara.conf")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
TATARA_SIGNER = "veriexec-sign"
TATARA_JOBS=2
malformed line without separator
`), 0o644))

	t.Setenv("TATARA_JOBS", "8")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "veriexec-sign", cfg.Values["TATARA_SIGNER"])
	assert.Equal(t, "8", cfg.Values["TATARA_JOBS"], "environment overrides the file")
	assert.NotEmpty(t, cfg.Values["TMPDIR"])
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.conf"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Values)
}

func TestInitConfig_Defaults(t *testing.T) {
	cfg := &Config{Values: map[string]string{
		"TATARA_CACHE_DIR": t.TempDir(),
		"TATARA_WORKSPACE": "/src/bgpfu",
		"TATARA_SIGN_CERT": "/restricted/sign.crt",
		"TATARA_SIGN_KEY":  "/restricted/sign.key",
		"TATARA_JOBS":      "3",
	}}
	initConfig(cfg)

	assert.Equal(t, "/src/bgpfu", workspaceDir)
	assert.Equal(t, filepath.Join(cfg.Values["TATARA_CACHE_DIR"], "deps"), depsDir)
	assert.Equal(t, "/restricted/sign.crt", certPath)
	assert.Equal(t, "/restricted/sign.key", keyPath)
	assert.Equal(t, "junos-pkg", signerTool)
	assert.Equal(t, 3, maxJobs)
	assert.Equal(t, filepath.Join("/src/bgpfu", "dist"), outputDir)
}
