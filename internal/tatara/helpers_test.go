package tatara

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// testSetup points every cache/output directory at a per-test temp dir and
// clears process-wide memoization so tests stay independent.
func testSetup(t *testing.T) {
	t.Helper()

	base := t.TempDir()
	cacheDir = base
	depsDir = filepath.Join(base, "deps")
	toolchainDir = filepath.Join(base, "toolchains")
	crossDir = filepath.Join(base, "cross")
	downloadDir = filepath.Join(base, "downloads")
	reportDir = filepath.Join(base, "reports")
	outputDir = filepath.Join(base, "dist")
	tmpDir = filepath.Join(base, "tmp")
	workspaceDir = filepath.Join(base, "workspace")
	certPath = ""
	keyPath = ""
	signerTool = "junos-pkg"
	signAskPass = false
	maxJobs = 4

	if err := ensureCacheLayout(); err != nil {
		t.Fatalf("cache layout: %v", err)
	}
	for _, dir := range []string{outputDir, tmpDir, workspaceDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	metadataCache.Purge()
	resolvedToolchains.Purge()
}

// quietExecutor returns an Executor whose runner succeeds without invoking
// any external tool.
func quietExecutor() *Executor {
	e := NewExecutor(nil)
	e.Quiet = true
	e.runner = func(cmd *exec.Cmd) error { return nil }
	return e
}
