package tatara

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// loadConfig reads tatara.conf (key=value lines) and applies defaults.
// A missing file is not an error; everything can come from the environment.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)

	if tmp := cfg.Values["TMPDIR"]; tmp == "" {
		cfg.Values["TMPDIR"] = os.TempDir()
	}

	return cfg, nil
}

// Merge TATARA_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "TATARA_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	workspaceDir = cfg.Values["TATARA_WORKSPACE"]
	if workspaceDir == "" {
		workspaceDir = "."
	}

	cacheDir = cfg.Values["TATARA_CACHE_DIR"]
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		cacheDir = filepath.Join(home, ".cache", "tatara")
	}
	depsDir = filepath.Join(cacheDir, "deps")
	toolchainDir = filepath.Join(cacheDir, "toolchains")
	crossDir = filepath.Join(cacheDir, "cross")
	downloadDir = filepath.Join(cacheDir, "downloads")
	reportDir = filepath.Join(cacheDir, "reports")

	outputDir = cfg.Values["TATARA_OUTPUT_DIR"]
	if outputDir == "" {
		outputDir = filepath.Join(workspaceDir, "dist")
	}

	tmpDir = cfg.Values["TMPDIR"]
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}

	// Signing material is injected by the caller, typically from a
	// restricted-access location outside normal build inputs.
	certPath = cfg.Values["TATARA_SIGN_CERT"]
	keyPath = cfg.Values["TATARA_SIGN_KEY"]

	signerTool = cfg.Values["TATARA_SIGNER"]
	if signerTool == "" {
		signerTool = "junos-pkg"
	}
	signAskPass = cfg.Values["TATARA_SIGN_ASKPASS"] == "1"

	maxJobs = runtime.NumCPU()
	if j := cfg.Values["TATARA_JOBS"]; j != "" {
		if n, err := strconv.Atoi(j); err == nil && n > 0 {
			maxJobs = n
		}
	}

	WantDebug = cfg.Values["TATARA_DEBUG"]
	Debug = WantDebug == "1"
}

// ensureCacheLayout creates the cache directory tree on first use.
func ensureCacheLayout() error {
	for _, dir := range []string{cacheDir, depsDir, toolchainDir, crossDir, downloadDir, reportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
