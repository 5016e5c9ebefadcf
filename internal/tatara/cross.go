package tatara

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// crossToolchain assembles a cross binutils + GCC stack for a foreign target
// that has no native toolchain support. The recipe is fully determined by the
// pinned vendor-OS snapshot and compiler-construction source versions, so a
// completed bootstrap is reproducible and re-execution is a no-op.
type crossToolchain struct {
	platform string
	triple   string

	baseVersion     string // vendor-OS base filesystem snapshot
	binutilsVersion string
	gccVersion      string

	baseURL     string
	binutilsURL string
	gccURL      string

	// Optional pinned blake3 digests for the fetched inputs.
	basePin     string
	binutilsPin string
	gccPin      string

	prefix string // install prefix under the cross cache dir
}

func newCrossToolchain(cfg *Config, platform, triple string) *crossToolchain {
	ct := &crossToolchain{
		platform:        platform,
		triple:          triple,
		baseVersion:     "12.4-RELEASE",
		binutilsVersion: "2.41",
		gccVersion:      "13.2.0",
	}
	if v := cfg.Values["TATARA_CROSS_BASE_VERSION"]; v != "" {
		ct.baseVersion = v
	}
	if v := cfg.Values["TATARA_CROSS_BINUTILS_VERSION"]; v != "" {
		ct.binutilsVersion = v
	}
	if v := cfg.Values["TATARA_CROSS_GCC_VERSION"]; v != "" {
		ct.gccVersion = v
	}

	ct.baseURL = fmt.Sprintf("https://download.freebsd.org/releases/amd64/%s/base.txz", ct.baseVersion)
	ct.binutilsURL = fmt.Sprintf("https://ftp.gnu.org/gnu/binutils/binutils-%s.tar.xz", ct.binutilsVersion)
	ct.gccURL = fmt.Sprintf("https://ftp.gnu.org/gnu/gcc/gcc-%s/gcc-%s.tar.xz", ct.gccVersion, ct.gccVersion)
	if u := cfg.Values["TATARA_CROSS_BASE_URL"]; u != "" {
		ct.baseURL = u
	}
	if u := cfg.Values["TATARA_CROSS_BINUTILS_URL"]; u != "" {
		ct.binutilsURL = u
	}
	if u := cfg.Values["TATARA_CROSS_GCC_URL"]; u != "" {
		ct.gccURL = u
	}
	ct.basePin = cfg.Values["TATARA_CROSS_BASE_B3SUM"]
	ct.binutilsPin = cfg.Values["TATARA_CROSS_BINUTILS_B3SUM"]
	ct.gccPin = cfg.Values["TATARA_CROSS_GCC_B3SUM"]
	return ct
}

func (ct *crossToolchain) versionTag() string {
	return fmt.Sprintf("%s-base%s-binutils%s-gcc%s", ct.platform, ct.baseVersion, ct.binutilsVersion, ct.gccVersion)
}

func (ct *crossToolchain) sysroot() string {
	return filepath.Join(crossDir, ct.platform, "sysroot")
}

func (ct *crossToolchain) linkerPath() string {
	return filepath.Join(ct.prefixDir(), "bin", ct.triple+"-gcc")
}

func (ct *crossToolchain) prefixDir() string {
	if ct.prefix != "" {
		return ct.prefix
	}
	return filepath.Join(crossDir, ct.platform, "toolchain")
}

func (ct *crossToolchain) stampPath() string {
	return filepath.Join(crossDir, ct.versionTag()+".stamp")
}

type crossStage struct {
	name string
	run  func(exec *Executor) error
}

// build runs the bootstrap pipeline: fetch pinned inputs, build cross
// binutils, build cross GCC against the vendor sysroot. Stages are fail-fast
// and the whole pipeline is memoized by the pinned version tuple. Any stage
// failure is a CrossToolchainBuildError scoped to this platform.
func (ct *crossToolchain) build(exec *Executor) error {
	if _, err := os.Stat(ct.stampPath()); err == nil {
		debugf("cross toolchain for %s already built (%s)\n", ct.platform, ct.versionTag())
		return nil
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Bootstrapping %s cross toolchain (%s)\n", ct.platform, ct.versionTag())

	stages := []crossStage{
		{"fetch-sources", ct.fetchSources},
		{"build-binutils", ct.buildBinutils},
		{"build-gcc", ct.buildGCC},
	}
	for _, stage := range stages {
		colArrow.Print("-> ")
		colSuccess.Printf("Cross stage %s\n", stage.name)
		if err := stage.run(exec); err != nil {
			return &CrossToolchainBuildError{Platform: ct.platform, Stage: stage.name, Err: err}
		}
	}

	if err := os.WriteFile(ct.stampPath(), []byte(ct.versionTag()+"\n"), 0o644); err != nil {
		return &CrossToolchainBuildError{Platform: ct.platform, Stage: "stamp", Err: err}
	}
	return nil
}

// fetchSources downloads the frozen vendor-OS base snapshot and the pinned
// compiler-construction sources, unpacking the snapshot as the sysroot.
func (ct *crossToolchain) fetchSources(exec *Executor) error {
	base, err := fetchComponent(ct.baseURL, ct.baseVersion)
	if err != nil {
		return err
	}
	if err := verifyPinnedDigest(base, ct.basePin); err != nil {
		return err
	}
	binutils, err := fetchComponent(ct.binutilsURL, ct.binutilsVersion)
	if err != nil {
		return err
	}
	if err := verifyPinnedDigest(binutils, ct.binutilsPin); err != nil {
		return err
	}
	gcc, err := fetchComponent(ct.gccURL, ct.gccVersion)
	if err != nil {
		return err
	}
	if err := verifyPinnedDigest(gcc, ct.gccPin); err != nil {
		return err
	}

	if err := os.MkdirAll(ct.sysroot(), 0o755); err != nil {
		return err
	}
	if err := extractArchive(base, ct.sysroot()); err != nil {
		return fmt.Errorf("unpack vendor base: %w", err)
	}

	srcDir := filepath.Join(crossDir, ct.platform, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return err
	}
	if err := extractArchive(binutils, srcDir); err != nil {
		return fmt.Errorf("unpack binutils: %w", err)
	}
	if err := extractArchive(gcc, srcDir); err != nil {
		return fmt.Errorf("unpack gcc: %w", err)
	}
	return nil
}

// buildBinutils configures and installs the cross binary utilities targeted
// at the triple.
func (ct *crossToolchain) buildBinutils(exec *Executor) error {
	srcDir := filepath.Join(crossDir, ct.platform, "src", "binutils-"+ct.binutilsVersion)
	buildDir := filepath.Join(crossDir, ct.platform, "build-binutils")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}

	steps := []Invocation{
		{
			Tool: filepath.Join(srcDir, "configure"),
			Args: []string{
				"--target=" + ct.triple,
				"--prefix=" + ct.prefixDir(),
				"--with-sysroot=" + ct.sysroot(),
				"--disable-nls",
				"--disable-werror",
			},
			Dir: buildDir,
		},
		{Tool: "make", Args: []string{"-j", strconv.Itoa(maxJobs)}, Dir: buildDir},
		{Tool: "make", Args: []string{"install"}, Dir: buildDir},
	}
	return runSteps(exec, steps)
}

// buildGCC builds the cross C/C++ compiler against the vendor sysroot using
// the binutils from the previous stage. Non-essential languages and runtime
// features are disabled to keep the bootstrap cheap.
func (ct *crossToolchain) buildGCC(exec *Executor) error {
	srcDir := filepath.Join(crossDir, ct.platform, "src", "gcc-"+ct.gccVersion)
	buildDir := filepath.Join(crossDir, ct.platform, "build-gcc")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}

	env := map[string]string{
		"PATH": filepath.Join(ct.prefixDir(), "bin") + string(os.PathListSeparator) + os.Getenv("PATH"),
	}
	steps := []Invocation{
		{
			Tool: filepath.Join(srcDir, "configure"),
			Args: []string{
				"--target=" + ct.triple,
				"--prefix=" + ct.prefixDir(),
				"--with-sysroot=" + ct.sysroot(),
				"--enable-languages=c,c++",
				"--disable-multilib",
				"--disable-nls",
				"--disable-libsanitizer",
				"--disable-bootstrap",
			},
			Dir: buildDir,
			Env: env,
		},
		{Tool: "make", Args: []string{"-j", strconv.Itoa(maxJobs)}, Dir: buildDir, Env: env},
		{Tool: "make", Args: []string{"install"}, Dir: buildDir, Env: env},
	}
	return runSteps(exec, steps)
}

func runSteps(exec *Executor, steps []Invocation) error {
	for _, inv := range steps {
		if out, err := exec.Run(inv); err != nil {
			return fmt.Errorf("%s: %w\n%s", inv, err, outputTail(out, 30))
		}
	}
	return nil
}
