package tatara

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Platform is one build target. The native platform is an identity
// transform: no environment overrides, packaging returns the binary
// unchanged. A foreign platform injects a target triple, a linker from its
// self-built cross toolchain, and a platform-identifying compile-time cfg,
// and may require signed packaging of the result.
type Platform struct {
	Name   string
	Triple string // empty for the native platform
	Signed bool   // deliverable must be a signed vendor package

	// Vendor/deployment conventions used by the packaging pipeline.
	Arch        string // architecture token in the package manifest
	ABI         string // ABI token in the package manifest
	InstallPath string // vendor-defined installation directory for binaries
	Copyright   string

	cross *crossToolchain // nil for native
}

// Native reports whether the platform is the identity target.
func (p Platform) Native() bool { return p.Triple == "" }

// Registry is the fixed platform enumeration, constructed once at startup
// and passed by reference; there is exactly one native platform and zero or
// more foreign ones.
type Registry struct {
	native  Platform
	foreign []Platform
}

// NewRegistry builds the platform registry: the native identity platform and
// the junos foreign target (FreeBSD-based, no native toolchain support, so a
// purpose-built binutils+GCC stack is assembled on first use).
func NewRegistry(cfg *Config) *Registry {
	junos := Platform{
		Name:        "junos",
		Triple:      "x86_64-unknown-freebsd",
		Signed:      true,
		Arch:        "x86",
		ABI:         "64",
		InstallPath: "/var/db/scripts/jet",
		Copyright:   "Copyright (c) the bgpfu developers",
		cross:       newCrossToolchain(cfg, "junos", "x86_64-unknown-freebsd"),
	}
	return &Registry{
		native:  Platform{Name: "native"},
		foreign: []Platform{junos},
	}
}

// Native returns the identity platform.
func (r *Registry) Native() Platform { return r.native }

// Platform resolves a registered platform by name.
func (r *Registry) Platform(name string) (Platform, error) {
	if name == "" || name == r.native.Name {
		return r.native, nil
	}
	for _, p := range r.foreign {
		if p.Name == name {
			return p, nil
		}
	}
	names := []string{r.native.Name}
	for _, p := range r.foreign {
		names = append(names, p.Name)
	}
	return Platform{}, fmt.Errorf("%w: %q (expected one of %s)", errUnknownPlatform, name, strings.Join(names, ", "))
}

// ForeignTriples lists the target triples every resolved toolchain must be
// able to cross-compile to.
func (r *Registry) ForeignTriples() []string {
	triples := make([]string, 0, len(r.foreign))
	for _, p := range r.foreign {
		triples = append(triples, p.Triple)
	}
	return triples
}

// Ensure bootstraps the platform's cross toolchain when one is declared. A
// bootstrap failure is fatal for this platform only; it never blocks native
// or sibling foreign platforms.
func (p *Platform) Ensure(exec *Executor) error {
	if p.cross == nil {
		return nil
	}
	return p.cross.build(exec)
}

// ApplyTo merges the platform's environment overrides into a build request.
// A no-op for the native platform.
func (p Platform) ApplyTo(env map[string]string) map[string]string {
	if p.Native() {
		return env
	}
	if env == nil {
		env = make(map[string]string)
	}
	env["CARGO_BUILD_TARGET"] = p.Triple
	if p.cross != nil {
		linker := p.cross.linkerPath()
		env[linkerEnvVar(p.Triple)] = linker
	}
	flags := env["RUSTFLAGS"]
	cfg := fmt.Sprintf(`--cfg tatara_platform="%s"`, p.Name)
	if flags == "" {
		env["RUSTFLAGS"] = cfg
	} else {
		env["RUSTFLAGS"] = flags + " " + cfg
	}
	return env
}

// linkerEnvVar derives the per-target linker override variable for a triple.
func linkerEnvVar(triple string) string {
	return "CARGO_TARGET_" + strings.ToUpper(strings.ReplaceAll(triple, "-", "_")) + "_LINKER"
}

// binaryPath locates the built entry-point binary inside an extracted or
// freshly built target directory for this platform.
func (p Platform) binaryPath(targetDir, bin string) string {
	if p.Native() {
		return filepath.Join(targetDir, "release", bin)
	}
	return filepath.Join(targetDir, p.Triple, "release", bin)
}
