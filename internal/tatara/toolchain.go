package tatara

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// The fixed toolchain enumeration. A toolchain bundles the compiler, linker
// and analysis tools of one release channel, extended with the standard
// library of every registered foreign target so any platform can be
// cross-compiled without re-resolving.
const (
	ToolchainStable  = "stable"
	ToolchainNightly = "nightly"
	ToolchainMSRV    = "msrv"
)

// msrvVersion pins the minimum supported compiler; overridable via config.
var msrvVersion = "1.76.0"

// Toolchain is immutable once resolved; keyed by name.
type Toolchain struct {
	Name    string   // enumeration name
	Channel string   // concrete channel/version handed to the toolchain manager
	Triples []string // foreign target triples whose stdlib components are installed
}

func toolchainNames() []string {
	return []string{ToolchainStable, ToolchainNightly, ToolchainMSRV}
}

// resolvedToolchains memoizes resolution per process; the on-disk stamp makes
// repeat resolution across processes a cache hit too.
var resolvedToolchains, _ = lru.New[string, Toolchain](8)

// toolchainInstall runs the underlying toolchain manager; swapped in tests.
var toolchainInstall = func(exec *Executor, channel string, triples []string) error {
	if _, err := exec.Run(Invocation{
		Tool: "rustup",
		Args: []string{"toolchain", "install", channel, "--profile", "minimal",
			"--component", "clippy", "--component", "rustfmt"},
	}); err != nil {
		return err
	}
	for _, triple := range triples {
		if _, err := exec.Run(Invocation{
			Tool: "rustup",
			Args: []string{"target", "add", "--toolchain", channel, triple},
		}); err != nil {
			return fmt.Errorf("target %s: %w", triple, err)
		}
	}
	return nil
}

// ResolveToolchain maps a name from the fixed enumeration to a ready
// toolchain, installing the channel plus the stdlib component of every
// registered foreign platform. The installation is idempotent and
// content-addressed by the toolchain manager itself; a stamp file under the
// toolchain cache dir skips even the manager invocation on repeat runs.
func ResolveToolchain(exec *Executor, reg *Registry, name string) (Toolchain, error) {
	if tc, ok := resolvedToolchains.Get(name); ok {
		return tc, nil
	}

	var channel string
	switch name {
	case ToolchainStable, ToolchainNightly:
		channel = name
	case ToolchainMSRV:
		channel = msrvVersion
	default:
		return Toolchain{}, &UnknownToolchainError{Name: name}
	}

	tc := Toolchain{Name: name, Channel: channel, Triples: reg.ForeignTriples()}

	stamp := filepath.Join(toolchainDir, fmt.Sprintf("%s-%s.stamp", name, strings.Join(tc.Triples, "_")))
	if _, err := os.Stat(stamp); err == nil {
		resolvedToolchains.Add(name, tc)
		return tc, nil
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Resolving toolchain %s (%s)\n", name, channel)
	if err := toolchainInstall(exec, channel, tc.Triples); err != nil {
		return Toolchain{}, fmt.Errorf("toolchain %s: %w", name, err)
	}

	if err := os.MkdirAll(toolchainDir, 0o755); err == nil {
		_ = os.WriteFile(stamp, []byte(channel+"\n"), 0o644)
	}

	resolvedToolchains.Add(name, tc)
	return tc, nil
}

// cargoArgs prefixes a cargo subcommand with the resolved channel.
func (tc Toolchain) cargoArgs(sub string, rest ...string) []string {
	args := []string{"+" + tc.Channel, sub}
	return append(args, rest...)
}
