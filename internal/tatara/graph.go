package tatara

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Graph executes toolchain+unit+feature-set build requests against the
// dependency-artifact cache. Independent cache keys never contend; concurrent
// requesters of the same key share a single in-flight dependency build.
type Graph struct {
	exec   *Executor
	reg    *Registry
	flight singleflight.Group
}

func NewGraph(exec *Executor, reg *Registry) *Graph {
	return &Graph{exec: exec, reg: reg}
}

// DepsArtifact is the cached result of compiling a unit's dependency closure
// only. Entries are immutable once written and content-addressed by their
// cache key; they may be discarded and rebuilt at any time.
type DepsArtifact struct {
	Key  string
	Path string
}

// Artifact is the output of one full build graph execution.
type Artifact struct {
	Toolchain  string
	Unit       string
	FeatureSet string
	Platform   string
	Binary     string // path to the built entry-point binary
}

// BuildOptions select the build mode for one graph execution.
type BuildOptions struct {
	WithDeps bool // resolve/populate the dependency artifact first
	Lint     bool // run the linter (warnings are failures) instead of compiling a binary
}

// BuildResult is either a binary artifact or a captured lint report.
type BuildResult struct {
	Artifact *Artifact
	Report   string
}

// depsCacheKey derives the composite cache key for a dependency-only build.
// Any change to toolchain, unit, or feature set yields a different key.
func depsCacheKey(tc Toolchain, unit BuildUnit, fs FeatureSet) string {
	raw := strings.Join([]string{tc.Name, unit.Name, fs.Name}, "\x1f")
	return fmt.Sprintf("%s-%s-%s-%s", tc.Name, unit.Name, sanitizeKeyPart(fs.Name), hashString(raw)[:16])
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// compileDeps builds only the unit's dependency closure into targetDir.
// Swapped in tests.
var compileDeps = func(exec *Executor, tc Toolchain, unit BuildUnit, fs FeatureSet, targetDir string) (string, error) {
	recipe := filepath.Join(targetDir, "recipe.json")
	if out, err := exec.Run(Invocation{
		Tool: "cargo",
		Args: tc.cargoArgs("chef", "prepare", "--recipe-path", recipe),
		Dir:  workspaceDir,
	}); err != nil {
		return out, err
	}
	args := tc.cargoArgs("chef", "cook", "--release", "--recipe-path", recipe, "-p", unit.Name)
	args = append(args, fs.Arguments()...)
	return exec.Run(Invocation{
		Tool: "cargo",
		Args: args,
		Dir:  workspaceDir,
		Env:  map[string]string{"CARGO_TARGET_DIR": targetDir},
	})
}

// compileUnit compiles (or lints) the unit's own source against targetDir.
// Swapped in tests.
var compileUnit = func(exec *Executor, tc Toolchain, unit BuildUnit, fs FeatureSet, platform Platform, targetDir string, lint bool) (string, error) {
	var args []string
	if lint {
		args = tc.cargoArgs("clippy", "-p", unit.Name, "--all-targets")
		args = append(args, fs.Arguments()...)
		args = append(args, "--", "-D", "warnings")
	} else {
		args = tc.cargoArgs("build", "--release", "--locked", "-p", unit.Name)
		args = append(args, fs.Arguments()...)
	}
	env := map[string]string{"CARGO_TARGET_DIR": targetDir}
	env = platform.ApplyTo(env)
	return exec.Run(Invocation{Tool: "cargo", Args: args, Dir: workspaceDir, Env: env})
}

// BuildDeps resolves the dependency artifact for (toolchain, unit, feature
// set), building and caching it on a miss. A cache hit never re-invokes the
// compiler. Concurrent callers for the same key wait on a single in-flight
// build and share its result.
func (g *Graph) BuildDeps(tc Toolchain, unit BuildUnit, fs FeatureSet) (DepsArtifact, error) {
	key := depsCacheKey(tc, unit, fs)
	dest := filepath.Join(depsDir, key+".tar.zst")

	v, err, _ := g.flight.Do(key, func() (interface{}, error) {
		if _, err := os.Stat(dest); err == nil {
			debugf("deps cache hit: %s\n", key)
			return DepsArtifact{Key: key, Path: dest}, nil
		}

		colArrow.Print("-> ")
		colSuccess.Printf("Building dependency artifact %s\n", key)

		targetDir, err := os.MkdirTemp(tmpDir, "tatara-deps-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(targetDir)

		out, err := compileDeps(g.exec, tc, unit, fs, targetDir)
		if err != nil {
			return nil, &BuildFailureError{
				Toolchain: tc.Name, Unit: unit.Name, FeatureSet: fs.Name,
				Output: out, Err: err,
			}
		}

		if err := packArchive(targetDir, dest); err != nil {
			return nil, fmt.Errorf("store deps artifact %s: %w", key, err)
		}
		return DepsArtifact{Key: key, Path: dest}, nil
	})
	if err != nil {
		return DepsArtifact{}, err
	}
	return v.(DepsArtifact), nil
}

// Build executes one cell of the graph: with WithDeps the matching
// dependency artifact is resolved (or produced) first and the unit's own
// source is compiled against it; without, the unit is compiled from scratch.
// Lint mode returns the captured report instead of a binary.
func (g *Graph) Build(tc Toolchain, unit BuildUnit, fs FeatureSet, platform Platform, opts BuildOptions) (BuildResult, error) {
	if err := platform.Ensure(g.exec); err != nil {
		return BuildResult{}, err
	}

	targetDir, err := os.MkdirTemp(tmpDir, "tatara-build-")
	if err != nil {
		return BuildResult{}, err
	}
	defer os.RemoveAll(targetDir)

	if opts.WithDeps {
		deps, err := g.BuildDeps(tc, unit, fs)
		if err != nil {
			return BuildResult{}, err
		}
		if err := extractArchive(deps.Path, targetDir); err != nil {
			return BuildResult{}, fmt.Errorf("extract deps artifact %s: %w", deps.Key, err)
		}
	}

	out, err := compileUnit(g.exec, tc, unit, fs, platform, targetDir, opts.Lint)
	if err != nil {
		return BuildResult{}, &BuildFailureError{
			Toolchain: tc.Name, Unit: unit.Name, FeatureSet: fs.Name, Platform: platform.Name,
			Output: out, Err: err,
		}
	}

	if opts.Lint {
		return BuildResult{Report: out}, nil
	}

	built := platform.binaryPath(targetDir, unit.Bin)
	if _, err := os.Stat(built); err != nil {
		return BuildResult{}, fmt.Errorf("built binary missing at %s: %w", built, err)
	}

	// The target dir is temporary; move the deliverable out before cleanup.
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return BuildResult{}, err
	}
	final := filepath.Join(outputDir, fmt.Sprintf("%s-%s-%s-%s", unit.Bin, tc.Name, sanitizeKeyPart(fs.Name), platform.Name))
	if err := copyFile(built, final); err != nil {
		return BuildResult{}, err
	}

	return BuildResult{Artifact: &Artifact{
		Toolchain:  tc.Name,
		Unit:       unit.Name,
		FeatureSet: fs.Name,
		Platform:   platform.Name,
		Binary:     final,
	}}, nil
}
