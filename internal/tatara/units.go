package tatara

import (
	"encoding/json"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// BuildUnit is one compilable package of the workspace: a name, an optional
// entry-point binary, a human-readable description, and the declared optional
// capability flags. The unit's domain logic is opaque to the orchestrator.
type BuildUnit struct {
	Name        string
	Bin         string // empty for library-only units
	Description string
	Flags       []string // non-default capability flags, sorted
}

// Packageable reports whether the unit produces a deployable binary.
func (u BuildUnit) Packageable() bool { return u.Bin != "" }

// metadataCache memoizes parsed workspace metadata keyed by workspace dir.
// Bounded and discardable; the workspace manifest stays the source of truth.
var metadataCache, _ = lru.New[string, []BuildUnit](8)

// cargoMetadata mirrors the subset of `cargo metadata --no-deps` output the
// orchestrator consumes.
type cargoMetadata struct {
	Packages []struct {
		Name        string              `json:"name"`
		Description string              `json:"description"`
		Features    map[string][]string `json:"features"`
		Targets     []struct {
			Kind []string `json:"kind"`
			Name string   `json:"name"`
		} `json:"targets"`
	} `json:"packages"`
}

// metadataQuery invokes the toolchain's metadata command; swapped in tests.
var metadataQuery = func(exec *Executor, dir string) (string, error) {
	return exec.Run(Invocation{
		Tool: "cargo",
		Args: []string{"metadata", "--no-deps", "--format-version", "1"},
		Dir:  dir,
	})
}

// loadUnits discovers the workspace's build units. Duplicate unit names and
// flags colliding with a reserved feature-set token are fatal metadata
// errors, reported immediately.
func loadUnits(exec *Executor, dir string) ([]BuildUnit, error) {
	if units, ok := metadataCache.Get(dir); ok {
		return units, nil
	}

	out, err := metadataQuery(exec, dir)
	if err != nil {
		return nil, fmt.Errorf("workspace metadata query failed: %w", err)
	}

	var meta cargoMetadata
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		return nil, fmt.Errorf("cannot parse workspace metadata: %w", err)
	}

	seen := make(map[string]bool, len(meta.Packages))
	units := make([]BuildUnit, 0, len(meta.Packages))
	for _, pkg := range meta.Packages {
		if seen[pkg.Name] {
			return nil, &DuplicateMetadataError{Unit: pkg.Name}
		}
		seen[pkg.Name] = true

		unit := BuildUnit{Name: pkg.Name, Description: pkg.Description}
		for _, tgt := range pkg.Targets {
			for _, kind := range tgt.Kind {
				if kind == "bin" {
					unit.Bin = tgt.Name
				}
			}
		}
		for feature := range pkg.Features {
			if feature == FeatureSetDefault {
				// The built-in default marker, not a capability flag.
				continue
			}
			if feature == FeatureSetEmpty {
				return nil, &ConfigurationError{Msg: fmt.Sprintf(
					"unit %q declares flag %q, which collides with a reserved feature-set name", pkg.Name, feature)}
			}
			unit.Flags = append(unit.Flags, feature)
		}
		sort.Strings(unit.Flags)
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })

	metadataCache.Add(dir, units)
	return units, nil
}

// findUnit resolves one declared unit by name.
func findUnit(exec *Executor, dir, name string) (BuildUnit, error) {
	units, err := loadUnits(exec, dir)
	if err != nil {
		return BuildUnit{}, err
	}
	for _, u := range units {
		if u.Name == name {
			return u, nil
		}
	}
	return BuildUnit{}, &MetadataNotFoundError{Unit: name}
}
