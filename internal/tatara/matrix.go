package tatara

import (
	"sort"
	"strings"
)

// Reserved feature-set names. No declared flag may collide with either;
// loadUnits rejects such metadata outright.
const (
	FeatureSetDefault = "default"
	FeatureSetEmpty   = "__empty"

	featureSeparator = "+"
)

// FeatureSet is a named selection of optional capability flags for one build
// or check invocation. A nil Flags slice is the reserved default
// configuration: the unit's built-in defaults apply and no explicit flag
// arguments are passed. A non-nil (possibly empty) slice disables the
// built-in defaults and enables exactly the named flags.
type FeatureSet struct {
	Name  string
	Flags []string
}

// Default reports whether the set is the reserved default configuration.
func (fs FeatureSet) Default() bool { return fs.Flags == nil }

// Arguments renders the compiler feature arguments for the set.
func (fs FeatureSet) Arguments() []string {
	if fs.Default() {
		return nil
	}
	args := []string{"--no-default-features"}
	if len(fs.Flags) > 0 {
		args = append(args, "--features", strings.Join(fs.Flags, ","))
	}
	return args
}

// featureSetName derives the deterministic name for an explicit flag subset.
func featureSetName(flags []string) string {
	if len(flags) == 0 {
		return FeatureSetEmpty
	}
	return strings.Join(flags, featureSeparator)
}

// ExpandMatrix produces the exhaustive verification matrix for a unit's
// declared optional flags: the reserved default set first, then every subset
// of the non-default flags (the empty subset included). The declared "default"
// flag, if present, is not a real capability and is stripped before
// expansion. Output is deterministic regardless of input order: subsets are
// emitted in ascending size, lexicographic within a size.
func ExpandMatrix(declared []string) []FeatureSet {
	seen := make(map[string]bool, len(declared))
	flags := make([]string, 0, len(declared))
	for _, f := range declared {
		if f == FeatureSetDefault || seen[f] {
			continue
		}
		seen[f] = true
		flags = append(flags, f)
	}
	sort.Strings(flags)

	subsets := subsetsOf(flags)
	sort.Slice(subsets, func(i, j int) bool {
		if len(subsets[i]) != len(subsets[j]) {
			return len(subsets[i]) < len(subsets[j])
		}
		return strings.Join(subsets[i], featureSeparator) < strings.Join(subsets[j], featureSeparator)
	})

	matrix := make([]FeatureSet, 0, len(subsets)+1)
	matrix = append(matrix, FeatureSet{Name: FeatureSetDefault})
	for _, sub := range subsets {
		matrix = append(matrix, FeatureSet{Name: featureSetName(sub), Flags: sub})
	}
	return matrix
}

// subsetsOf generates the power set of an ordered flag list. Iterative so the
// output depends only on the input order, never on map iteration.
func subsetsOf(flags []string) [][]string {
	subsets := [][]string{{}}
	for _, f := range flags {
		for _, base := range subsets[:len(subsets):len(subsets)] {
			next := make([]string, 0, len(base)+1)
			next = append(next, base...)
			next = append(next, f)
			subsets = append(subsets, next)
		}
	}
	return subsets
}

// featureSetByName finds one cell of a unit's matrix by its derived name.
func featureSetByName(declared []string, name string) (FeatureSet, bool) {
	for _, fs := range ExpandMatrix(declared) {
		if fs.Name == name {
			return fs, true
		}
	}
	return FeatureSet{}, false
}
