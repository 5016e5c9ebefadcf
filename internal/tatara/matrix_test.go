package tatara

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrixNames(sets []FeatureSet) []string {
	names := make([]string, len(sets))
	for i, fs := range sets {
		names[i] = fs.Name
	}
	return names
}

func TestExpandMatrix_Cardinality(t *testing.T) {
	tests := []struct {
		name     string
		declared []string
		want     int
	}{
		{"no flags", nil, 2},
		{"one flag", []string{"a"}, 3},
		{"two flags", []string{"x", "y"}, 5},
		{"three flags", []string{"a", "b", "c"}, 9},
		{"default flag stripped", []string{"default", "x", "y"}, 5},
		{"duplicates collapsed", []string{"x", "x", "y"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandMatrix(tt.declared)
			assert.Len(t, got, tt.want)
			assert.Equal(t, FeatureSetDefault, got[0].Name)
			assert.True(t, got[0].Default())
		})
	}
}

func TestExpandMatrix_AlphaEndToEnd(t *testing.T) {
	got := ExpandMatrix([]string{"x", "y"})
	assert.Equal(t, []string{"default", "__empty", "x", "y", "x+y"}, matrixNames(got))
}

func TestExpandMatrix_Deterministic(t *testing.T) {
	a := ExpandMatrix([]string{"tls", "vendored", "jet"})
	b := ExpandMatrix([]string{"jet", "tls", "vendored"})
	require.Equal(t, matrixNames(a), matrixNames(b))
	for i := range a {
		assert.Equal(t, a[i].Flags, b[i].Flags)
	}
}

func TestExpandMatrix_UniqueNames(t *testing.T) {
	got := ExpandMatrix([]string{"a", "b", "c", "d"})
	seen := make(map[string]bool)
	for _, fs := range got {
		assert.False(t, seen[fs.Name], "duplicate feature-set name %q", fs.Name)
		seen[fs.Name] = true
	}
}

func TestExpandMatrix_EmptySetIsExplicit(t *testing.T) {
	got := ExpandMatrix([]string{"x"})
	require.Len(t, got, 3)

	empty := got[1]
	assert.Equal(t, FeatureSetEmpty, empty.Name)
	assert.False(t, empty.Default(), "the empty explicit set is not the default set")
	assert.NotNil(t, empty.Flags)
	assert.Empty(t, empty.Flags)
}

func TestFeatureSetArguments(t *testing.T) {
	assert.Nil(t, FeatureSet{Name: FeatureSetDefault}.Arguments())
	assert.Equal(t,
		[]string{"--no-default-features"},
		FeatureSet{Name: FeatureSetEmpty, Flags: []string{}}.Arguments())
	assert.Equal(t,
		[]string{"--no-default-features", "--features", "x,y"},
		FeatureSet{Name: "x+y", Flags: []string{"x", "y"}}.Arguments())
}

func TestFeatureSetByName(t *testing.T) {
	fs, ok := featureSetByName([]string{"x", "y"}, "x+y")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, fs.Flags)

	_, ok = featureSetByName([]string{"x", "y"}, "z")
	assert.False(t, ok)
}
