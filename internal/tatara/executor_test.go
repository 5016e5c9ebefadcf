package tatara

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root", "RUSTFLAGS=-C lto"}
	merged := mergeEnv(base, map[string]string{
		"RUSTFLAGS":        "-C lto --cfg x",
		"CARGO_TARGET_DIR": "/t",
	})

	assert.Contains(t, merged, "PATH=/usr/bin")
	assert.Contains(t, merged, "RUSTFLAGS=-C lto --cfg x")
	assert.Contains(t, merged, "CARGO_TARGET_DIR=/t")
	assert.NotContains(t, merged, "RUSTFLAGS=-C lto")
}

func TestMergeEnv_NoOverlay(t *testing.T) {
	base := []string{"PATH=/usr/bin"}
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestOutputTail(t *testing.T) {
	assert.Equal(t, "c\nd", outputTail("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a\nb", outputTail("a\nb", 5))
}
