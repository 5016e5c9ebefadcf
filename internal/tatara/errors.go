package tatara

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for misconfiguration. These are never retried.
var (
	errUnknownToolchain = errors.New("unknown toolchain")
	errUnknownPlatform  = errors.New("unknown platform")
)

// UnknownToolchainError reports a toolchain name outside the fixed enumeration.
type UnknownToolchainError struct {
	Name string
}

func (e *UnknownToolchainError) Error() string {
	return fmt.Sprintf("unknown toolchain %q (expected one of %s)", e.Name, strings.Join(toolchainNames(), ", "))
}

func (e *UnknownToolchainError) Unwrap() error { return errUnknownToolchain }

// MetadataNotFoundError reports a requested build unit that the workspace
// metadata does not declare.
type MetadataNotFoundError struct {
	Unit string
}

func (e *MetadataNotFoundError) Error() string {
	return fmt.Sprintf("build unit %q not found in workspace metadata", e.Unit)
}

// DuplicateMetadataError reports two declared units sharing a name. This is a
// fatal misconfiguration of the source tree, never silently resolved.
type DuplicateMetadataError struct {
	Unit string
}

func (e *DuplicateMetadataError) Error() string {
	return fmt.Sprintf("duplicate build unit %q in workspace metadata", e.Unit)
}

// BuildFailureError carries the captured diagnostics of a failed compiler or
// linter invocation together with the cache-key context that produced it.
type BuildFailureError struct {
	Toolchain  string
	Unit       string
	FeatureSet string
	Platform   string
	Output     string
	Err        error
}

func (e *BuildFailureError) Error() string {
	ctx := fmt.Sprintf("%s/%s/%s", e.Toolchain, e.Unit, e.FeatureSet)
	if e.Platform != "" {
		ctx += "/" + e.Platform
	}
	return fmt.Sprintf("build failed for %s: %v", ctx, e.Err)
}

func (e *BuildFailureError) Unwrap() error { return e.Err }

// CrossToolchainBuildError isolates a failed foreign-platform bootstrap to
// that platform; native builds and other foreign platforms are unaffected.
type CrossToolchainBuildError struct {
	Platform string
	Stage    string
	Err      error
}

func (e *CrossToolchainBuildError) Error() string {
	return fmt.Sprintf("cross toolchain build for platform %q failed at stage %q: %v", e.Platform, e.Stage, e.Err)
}

func (e *CrossToolchainBuildError) Unwrap() error { return e.Err }

// FetchError reports a failed network retrieval of a pinned component after
// retries were exhausted.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch of %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SigningMaterialMissingError is raised when the certificate or private key
// required for signed packaging is absent or unreadable. Packaging fails
// closed: no unsigned artifact is ever emitted as a substitute.
type SigningMaterialMissingError struct {
	Path string
	Err  error
}

func (e *SigningMaterialMissingError) Error() string {
	return fmt.Sprintf("signing material missing or unreadable at %s: %v", e.Path, e.Err)
}

func (e *SigningMaterialMissingError) Unwrap() error { return e.Err }

// ConfigurationError covers caller-supplied configuration that cannot be
// acted on (bad paths, missing credentials for the remote shelf, reserved
// feature names).
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }
