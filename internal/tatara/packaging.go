package tatara

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// checkSigningMaterial validates that the caller-supplied certificate and
// private key exist and are readable. Absence is a hard configuration error;
// packaging fails closed rather than emitting an unsigned artifact.
func checkSigningMaterial() error {
	for _, p := range []string{certPath, keyPath} {
		if p == "" {
			return &SigningMaterialMissingError{Path: "(unset)", Err: fmt.Errorf("signing material path not configured")}
		}
		f, err := os.Open(p)
		if err != nil {
			return &SigningMaterialMissingError{Path: p, Err: err}
		}
		f.Close()
	}
	return nil
}

// PackageArtifact turns a built binary into the platform's deliverable. For
// the native platform the binary itself is the deliverable. For a platform
// requiring signed packaging, the manifest is derived, the external signer is
// invoked with the certificate and key material, and its output directory
// becomes the artifact. The signer is never retried: repeated signing with
// stale key material is a security concern, not a transient fault.
func PackageArtifact(exec *Executor, artifact *Artifact, unit BuildUnit, platform Platform) (string, error) {
	if !platform.Signed {
		return artifact.Binary, nil
	}

	if err := checkSigningMaterial(); err != nil {
		return "", err
	}

	stagingDir, err := os.MkdirTemp(tmpDir, "tatara-pkg-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(stagingDir)

	manifest := deriveManifest(unit, platform, artifact.Binary)
	manifestData, err := manifest.Render()
	if err != nil {
		return "", err
	}
	manifestPath := filepath.Join(stagingDir, "manifest.xml")
	if err := os.WriteFile(manifestPath, manifestData, 0o644); err != nil {
		return "", err
	}

	pkgDir := filepath.Join(outputDir, fmt.Sprintf("%s-%s-signed", unit.Bin, platform.Name))
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return "", err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Signing %s package for %s\n", unit.Bin, platform.Name)

	var signerEnv map[string]string
	if signAskPass {
		pass, err := promptPassphrase()
		if err != nil {
			return "", err
		}
		signerEnv = map[string]string{"TATARA_SIGN_PASSPHRASE": pass}
	}

	out, err := runSigner(exec, Invocation{
		Tool: signerTool,
		Args: []string{
			"--manifest", manifestPath,
			"--cert", certPath,
			"--key", keyPath,
			"--output", pkgDir,
			artifact.Binary,
		},
		Env: signerEnv,
	})
	if err != nil {
		// Fail closed: no partial package left behind.
		_ = os.RemoveAll(pkgDir)
		return "", fmt.Errorf("signing %s for %s failed: %w\n%s", unit.Bin, platform.Name, err, outputTail(out, 20))
	}
	return pkgDir, nil
}

// runSigner invokes the external signing/packaging tool; swapped in tests.
var runSigner = func(exec *Executor, inv Invocation) (string, error) {
	return exec.Run(inv)
}

// promptPassphrase reads the signer key passphrase without echo. Requires an
// interactive terminal; batch callers must not set TATARA_SIGN_ASKPASS.
func promptPassphrase() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", &ConfigurationError{Msg: "signer passphrase prompt requested but stdin is not a terminal"}
	}
	colArrow.Print("-> ")
	colSuccess.Print("Signer key passphrase: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(pass), nil
}
