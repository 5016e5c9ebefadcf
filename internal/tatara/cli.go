package tatara

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: tatara <command> [arguments]")
	colSuccess.Println("Run 'tatara <command> -h' for command options")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"build, b", "[-toolchain t] [-platform p] [-features f] <unit>", "Build a unit's binary (signed package on signing platforms)"},
		{"check, c", "[-toolchain t]", "Run audit, policy, format, and the full lint matrix"},
		{"matrix, m", "<unit>", "Print the unit's feature verification matrix"},
		{"package, p", "[-toolchain t] <unit>", "Build and sign the unit for every signing platform"},
		{"toolchain, t", "<name>", "Resolve a toolchain (stable, nightly, msrv)"},
		{"report, r", "[-toolchain t] [-text]", "Browse the last check report"},
		{"upload, u", "[file...]", "Publish built artifacts to the remote shelf"},
		{"gen-cert", "[-force] [-cert path] [-key path]", "Generate development signing material"},
		{"version, --version", "", "Version information"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usage string
		if c.Args != "" {
			usage = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usage = fmt.Sprintf("  %s", c.Cmd)
		}
		padding := columnWidth - len(usage)
		colSuccess.Print(usage)
		for i := 0; i < padding; i++ {
			fmt.Print(" ")
		}
		fmt.Println(c.Desc)
	}
}

// Run is the CLI entry point, invoked from main with a signal-aware context.
func Run(ctx context.Context, args []string) error {
	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initConfig(cfg)
	if v := cfg.Values["TATARA_MSRV"]; v != "" {
		msrvVersion = v
	}
	if err := ensureCacheLayout(); err != nil {
		return fmt.Errorf("cache layout: %w", err)
	}

	BuildExec = NewExecutor(ctx)
	BuildExec.ApplyIdlePriority = cfg.Values["TATARA_IDLE_PRIORITY"] == "1"
	ToolExec = NewExecutor(ctx)
	ToolExec.Quiet = true

	reg := NewRegistry(cfg)
	graph := NewGraph(BuildExec, reg)

	if len(args) == 0 {
		printHelp()
		return nil
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "build", "b":
		return cmdBuild(graph, reg, rest)
	case "check", "c":
		return cmdCheck(graph, reg, rest)
	case "matrix", "m":
		return cmdMatrix(rest)
	case "package", "p":
		return cmdPackage(graph, reg, rest)
	case "toolchain", "t":
		return cmdToolchain(reg, rest)
	case "report", "r":
		return cmdReport(rest)
	case "upload", "u":
		return cmdUpload(cfg, rest)
	case "gen-cert":
		return cmdGenCert(rest)
	case "version", "--version", "-v":
		fmt.Printf("tatara %s (built %s)\n", version, buildDate)
		return nil
	case "help", "-h", "--help":
		printHelp()
		return nil
	default:
		printHelp()
		return &ConfigurationError{Msg: fmt.Sprintf("unknown command %q", cmd)}
	}
}

func cmdBuild(graph *Graph, reg *Registry, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	toolchain := fs.String("toolchain", ToolchainStable, "toolchain name")
	platformName := fs.String("platform", "", "target platform (default native)")
	features := fs.String("features", FeatureSetDefault, "feature-set name from the unit's matrix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &ConfigurationError{Msg: "build: exactly one unit name required"}
	}
	unitName := fs.Arg(0)

	tc, err := ResolveToolchain(ToolExec, reg, *toolchain)
	if err != nil {
		return err
	}
	platform, err := reg.Platform(*platformName)
	if err != nil {
		return err
	}
	unit, err := findUnit(ToolExec, workspaceDir, unitName)
	if err != nil {
		return err
	}
	if !unit.Packageable() {
		return &ConfigurationError{Msg: fmt.Sprintf("unit %q declares no entry-point binary", unitName)}
	}
	set, ok := featureSetByName(unit.Flags, *features)
	if !ok {
		return &ConfigurationError{Msg: fmt.Sprintf("feature set %q is not in the matrix of unit %q", *features, unitName)}
	}

	// Signing material is validated up front so a missing key fails before
	// any compile work is spent.
	if platform.Signed {
		if err := checkSigningMaterial(); err != nil {
			return err
		}
	}

	res, err := graph.Build(tc, unit, set, platform, BuildOptions{WithDeps: true})
	if err != nil {
		return err
	}

	deliverable := res.Artifact.Binary
	if platform.Signed {
		if deliverable, err = PackageArtifact(BuildExec, res.Artifact, unit, platform); err != nil {
			return err
		}
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Built %s (%s, %s, %s): %s\n", unit.Name, tc.Name, set.Name, platform.Name, deliverable)
	return nil
}

func cmdCheck(graph *Graph, reg *Registry, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	toolchain := fs.String("toolchain", ToolchainStable, "toolchain name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tc, err := ResolveToolchain(ToolExec, reg, *toolchain)
	if err != nil {
		return err
	}
	units, err := loadUnits(ToolExec, workspaceDir)
	if err != nil {
		return err
	}

	report, err := RunChecks(graph, BuildExec, tc, units)
	if err != nil {
		return err
	}
	printReport(report)
	if report.Failed() {
		return fmt.Errorf("checks failed for toolchain %s", tc.Name)
	}
	return nil
}

func cmdMatrix(args []string) error {
	if len(args) != 1 {
		return &ConfigurationError{Msg: "matrix: exactly one unit name required"}
	}
	unit, err := findUnit(ToolExec, workspaceDir, args[0])
	if err != nil {
		return err
	}
	for _, set := range ExpandMatrix(unit.Flags) {
		if set.Default() {
			fmt.Printf("%s\t(built-in defaults)\n", set.Name)
		} else {
			fmt.Printf("%s\t%v\n", set.Name, set.Flags)
		}
	}
	return nil
}

func cmdPackage(graph *Graph, reg *Registry, args []string) error {
	fs := flag.NewFlagSet("package", flag.ContinueOnError)
	toolchain := fs.String("toolchain", ToolchainStable, "toolchain name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &ConfigurationError{Msg: "package: exactly one unit name required"}
	}

	tc, err := ResolveToolchain(ToolExec, reg, *toolchain)
	if err != nil {
		return err
	}
	unit, err := findUnit(ToolExec, workspaceDir, fs.Arg(0))
	if err != nil {
		return err
	}
	if !unit.Packageable() {
		return &ConfigurationError{Msg: fmt.Sprintf("unit %q declares no entry-point binary", unit.Name)}
	}

	// Signing material is validated up front so a missing key fails before
	// any compile work is spent.
	if err := checkSigningMaterial(); err != nil {
		return err
	}

	var failures int
	for _, platform := range reg.foreign {
		if !platform.Signed {
			continue
		}
		res, err := graph.Build(tc, unit, FeatureSet{Name: FeatureSetDefault}, platform, BuildOptions{WithDeps: true})
		if err != nil {
			colError.Printf("package %s for %s: %v\n", unit.Name, platform.Name, err)
			failures++
			continue
		}
		pkg, err := PackageArtifact(BuildExec, res.Artifact, unit, platform)
		if err != nil {
			colError.Printf("package %s for %s: %v\n", unit.Name, platform.Name, err)
			failures++
			continue
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Signed package for %s: %s\n", platform.Name, pkg)
	}
	if failures > 0 {
		return fmt.Errorf("packaging failed for %d platform(s)", failures)
	}
	return nil
}

func cmdToolchain(reg *Registry, args []string) error {
	if len(args) != 1 {
		return &ConfigurationError{Msg: "toolchain: exactly one name required"}
	}
	tc, err := ResolveToolchain(ToolExec, reg, args[0])
	if err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Toolchain %s resolved (channel %s, targets %v)\n", tc.Name, tc.Channel, tc.Triples)
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	toolchain := fs.String("toolchain", ToolchainStable, "toolchain name")
	text := fs.Bool("text", false, "print as plain text instead of the interactive view")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := loadReport(*toolchain)
	if err != nil {
		return fmt.Errorf("no persisted report for toolchain %s (run 'tatara check' first): %w", *toolchain, err)
	}
	if *text {
		printReport(report)
		return nil
	}
	return showReportTUI(report)
}

func cmdUpload(cfg *Config, args []string) error {
	paths := args
	if len(paths) == 0 {
		entries, err := os.ReadDir(outputDir)
		if err != nil {
			return fmt.Errorf("no artifacts to upload: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				paths = append(paths, filepath.Join(outputDir, e.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return &ConfigurationError{Msg: "upload: nothing to publish"}
	}
	return uploadArtifacts(cfg, paths)
}

func cmdGenCert(args []string) error {
	fs := flag.NewFlagSet("gen-cert", flag.ContinueOnError)
	force := fs.Bool("force", false, "replace existing material")
	cert := fs.String("cert", "tatara-dev.crt", "certificate output path")
	key := fs.String("key", "tatara-dev.key", "private key output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return generateSigningMaterial(*cert, *key, *force)
}
