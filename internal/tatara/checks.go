package tatara

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// CheckStatus is the outcome of one verification cell.
type CheckStatus struct {
	Passed bool   `json:"passed"`
	Report string `json:"report,omitempty"`
}

// CheckReport is the hierarchical result of one `check` run: tree-wide
// checks once per toolchain, and the full lint matrix per build unit and
// feature set. Every cell is preserved so a caller can identify exactly
// which (unit, feature set) regressed.
type CheckReport struct {
	Toolchain string    `json:"toolchain"`
	Generated time.Time `json:"generated"`

	Audit  CheckStatus `json:"audit"`
	Policy CheckStatus `json:"policy"`
	Format CheckStatus `json:"format"`

	Lint map[string]map[string]CheckStatus `json:"lint"`
}

// Failed reports whether any cell of the report failed.
func (r *CheckReport) Failed() bool {
	if !r.Audit.Passed || !r.Policy.Passed || !r.Format.Passed {
		return true
	}
	for _, unit := range r.Lint {
		for _, cell := range unit {
			if !cell.Passed {
				return true
			}
		}
	}
	return false
}

// treeCheck runs one whole-tree check tool, folding a non-zero exit into a
// failed status instead of aborting the aggregation.
func treeCheck(exec *Executor, inv Invocation) CheckStatus {
	out, err := exec.Run(inv)
	if err != nil {
		return CheckStatus{Passed: false, Report: out}
	}
	return CheckStatus{Passed: true, Report: out}
}

// RunChecks runs every registered check under one toolchain: dependency
// audit, license/policy, and formatting once against the whole tree, and the
// lint matrix once per (unit, feature set) with warnings promoted to
// failures. Aggregation never short-circuits.
func RunChecks(graph *Graph, exec *Executor, tc Toolchain, units []BuildUnit) (*CheckReport, error) {
	report := &CheckReport{
		Toolchain: tc.Name,
		Generated: time.Now().UTC(),
		Lint:      make(map[string]map[string]CheckStatus, len(units)),
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Running tree checks for toolchain %s\n", tc.Name)

	report.Audit = treeCheck(exec, Invocation{Tool: "cargo", Args: []string{"audit"}, Dir: workspaceDir})
	report.Policy = treeCheck(exec, Invocation{Tool: "cargo", Args: []string{"deny", "check"}, Dir: workspaceDir})
	report.Format = treeCheck(exec, Invocation{
		Tool: "cargo", Args: tc.cargoArgs("fmt", "--all", "--", "--check"), Dir: workspaceDir,
	})

	var cells []lintCell
	for _, unit := range units {
		report.Lint[unit.Name] = make(map[string]CheckStatus)
		for _, fs := range ExpandMatrix(unit.Flags) {
			cells = append(cells, lintCell{unit: unit, fs: fs})
		}
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Linting %d matrix cells across %d units\n", len(cells), len(units))

	results := runLintMatrix(graph, tc, cells, maxJobs)
	for _, res := range results {
		report.Lint[res.unit][res.featureSet] = res.status
	}

	if err := persistReport(report); err != nil {
		colWarn.Printf("Warning: could not persist check report: %v\n", err)
	}
	return report, nil
}

// lintStatus converts one matrix build outcome into a cell status. A
// compiler/linter failure carries its captured diagnostics; any other error
// is recorded too, never propagated out of the matrix.
func lintStatus(res BuildResult, err error) CheckStatus {
	if err == nil {
		return CheckStatus{Passed: true, Report: res.Report}
	}
	var bf *BuildFailureError
	if errors.As(err, &bf) {
		return CheckStatus{Passed: false, Report: bf.Output}
	}
	return CheckStatus{Passed: false, Report: err.Error()}
}

func reportPath(toolchain string) string {
	return filepath.Join(reportDir, toolchain+".json")
}

func persistReport(report *CheckReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(reportPath(report.Toolchain), data, 0o644)
}

func loadReport(toolchain string) (*CheckReport, error) {
	data, err := os.ReadFile(reportPath(toolchain))
	if err != nil {
		return nil, err
	}
	var report CheckReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// printReport renders the hierarchical report as an indented tree.
func printReport(report *CheckReport) {
	fmt.Printf("toolchain %s (%s)\n", report.Toolchain, report.Generated.Format(time.RFC3339))
	printStatusLine(1, "audit", report.Audit.Passed)
	printStatusLine(1, "policy", report.Policy.Passed)
	printStatusLine(1, "format", report.Format.Passed)

	fmt.Println("  lint")
	unitNames := make([]string, 0, len(report.Lint))
	for name := range report.Lint {
		unitNames = append(unitNames, name)
	}
	sort.Strings(unitNames)
	for _, name := range unitNames {
		fmt.Printf("    %s\n", name)
		cells := report.Lint[name]
		fsNames := make([]string, 0, len(cells))
		for fs := range cells {
			fsNames = append(fsNames, fs)
		}
		sort.Strings(fsNames)
		for _, fs := range fsNames {
			printStatusLine(3, fs, cells[fs].Passed)
		}
	}
}

func printStatusLine(indent int, label string, passed bool) {
	for i := 0; i < indent; i++ {
		fmt.Print("  ")
	}
	if passed {
		fmt.Printf("%s %s\n", label, colSuccess.Sprint("pass"))
	} else {
		fmt.Printf("%s %s\n", label, colFail.Sprint("FAIL"))
	}
}
