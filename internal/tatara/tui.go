package tatara

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// showReportTUI renders a persisted check report as an interactive tree:
// toolchain, check kind, unit, feature set. Selecting a leaf shows its
// captured output; q quits.
func showReportTUI(report *CheckReport) error {
	app := tview.NewApplication()

	root := tview.NewTreeNode(fmt.Sprintf("toolchain %s", report.Toolchain)).
		SetColor(tcell.ColorYellow)

	detail := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	detail.SetBorder(true).SetTitle(" output ")

	addLeaf := func(parent *tview.TreeNode, label string, status CheckStatus) {
		node := tview.NewTreeNode(statusLabel(label, status.Passed))
		node.SetReference(status.Report)
		parent.AddChild(node)
	}

	addLeaf(root, "audit", report.Audit)
	addLeaf(root, "policy", report.Policy)
	addLeaf(root, "format", report.Format)

	lintNode := tview.NewTreeNode("lint").SetColor(tcell.ColorTeal)
	root.AddChild(lintNode)

	unitNames := make([]string, 0, len(report.Lint))
	for name := range report.Lint {
		unitNames = append(unitNames, name)
	}
	sort.Strings(unitNames)
	for _, name := range unitNames {
		cells := report.Lint[name]
		unitPassed := true
		for _, cell := range cells {
			if !cell.Passed {
				unitPassed = false
			}
		}
		unitNode := tview.NewTreeNode(statusLabel(name, unitPassed)).
			SetExpanded(!unitPassed)

		fsNames := make([]string, 0, len(cells))
		for fs := range cells {
			fsNames = append(fsNames, fs)
		}
		sort.Strings(fsNames)
		for _, fs := range fsNames {
			addLeaf(unitNode, fs, cells[fs])
		}
		lintNode.AddChild(unitNode)
	}

	tree := tview.NewTreeView().
		SetRoot(root).
		SetCurrentNode(root)
	tree.SetBorder(true).SetTitle(" check report ")

	tree.SetSelectedFunc(func(node *tview.TreeNode) {
		if ref, ok := node.GetReference().(string); ok {
			if ref == "" {
				ref = "(no output)"
			}
			detail.SetText(tview.Escape(ref))
			detail.ScrollToBeginning()
			return
		}
		node.SetExpanded(!node.IsExpanded())
	})

	flex := tview.NewFlex().
		AddItem(tree, 0, 1, true).
		AddItem(detail, 0, 2, false)

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Rune() == 'q' || ev.Key() == tcell.KeyEscape {
			app.Stop()
			return nil
		}
		return ev
	})

	return app.SetRoot(flex, true).Run()
}

func statusLabel(label string, passed bool) string {
	if passed {
		return fmt.Sprintf("[green]✓[-] %s", label)
	}
	return fmt.Sprintf("[red]✗[-] %s", label)
}
