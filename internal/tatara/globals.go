package tatara

import (
	"github.com/gookit/color"
)

// Global variables
var (
	cacheDir     string
	depsDir      string
	toolchainDir string
	crossDir     string
	downloadDir  string
	outputDir    string
	reportDir    string
	workspaceDir string
	tmpDir       string

	certPath string
	keyPath  string

	signerTool  string
	signAskPass bool
	maxJobs     int

	WantDebug string
	Debug     bool

	ConfigFile = "tatara.conf"

	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time

	// Global executors (assigned in Run)
	BuildExec *Executor
	ToolExec  *Executor
)

// color helpers
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colFail    = color.HEX("#E53935")
)

func debugf(format string, args ...interface{}) {
	if Debug {
		colInfo.Printf(format, args...)
	}
}
