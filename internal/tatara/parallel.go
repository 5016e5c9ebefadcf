package tatara

import (
	"sync"
	"time"
)

// lintCell is one (unit, feature set) coordinate of the verification matrix.
type lintCell struct {
	unit BuildUnit
	fs   FeatureSet
}

type lintResult struct {
	unit       string
	featureSet string
	status     CheckStatus
}

// matrixRunner dispatches independent matrix cells to a bounded worker pool.
// Cells are pure functions of their cache key, so no ordering is required
// between them; a failed cell never cancels its siblings.
type matrixRunner struct {
	MaxJobs int

	// Builder is injectable for tests.
	Builder func(cell lintCell) (BuildResult, error)

	mu      sync.Mutex
	results []lintResult
}

func runLintMatrix(graph *Graph, tc Toolchain, cells []lintCell, jobs int) []lintResult {
	runner := &matrixRunner{
		MaxJobs: jobs,
		Builder: func(cell lintCell) (BuildResult, error) {
			return graph.Build(tc, cell.unit, cell.fs, graph.reg.Native(), BuildOptions{WithDeps: true, Lint: true})
		},
	}
	return runner.Run(cells)
}

// Run executes every cell and returns one result per cell, in no particular
// order.
func (m *matrixRunner) Run(cells []lintCell) []lintResult {
	jobs := m.MaxJobs
	if jobs < 1 {
		jobs = 1
	}
	if jobs > len(cells) {
		jobs = len(cells)
	}

	work := make(chan lintCell, len(cells))
	var wg sync.WaitGroup

	for w := 0; w < jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cell := range work {
				start := time.Now()
				res, err := m.Builder(cell)
				status := lintStatus(res, err)

				m.mu.Lock()
				m.results = append(m.results, lintResult{
					unit:       cell.unit.Name,
					featureSet: cell.fs.Name,
					status:     status,
				})
				m.mu.Unlock()

				colArrow.Print("-> ")
				if status.Passed {
					colSuccess.Printf("lint %s [%s] ok (%s)\n", cell.unit.Name, cell.fs.Name, time.Since(start).Round(time.Millisecond))
				} else {
					colFail.Printf("lint %s [%s] FAILED\n", cell.unit.Name, cell.fs.Name)
				}
			}
		}()
	}

	for _, cell := range cells {
		work <- cell
	}
	close(work)
	wg.Wait()

	return m.results
}
