package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SuiteResult aggregates the results of several scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Path     string    `json:"path"`
	Scenario *Scenario `json:"-"`
	Name     string    `json:"name"`
	Result   *Result   `json:"result,omitempty"`
	Err      string    `json:"error,omitempty"` // Load or execution failure
}

// Pass reports whether the scenario loaded, ran and matched.
func (r ScenarioResult) Pass() bool {
	return r.Err == "" && r.Result != nil && r.Result.Pass
}

// DiscoverScenarios returns the scenario files under dir in sorted order.
// A non-empty filter is a glob matched against the file name without its
// extension.
func DiscoverScenarios(dir, filter string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scenarios in %s: %w", dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario path. Up to parallel scenarios run
// at once (values below 1 mean 1). Results keep the order of paths.
//
// A scenario that fails to load or execute is recorded in its
// ScenarioResult; RunSuite itself only fails when ctx is cancelled.
func RunSuite(ctx context.Context, paths []string, parallel int, opts ...RunOption) (*SuiteResult, error) {
	if parallel < 1 {
		parallel = 1
	}

	results := make([]ScenarioResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	var mu sync.Mutex
	suite := &SuiteResult{}

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sr := runScenarioFile(path, opts...)
			results[i] = sr

			mu.Lock()
			if sr.Pass() {
				suite.Passed++
			} else {
				suite.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	suite.Scenarios = results
	return suite, nil
}

func runScenarioFile(path string, opts ...RunOption) ScenarioResult {
	sr := ScenarioResult{Path: path}
	scenario, err := LoadScenario(path)
	if err != nil {
		sr.Err = err.Error()
		return sr
	}
	sr.Scenario = scenario
	sr.Name = scenario.Name

	result, err := Run(scenario, opts...)
	if err != nil {
		sr.Err = err.Error()
		return sr
	}
	sr.Result = result
	return sr
}
