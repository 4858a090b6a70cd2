package engine

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

type ScenarioName string

type Runner interface {
	Run(name ScenarioName) error
}

// ScenarioError is one scenario's failure.
type ScenarioError struct {
	Scenario ScenarioName
	Err      error
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario %s: %v", e.Scenario, e.Err)
}

func (e *ScenarioError) Unwrap() error { return e.Err }

// RunError reports every scenario that failed in the stopping batch and
// every scenario that never ran because of it.
type RunError struct {
	Failed  []*ScenarioError
	Skipped []ScenarioName
}

func (e *RunError) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		msgs = append(msgs, f.Error())
	}

	out := strings.Join(msgs, "; ")
	if len(e.Skipped) > 0 {
		out += fmt.Sprintf(" (skipped %s)", joinNames(e.Skipped))
	}

	return out
}

func (e *RunError) Unwrap() []error {
	out := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f
	}
	return out
}

// CycleError names the scenarios whose dependencies can never be met.
type CycleError struct {
	Scenarios []ScenarioName
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + joinNames(e.Scenarios)
}

// RunGraphParallel runs every scenario in deps once all of its
// dependencies have passed. Scenarios whose dependencies are met run as a
// batch on at most maxWorkers workers. A batch with failures stops the run
// with a *RunError; unreachable scenarios give a *CycleError.
func RunGraphParallel(r Runner, deps map[ScenarioName][]ScenarioName, maxWorkers int) error {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	pending := map[ScenarioName]int{}
	dependents := map[ScenarioName][]ScenarioName{}

	for s, ds := range deps {
		pending[s] = len(ds)
		for _, d := range ds {
			if _, ok := pending[d]; !ok {
				pending[d] = 0
			}
			dependents[d] = append(dependents[d], s)
		}
	}

	var ready []ScenarioName
	for s, n := range pending {
		if n == 0 {
			ready = append(ready, s)
		}
	}

	done := map[ScenarioName]bool{}

	for len(ready) > 0 {
		slices.Sort(ready)
		batch := ready
		ready = nil

		if failed := runBatch(r, batch, maxWorkers); len(failed) > 0 {
			for _, s := range batch {
				done[s] = true
			}
			return &RunError{Failed: failed, Skipped: remaining(pending, done)}
		}

		for _, s := range batch {
			done[s] = true
			for _, dep := range dependents[s] {
				pending[dep]--
				if pending[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		}
	}

	if stuck := remaining(pending, done); len(stuck) > 0 {
		return &CycleError{Scenarios: stuck}
	}

	return nil
}

// runBatch runs batch on a fixed pool of workers and returns the failures
// sorted by scenario name.
func runBatch(r Runner, batch []ScenarioName, maxWorkers int) []*ScenarioError {
	if len(batch) == 0 {
		return nil
	}

	jobs := make(chan ScenarioName)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []*ScenarioError
	)

	for range min(maxWorkers, len(batch)) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for name := range jobs {
				if err := r.Run(name); err != nil {
					mu.Lock()
					failed = append(failed, &ScenarioError{Scenario: name, Err: err})
					mu.Unlock()
				}
			}
		}()
	}

	for _, s := range batch {
		jobs <- s
	}
	close(jobs)

	wg.Wait()

	slices.SortFunc(failed, func(a, b *ScenarioError) int {
		return strings.Compare(string(a.Scenario), string(b.Scenario))
	})

	return failed
}

func remaining(pending map[ScenarioName]int, done map[ScenarioName]bool) []ScenarioName {
	var out []ScenarioName
	for s := range pending {
		if !done[s] {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

func joinNames(names []ScenarioName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
