package module

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
)

// ErrPrerequisiteUnmet stops the init pipeline. It ends initialisation for
// this run only; the host keeps going.
var ErrPrerequisiteUnmet = errors.New("module: configuration prerequisite unmet")

// Step is one named unit of initialisation.
type Step struct {
	Name string
	Run  func() error
}

type StepResult struct {
	Name    string
	Err     error
	Skipped bool
}

// runPipeline runs steps in order. A step failing with ErrPrerequisiteUnmet
// skips every later step and is returned; other failures are logged and
// the pipeline moves on.
func runPipeline(steps []Step, l *log.Logger, trace events.Emitter) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))

	for i, s := range steps {
		trace.Emit(events.Event{
			Type:   events.StepStart,
			Time:   time.Now(),
			Fields: map[string]any{"step": s.Name},
		})

		err := s.Run()
		results = append(results, StepResult{Name: s.Name, Err: err})

		trace.Emit(events.Event{
			Type:   events.StepEnd,
			Time:   time.Now(),
			Fields: map[string]any{"step": s.Name, "ok": err == nil},
		})

		if err == nil {
			continue
		}

		if errors.Is(err, ErrPrerequisiteUnmet) {
			for _, rest := range steps[i+1:] {
				results = append(results, StepResult{Name: rest.Name, Skipped: true})
			}
			return results, err
		}

		l.Warn("init step failed", "step", s.Name, "err", err)
	}

	return results, nil
}
