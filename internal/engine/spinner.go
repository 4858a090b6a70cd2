package engine

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
)

// spinnerRenderer animates one line per running scenario.
type spinnerRenderer struct {
	mu      sync.Mutex
	running map[string]*spinState

	outMu sync.Mutex
	out   io.Writer
}

type spinState struct {
	label   string
	frames  []string
	fps     time.Duration
	index   int
	stopped chan struct{}
	done    chan struct{}
}

func newSpinnerRenderer(out io.Writer) *spinnerRenderer {
	return &spinnerRenderer{
		running: make(map[string]*spinState),
		out:     out,
	}
}

func (r *spinnerRenderer) Handle(e events.Event) {
	switch e.Type {
	case events.ScenarioStart:
		r.handleStart(e)
	case events.ScenarioEnd:
		r.handleEnd(e)
	}
}

func (r *spinnerRenderer) handleStart(e events.Event) {
	if e.Scenario == "" {
		return
	}

	r.mu.Lock()

	if _, ok := r.running[e.Scenario]; ok {
		r.mu.Unlock()
		return
	}

	spin := spinner.Pulse
	state := &spinState{
		label:   "scenario " + e.Scenario,
		frames:  spin.Frames,
		fps:     spin.FPS,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.running[e.Scenario] = state
	r.mu.Unlock()

	go r.run(state)
}

func (r *spinnerRenderer) handleEnd(e events.Event) {
	r.mu.Lock()

	state, ok := r.running[e.Scenario]
	if ok {
		delete(r.running, e.Scenario)
		close(state.stopped)
	}

	r.mu.Unlock()

	if !ok {
		return
	}

	// no frame may land after the summary line
	<-state.done

	status := "ok"
	if passed, _ := e.Fields["ok"].(bool); !passed {
		status = "failed"
	}
	if failures, _ := e.Fields["failures"].(int32); failures > 0 {
		status = fmt.Sprintf("%s, %d handler failures", status, failures)
	}

	r.printf("\r%s %s (%vms)\n", state.label, status, e.Fields["duration_ms"])
}

// Stop ends every running animation without a summary line.
func (r *spinnerRenderer) Stop() {
	r.mu.Lock()
	states := make([]*spinState, 0, len(r.running))
	for name, state := range r.running {
		delete(r.running, name)
		close(state.stopped)
		states = append(states, state)
	}
	r.mu.Unlock()

	for _, state := range states {
		<-state.done
	}
}

func (r *spinnerRenderer) run(state *spinState) {
	defer close(state.done)

	ticker := time.NewTicker(state.fps)
	defer ticker.Stop()

	for {
		select {
		case <-state.stopped:
			return
		case <-ticker.C:
			frame := state.frames[state.index%len(state.frames)]
			state.index++
			r.printf("\r%s %s", state.label, frame)
		}
	}
}

func (r *spinnerRenderer) printf(format string, args ...any) {
	if r.out == nil {
		return
	}

	r.outMu.Lock()
	defer r.outMu.Unlock()

	fmt.Fprintf(r.out, format, args...)
}
