package events

import "time"

type Type string

// Trace event types:
const (
	HookCall      Type = "hook_call"
	HandlerFailed Type = "handler_failed"
	StepStart     Type = "step_start"
	StepEnd       Type = "step_end"
	ScenarioStart Type = "scenario_start"
	ScenarioEnd   Type = "scenario_end"
	Message       Type = "message"
)

// Event is a diagnostic record. It never carries hook arguments, only
// what is useful to log.
type Event struct {
	Type     Type
	Time     time.Time
	Scenario string
	Fields   map[string]any
}

type Handler func(Event)

type Emitter interface {
	Emit(e Event)
	Subscribe(h Handler) (unsubscribe func())
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}

func (discard) Subscribe(Handler) func() { return func() {} }
