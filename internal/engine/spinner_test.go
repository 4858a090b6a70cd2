package engine

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"go.uber.org/goleak"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
)

func TestSpinnerStartEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	r := newSpinnerRenderer(&buf)

	r.Handle(events.Event{Type: events.ScenarioStart, Scenario: "quick-roll"})
	time.Sleep(3 * spinner.Pulse.FPS)
	r.Handle(events.Event{
		Type:     events.ScenarioEnd,
		Scenario: "quick-roll",
		Fields:   map[string]any{"ok": true, "duration_ms": int64(12), "failures": int32(0)},
	})

	out := buf.String()
	if !strings.Contains(out, "\rscenario quick-roll "+spinner.Pulse.Frames[0]) {
		t.Fatalf("expected a spinner frame, got %q", out)
	}
	if !strings.HasSuffix(out, "\rscenario quick-roll ok (12ms)\n") {
		t.Fatalf("expected summary line last, got %q", out)
	}
}

func TestSpinnerReportsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	r := newSpinnerRenderer(&buf)

	r.Handle(events.Event{Type: events.ScenarioStart, Scenario: "handlers"})
	r.Handle(events.Event{
		Type:     events.ScenarioEnd,
		Scenario: "handlers",
		Fields:   map[string]any{"ok": false, "duration_ms": int64(3), "failures": int32(2)},
	})

	if !strings.Contains(buf.String(), "scenario handlers failed, 2 handler failures (3ms)") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestSpinnerIgnoresUnknownAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	r := newSpinnerRenderer(&buf)

	r.Handle(events.Event{Type: events.ScenarioEnd, Scenario: "never-started"})
	r.Handle(events.Event{Type: events.ScenarioStart, Scenario: "a"})
	r.Handle(events.Event{Type: events.ScenarioStart, Scenario: "a"})
	r.Stop()

	if strings.Contains(buf.String(), "never-started") || strings.Contains(buf.String(), "\n") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
