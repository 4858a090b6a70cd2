// Package logging is the add-on's log sink. Errors are also surfaced to the
// user through a Notifier, the way the host shows error toasts.
package logging

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
)

// Title is the add-on's display name.
const Title = "Ready Set Roll for D&D5e"

// Prefix tags every line the add-on logs.
const Prefix = "RSR5E"

type Sink struct {
	log      *log.Logger
	notifier Notifier
}

// New returns a sink writing through base with the add-on prefix. A nil
// notifier disables notifications.
func New(base *log.Logger, n Notifier) *Sink {
	if base == nil {
		base = log.Default()
	}
	return &Sink{log: base.WithPrefix(Prefix), notifier: n}
}

func (s *Sink) Log(msg string) {
	s.log.Info(msg)
}

func (s *Sink) LogError(msg string) {
	s.log.Error(msg)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(Title, msg); err != nil {
		s.log.Warn("notification failed", "err", err)
	}
}

// Logger exposes the prefixed logger for structured calls.
func (s *Sink) Logger() *log.Logger { return s.log }

type stderrNotifier struct{}

func (stderrNotifier) Notify(title, message string) error {
	_, err := fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", hooks.ModuleShort, title, message)
	return err
}
