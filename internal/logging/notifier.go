package logging

import "sync"

// Notifier shows a message to the person at the keyboard.
type Notifier interface {
	Notify(title, message string) error
}

var (
	notifyOnce sync.Once
	notifyInst Notifier
)

// DesktopNotifier returns the platform notifier, resolved once.
func DesktopNotifier() Notifier {
	notifyOnce.Do(func() {
		notifyInst = newNotifier()
	})

	return notifyInst
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(title, message string) error

func (f NotifierFunc) Notify(title, message string) error { return f(title, message) }
