//go:build !darwin && !linux

package logging

func newNotifier() Notifier {
	return stderrNotifier{}
}
