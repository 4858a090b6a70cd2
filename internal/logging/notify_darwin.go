//go:build darwin

package logging

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// osascript can hang when the notification center is unavailable.
const osascriptTimeout = 5 * time.Second

type osascriptNotifier struct {
	bin string
}

func newNotifier() Notifier {
	path, err := exec.LookPath("osascript")
	if err != nil {
		return stderrNotifier{}
	}

	return osascriptNotifier{bin: path}
}

func (n osascriptNotifier) Notify(title, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), osascriptTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, n.bin, "-e", notificationScript(title, message))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript notify: %w: %s", err, out)
	}

	return nil
}
