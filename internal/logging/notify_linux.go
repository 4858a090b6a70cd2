//go:build linux

package logging

import (
	"context"
	"fmt"
	"os/exec"
)

type linuxNotifier struct {
	bin string
}

func newNotifier() Notifier {
	path, err := exec.LookPath("notify-send")
	if err != nil || path == "" {
		return stderrNotifier{}
	}

	return linuxNotifier{bin: path}
}

func (n linuxNotifier) Notify(title, message string) error {
	cmd := exec.CommandContext(context.Background(), n.bin, "--urgency=critical", title, message)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}

	return nil
}
