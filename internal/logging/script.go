package logging

import (
	"fmt"
	"strings"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
)

// maxNotificationLen keeps toasts to what the notification center shows.
const maxNotificationLen = 240

var appleScriptEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	"\t", " ",
)

// notificationScript builds the AppleScript that posts an add-on error
// toast. Multi-line log messages are folded onto one line.
func notificationScript(title, message string) string {
	message = strings.TrimSpace(message)
	if r := []rune(message); len(r) > maxNotificationLen {
		message = string(r[:maxNotificationLen-1]) + "…"
	}

	return fmt.Sprintf(`display notification "%s" with title "%s" subtitle "%s"`,
		appleScriptEscaper.Replace(message),
		appleScriptEscaper.Replace(title),
		hooks.ModuleShort,
	)
}
