package logging

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
)

func TestNotificationScriptEscapes(t *testing.T) {
	got := notificationScript(Title, "bad \"formula\" in C:\\dice\nline two")

	want := `display notification "bad \"formula\" in C:\\dice line two" with title "` +
		Title + `" subtitle "` + hooks.ModuleShort + `"`
	if got != want {
		t.Fatalf("script mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestNotificationScriptTruncates(t *testing.T) {
	got := notificationScript("t", strings.Repeat("é", maxNotificationLen*2))

	start := strings.Index(got, `"`) + 1
	end := strings.Index(got[start:], `"`) + start
	msg := got[start:end]

	if n := utf8.RuneCountInString(msg); n != maxNotificationLen {
		t.Fatalf("expected %d runes, got %d", maxNotificationLen, n)
	}
	if !strings.HasSuffix(msg, "…") {
		t.Fatalf("expected ellipsis, got %q", msg[len(msg)-8:])
	}
}
