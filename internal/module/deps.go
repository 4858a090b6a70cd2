package module

import (
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/roll"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/sheet"
)

// Hooks is the part of the hook registry the add-on needs.
type Hooks interface {
	On(ch hooks.Channel, h hooks.Handler) (hooks.Handle, error)
	Once(ch hooks.Channel, h hooks.Handler) (hooks.Handle, error)
	Call(ch hooks.Channel, args ...any)
}

type Settings interface {
	Register() error
	Bool(name string) bool
}

// Versioner reports on the installed method wrapping library.
type Versioner interface {
	IsFallback() bool
	VersionAtLeast(major, minor, patch int) bool
}

type Logger interface {
	Log(msg string)
	LogError(msg string)
}

type Localizer interface {
	Localize(key string, data map[string]string) string
}

type ItemFlagger interface {
	EnsureDefaultFlags(item *dnd.Item) (bool, error)
}

type Roller interface {
	ComputeRoll(item *dnd.Item, opts dnd.Options) (*roll.ItemRoll, error)
}

type SheetRenderer interface {
	NormalizeHeight(app *sheet.App) error
	InjectContent(app *sheet.App, root *html.Node) error
}

type Patcher interface {
	PatchActors() error
	PatchItems() error
	PatchItemSheets() error
}

// Deps are the collaborators the add-on forwards to. Log and Trace are
// optional.
type Deps struct {
	Settings  Settings
	Wrapper   Versioner
	Logger    Logger
	Localizer Localizer
	Items     ItemFlagger
	Rolls     Roller
	Sheets    SheetRenderer
	Patcher   Patcher
	System    dnd.SystemConfig

	Log   *log.Logger
	Trace events.Emitter
}
