// Package module wires the add-on into the host: which hooks it listens
// to, under which settings, and which collaborator each one forwards to.
package module

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/logging"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/settings"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/sheet"
)

// Minimum method wrapping library version.
const (
	minWrapperMajor = 1
	minWrapperMinor = 4
	minWrapperPatch = 0

	minWrapperVersion = "v1.4.0.0"
)

// Message keys.
const (
	msgWrapperMinVersion = hooks.ModuleShort + ".messages.error.libWrapperMinVersion"
	msgInitialising      = hooks.ModuleShort + ".messages.initialising"
	msgLoaded            = hooks.ModuleShort + ".messages.loaded"
)

type Module struct {
	deps Deps
	log  *log.Logger

	mu        sync.RWMutex
	combined  dnd.Lookup
	installed bool
	steps     []StepResult
}

func New(deps Deps) *Module {
	if deps.Trace == nil {
		deps.Trace = events.Discard
	}

	l := deps.Log
	if l == nil {
		l = log.Default()
	}

	return &Module{deps: deps, log: l.WithPrefix(logging.Prefix)}
}

// Register subscribes the add-on to the host lifecycle.
func (m *Module) Register(h Hooks) error {
	if _, err := h.Once(hooks.Init, hooks.HandlerFunc(func(hooks.Args) error {
		return m.initialise(h)
	})); err != nil {
		return fmt.Errorf("register init hook: %w", err)
	}

	if _, err := h.On(hooks.Ready, hooks.HandlerFunc(func(hooks.Args) error {
		h.Call(hooks.Loaded)
		return nil
	})); err != nil {
		return fmt.Errorf("register ready hook: %w", err)
	}

	if _, err := h.On(hooks.Loaded, hooks.HandlerFunc(func(hooks.Args) error {
		return m.loaded(h)
	})); err != nil {
		return fmt.Errorf("register loaded hook: %w", err)
	}

	return nil
}

func (m *Module) initialise(h Hooks) error {
	d := m.deps

	steps := []Step{
		{Name: "announce", Run: func() error {
			d.Logger.Log(d.Localizer.Localize(msgInitialising, map[string]string{"title": logging.Title}))
			return nil
		}},
		{Name: "libwrapper-version", Run: m.checkWrapper},
		{Name: "register-settings", Run: d.Settings.Register},
		{Name: "patch-actors", Run: d.Patcher.PatchActors},
		{Name: "patch-items", Run: d.Patcher.PatchItems},
		{Name: "patch-item-sheets", Run: d.Patcher.PatchItemSheets},
	}

	results, err := runPipeline(steps, m.log, d.Trace)

	m.mu.Lock()
	m.steps = results
	m.mu.Unlock()

	if err == nil {
		return nil
	}

	// Reported once the UI is up.
	_, subErr := h.Once(hooks.Ready, hooks.HandlerFunc(func(hooks.Args) error {
		d.Logger.LogError(d.Localizer.Localize(msgWrapperMinVersion, map[string]string{"version": minWrapperVersion}))
		return nil
	}))

	return subErr
}

func (m *Module) checkWrapper() error {
	w := m.deps.Wrapper
	if w.IsFallback() || w.VersionAtLeast(minWrapperMajor, minWrapperMinor, minWrapperPatch) {
		return nil
	}
	return fmt.Errorf("%w: libWrapper %s required", ErrPrerequisiteUnmet, minWrapperVersion)
}

func (m *Module) loaded(h Hooks) error {
	d := m.deps

	d.Logger.Log(d.Localizer.Localize(msgLoaded, map[string]string{"title": logging.Title}))

	combined := dnd.NewLookup(dnd.MergeTaxonomies(d.System.DamageTypes, d.System.HealingTypes))

	m.mu.Lock()
	m.combined = combined
	install := !m.installed
	m.installed = true
	m.mu.Unlock()

	if !install {
		return nil
	}

	if d.Settings.Bool(settings.OverlayButtonsEnabled) {
		if err := m.registerChatHooks(h); err != nil {
			return err
		}
	}

	if d.Settings.Bool(settings.QuickItemEnabled) {
		if err := m.registerSheetHooks(h); err != nil {
			return err
		}
		if err := m.registerItemHooks(h); err != nil {
			return err
		}
	}

	return nil
}

// CombinedDamageTypes returns damage and healing types in one table. It is
// empty until the add-on has loaded.
func (m *Module) CombinedDamageTypes() dnd.Lookup {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.combined
}

// InitSteps returns the outcome of each init step of the last run.
func (m *Module) InitSteps() []StepResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StepResult, len(m.steps))
	copy(out, m.steps)
	return out
}

func (m *Module) registerItemHooks(h Hooks) error {
	d := m.deps

	if _, err := h.On(hooks.CreateItem, hooks.HandlerFunc(func(args hooks.Args) error {
		item, err := itemArg(args, 0)
		if err != nil {
			return err
		}
		_, err = d.Items.EnsureDefaultFlags(item)
		return err
	})); err != nil {
		return fmt.Errorf("register item hooks: %w", err)
	}

	if _, err := h.On(hooks.UseItem, hooks.HandlerFunc(func(args hooks.Args) error {
		item, err := itemArg(args, 0)
		if err != nil {
			return err
		}
		config, err := optionsArg(args, 1)
		if err != nil {
			return err
		}
		options, err := optionsArg(args, 2)
		if err != nil {
			return err
		}

		if options.Ignored() {
			return nil
		}

		_, err = d.Rolls.ComputeRoll(item, dnd.Merge(config, options))
		return err
	})); err != nil {
		return fmt.Errorf("register item hooks: %w", err)
	}

	return nil
}

// registerChatHooks is where chat card overlays will attach. None are
// needed yet.
func (m *Module) registerChatHooks(Hooks) error {
	return nil
}

func (m *Module) registerSheetHooks(h Hooks) error {
	d := m.deps

	_, err := h.On(hooks.RenderItemSheet, hooks.HandlerFunc(func(args hooks.Args) error {
		app, ok := args.At(0).(*sheet.App)
		if !ok || app == nil {
			return fmt.Errorf("%w: %s expects a sheet, got %T", hooks.ErrInvalidArgument, hooks.RenderItemSheet, args.At(0))
		}
		root, ok := args.At(1).(*html.Node)
		if !ok || root == nil {
			return fmt.Errorf("%w: %s expects markup, got %T", hooks.ErrInvalidArgument, hooks.RenderItemSheet, args.At(1))
		}

		if err := d.Sheets.NormalizeHeight(app); err != nil {
			return err
		}
		return d.Sheets.InjectContent(app, root)
	}))
	if err != nil {
		return fmt.Errorf("register sheet hooks: %w", err)
	}

	return nil
}

func itemArg(args hooks.Args, i int) (*dnd.Item, error) {
	item, ok := args.At(i).(*dnd.Item)
	if !ok || item == nil {
		return nil, fmt.Errorf("%w: argument %d is not an item (%T)", hooks.ErrInvalidArgument, i, args.At(i))
	}
	return item, nil
}

func optionsArg(args hooks.Args, i int) (dnd.Options, error) {
	switch v := args.At(i).(type) {
	case nil:
		return nil, nil
	case dnd.Options:
		return v, nil
	case map[string]any:
		return dnd.Options(v), nil
	default:
		return nil, fmt.Errorf("%w: argument %d is not an options map (%T)", hooks.ErrInvalidArgument, i, v)
	}
}
