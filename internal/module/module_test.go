package module

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/roll"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/settings"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/sheet"
)

type fakeSettings struct {
	registered int
	values     map[string]bool
}

func (s *fakeSettings) Register() error { s.registered++; return nil }

func (s *fakeSettings) Bool(name string) bool {
	if s.registered == 0 {
		return false
	}
	return s.values[name]
}

type fakeWrapper struct {
	fallback bool
	atLeast  bool
}

func (w fakeWrapper) IsFallback() bool { return w.fallback }

func (w fakeWrapper) VersionAtLeast(_, _, _ int) bool { return w.atLeast }

type fakeLogger struct {
	logs   []string
	errors []string
}

func (l *fakeLogger) Log(msg string)      { l.logs = append(l.logs, msg) }
func (l *fakeLogger) LogError(msg string) { l.errors = append(l.errors, msg) }

type fakeLocalizer struct{}

func (fakeLocalizer) Localize(key string, data map[string]string) string {
	if v, ok := data["version"]; ok {
		return key + " " + v
	}
	return key
}

type fakeItems struct{ calls []*dnd.Item }

func (f *fakeItems) EnsureDefaultFlags(item *dnd.Item) (bool, error) {
	f.calls = append(f.calls, item)
	return true, nil
}

type rollCall struct {
	item *dnd.Item
	opts dnd.Options
}

type fakeRoller struct {
	calls []rollCall
	err   error
}

func (f *fakeRoller) ComputeRoll(item *dnd.Item, opts dnd.Options) (*roll.ItemRoll, error) {
	f.calls = append(f.calls, rollCall{item: item, opts: opts})
	return &roll.ItemRoll{Item: item.Name}, f.err
}

type fakeSheets struct{ order []string }

func (f *fakeSheets) NormalizeHeight(*sheet.App) error {
	f.order = append(f.order, "height")
	return nil
}

func (f *fakeSheets) InjectContent(*sheet.App, *html.Node) error {
	f.order = append(f.order, "content")
	return nil
}

type fakePatcher struct {
	order []string
	err   error
}

func (p *fakePatcher) PatchActors() error {
	p.order = append(p.order, "actors")
	return p.err
}

func (p *fakePatcher) PatchItems() error {
	p.order = append(p.order, "items")
	return nil
}

func (p *fakePatcher) PatchItemSheets() error {
	p.order = append(p.order, "sheets")
	return nil
}

type fixture struct {
	reg      *hooks.Registry
	mod      *Module
	settings *fakeSettings
	logger   *fakeLogger
	items    *fakeItems
	rolls    *fakeRoller
	sheets   *fakeSheets
	patcher  *fakePatcher
}

func newFixture(t *testing.T, w fakeWrapper, values map[string]bool) *fixture {
	t.Helper()

	quiet := log.New(io.Discard)
	f := &fixture{
		reg:      hooks.New(hooks.WithLogger(quiet)),
		settings: &fakeSettings{values: values},
		logger:   &fakeLogger{},
		items:    &fakeItems{},
		rolls:    &fakeRoller{},
		sheets:   &fakeSheets{},
		patcher:  &fakePatcher{},
	}
	f.mod = New(Deps{
		Settings:  f.settings,
		Wrapper:   w,
		Logger:    f.logger,
		Localizer: fakeLocalizer{},
		Items:     f.items,
		Rolls:     f.rolls,
		Sheets:    f.sheets,
		Patcher:   f.patcher,
		System:    dnd.DefaultSystemConfig(),
		Log:       quiet,
	})
	if err := f.mod.Register(f.reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	return f
}

func (f *fixture) start() {
	f.reg.Call(hooks.Init)
	f.reg.Call(hooks.Ready)
}

var allEnabled = map[string]bool{
	settings.OverlayButtonsEnabled: true,
	settings.QuickItemEnabled:      true,
}

func TestInitPipelineOrder(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.start()

	if f.settings.registered != 1 {
		t.Fatalf("expected settings registered once, got %d", f.settings.registered)
	}
	want := []string{"actors", "items", "sheets"}
	if len(f.patcher.order) != 3 || f.patcher.order[0] != want[0] || f.patcher.order[2] != want[2] {
		t.Fatalf("unexpected patch order: %v", f.patcher.order)
	}
	if len(f.logger.errors) != 0 {
		t.Fatalf("unexpected error logs: %v", f.logger.errors)
	}
	if len(f.logger.logs) < 2 || f.logger.logs[0] != msgInitialising || f.logger.logs[1] != msgLoaded {
		t.Fatalf("unexpected logs: %v", f.logger.logs)
	}

	// init is one-shot
	f.reg.Call(hooks.Init)
	if f.settings.registered != 1 {
		t.Fatalf("init must run once, settings registered %d times", f.settings.registered)
	}
}

func TestWrapperTooOldAborts(t *testing.T) {
	f := newFixture(t, fakeWrapper{fallback: false, atLeast: false}, allEnabled)
	f.start()
	f.reg.Call(hooks.Ready)

	if len(f.logger.errors) != 1 {
		t.Fatalf("expected exactly one error log, got %v", f.logger.errors)
	}
	if f.logger.errors[0] != msgWrapperMinVersion+" v1.4.0.0" {
		t.Fatalf("unexpected error message: %q", f.logger.errors[0])
	}
	if f.settings.registered != 0 {
		t.Fatalf("settings must not be registered, got %d", f.settings.registered)
	}
	if len(f.patcher.order) != 0 {
		t.Fatalf("patches must not run, got %v", f.patcher.order)
	}

	steps := f.mod.InitSteps()
	if len(steps) != 6 || !errors.Is(steps[1].Err, ErrPrerequisiteUnmet) || !steps[2].Skipped || !steps[5].Skipped {
		t.Fatalf("unexpected step results: %+v", steps)
	}

	// unregistered settings read false, so no item hooks
	if n := f.reg.Subscribers(hooks.UseItem); n != 0 {
		t.Fatalf("expected no item hooks, got %d", n)
	}
}

func TestFallbackWrapperPasses(t *testing.T) {
	f := newFixture(t, fakeWrapper{fallback: true, atLeast: false}, allEnabled)
	f.start()

	if f.settings.registered != 1 || len(f.logger.errors) != 0 {
		t.Fatalf("fallback mode must pass the version check")
	}
}

func TestRecoverableStepContinues(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.patcher.err = errors.New("target missing")
	f.start()

	if len(f.patcher.order) != 3 {
		t.Fatalf("pipeline must continue past recoverable failure, got %v", f.patcher.order)
	}
	if len(f.logger.errors) != 0 {
		t.Fatalf("recoverable failures are not user facing, got %v", f.logger.errors)
	}
}

func TestLoadedInstallsGroupsBySetting(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, map[string]bool{
		settings.OverlayButtonsEnabled: true,
		settings.QuickItemEnabled:      false,
	})
	f.start()

	for _, ch := range []hooks.Channel{hooks.CreateItem, hooks.UseItem, hooks.RenderItemSheet} {
		if n := f.reg.Subscribers(ch); n != 0 {
			t.Fatalf("expected no subscribers on %s, got %d", ch, n)
		}
	}
}

func TestLoadedInstallsOnce(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.start()
	f.reg.Call(hooks.Ready)
	f.reg.Call(hooks.Loaded)

	for _, ch := range []hooks.Channel{hooks.CreateItem, hooks.UseItem, hooks.RenderItemSheet} {
		if n := f.reg.Subscribers(ch); n != 1 {
			t.Fatalf("expected 1 subscriber on %s, got %d", ch, n)
		}
	}
}

func TestCombinedDamageTypes(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)

	if f.mod.CombinedDamageTypes().Len() != 0 {
		t.Fatalf("expected empty table before load")
	}
	f.start()

	combined := f.mod.CombinedDamageTypes()
	sys := dnd.DefaultSystemConfig()
	if combined.Len() != len(sys.DamageTypes)+len(sys.HealingTypes) {
		t.Fatalf("unexpected combined size %d", combined.Len())
	}
	if _, ok := combined.Get("temphp"); !ok {
		t.Fatalf("expected healing types in combined table")
	}
}

func TestCreateItemEnsuresFlags(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.start()

	item := &dnd.Item{Name: "Rope"}
	f.reg.Call(hooks.CreateItem, item)

	if len(f.items.calls) != 1 || f.items.calls[0] != item {
		t.Fatalf("expected flags ensured on item, got %v", f.items.calls)
	}
}

func TestUseItemMergesOptions(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.start()

	item := &dnd.Item{Name: "Longsword"}
	f.reg.Call(hooks.UseItem, item, dnd.Options{"a": 1}, dnd.Options{"a": 2, "ignore": false})

	if len(f.rolls.calls) != 1 {
		t.Fatalf("expected one roll, got %d", len(f.rolls.calls))
	}
	got := f.rolls.calls[0].opts
	if len(got) != 2 || got["a"] != 2 || got["ignore"] != false {
		t.Fatalf("unexpected merged options: %v", got)
	}
}

func TestUseItemIgnored(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.start()

	f.reg.Call(hooks.UseItem, &dnd.Item{Name: "Longsword"}, nil, dnd.Options{"ignore": true})

	if len(f.rolls.calls) != 0 {
		t.Fatalf("ignored use must not roll, got %v", f.rolls.calls)
	}
}

func TestUseItemBadArgumentsIsolated(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.start()

	after := 0
	f.reg.On(hooks.UseItem, hooks.HandlerFunc(func(hooks.Args) error { after++; return nil }))

	f.reg.Call(hooks.UseItem, "not an item", nil, nil)
	f.reg.Call(hooks.UseItem, &dnd.Item{Name: "x"}, 42, nil)

	if len(f.rolls.calls) != 0 {
		t.Fatalf("bad arguments must not roll")
	}
	if after != 2 {
		t.Fatalf("sibling must still run, ran %d", after)
	}
}

func TestRenderItemSheetOrder(t *testing.T) {
	f := newFixture(t, fakeWrapper{atLeast: true}, allEnabled)
	f.start()

	root, err := sheet.Parse("<form></form>")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f.reg.Call(hooks.RenderItemSheet, &sheet.App{ID: "s"}, root, map[string]any{})

	if len(f.sheets.order) != 2 || f.sheets.order[0] != "height" || f.sheets.order[1] != "content" {
		t.Fatalf("unexpected sheet call order: %v", f.sheets.order)
	}
}

func TestRunPipelineShortCircuit(t *testing.T) {
	var ran []string
	step := func(name string, err error) Step {
		return Step{Name: name, Run: func() error { ran = append(ran, name); return err }}
	}

	results, err := runPipeline([]Step{
		step("a", nil),
		step("b", errors.New("soft")),
		step("c", ErrPrerequisiteUnmet),
		step("d", nil),
	}, log.New(io.Discard), events.Discard)

	if !errors.Is(err, ErrPrerequisiteUnmet) {
		t.Fatalf("expected ErrPrerequisiteUnmet, got %v", err)
	}
	if len(ran) != 3 {
		t.Fatalf("expected 3 steps to run, got %v", ran)
	}
	if len(results) != 4 || !results[3].Skipped || results[1].Err == nil {
		t.Fatalf("unexpected results: %+v", results)
	}
}
