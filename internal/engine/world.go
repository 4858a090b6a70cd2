package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/i18n"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/items"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/logging"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/module"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/patch"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/roll"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/settings"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/sheet"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/wrapper"
)

// world is one simulated host with the add-on installed.
type world struct {
	hooks    *hooks.Registry
	settings *settings.Store
	wrapper  *wrapper.Registry
	module   *module.Module
	trace    *events.Bus

	mu       sync.Mutex
	items    map[string]*dnd.Item
	rolls    []*roll.ItemRoll
	failures atomic.Int32
}

type worldConfig struct {
	scenario string
	cfg      Config
	base     settings.Overrides
	language string
	seed     int64
	log      *log.Logger
	notifier logging.Notifier
	metrics  *hooks.Metrics
	catalog  *i18n.Catalog
	forward  events.Emitter
}

func newWorld(wc worldConfig) (*world, error) {
	w := &world{
		settings: settings.NewStore(),
		wrapper:  wrapper.New(wc.cfg.Wrapper.Version, wc.cfg.Wrapper.Fallback),
		trace:    events.NewBus(),
		items:    make(map[string]*dnd.Item),
	}

	w.trace.Subscribe(func(ev events.Event) {
		if ev.Type == events.HandlerFailed {
			w.failures.Add(1)
		}
		ev.Scenario = wc.scenario
		wc.forward.Emit(ev)
	})

	if err := w.settings.Apply(settings.Merge(wc.base, wc.cfg.Settings)); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", wc.scenario, err)
	}

	w.hooks = hooks.New(
		hooks.WithLogger(wc.log),
		hooks.WithMetrics(wc.metrics),
		hooks.WithTrace(w.trace),
	)

	lang := wc.language
	if wc.cfg.Language != "" {
		lang = wc.cfg.Language
	}

	w.module = module.New(module.Deps{
		Settings:  w.settings,
		Wrapper:   w.wrapper,
		Logger:    logging.New(wc.log, wc.notifier),
		Localizer: wc.catalog.Localizer(lang),
		Items:     items.Flagger{},
		Rolls:     roll.NewRoller(wc.seed, w.hooks),
		Sheets:    sheet.Renderer{},
		Patcher:   patch.New(w.wrapper),
		System:    dnd.DefaultSystemConfig(),
		Log:       wc.log,
		Trace:     w.trace,
	})

	if err := w.module.Register(w.hooks); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", wc.scenario, err)
	}

	if _, err := w.hooks.On(hooks.RollProcessed, hooks.HandlerFunc(func(args hooks.Args) error {
		if r, ok := args.At(1).(*roll.ItemRoll); ok {
			w.mu.Lock()
			w.rolls = append(w.rolls, r)
			w.mu.Unlock()
		}
		return nil
	})); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *world) item(name string) (*dnd.Item, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	item, ok := w.items[name]
	return item, ok
}

func (w *world) addItem(item *dnd.Item) {
	w.mu.Lock()
	w.items[item.Name] = item
	w.mu.Unlock()
}

func (w *world) rollCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.rolls)
}

func (w *world) lastRoll() *roll.ItemRoll {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.rolls) == 0 {
		return nil
	}
	return w.rolls[len(w.rolls)-1]
}
