package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	lua "github.com/yuin/gopher-lua"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/i18n"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/logging"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/roll"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/settings"
)

type Options struct {
	File       string
	LogFormat  log.Formatter // "json" or "text"
	LogLevel   log.Level     // "debug", "info", "warn", "error"
	Quiet      bool
	MaxWorkers int

	// SettingsFile is an optional yaml, json or toml file of setting
	// overrides applied to every scenario.
	SettingsFile string
	// Environ is consulted for RSR_* setting overrides.
	Environ  map[string]string
	Language string
	// Seed fixes the dice of every scenario. Zero picks a random seed per
	// scenario.
	Seed   int64
	Notify bool
}

type Engine struct {
	opt       Options
	bus       *events.Bus
	L         *lua.LState
	scenarios map[string]scenarioDef
	cfg       Config

	base     settings.Overrides
	catalog  *i18n.Catalog
	registry *prometheus.Registry
	metrics  *hooks.Metrics
	notifier logging.Notifier
	spinner  *spinnerRenderer
}

type scenarioDef struct {
	fn   *lua.LFunction
	deps []string
}

func New(opts Options) (*Engine, error) {
	if opts.Quiet {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
		log.SetLevel(opts.LogLevel)
		log.SetFormatter(opts.LogFormat)
		log.SetTimeFormat(time.Kitchen)
	}

	catalog, err := i18n.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	base, err := baseOverrides(opts)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := hooks.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	e := &Engine{
		opt:       opts,
		bus:       events.NewBus(),
		L:         lua.NewState(),
		scenarios: make(map[string]scenarioDef),
		base:      base,
		catalog:   catalog,
		registry:  registry,
		metrics:   metrics,
	}
	if opts.Notify {
		e.notifier = logging.DesktopNotifier()
	}
	if !opts.Quiet && opts.LogFormat == log.TextFormatter {
		e.spinner = newSpinnerRenderer(os.Stderr)
	}

	e.registerDSL()
	e.subscribe()

	return e, nil
}

func baseOverrides(opts Options) (settings.Overrides, error) {
	var file settings.Overrides
	if opts.SettingsFile != "" {
		o, err := settings.Load(opts.SettingsFile)
		if err != nil {
			return nil, fmt.Errorf("settings file: %w", err)
		}
		file = o
	}

	env, err := settings.LoadEnv(opts.Environ)
	if err != nil {
		return nil, fmt.Errorf("settings env: %w", err)
	}

	return settings.Merge(file, env), nil
}

func (e *Engine) Close() {
	if e.spinner != nil {
		e.spinner.Stop()
	}
	if e.L != nil {
		e.L.Close()
	}
}

// Events exposes the trace of every scenario run by this engine.
func (e *Engine) Events() events.Emitter { return e.bus }

// Gatherer exposes the hook metrics collected across runs.
func (e *Engine) Gatherer() prometheus.Gatherer { return e.registry }

// WriteMetrics writes the collected metrics in the text exposition format.
func (e *Engine) WriteMetrics(w io.Writer) error {
	mfs, err := e.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) subscribe() {
	e.bus.Subscribe(func(ev events.Event) {
		switch ev.Type {
		case events.ScenarioStart:
			log.Debug("scenario start", "scenario", ev.Scenario, "seed", ev.Fields["seed"])

			if e.spinner != nil {
				e.spinner.Handle(ev)
			}
		case events.ScenarioEnd:
			log.Debug("scenario end",
				"scenario", ev.Scenario,
				"ok", ev.Fields["ok"],
				"duration_ms", ev.Fields["duration_ms"],
			)

			if e.spinner != nil {
				e.spinner.Handle(ev)
			}
		case events.StepStart:
			log.Debug("init step", "scenario", ev.Scenario, "step", ev.Fields["step"])
		case events.StepEnd:
			log.Debug("init step end", "scenario", ev.Scenario, "step", ev.Fields["step"], "ok", ev.Fields["ok"])
		case events.HandlerFailed:
			log.Debug("handler failed",
				"scenario", ev.Scenario,
				"channel", ev.Fields["channel"],
				"position", ev.Fields["position"],
			)
		case events.Message:
			l := log.WithPrefix("LUA")

			attrs, _ := ev.Fields["attrs"].([]any)
			if e.opt.LogFormat == log.TextFormatter {
				if multi, ok := attrStringAny(attrs, "error", "output"); ok && strings.Contains(multi, "\n") {
					fmt.Fprintln(os.Stderr, multi)
					return
				}
			}

			switch ev.Fields["level"] {
			case "debug":
				l.Debug(ev.Fields["msg"], attrs...)
			case "warn":
				l.Warn(ev.Fields["msg"], attrs...)
			case "error":
				l.Error(ev.Fields["msg"], attrs...)
			default:
				l.Info(ev.Fields["msg"], attrs...)
			}
		}
	})
}

func attrStringAny(attrs []any, keys ...string) (string, bool) {
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok || !stringInSlice(k, keys) {
			continue
		}

		if v, ok := attrs[i+1].(string); ok {
			return v, true
		}

		return "", false
	}

	return "", false
}

func stringInSlice(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (e *Engine) registerDSL() {
	registerDSLWithScenarios(e.L, e.scenarios)
}

func registerDSLWithScenarios(L *lua.LState, scenarios map[string]scenarioDef) {
	L.SetGlobal("scenario", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		var (
			opts *lua.LTable
			fn   *lua.LFunction
		)

		switch L.GetTop() {
		case 2:
			fn = L.CheckFunction(2)
		case 3:
			opts = L.CheckTable(2)
			fn = L.CheckFunction(3)
		default:
			L.ArgError(1, "expected scenario(name, fn) or scenario(name, opts, fn)")
			return 1
		}

		if name == "" {
			L.ArgError(1, "scenario name cannot be empty")
			return 1
		}

		deps, err := parseScenarioDeps(opts)
		if err != nil {
			L.ArgError(2, err.Error())
			return 1
		}

		scenarios[name] = scenarioDef{fn: fn, deps: deps}

		return 0
	}))
}

func (e *Engine) Load() error {
	// reset scenarios for idempotent loads
	e.scenarios = make(map[string]scenarioDef)
	e.cfg = Config{}
	registerDSLWithScenarios(e.L, e.scenarios)

	if err := e.L.DoFile(e.opt.File); err != nil {
		return fmt.Errorf("failure executing %s: %w", e.opt.File, err)
	}

	cfg, err := loadConfigFrom(e.L)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	e.cfg = cfg

	return nil
}

// Config returns what the loaded file declared.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) ScenarioNames() []string {
	out := make([]string, 0, len(e.scenarios))
	for k := range e.scenarios {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

func (e *Engine) Run(name string) error {
	graph, err := e.depsGraph(name)
	if err != nil {
		return err
	}

	return e.runGraph(graph)
}

// RunAll runs every loaded scenario.
func (e *Engine) RunAll() error {
	graph := map[ScenarioName][]ScenarioName{}
	for _, name := range e.ScenarioNames() {
		g, err := e.depsGraph(name)
		if err != nil {
			return err
		}
		for k, v := range g {
			graph[k] = v
		}
	}

	return e.runGraph(graph)
}

func (e *Engine) runGraph(graph map[ScenarioName][]ScenarioName) error {
	maxWorkers := e.opt.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	err := RunGraphParallel(engineRunner{engine: e}, graph, maxWorkers)

	var re *RunError
	if errors.As(err, &re) {
		for _, f := range re.Failed {
			log.Error("scenario failed", "scenario", f.Scenario, "err", f.Err)
		}
		if len(re.Skipped) > 0 {
			log.Warn("scenarios skipped", "scenarios", joinNames(re.Skipped))
		}
	}

	return err
}

type engineRunner struct {
	engine *Engine
}

func (r engineRunner) Run(name ScenarioName) error {
	return r.engine.runScenarioIsolated(string(name))
}

// runScenarioIsolated runs one scenario in its own Lua state against a
// fresh host.
func (e *Engine) runScenarioIsolated(name string) error {
	L := lua.NewState()
	defer L.Close()

	scenarios := make(map[string]scenarioDef)
	registerDSLWithScenarios(L, scenarios)

	if err := L.DoFile(e.opt.File); err != nil {
		return fmt.Errorf("failure executing %s: %w", e.opt.File, err)
	}

	cfg, err := loadConfigFrom(L)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	def, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario %q", name)
	}

	seed := e.opt.Seed
	if seed == 0 {
		if seed, err = roll.NewSeed(); err != nil {
			return err
		}
	}

	w, err := newWorld(worldConfig{
		scenario: name,
		cfg:      cfg,
		base:     e.base,
		language: e.opt.Language,
		seed:     seed,
		log:      log.Default().With("scenario", name),
		notifier: e.notifier,
		metrics:  e.metrics,
		catalog:  e.catalog,
		forward:  e.bus,
	})
	if err != nil {
		return err
	}

	ctx := NewCtx(L, w, e.bus, name)

	start := time.Now()
	e.bus.Emit(events.Event{
		Type:     events.ScenarioStart,
		Time:     time.Now(),
		Scenario: name,
		Fields: map[string]any{
			"seed": seed,
		},
	})

	err = L.CallByParam(lua.P{
		Fn:      def.fn,
		NRet:    0,
		Protect: true,
	}, ctx.ud)

	e.bus.Emit(events.Event{
		Type:     events.ScenarioEnd,
		Time:     time.Now(),
		Scenario: name,
		Fields: map[string]any{
			"ok":          err == nil,
			"duration_ms": time.Since(start).Milliseconds(),
			"failures":    w.failures.Load(),
		},
	})

	return err
}

func (e *Engine) depsGraph(root string) (map[ScenarioName][]ScenarioName, error) {
	if _, ok := e.scenarios[root]; !ok {
		return nil, fmt.Errorf("unknown scenario %q", root)
	}

	graph := map[ScenarioName][]ScenarioName{}
	visited := map[string]bool{}

	var visit func(string) error

	visit = func(name string) error {
		if visited[name] {
			return nil
		}

		def, ok := e.scenarios[name]
		if !ok {
			return fmt.Errorf("unknown dependency %q", name)
		}

		visited[name] = true

		deps := make([]ScenarioName, 0, len(def.deps))
		for _, dep := range def.deps {
			if _, ok := e.scenarios[dep]; !ok {
				return fmt.Errorf("unknown dependency %q", dep)
			}

			deps = append(deps, ScenarioName(dep))
			if err := visit(dep); err != nil {
				return err
			}
		}

		graph[ScenarioName(name)] = deps

		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}

	return graph, nil
}

func parseScenarioDeps(opts *lua.LTable) ([]string, error) {
	if opts == nil {
		return nil, nil
	}

	lv := opts.RawGetString("depends")
	if lv == lua.LNil {
		return nil, nil
	}

	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return nil, errors.New("depends must be a table of strings")
	}

	deps := []string{}

	tbl.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			deps = append(deps, string(s))
		}
	})

	if len(deps) != tbl.Len() {
		return nil, errors.New("depends must be a table of strings")
	}

	return deps, nil
}
