package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pix-xip/go-command"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/engine"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/settings"
)

var Version string

func main() {
	r := command.Root().Help("rsr runs Ready Set Roll scenarios against a simulated host").
		Flags(func(f *flag.FlagSet) {
			f.String("f", "Scenarios.lua", "path to the scenario file")
			f.String("log-level", "info", "set the log level [debug|info|warn|error]")
			f.String("log-format", "text", "set the log format [json|text]")
			f.String("settings", "", "setting overrides file [yaml|json|toml]")
			f.String("language", "en", "language for add-on messages")
			f.Int("workers", 2, "max parallel scenarios to run")
			f.Int("seed", 0, "fix the dice seed, 0 for random")
			f.Bool("notify", false, "show add-on errors as desktop notifications")
			f.Bool("metrics", false, "print hook metrics after the run")

			f.Bool("quiet", false, "disable all output")
			f.Bool("debug", false, "enable debug mode")
		})

	r.Action(Start)

	r.SubCommand("version").Help("Prints the version").
		Action(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
			fmt.Println("rsr version", Version)
			return nil
		})

	r.SubCommand("channels").Help("Lists the hook channels the add-on knows").
		Action(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
			for _, ch := range hooks.KnownChannels() {
				fmt.Println(ch)
			}
			return nil
		})

	r.SubCommand("settings").Help("Lists the add-on settings and their defaults").
		Action(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
			for _, s := range settings.Definitions() {
				fmt.Printf("%-22s %-5t %s\n", s.Name, s.Default, s.Hint)
			}
			return nil
		})

	if err := r.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeOpts(fs *flag.FlagSet) (engine.Options, error) {
	level, err := log.ParseLevel(command.Lookup[string](fs, "log-level"))
	if err != nil {
		return engine.Options{}, fmt.Errorf("invalid log level: %w", err)
	}

	if command.Lookup[bool](fs, "debug") {
		level = log.DebugLevel
	}

	var format log.Formatter

	switch command.Lookup[string](fs, "log-format") {
	case "json":
		format = log.JSONFormatter
	case "text":
		format = log.TextFormatter
	default:
		return engine.Options{}, fmt.Errorf("invalid log format: %s",
			command.Lookup[string](fs, "log-format"))
	}

	return engine.Options{
		File:         command.Lookup[string](fs, "f"),
		LogLevel:     level,
		LogFormat:    format,
		Quiet:        command.Lookup[bool](fs, "quiet"),
		MaxWorkers:   command.Lookup[int](fs, "workers"),
		SettingsFile: command.Lookup[string](fs, "settings"),
		Environ:      environ(),
		Language:     command.Lookup[string](fs, "language"),
		Seed:         int64(command.Lookup[int](fs, "seed")),
		Notify:       command.Lookup[bool](fs, "notify"),
	}, nil
}

func environ() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

func Start(ctx context.Context, fs *flag.FlagSet, args []string) error {
	opts, err := makeOpts(fs)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		fs.Usage()
		os.Exit(0)
	}

	eng, err := engine.New(opts)
	if err != nil {
		return err
	}
	defer eng.Close()

	switch args[0] {
	case "scenarios":
		if err := eng.Load(); err != nil {
			return fmt.Errorf("load error: %w", err)
		}

		for _, name := range eng.ScenarioNames() {
			fmt.Println(name)
		}
	case "run":
		if err := eng.Load(); err != nil {
			return fmt.Errorf("load error: %w", err)
		}

		if len(args) < 2 {
			err = eng.RunAll()
		} else {
			err = eng.Run(args[1])
		}
		if err != nil {
			return fmt.Errorf("run error: %w", err)
		}

		if command.Lookup[bool](fs, "metrics") {
			return eng.WriteMetrics(os.Stdout)
		}
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}

	return nil
}
