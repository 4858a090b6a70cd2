package engine

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/settings"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/wrapper"
)

// DefaultWrapperVersion is the wrapping library a scenario gets unless it
// says otherwise.
const DefaultWrapperVersion = "1.12.13.0"

type WrapperConfig struct {
	Version  wrapper.Version
	Fallback bool
}

// Config is what a scenario file declares through globals.
type Config struct {
	Settings settings.Overrides
	Wrapper  WrapperConfig
	Language string
}

func defaultConfig() Config {
	v, _ := wrapper.ParseVersion(DefaultWrapperVersion)
	return Config{Wrapper: WrapperConfig{Version: v}}
}

func loadConfigFrom(L *lua.LState) (Config, error) {
	cfg := defaultConfig()

	overrides, err := parseSettings(L.GetGlobal("settings"))
	if err != nil {
		return cfg, err
	}
	cfg.Settings = overrides

	w, err := parseWrapper(L.GetGlobal("libwrapper"), cfg.Wrapper)
	if err != nil {
		return cfg, err
	}
	cfg.Wrapper = w

	switch lv := L.GetGlobal("language").(type) {
	case *lua.LNilType:
	case lua.LString:
		cfg.Language = string(lv)
	default:
		return cfg, errors.New("language must be a string")
	}

	return cfg, nil
}

func parseSettings(lv lua.LValue) (settings.Overrides, error) {
	if lv == lua.LNil {
		return nil, nil
	}

	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return nil, errors.New("settings must be a table")
	}

	out := settings.Overrides{}
	var bad []string

	tbl.ForEach(func(k, v lua.LValue) {
		b, ok := v.(lua.LBool)
		if k.Type() != lua.LTString || !ok {
			bad = append(bad, k.String())
			return
		}
		out[k.String()] = bool(b)
	})

	if len(bad) > 0 {
		return nil, fmt.Errorf("settings entries must be name = boolean, got %v", bad)
	}

	return out, nil
}

func parseWrapper(lv lua.LValue, def WrapperConfig) (WrapperConfig, error) {
	if lv == lua.LNil {
		return def, nil
	}

	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return def, errors.New("libwrapper must be a table")
	}

	out := def
	if s := luaStringToString(tbl, "version"); s != "" {
		v, err := wrapper.ParseVersion(s)
		if err != nil {
			return def, fmt.Errorf("libwrapper.version: %w", err)
		}
		out.Version = v
	}

	if b, ok := tbl.RawGetString("fallback").(lua.LBool); ok {
		out.Fallback = bool(b)
	}

	return out, nil
}

func luaStringToString(tbl *lua.LTable, key string) string {
	lv := tbl.RawGetString(key)
	if s, ok := lv.(lua.LString); ok {
		return string(s)
	}

	return ""
}
