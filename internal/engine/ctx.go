// Package engine runs scenario files against a simulated host with the
// add-on installed.
package engine

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/patch"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/sheet"
)

// Ctx is the host handle a scenario function receives.
type Ctx struct {
	L  *lua.LState
	ud *lua.LUserData

	scenario string
	world    *world
	bus      events.Emitter

	handles map[int]hooks.Handle
	next    int
}

func NewCtx(L *lua.LState, w *world, bus events.Emitter, scenario string) *Ctx {
	c := &Ctx{
		L:        L,
		scenario: scenario,
		world:    w,
		bus:      bus,
		handles:  make(map[int]hooks.Handle),
	}
	ud := L.NewUserData()
	ud.Value = c
	c.ud = ud

	meta := L.NewTypeMetatable("rsr_ctx")
	L.SetField(meta, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"init":         c.luaInit,
		"ready":        c.luaReady,
		"call":         c.luaCall,
		"on":           c.luaOn,
		"once":         c.luaOnce,
		"off":          c.luaOff,
		"subscribers":  c.luaSubscribers,
		"create_item":  c.luaCreateItem,
		"use_item":     c.luaUseItem,
		"actor_roll":   c.luaActorRoll,
		"render_sheet": c.luaRenderSheet,
		"flags":        c.luaFlags,
		"rolls":        c.luaRolls,
		"failures":     c.luaFailures,
		"setting":      c.luaSetting,
		"damage_type":  c.luaDamageType,
		"log":          c.luaLog,
	}))

	L.SetMetatable(ud, meta)

	return c
}

// method call: arg1 is userdata, arg2 is first user arg

func (c *Ctx) luaInit(L *lua.LState) int {
	c.world.hooks.Call(hooks.Init)
	return 0
}

func (c *Ctx) luaReady(L *lua.LState) int {
	c.world.hooks.Call(hooks.Ready)
	return 0
}

// ctx:call("rsr5e.render", ...) raises any channel with converted args.
func (c *Ctx) luaCall(L *lua.LState) int {
	ch := hooks.Channel(L.CheckString(2))

	args := make([]any, 0, L.GetTop()-2)
	for i := 3; i <= L.GetTop(); i++ {
		v, err := fromLua(L.Get(i))
		if err != nil {
			L.ArgError(i, err.Error())
			return 0
		}
		args = append(args, v)
	}

	c.world.hooks.Call(ch, args...)
	return 0
}

func (c *Ctx) luaOn(L *lua.LState) int {
	return c.subscribe(L, false)
}

func (c *Ctx) luaOnce(L *lua.LState) int {
	return c.subscribe(L, true)
}

// ctx:on(channel, fn) -> handle id
func (c *Ctx) subscribe(L *lua.LState, once bool) int {
	ch := hooks.Channel(L.CheckString(2))
	fn := L.CheckFunction(3)

	h := hooks.HandlerFunc(func(args hooks.Args) error {
		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = toLua(L, a)
		}
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, largs...)
	})

	subscribe := c.world.hooks.On
	if once {
		subscribe = c.world.hooks.Once
	}

	handle, err := subscribe(ch, h)
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	c.next++
	c.handles[c.next] = handle
	L.Push(lua.LNumber(c.next))

	return 1
}

func (c *Ctx) luaOff(L *lua.LState) int {
	id := L.CheckInt(2)
	if h, ok := c.handles[id]; ok {
		c.world.hooks.Off(h)
		delete(c.handles, id)
	}
	return 0
}

func (c *Ctx) luaSubscribers(L *lua.LState) int {
	L.Push(lua.LNumber(c.world.hooks.Subscribers(hooks.Channel(L.CheckString(2)))))
	return 1
}

// ctx:create_item{ name="Longsword", type="weapon", attack_bonus=5,
// damage={{"1d8+3", "slashing"}}, versatile="1d10+3" }
func (c *Ctx) luaCreateItem(L *lua.LState) int {
	item, err := itemFromTable(L.CheckTable(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	c.world.addItem(item)
	c.world.hooks.Call(hooks.CreateItem, item)

	L.Push(lua.LString(item.Name))
	return 1
}

// ctx:use_item(name, config, options) -> roll table or nil
func (c *Ctx) luaUseItem(L *lua.LState) int {
	item := c.checkItem(L, 2)
	config := c.checkOptions(L, 3)
	options := c.checkOptions(L, 4)
	if options == nil {
		options = dnd.Options{}
	}

	before := c.world.rollCount()

	_, err := c.world.wrapper.Invoke(patch.ItemUse, func(args []any) (any, error) {
		c.world.hooks.Call(hooks.UseItem, args...)
		return nil, nil
	}, []any{item, config, options})
	if err != nil {
		L.RaiseError("use_item %q: %v", item.Name, err)
		return 0
	}

	if c.world.rollCount() == before {
		L.Push(lua.LNil)
		return 1
	}

	L.Push(toLua(L, c.world.lastRoll()))
	return 1
}

// ctx:actor_roll("skill", "ath", options) -> effective options
func (c *Ctx) luaActorRoll(L *lua.LState) int {
	kind := L.CheckString(2)
	id := L.CheckString(3)
	options := c.checkOptions(L, 4)
	if options == nil {
		options = dnd.Options{}
	}

	var target string
	switch kind {
	case "ability":
		target = patch.ActorAbilityTest
	case "save":
		target = patch.ActorAbilitySave
	case "skill":
		target = patch.ActorSkill
	default:
		L.ArgError(2, "expected ability, save or skill")
		return 0
	}

	out, err := c.world.wrapper.Invoke(target, func(args []any) (any, error) {
		return args[len(args)-1], nil
	}, []any{id, options})
	if err != nil {
		L.RaiseError("actor_roll %s %s: %v", kind, id, err)
		return 0
	}

	L.Push(toLua(L, out))
	return 1
}

// ctx:render_sheet(name) -> html, height
func (c *Ctx) luaRenderSheet(L *lua.LState) int {
	item := c.checkItem(L, 2)

	app := &sheet.App{
		ID:       "item-sheet-" + item.ID,
		Title:    item.Name,
		Item:     item,
		Position: sheet.Position{Width: 560, Height: "400"},
	}

	data, err := c.world.wrapper.Invoke(patch.ItemSheetData, func([]any) (any, error) {
		return map[string]any{"name": item.Name, "type": string(item.Type)}, nil
	}, []any{item})
	if err != nil {
		L.RaiseError("render_sheet %q: %v", item.Name, err)
		return 0
	}

	root, err := sheet.Parse(sheet.DefaultMarkup(item))
	if err != nil {
		L.RaiseError("render_sheet %q: %v", item.Name, err)
		return 0
	}

	c.world.hooks.Call(hooks.RenderItemSheet, app, root, data)

	out, err := sheet.Render(root)
	if err != nil {
		L.RaiseError("render_sheet %q: %v", item.Name, err)
		return 0
	}

	L.Push(lua.LString(out))
	L.Push(lua.LString(app.Position.Height))
	return 2
}

func (c *Ctx) luaFlags(L *lua.LState) int {
	item := c.checkItem(L, 2)

	L.Push(toLua(L, item.Flags(hooks.ModuleShort)))
	return 1
}

func (c *Ctx) luaRolls(L *lua.LState) int {
	L.Push(lua.LNumber(c.world.rollCount()))
	return 1
}

func (c *Ctx) luaFailures(L *lua.LState) int {
	L.Push(lua.LNumber(c.world.failures.Load()))
	return 1
}

func (c *Ctx) luaSetting(L *lua.LState) int {
	L.Push(lua.LBool(c.world.settings.Bool(L.CheckString(2))))
	return 1
}

// ctx:damage_type("temphp") -> label or nil
func (c *Ctx) luaDamageType(L *lua.LState) int {
	v, ok := c.world.module.CombinedDamageTypes().Get(L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	L.Push(lua.LString(v.Label))
	return 1
}

func (c *Ctx) luaLog(L *lua.LState) int {
	level := L.CheckString(2)
	msg := L.CheckString(3)

	var tbl *lua.LTable

	if L.GetTop() >= 4 {
		tbl = L.CheckTable(4)
	}

	attrs := []any{}

	if tbl != nil {
		tbl.ForEach(func(k, v lua.LValue) {
			attrs = append(attrs, k.String(), v.String())
		})
	}

	c.bus.Emit(events.Event{
		Type:     events.Message,
		Time:     time.Now(),
		Scenario: c.scenario,
		Fields: map[string]any{
			"level": level,
			"msg":   msg,
			"attrs": attrs,
		},
	})
	return 0
}

func (c *Ctx) checkItem(L *lua.LState, n int) *dnd.Item {
	name := L.CheckString(n)

	item, ok := c.world.item(name)
	if !ok {
		L.ArgError(n, "unknown item "+name)
		return nil
	}

	return item
}

// checkOptions converts the optional table argument n.
func (c *Ctx) checkOptions(L *lua.LState, n int) dnd.Options {
	opts, err := optionsFromTable(L.OptTable(n, nil))
	if err != nil {
		L.ArgError(n, err.Error())
		return nil
	}
	return opts
}
