package engine

import (
	"errors"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/roll"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/sheet"
)

// maxTableDepth bounds how deeply nested a table passed to the host may be.
const maxTableDepth = 32

var (
	errCyclicTable = errors.New("table refers to itself")
	errTableDepth  = fmt.Errorf("tables nested deeper than %d", maxTableDepth)
)

// fromLua converts a Lua value into the Go shape hook handlers expect.
// Tables with only array keys become []any, other tables dnd.Options.
// Integral numbers become int.
func fromLua(lv lua.LValue) (any, error) {
	var c converter
	return c.value(lv, 0)
}

func optionsFromTable(tbl *lua.LTable) (dnd.Options, error) {
	if tbl == nil {
		return nil, nil
	}
	var c converter
	return c.options(tbl, 0)
}

// converter tracks the tables on the current path so a cycle is reported
// instead of recursed into. A table shared by two siblings is fine.
type converter struct {
	path map[*lua.LTable]bool
}

func (c *converter) enter(tbl *lua.LTable, depth int) error {
	if depth >= maxTableDepth {
		return errTableDepth
	}
	if c.path == nil {
		c.path = make(map[*lua.LTable]bool)
	}
	if c.path[tbl] {
		return errCyclicTable
	}
	c.path[tbl] = true
	return nil
}

func (c *converter) value(lv lua.LValue, depth int) (any, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LString:
		return string(v), nil
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
			return int(f), nil
		}
		return f, nil
	case *lua.LUserData:
		return v.Value, nil
	case *lua.LTable:
		if n := v.Len(); n > 0 && arrayOnly(v, n) {
			return c.array(v, n, depth)
		}
		return c.options(v, depth)
	default:
		return v.String(), nil
	}
}

func (c *converter) array(tbl *lua.LTable, n, depth int) ([]any, error) {
	if err := c.enter(tbl, depth); err != nil {
		return nil, err
	}
	defer delete(c.path, tbl)

	out := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		v, err := c.value(tbl.RawGetInt(i), depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *converter) options(tbl *lua.LTable, depth int) (dnd.Options, error) {
	if err := c.enter(tbl, depth); err != nil {
		return nil, err
	}
	defer delete(c.path, tbl)

	out := dnd.Options{}
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var gv any
		if gv, err = c.value(v, depth+1); err == nil {
			out[k.String()] = gv
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func arrayOnly(tbl *lua.LTable, n int) bool {
	count := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) { count++ })
	return count == n
}

// toLua converts a hook argument for a Lua handler.
func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []any:
		tbl := L.NewTable()
		for _, e := range x {
			tbl.Append(toLua(L, e))
		}
		return tbl
	case []bool:
		tbl := L.NewTable()
		for _, e := range x {
			tbl.Append(lua.LBool(e))
		}
		return tbl
	case dnd.Options:
		return mapToLua(L, x)
	case map[string]any:
		return mapToLua(L, x)
	case *dnd.Item:
		return itemToLua(L, x)
	case *roll.ItemRoll:
		return itemRollToLua(L, x)
	case *sheet.App:
		tbl := L.NewTable()
		L.SetField(tbl, "id", lua.LString(x.ID))
		L.SetField(tbl, "title", lua.LString(x.Title))
		L.SetField(tbl, "height", lua.LString(x.Position.Height))
		return tbl
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

func mapToLua(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, toLua(L, v))
	}
	return tbl
}

func itemToLua(L *lua.LState, item *dnd.Item) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "id", lua.LString(item.ID))
	L.SetField(tbl, "name", lua.LString(item.Name))
	L.SetField(tbl, "type", lua.LString(string(item.Type)))
	return tbl
}

func itemRollToLua(L *lua.LState, r *roll.ItemRoll) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "item", lua.LString(r.Item))
	L.SetField(tbl, "critical", lua.LBool(r.Critical))

	if r.Attack != nil {
		atk := L.NewTable()
		L.SetField(atk, "natural", lua.LNumber(r.Attack.Natural))
		L.SetField(atk, "total", lua.LNumber(r.Attack.Total))
		L.SetField(atk, "dice", lua.LNumber(len(r.Attack.Rolls)))
		L.SetField(tbl, "attack", atk)
	}

	damage := L.NewTable()
	total := 0
	for _, d := range r.Damage {
		part := L.NewTable()
		L.SetField(part, "type", lua.LString(d.Type))
		L.SetField(part, "total", lua.LNumber(d.Total))
		dice := 0
		for _, dd := range d.Dice {
			dice += len(dd.Results)
		}
		L.SetField(part, "dice", lua.LNumber(dice))
		damage.Append(part)
		total += d.Total
	}
	L.SetField(tbl, "damage", damage)
	L.SetField(tbl, "damage_total", lua.LNumber(total))

	if r.Versatile != nil {
		L.SetField(tbl, "versatile", lua.LNumber(r.Versatile.Total))
	}
	if r.Other != nil {
		L.SetField(tbl, "other", lua.LNumber(r.Other.Total))
	}

	return tbl
}

// itemFromTable builds an item from create_item's table argument.
func itemFromTable(tbl *lua.LTable) (*dnd.Item, error) {
	name := luaStringToString(tbl, "name")
	if name == "" {
		return nil, fmt.Errorf("item name is required")
	}

	item := &dnd.Item{
		ID:        luaStringToString(tbl, "id"),
		Name:      name,
		Type:      dnd.ItemType(luaStringToString(tbl, "type")),
		Versatile: luaStringToString(tbl, "versatile"),
		Formula:   luaStringToString(tbl, "formula"),
	}
	if item.ID == "" {
		item.ID = name
	}
	if b, ok := tbl.RawGetString("attack").(lua.LBool); ok {
		item.HasAttack = bool(b)
	}
	if n, ok := tbl.RawGetString("attack_bonus").(lua.LNumber); ok {
		item.AttackBonus = int(n)
		item.HasAttack = true
	}

	if lv := tbl.RawGetString("damage"); lv != lua.LNil {
		parts, ok := lv.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("item %q: damage must be a table", name)
		}
		for i := 1; i <= parts.Len(); i++ {
			part, ok := parts.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("item %q: damage part %d must be {formula, type}", name, i)
			}
			item.Damage = append(item.Damage, dnd.DamagePart{
				Formula: lua.LVAsString(part.RawGetInt(1)),
				Type:    lua.LVAsString(part.RawGetInt(2)),
			})
		}
	}

	return item, nil
}
